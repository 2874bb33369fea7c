package config

import (
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"

	IndexerSQLite   = "sqlite"
	IndexerPostgres = "postgres"
)

// RPC controls the JSON-RPC listener. Secrets are read from the environment
// variables named here, never from the file itself.
type RPC struct {
	AuthTokenEnv          string  `toml:"AuthTokenEnv"`
	JWTSecretEnv          string  `toml:"JWTSecretEnv"`
	JWTIssuer             string  `toml:"JWTIssuer"`
	MintRequestsPerMinute float64 `toml:"MintRequestsPerMinute"`
	MintBurst             int     `toml:"MintBurst"`
	TrustProxyHeaders     bool    `toml:"TrustProxyHeaders"`
	MaxBodyBytes          int64   `toml:"MaxBodyBytes"`
	ReadHeaderTimeout     int     `toml:"ReadHeaderTimeout"` // seconds
	WriteTimeout          int     `toml:"WriteTimeout"`      // seconds
}

func (r *RPC) applyDefaults() {
	if strings.TrimSpace(r.AuthTokenEnv) == "" {
		r.AuthTokenEnv = "LANDSALE_RPC_TOKEN"
	}
	if r.MintRequestsPerMinute <= 0 {
		r.MintRequestsPerMinute = 60
	}
	if r.MintBurst <= 0 {
		r.MintBurst = 10
	}
	if r.MaxBodyBytes <= 0 {
		r.MaxBodyBytes = 1 << 20
	}
	if r.ReadHeaderTimeout <= 0 {
		r.ReadHeaderTimeout = 5
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = 15
	}
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"` // key=value,key=value
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	// SampleRatio is the fraction of mint traces exported; unset means all.
	SampleRatio   float64 `toml:"SampleRatio"`
	ExportTimeout int     `toml:"ExportTimeout"` // seconds
}

func (t *Telemetry) applyDefaults() {
	if strings.TrimSpace(t.Endpoint) == "" {
		t.Endpoint = "localhost:4318"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
	if t.ExportTimeout <= 0 {
		t.ExportTimeout = 10
	}
}

// Indexer configures the sale receipt index.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}

func (i *Indexer) applyDefaults(dataDir string) {
	if strings.TrimSpace(i.Driver) == "" {
		i.Driver = IndexerSQLite
	}
	if strings.TrimSpace(i.DSN) == "" && i.Driver == IndexerSQLite {
		i.DSN = filepath.Join(dataDir, "receipts.db")
	}
}
