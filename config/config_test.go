package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"landsale/crypto"
)

func bech(fill byte) string {
	return crypto.NewAddress(crypto.LandPrefix, bytes.Repeat([]byte{fill}, 20)).String()
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.StorageBackend != BackendLevelDB {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SaleKeystorePath != filepath.Join(dir, "sale.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.SaleKeystorePath)
	}
	if _, err := os.Stat(cfg.SaleKeystorePath); err != nil {
		t.Fatalf("expected keystore to be generated: %v", err)
	}
	keyAddr, err := crypto.KeystoreAddress(cfg.SaleKeystorePath, "")
	if err != nil {
		t.Fatalf("keystore address: %v", err)
	}
	if cfg.SaleAddress != keyAddr.String() {
		t.Fatalf("sale address %s does not match keystore %s", cfg.SaleAddress, keyAddr)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.SaleAddress != cfg.SaleAddress {
		t.Fatalf("sale identity changed across reloads")
	}
	spec, err := reloaded.GenesisSpec()
	if err != nil || spec != nil {
		t.Fatalf("expected no genesis by default, got %+v err=%v", spec, err)
	}
}

func TestLoadParsesSections(t *testing.T) {
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "/var/lib/landsale"
StorageBackend = "bolt"
Environment = "staging"
SaleAddress = "` + bech(0xa0) + `"
LogFile = "/var/log/landsale.log"

[rpc]
JWTSecretEnv = "LANDSALE_JWT"
JWTIssuer = "land-ops"
MintRequestsPerMinute = 30
MintBurst = 3

[telemetry]
Endpoint = "otel:4318"
Traces = true
SampleRatio = 0.2

[indexer]
Enabled = true

[genesis]
Authority = "` + bech(0x01) + `"
SaleAddress = "` + bech(0xa0) + `"
Price = "500000000000000000000"
CooldownSeconds = 1200
GrantMinter = true
SaleZones = [1, 2]

[genesis.LandRegistry]
Address = "` + bech(0xb1) + `"
Admin = "` + bech(0x01) + `"
Zones = ["north", "south"]
`
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != BackendBolt || cfg.Environment != "staging" {
		t.Fatalf("unexpected top level %+v", cfg)
	}
	if cfg.LogMaxSizeMB != 100 || cfg.LogMaxBackups != 5 {
		t.Fatalf("expected log rotation defaults, got %d/%d", cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
	if cfg.RPC.MintRequestsPerMinute != 30 || cfg.RPC.MintBurst != 3 || cfg.RPC.AuthTokenEnv != "LANDSALE_RPC_TOKEN" {
		t.Fatalf("unexpected rpc section %+v", cfg.RPC)
	}
	if cfg.Indexer.Driver != IndexerSQLite || cfg.Indexer.DSN != filepath.Join("/var/lib/landsale", "receipts.db") {
		t.Fatalf("unexpected indexer section %+v", cfg.Indexer)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Endpoint != "otel:4318" || cfg.Telemetry.SampleRatio != 0.2 || cfg.Telemetry.ExportTimeout != 10 {
		t.Fatalf("unexpected telemetry section %+v", cfg.Telemetry)
	}

	spec, err := cfg.GenesisSpec()
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	sale, _ := cfg.SaleIdentity()
	if spec.SaleIdentity() != sale {
		t.Fatalf("genesis sale identity mismatch")
	}
	if spec.InitialPrice().String() != "500000000000000000000" || spec.CooldownSeconds != 1200 {
		t.Fatalf("unexpected genesis %+v", spec)
	}
	if len(spec.LandRegistry.Zones) != 2 {
		t.Fatalf("expected two genesis zones, got %v", spec.LandRegistry.Zones)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	sale := `SaleAddress = "` + bech(0xa0) + `"` + "\n"
	cases := map[string]string{
		"unknown key":     sale + "ListenAddress = \":6001\"\n",
		"bad backend":     sale + "StorageBackend = \"rocks\"\n",
		"bad sale":        "SaleAddress = \"0x1234\"\n",
		"jwt issuer":      sale + "[rpc]\nJWTSecretEnv = \"X\"\n",
		"indexer driver":  sale + "[indexer]\nEnabled = true\nDriver = \"mysql\"\n",
		"negative rotate": sale + "LogMaxBackups = -1\n",
		"sample ratio":    sale + "[telemetry]\nSampleRatio = 1.5\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Fatalf("expected %s to fail", name)
			}
		})
	}
}

func TestGenesisFileTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	genesisPath := filepath.Join(dir, "genesis.json")
	body := `{"authority":"` + bech(0x01) + `","saleAddress":"` + bech(0xa0) + `","price":"7"}`
	if err := os.WriteFile(genesisPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	contents := strings.Join([]string{
		`SaleAddress = "` + bech(0xa0) + `"`,
		`GenesisFile = "` + filepath.ToSlash(genesisPath) + `"`,
		`[genesis]`,
		`Authority = "` + bech(0x02) + `"`,
		`SaleAddress = "` + bech(0xa0) + `"`,
	}, "\n")
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	spec, err := cfg.GenesisSpec()
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if spec.InitialPrice().Int64() != 7 {
		t.Fatalf("expected genesis file to win, got price %s", spec.InitialPrice())
	}
}

func TestLoadUnlocksProtectedKeystore(t *testing.T) {
	dir := t.TempDir()
	keystorePath := filepath.Join(dir, "operator.keystore")
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := crypto.SaveToKeystore(keystorePath, key, "hunter2"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	path := writeConfig(t, "SaleKeystorePath = \""+filepath.ToSlash(keystorePath)+"\"\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected protected keystore to fail without a passphrase source")
	}

	prompts := 0
	cfg, err := Load(path, WithKeystorePassphraseSource(func() (string, error) {
		prompts++
		return "hunter2", nil
	}))
	if err != nil {
		t.Fatalf("load with passphrase: %v", err)
	}
	if prompts != 1 {
		t.Fatalf("expected one passphrase lookup, got %d", prompts)
	}
	if cfg.SaleAddress != key.PubKey().Address().String() {
		t.Fatalf("unexpected sale address %s", cfg.SaleAddress)
	}
}
