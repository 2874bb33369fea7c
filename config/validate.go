package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if _, err := c.SaleIdentity(); err != nil {
		return err
	}
	switch c.StorageBackend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("StorageBackend: unsupported %q", c.StorageBackend)
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	if c.RPC.MintRequestsPerMinute <= 0 || c.RPC.MintBurst <= 0 {
		return fmt.Errorf("rpc: mint rate limit must be positive")
	}
	if strings.TrimSpace(c.RPC.JWTSecretEnv) != "" && strings.TrimSpace(c.RPC.JWTIssuer) == "" {
		return fmt.Errorf("rpc: JWTIssuer required when JWTSecretEnv is set")
	}
	if c.Indexer.Enabled {
		switch c.Indexer.Driver {
		case IndexerSQLite, IndexerPostgres:
		default:
			return fmt.Errorf("indexer: unsupported driver %q", c.Indexer.Driver)
		}
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN required")
		}
	}
	if (c.Telemetry.Metrics || c.Telemetry.Traces) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}
