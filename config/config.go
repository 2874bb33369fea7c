package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"landsale/core/genesis"
	"landsale/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress       string `toml:"RPCAddress"`
	MetricsAddress   string `toml:"MetricsAddress"`
	DataDir          string `toml:"DataDir"`
	StorageBackend   string `toml:"StorageBackend"`
	Environment      string `toml:"Environment"`
	SaleAddress      string `toml:"SaleAddress"`
	SaleKeystorePath string `toml:"SaleKeystorePath"`
	GenesisFile      string `toml:"GenesisFile"`

	LogFile       string `toml:"LogFile"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`
	LogMaxAgeDays int    `toml:"LogMaxAgeDays"`

	RPC       RPC           `toml:"rpc"`
	Telemetry Telemetry     `toml:"telemetry"`
	Indexer   Indexer       `toml:"indexer"`
	Genesis   *genesis.Spec `toml:"genesis,omitempty"`
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphraseSource supplies the passphrase for a protected sale
// keystore. It is only consulted when the keystore does not open with an
// empty passphrase.
func WithKeystorePassphraseSource(source func() (string, error)) LoadOption {
	return func(o *loadOptions) { o.passphrase = source }
}

// Load loads the configuration from the given path. A missing file is created
// with defaults and a freshly generated sale identity.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}

	if strings.TrimSpace(cfg.SaleAddress) == "" {
		if err := ensureKeystore(path, cfg, options); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// ensureKeystore derives the sale identity from its keystore, generating the
// key when the keystore does not exist yet, and persists the result.
func ensureKeystore(configPath string, cfg *Config, options loadOptions) error {
	keystorePath := cfg.SaleKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	addr, err := crypto.KeystoreAddress(keystorePath, "")
	if err != nil && options.passphrase != nil {
		pass, passErr := options.passphrase()
		if passErr != nil {
			return fmt.Errorf("sale keystore %s: %w", keystorePath, passErr)
		}
		addr, err = crypto.KeystoreAddress(keystorePath, pass)
	}
	if err != nil {
		return fmt.Errorf("sale keystore %s: %w", keystorePath, err)
	}
	cfg.SaleKeystorePath = keystorePath
	cfg.SaleAddress = addr.String()
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, options loadOptions) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := ensureKeystore(path, cfg, options); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9100"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./landsale-data"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = BackendLevelDB
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if c.LogFile != "" {
		if c.LogMaxSizeMB <= 0 {
			c.LogMaxSizeMB = 100
		}
		if c.LogMaxBackups <= 0 {
			c.LogMaxBackups = 5
		}
	}
	c.RPC.applyDefaults()
	c.Telemetry.applyDefaults()
	c.Indexer.applyDefaults(c.DataDir)
}

// SaleIdentity parses the configured sale address.
func (c *Config) SaleIdentity() ([20]byte, error) {
	addr, err := crypto.ParseAddress(c.SaleAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("SaleAddress: %w", err)
	}
	return addr, nil
}

// GenesisSpec returns the genesis to apply on first start. GenesisFile takes
// precedence over the inline [genesis] table; nil means no genesis.
func (c *Config) GenesisSpec() (*genesis.Spec, error) {
	if path := strings.TrimSpace(c.GenesisFile); path != "" {
		return genesis.LoadGenesisSpec(path)
	}
	if c.Genesis == nil {
		return nil, nil
	}
	if err := c.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid [genesis]: %w", err)
	}
	return c.Genesis, nil
}

// StatePath returns the directory of the state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "sale.keystore")
}
