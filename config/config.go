package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rewardchain/crypto"
)

const (
	DefaultChainID     = uint64(7777)
	DefaultRPCAddress  = "127.0.0.1:8547"
	DefaultDataDir     = "./rwd-data"
	DefaultFeedHistory = 1024
)

type Config struct {
	RPCAddress           string    `toml:"RPCAddress"`
	DataDir              string    `toml:"DataDir"`
	ChainID              uint64    `toml:"ChainID"`
	Environment          string    `toml:"Environment"`
	OperatorKeystorePath string    `toml:"OperatorKeystorePath"`
	IndexDSN             string    `toml:"IndexDSN"`
	FeedHistory          int       `toml:"FeedHistory"`
	Logging              Logging   `toml:"logging"`
	RPC                  RPC       `toml:"rpc"`
	Telemetry            Telemetry `toml:"telemetry"`
	Global               Global    `toml:"global"`
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphraseSource supplies the passphrase used to encrypt an
// operator keystore that Load has to create.
func WithKeystorePassphraseSource(source func() (string, error)) LoadOption {
	return func(o *loadOptions) { o.passphrase = source }
}

func (o loadOptions) keystorePassphrase() (string, error) {
	if o.passphrase == nil {
		return "", nil
	}
	pass, err := o.passphrase()
	if err != nil {
		return "", fmt.Errorf("operator keystore passphrase: %w", err)
	}
	return pass, nil
}

// Load loads the configuration from the given path. A default configuration
// (and operator keystore) is written when the file does not exist, and a
// missing operator keystore is generated. New keystores are encrypted with
// the passphrase from WithKeystorePassphraseSource; without that option they
// are written with an empty passphrase, which is only suitable for tests.
// rewardsd always supplies a source.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
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
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}

	if err := ensureKeystore(path, cfg, options); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.FeedHistory <= 0 {
		cfg.FeedHistory = DefaultFeedHistory
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

func ensureKeystore(configPath string, cfg *Config, options loadOptions) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		pass, passErr := options.keystorePassphrase()
		if passErr != nil {
			return passErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, options loadOptions) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	pass, err := options.keystorePassphrase()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, pass); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:           DefaultRPCAddress,
		DataDir:              DefaultDataDir,
		ChainID:              DefaultChainID,
		Environment:          "local",
		OperatorKeystorePath: keystorePath,
		IndexDSN:             "sqlite://" + filepath.Join(DefaultDataDir, "index.db"),
		FeedHistory:          DefaultFeedHistory,
		Logging:              Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5},
		RPC:                  RPC{RateLimitPerSecond: 20, RateBurst: 40, ReadHeaderTimeoutSeconds: 10},
		Global: Global{
			Quotas: Quotas{Rewards: Quota{EpochSeconds: 3600}},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
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
	return filepath.Join(dir, "operator.keystore")
}
