package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardchain/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultRPCAddress, cfg.RPCAddress)
	require.Equal(t, DefaultChainID, cfg.ChainID)
	require.Equal(t, filepath.Join(dir, "operator.keystore"), cfg.OperatorKeystorePath)
	require.FileExists(t, path)

	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "")
	require.NoError(t, err)
	require.NotNil(t, key)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OperatorKeystorePath, reloaded.OperatorKeystorePath)
	require.NoError(t, ValidateConfig(reloaded))
}

func TestLoadEncryptsNewKeystoreWithSourcePassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	calls := 0
	source := func() (string, error) {
		calls++
		return "operator-pass", nil
	}

	cfg, err := Load(path, WithKeystorePassphraseSource(source))
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	_, err = crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "")
	require.Error(t, err)
	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "operator-pass")
	require.NoError(t, err)
	require.NotNil(t, key)

	_, err = Load(path, WithKeystorePassphraseSource(source))
	require.NoError(t, err)
	require.Equal(t, 1, calls, "existing keystores must not ask for a passphrase")
}

func TestLoadFailsWhenPassphraseUnavailable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	source := func() (string, error) { return "", errors.New("no terminal") }

	_, err := Load(path, WithKeystorePassphraseSource(source))
	require.ErrorContains(t, err, "no terminal")
	require.NoFileExists(t, filepath.Join(dir, "operator.keystore"))
	require.NoFileExists(t, path)
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystore := filepath.Join(dir, "op.keystore")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
ChainID = 42
OperatorKeystorePath = "` + keystore + `"
IndexDSN = "postgres://rwd@localhost/rwd"

[logging]
Level = "debug"
File = "./logs/rewardsd.log"

[rpc]
JWTSecret = "s3cret"
JWTIssuer = "rewards-ops"
RateLimitPerSecond = 5.5
RateBurst = 10
TrustedProxies = ["10.0.0.1", "10.0.0.2"]

[telemetry]
Endpoint = "collector:4318"
Traces = true

[global.pauses]
Rewards = true

[global.quotas.rewards]
MaxRequestsPerEpoch = 3
EpochSeconds = 60
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(42), cfg.ChainID)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "rewards-ops", cfg.RPC.JWTIssuer)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.RPC.TrustedProxies)
	require.InDelta(t, 5.5, cfg.RPC.RateLimitPerSecond, 1e-9)
	require.True(t, cfg.Telemetry.Traces)
	require.True(t, cfg.Global.Pauses.IsPaused("rewards"))
	require.False(t, cfg.Global.Pauses.IsPaused("bank"))
	require.Equal(t, uint32(3), cfg.Global.Quotas.Rewards.Native().MaxRequestsPerEpoch)
	require.Equal(t, DefaultFeedHistory, cfg.FeedHistory)
	require.FileExists(t, keystore)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = \":6001\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{ChainID: 1, DataDir: "./data"}
	}
	require.NoError(t, ValidateConfig(base()))

	cfg := base()
	cfg.ChainID = 0
	require.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.RPC.AuthToken = "a"
	cfg.RPC.JWTSecret = "b"
	require.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.RPC.RateLimitPerSecond = 1
	require.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.IndexDSN = "mysql://x"
	require.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.Global.Quotas.Rewards.MaxUnitsPerEpoch = 10
	require.Error(t, ValidateConfig(cfg))

	require.Error(t, ValidateConfig(nil))
}
