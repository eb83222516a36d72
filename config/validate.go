package config

import (
	"fmt"
	"strings"
)

// ValidateConfig rejects configurations the daemon cannot run with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be non-zero")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if cfg.RPC.AuthToken != "" && (cfg.RPC.JWTSecret != "" || cfg.RPC.JWTSecretEnv != "") {
		return fmt.Errorf("rpc: AuthToken and JWT secret are mutually exclusive")
	}
	if cfg.RPC.RateLimitPerSecond < 0 || cfg.RPC.RateBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if cfg.RPC.RateLimitPerSecond > 0 && cfg.RPC.RateBurst == 0 {
		return fmt.Errorf("rpc: RateBurst required when RateLimitPerSecond is set")
	}
	if dsn := strings.TrimSpace(cfg.IndexDSN); dsn != "" {
		if !strings.HasPrefix(dsn, "sqlite://") && !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return fmt.Errorf("config: IndexDSN must use sqlite:// or postgres://")
		}
	}
	q := cfg.Global.Quotas.Rewards
	if (q.MaxRequestsPerEpoch > 0 || q.MaxUnitsPerEpoch > 0) && q.EpochSeconds == 0 {
		return fmt.Errorf("quotas: rewards EpochSeconds required when limits are set")
	}
	return nil
}
