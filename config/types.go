package config

// Logging controls log level and optional rotated file output.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// RPC configures authentication and admission for the JSON-RPC server. Auth is
// either a static bearer token or an HS256 JWT secret; leaving both empty
// disables authentication. TrustedProxies names the reverse proxies whose
// forwarding headers identify clients for rate limiting.
type RPC struct {
	AuthToken                string   `toml:"AuthToken"`
	JWTSecret                string   `toml:"JWTSecret"`
	JWTSecretEnv             string   `toml:"JWTSecretEnv"`
	JWTIssuer                string   `toml:"JWTIssuer"`
	RateLimitPerSecond       float64  `toml:"RateLimitPerSecond"`
	RateBurst                int      `toml:"RateBurst"`
	TrustedProxies           []string `toml:"TrustedProxies"`
	ReadHeaderTimeoutSeconds int      `toml:"ReadHeaderTimeoutSeconds"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	Headers  string `toml:"Headers"`
}

type Pauses struct {
	Rewards bool
	Bank    bool
}

// Quota defines rate limits for module interactions on a per-address basis.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxUnitsPerEpoch    uint64 // token base units
	EpochSeconds        uint32 // e.g., 3600
}

// Quotas groups quotas for each module.
type Quotas struct {
	Rewards Quota
}

// Global bundles the runtime policy values enforced by ValidateConfig.
type Global struct {
	Pauses Pauses
	Quotas Quotas
}
