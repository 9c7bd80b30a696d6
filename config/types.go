package config

// Storage selects the database backend under DataDir.
type Storage struct {
	Backend string `toml:"Backend"` // leveldb | bolt | memory
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	AuthToken         string   `toml:"AuthToken"`
	ReadTimeoutSecs   int      `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs  int      `toml:"WriteTimeoutSecs"`
	RequestsPerMinute float64  `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	TrustedProxies    []string `toml:"TrustedProxies"`
	MaxBodyBytes      int64    `toml:"MaxBodyBytes"`
}

// Logging mirrors logging.Options.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// Vault pins the program identities derivations and token checks run under.
// Empty values select the built-in defaults.
type Vault struct {
	ProgramID    string   `toml:"ProgramID"`
	TokenProgram string   `toml:"TokenProgram"`
	Paused       []string `toml:"Paused"`
}
