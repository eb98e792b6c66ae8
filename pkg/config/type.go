package config

type LinkyConfig struct {
	// Selects UTC or local time for stored clocks and day rollover alike
	UseUTC      bool              `toml:"use_utc" yaml:"use_utc"`
	Device      DeviceConfig      `toml:"device" yaml:"device"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Acquisition AcquisitionConfig `toml:"acquisition" yaml:"acquisition"`
	Persistence PersistenceConfig `toml:"persistence" yaml:"persistence"`
	Logging     LoggingConfig     `toml:"logging" yaml:"logging"`
	Live        LiveConfig        `toml:"live" yaml:"live"`
}

type DeviceConfig struct {
	File     string `toml:"file" yaml:"file"`
	Baudrate uint   `toml:"baudrate" yaml:"baudrate"`
	// Idle time after which a blocked serial read gives control back
	ReadTimeoutMs uint `toml:"read_timeout_ms" yaml:"read_timeout_ms"`
}

type DatabaseConfig struct {
	// mysql or sqlite
	Driver   string `toml:"driver" yaml:"driver"`
	Server   string `toml:"server" yaml:"server"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	Name     string `toml:"name" yaml:"name"`
	Params   string `toml:"params" yaml:"params"`
	// Database file, sqlite only
	Path string `toml:"path" yaml:"path"`
}

type AcquisitionConfig struct {
	IntervalSeconds int `toml:"interval_seconds" yaml:"interval_seconds"`
	// Upper bounds for one read phase. 0 disables the bound.
	MaxLinesPerCycle   int `toml:"max_lines_per_cycle" yaml:"max_lines_per_cycle"`
	ReadTimeoutSeconds int `toml:"read_timeout_seconds" yaml:"read_timeout_seconds"`
}

type PersistenceConfig struct {
	// retry: retry writes with backoff then skip the cycle.
	// crash: stop the daemon on the first failure.
	FailurePolicy    string `toml:"failure_policy" yaml:"failure_policy"`
	MaxAttempts      int    `toml:"max_attempts" yaml:"max_attempts"`
	RetryBaseDelayMs int    `toml:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int    `toml:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
	// Mirror log lines on stdout, handy when running in a terminal
	Console bool `toml:"console" yaml:"console"`
}

// Optional HTTP/websocket feed of the latest reading and metrics.
type LiveConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	ListenAddress string `toml:"listen_address" yaml:"listen_address"`
	ListenPort    int    `toml:"listen_port" yaml:"listen_port"`
}
