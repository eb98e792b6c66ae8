package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/linky_meter/pkg/pathing"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	PolicyRetry = "retry"
	PolicyCrash = "crash"
)

const defaultMySQLParams = "charset=utf8mb4"

// Default returns the configuration written on first start.
func Default() *LinkyConfig {
	return &LinkyConfig{
		UseUTC: true,
		Device: DeviceConfig{
			File:          "/dev/ttyS0",
			Baudrate:      1200,
			ReadTimeoutMs: 2000,
		},
		Database: DatabaseConfig{
			Driver: DriverMySQL,
			Server: "localhost",
			Port:   3306,
			User:   "linky",
			Name:   "linky",
			Params: defaultMySQLParams,
			Path:   pathing.GetMeterDbPath(),
		},
		Acquisition: AcquisitionConfig{
			IntervalSeconds:    60,
			MaxLinesPerCycle:   1000,
			ReadTimeoutSeconds: 30,
		},
		Persistence: PersistenceConfig{
			FailurePolicy:    PolicyRetry,
			MaxAttempts:      5,
			RetryBaseDelayMs: 500,
			RetryMaxDelayMs:  30000,
		},
		Logging: LoggingConfig{
			Level:      "debug",
			File:       pathing.GetLogPath(),
			MaxSizeMB:  1,
			MaxBackups: 5,
		},
		Live: LiveConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1",
			ListenPort:    9040,
		},
	}
}

// Load reads the config at path, creating it with defaults when it does
// not exist yet. Keys missing from the file keep their default value.
// The format follows the extension: .yml/.yaml or TOML otherwise.
func Load(path string) (*LinkyConfig, error) {
	cfg := Default()

	// Create default if not exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := pathing.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		if err := write(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, cfg.Validate()
	}

	if err := read(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func read(path string, cfg *LinkyConfig) error {
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func write(path string, cfg *LinkyConfig) error {
	cfgFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(cfgFile)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(cfgFile).Encode(cfg)
}

func (c *LinkyConfig) Validate() error {
	var errs []error
	if c.Device.File == "" {
		errs = append(errs, errors.New("device.file is required"))
	}
	if c.Device.Baudrate == 0 {
		errs = append(errs, errors.New("device.baudrate must be positive"))
	}

	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Server == "" {
			errs = append(errs, errors.New("database.server is required"))
		}
		if c.Database.User == "" {
			errs = append(errs, errors.New("database.user is required"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of mysql, sqlite", c.Database.Driver))
	}

	if c.Acquisition.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("acquisition.interval_seconds must be positive"))
	}
	if c.Acquisition.MaxLinesPerCycle < 0 || c.Acquisition.ReadTimeoutSeconds < 0 {
		errs = append(errs, errors.New("acquisition bounds cannot be negative"))
	}

	switch c.Persistence.FailurePolicy {
	case PolicyRetry, PolicyCrash:
	default:
		errs = append(errs, fmt.Errorf("persistence.failure_policy %q is not one of retry, crash", c.Persistence.FailurePolicy))
	}
	if c.Persistence.MaxAttempts < 1 {
		errs = append(errs, errors.New("persistence.max_attempts must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// BuildMySQLDSN renders the go-sql-driver DSN for the database section.
func (d DatabaseConfig) BuildMySQLDSN() string {
	port := d.Port
	if port == 0 {
		port = 3306
	}
	params := d.Params
	if params == "" {
		params = defaultMySQLParams
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		d.User,
		d.Password,
		d.Server,
		port,
		d.Name,
		params,
	)
}

func (a AcquisitionConfig) Interval() time.Duration {
	return time.Duration(a.IntervalSeconds) * time.Second
}

func (a AcquisitionConfig) ReadTimeout() time.Duration {
	return time.Duration(a.ReadTimeoutSeconds) * time.Second
}

func (d DeviceConfig) ReadTimeout() time.Duration {
	return time.Duration(d.ReadTimeoutMs) * time.Millisecond
}

func (p PersistenceConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelayMs) * time.Millisecond
}

func (p PersistenceConfig) RetryMaxDelay() time.Duration {
	return time.Duration(p.RetryMaxDelayMs) * time.Millisecond
}
