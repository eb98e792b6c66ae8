package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	for _, name := range []string{"linky.toml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "etc", name)

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, Default(), cfg)

			_, err = os.Stat(path)
			require.NoError(t, err, "default config written")

			// Reloading the written file yields the same values.
			again, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, again)
		})
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linky.toml")
	content := `
use_utc = false

[device]
file = "/dev/ttyAMA0"

[database]
driver = "sqlite"
path = "/tmp/linky.db"

[persistence]
failure_policy = "crash"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.UseUTC)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Device.File)
	assert.Equal(t, uint(1200), cfg.Device.Baudrate, "unset keys keep defaults")
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, PolicyCrash, cfg.Persistence.FailurePolicy)
	assert.Equal(t, 60*time.Second, cfg.Acquisition.Interval())
}

func TestLoadYAMLOriginalLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
device:
  file: /dev/ttyS0
database:
  server: db.local
  user: linky
  password: secret
  name: linky
use_utc: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.local", cfg.Database.Server)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.True(t, cfg.UseUTC)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linky.toml")
	require.NoError(t, os.WriteFile(path, []byte("[device\nfile ="), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LinkyConfig)
	}{
		{"no device", func(c *LinkyConfig) { c.Device.File = "" }},
		{"no baudrate", func(c *LinkyConfig) { c.Device.Baudrate = 0 }},
		{"unknown driver", func(c *LinkyConfig) { c.Database.Driver = "postgres" }},
		{"mysql without server", func(c *LinkyConfig) { c.Database.Server = "" }},
		{"sqlite without path", func(c *LinkyConfig) {
			c.Database.Driver = DriverSQLite
			c.Database.Path = ""
		}},
		{"zero interval", func(c *LinkyConfig) { c.Acquisition.IntervalSeconds = 0 }},
		{"negative line cap", func(c *LinkyConfig) { c.Acquisition.MaxLinesPerCycle = -1 }},
		{"unknown policy", func(c *LinkyConfig) { c.Persistence.FailurePolicy = "ignore" }},
		{"no attempts", func(c *LinkyConfig) { c.Persistence.MaxAttempts = 0 }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	d := DatabaseConfig{
		Server:   "127.0.0.1",
		Port:     3310,
		User:     "root",
		Password: "secret",
		Name:     "linky",
		Params:   "charset=utf8mb4&parseTime=true",
	}
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3310)/linky?charset=utf8mb4&parseTime=true", d.BuildMySQLDSN())

	d.Port = 0
	d.Params = ""
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/linky?charset=utf8mb4", d.BuildMySQLDSN())
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.Acquisition.ReadTimeout())
	assert.Equal(t, 2*time.Second, cfg.Device.ReadTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Persistence.RetryBaseDelay())
	assert.Equal(t, 30*time.Second, cfg.Persistence.RetryMaxDelay())
}
