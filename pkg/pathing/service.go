package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func GetConfigPath() string {
	if path := os.Getenv("LINKY_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(GetConfigDir(), "linky.toml")
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "linky.db")
}

func GetLogPath() string {
	return filepath.Join(GetLogDir(), "linky.log")
}

func GetDataDir() string {
	return "/var/lib/linky_meter"
}

func GetConfigDir() string {
	return "/etc/linky_meter"
}

func GetLogDir() string {
	return "/var/log/linky_meter"
}
