// Package paths resolves where the switchpoint configuration file lives.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the file name looked up in the working directory and in
// the platform configuration directory.
const ConfigFileName = "switchpoint.yaml"

// EnvConfig names an explicit configuration file.
const EnvConfig = "SWITCHPOINT_CONFIG"

const appDirName = "switchpoint"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/switchpoint (fallback ~/.config/switchpoint)
// macOS:   ~/Library/Application Support/switchpoint
// Windows: %APPDATA%/switchpoint
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appDirName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

// DefaultConfigFile returns ConfigFileName inside DefaultConfigDir.
func DefaultConfigFile() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// ResolveConfigFile returns the configuration file following the precedence
// chain: flag > SWITCHPOINT_CONFIG env > ./switchpoint.yaml when it exists >
// DefaultConfigFile(). The result is absolute; it need not exist.
func ResolveConfigFile(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, ConfigFileName)
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local, nil
	}
	return DefaultConfigFile()
}

// ResolveDSN makes a relative sqlite file path absolute against the directory
// of the configuration file. URIs and absolute paths are returned unchanged.
func ResolveDSN(configFile, dsn string) string {
	if dsn == "" || filepath.IsAbs(dsn) || hasScheme(dsn) || dsn == ":memory:" {
		return dsn
	}
	return filepath.Join(filepath.Dir(configFile), dsn)
}

func hasScheme(dsn string) bool {
	for i := 0; i < len(dsn); i++ {
		switch c := dsn[i]; {
		case c == ':':
			return i > 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return false
}
