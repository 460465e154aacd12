// Package config loads the router configuration from YAML with viper and
// watches the file for changes.
//
// Viper folds keys to lower case and splits them on '.', so database and
// switch point names are case-insensitive and must not contain dots.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/switchpoint/internal/paths"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SWITCHPOINT_AUTO_WRITABLE=true or SWITCHPOINT_CACHE_SIZE=64.
const EnvPrefix = "SWITCHPOINT"

// Config keys.
const (
	keyDefault      = "default"
	keyAutoWritable = "auto_writable"
	keyCacheSize    = "cache.size"
)

// ErrMissing is returned when the configuration file does not exist.
var ErrMissing = errors.New("config file not found")

// DefaultYAML is written by `switchpoint init`.
const DefaultYAML = `# switchpoint configuration

# Database used by entities bound to no switch point.
default: main

# Route writes issued in readonly mode to the writable database.
auto_writable: false

cache:
  size: 256

databases:
  main:
    driver: sqlite
    dsn: main.db
  main_replica:
    driver: sqlite
    dsn: main_replica.db

switch_points:
  main:
    readonly: main_replica
    writable: main
`

// newViper returns a viper instance reading path as YAML with environment
// overrides for the scalar keys.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault(keyAutoWritable, false)
	v.SetDefault(keyCacheSize, types.DefaultCacheSize)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{keyDefault, keyAutoWritable, keyCacheSize} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads and validates the configuration file at path. Relative sqlite
// paths are resolved against the directory of path.
func Load(path string) (types.Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return types.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v, path)
}

func decode(v *viper.Viper, path string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	for name, db := range cfg.Databases {
		if db.Driver == types.DriverSQLite {
			db.DSN = paths.ResolveDSN(path, db.DSN)
			cfg.Databases[name] = db
		}
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes DefaultYAML to path unless a file already exists there.
// It reports whether the file was created.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	return true, write(path, []byte(DefaultYAML))
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg types.Config) ([]byte, error) {
	return yaml.Marshal(&cfg)
}
