package types

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config is the resolved router configuration: the physical databases and the
// switch points that route between them.
type Config struct {
	Default      PhysicalID                   `json:"default" yaml:"default" mapstructure:"default"`
	AutoWritable bool                         `json:"auto_writable" yaml:"auto_writable" mapstructure:"auto_writable"`
	Cache        CacheConfig                  `json:"cache" yaml:"cache" mapstructure:"cache"`
	Databases    map[string]Database          `json:"databases" yaml:"databases" mapstructure:"databases"`
	SwitchPoints map[string]SwitchPointConfig `json:"switch_points" yaml:"switch_points" mapstructure:"switch_points"`
}

// Database describes one physical database target.
type Database struct {
	Driver          string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty" mapstructure:"conn_max_lifetime"`
}

// SwitchPointConfig names the databases a switch point routes to.
type SwitchPointConfig struct {
	Readonly string `json:"readonly,omitempty" yaml:"readonly,omitempty" mapstructure:"readonly"`
	Writable string `json:"writable,omitempty" yaml:"writable,omitempty" mapstructure:"writable"`
}

// CacheConfig sizes the per-target query cache.
type CacheConfig struct {
	Size int `json:"size" yaml:"size" mapstructure:"size"`
}

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DefaultCacheSize is used when Cache.Size is zero.
const DefaultCacheSize = 256

// Config validation errors.
var (
	ErrNoDatabases       = errors.New("no databases configured")
	ErrDatabaseUnknown   = errors.New("unknown database")
	ErrDriverUnknown     = errors.New("unknown driver")
	ErrDSNInvalid        = errors.New("invalid dsn")
	ErrSwitchPointEmpty  = errors.New("switch point has no targets")
	ErrCacheSizeInvalid  = errors.New("cache size must not be negative")
	ErrPoolLimitsInvalid = errors.New("pool limits must not be negative")
)

// knownDrivers lists the drivers that Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite: true,
	DriverMySQL:  true,
}

// Validate checks that the Config is well-formed. Errors wrap a sentinel from
// this package and name the offending entry.
func (c Config) Validate() error {
	if len(c.Databases) == 0 {
		return ErrNoDatabases
	}
	for _, name := range sortedKeys(c.Databases) {
		if err := c.Databases[name].Validate(); err != nil {
			return fmt.Errorf("database %q: %w", name, err)
		}
	}
	if c.Default != "" {
		if _, ok := c.Databases[string(c.Default.Canonical())]; !ok {
			return fmt.Errorf("default %q: %w", c.Default, ErrDatabaseUnknown)
		}
	}
	if c.Cache.Size < 0 {
		return ErrCacheSizeInvalid
	}
	for _, name := range sortedKeys(c.SwitchPoints) {
		sp := c.SwitchPoints[name]
		if sp.Readonly == "" && sp.Writable == "" {
			return fmt.Errorf("switch point %q: %w", name, ErrSwitchPointEmpty)
		}
		for _, target := range []string{sp.Readonly, sp.Writable} {
			if target == "" {
				continue
			}
			if _, ok := c.Databases[string(PhysicalID(target).Canonical())]; !ok {
				return fmt.Errorf("switch point %q: %w %q", name, ErrDatabaseUnknown, target)
			}
		}
	}
	return nil
}

// Validate checks the driver and, for mysql, parses the DSN.
func (d Database) Validate() error {
	if !knownDrivers[d.Driver] {
		return fmt.Errorf("%w %q", ErrDriverUnknown, d.Driver)
	}
	if d.DSN == "" {
		return fmt.Errorf("%w: empty", ErrDSNInvalid)
	}
	if d.Driver == DriverMySQL {
		if _, err := mysql.ParseDSN(d.DSN); err != nil {
			return fmt.Errorf("%w: %v", ErrDSNInvalid, err)
		}
	}
	if d.MaxOpenConns < 0 || d.MaxIdleConns < 0 || d.ConnMaxLifetime < 0 {
		return ErrPoolLimitsInvalid
	}
	return nil
}

// Definitions returns the switch point definitions, sorted by name.
func (c Config) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.SwitchPoints))
	for _, name := range sortedKeys(c.SwitchPoints) {
		sp := c.SwitchPoints[name]
		defs = append(defs, Definition{
			Name:     name,
			Readonly: PhysicalID(sp.Readonly).Canonical(),
			Writable: PhysicalID(sp.Writable).Canonical(),
		})
	}
	return defs
}

// Database returns the database configured under id.
func (c Config) Database(id PhysicalID) (Database, bool) {
	d, ok := c.Databases[string(id.Canonical())]
	return d, ok
}

// CacheSize returns the configured cache size or DefaultCacheSize.
func (c Config) CacheSize() int {
	if c.Cache.Size == 0 {
		return DefaultCacheSize
	}
	return c.Cache.Size
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
