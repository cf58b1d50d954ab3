// Package config loads client and CLI settings.
//
// Values are layered, lowest precedence first: built-in defaults, a YAML
// file, STRATA_ environment variables and explicitly set command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlbuild"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STRATA_"

// Column naming strategies.
const (
	NamingMember    = "member"
	NamingSnakeCase = "snake_case"
)

// Defaults.
const (
	DefaultDialect       = dialect.SQLite
	DefaultDSN           = "file:strata.db"
	DefaultSlowThreshold = 200 * time.Millisecond
)

// Config holds the database and engine settings.
type Config struct {
	Dialect          string        `koanf:"dialect"`
	Driver           string        `koanf:"driver"`
	DSN              string        `koanf:"dsn"`
	Workers          int           `koanf:"workers"`
	AutoRelations    bool          `koanf:"auto_relations"`
	MaxStatementSize int           `koanf:"max_statement_size"`
	SlowThreshold    time.Duration `koanf:"slow_threshold"`
	Naming           string        `koanf:"naming"`
	Engine           string        `koanf:"engine"`
}

func defaults() map[string]any {
	return map[string]any{
		"dialect":            DefaultDialect,
		"dsn":                DefaultDSN,
		"workers":            0,
		"auto_relations":     false,
		"max_statement_size": sqlbuild.DefaultMaxStatementSize,
		"slow_threshold":     DefaultSlowThreshold.String(),
		"naming":             NamingMember,
	}
}

// RegisterFlags defines the command line flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("dialect", DefaultDialect, "SQL dialect: mysql, postgres or sqlite")
	fs.String("driver", "", "database/sql driver name (default derived from the dialect)")
	fs.String("dsn", DefaultDSN, "data source name")
	fs.Int("workers", 0, "materialization workers (0 uses GOMAXPROCS)")
	fs.Bool("auto-relations", false, "load relations of queried entities")
	fs.Int("max-statement-size", sqlbuild.DefaultMaxStatementSize, "bulk insert statement size limit in bytes")
	fs.Duration("slow-threshold", DefaultSlowThreshold, "log statements slower than this")
	fs.String("naming", NamingMember, "column naming: member or snake_case")
	fs.String("engine", "", "MySQL storage engine for created tables")
}

// Load reads the configuration. path may be empty, in which case only
// defaults, environment and flags apply; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	// 2. Config file
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// 3. Environment: STRATA_AUTO_RELATIONS -> auto_relations
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env vars: %w", err)
	}

	// 4. Flags, only the ones explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DriverName returns the database/sql driver of the configuration: the
// explicit driver, or the default driver of the dialect.
func (c *Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	switch c.Dialect {
	case dialect.MySQL:
		return "mysql"
	case dialect.Postgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

// Validate checks the settings and the data source name syntax of the
// dialect. It does not connect.
func (c *Config) Validate() error {
	var errs []error
	if !dialect.Valid(c.Dialect) {
		errs = append(errs, fmt.Errorf("unknown dialect %q", c.Dialect))
	} else if d, err := sql.DialectOf(c.DriverName()); err != nil {
		errs = append(errs, err)
	} else if d != c.Dialect {
		errs = append(errs, fmt.Errorf("driver %q does not speak %s", c.DriverName(), c.Dialect))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.MaxStatementSize < 0 {
		errs = append(errs, fmt.Errorf("max_statement_size must not be negative, got %d", c.MaxStatementSize))
	}
	if c.Naming != NamingMember && c.Naming != NamingSnakeCase {
		errs = append(errs, fmt.Errorf("unknown naming %q", c.Naming))
	}
	if c.Engine != "" && c.Dialect != dialect.MySQL {
		errs = append(errs, fmt.Errorf("engine is only supported by %s", dialect.MySQL))
	}
	switch {
	case c.DSN == "":
		errs = append(errs, errors.New("dsn is required"))
	case c.Dialect == dialect.MySQL:
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			errs = append(errs, fmt.Errorf("dsn: %w", err))
		}
	case c.Dialect == dialect.Postgres:
		if _, err := pgconn.ParseConfig(c.DSN); err != nil {
			errs = append(errs, fmt.Errorf("dsn: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	return nil
}

// pgPassword matches the password setting of a key/value connection string.
var pgPassword = regexp.MustCompile(`(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// Redacted returns the DSN with its password replaced.
func (c *Config) Redacted() string {
	switch c.Dialect {
	case dialect.MySQL:
		if dc, err := mysql.ParseDSN(c.DSN); err == nil && dc.Passwd != "" {
			dc.Passwd = "xxxxx"
			return dc.FormatDSN()
		}
	case dialect.Postgres:
		if !strings.Contains(c.DSN, "://") {
			return pgPassword.ReplaceAllString(c.DSN, "${1}xxxxx")
		}
		u, err := url.Parse(c.DSN)
		if err != nil {
			return c.DSN
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		if q := u.Query(); q.Has("password") {
			q.Set("password", "xxxxx")
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	return c.DSN
}

// YAML renders the effective configuration with the DSN redacted.
func (c *Config) YAML() ([]byte, error) {
	out := struct {
		Dialect          string `yaml:"dialect"`
		Driver           string `yaml:"driver"`
		DSN              string `yaml:"dsn"`
		Workers          int    `yaml:"workers"`
		AutoRelations    bool   `yaml:"auto_relations"`
		MaxStatementSize int    `yaml:"max_statement_size"`
		SlowThreshold    string `yaml:"slow_threshold"`
		Naming           string `yaml:"naming"`
		Engine           string `yaml:"engine,omitempty"`
	}{
		Dialect:          c.Dialect,
		Driver:           c.DriverName(),
		DSN:              c.Redacted(),
		Workers:          c.Workers,
		AutoRelations:    c.AutoRelations,
		MaxStatementSize: c.MaxStatementSize,
		SlowThreshold:    c.SlowThreshold.String(),
		Naming:           c.Naming,
		Engine:           c.Engine,
	}
	return yamlv3.Marshal(out)
}
