// Package config loads the settings of the sqltmpl command. Values come, in
// increasing order of precedence, from defaults, an optional sqltmpl.yaml
// file, SQLTMPL_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/kalbasit/sqltmpl/fileio"
	"github.com/kalbasit/sqltmpl/generator"
	"github.com/kalbasit/sqltmpl/sqlerr"
)

const (
	// EnvPrefix prefixes the environment variables read by Load.
	EnvPrefix = "SQLTMPL"

	// FileName is the name, without extension, of the configuration file.
	FileName = "sqltmpl"

	// DefaultTypesFile is loaded when it exists and no other types file is
	// configured.
	DefaultTypesFile = "sql-types.yaml"
)

// Keys of the settings.
const (
	KeyTypesFile          = "types_file"
	KeySchemaFile         = "schema_file"
	KeyOutputDir          = "output_dir"
	KeyPackage            = "package"
	KeyDialect            = "dialect"
	KeyEncoding           = "encoding"
	KeyValidateParameters = "validate_parameters"
	KeyStrict             = "strict"
	KeyDryRun             = "dry_run"
	KeyConcurrency        = "concurrency"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the settings of a run.
type Config struct {
	TypesFile          string `mapstructure:"types_file"`
	SchemaFile         string `mapstructure:"schema_file"`
	OutputDir          string `mapstructure:"output_dir"`
	Package            string `mapstructure:"package"`
	Dialect            string `mapstructure:"dialect"`
	Encoding           string `mapstructure:"encoding"`
	ValidateParameters bool   `mapstructure:"validate_parameters"`
	Strict             bool   `mapstructure:"strict"`
	DryRun             bool   `mapstructure:"dry_run"`
	Concurrency        int    `mapstructure:"concurrency"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTypesFile, DefaultTypesFile)
	v.SetDefault(KeySchemaFile, "")
	v.SetDefault(KeyOutputDir, "")
	v.SetDefault(KeyPackage, generator.DefaultPackage)
	v.SetDefault(KeyDialect, string(generator.SQLite))
	v.SetDefault(KeyEncoding, fileio.DefaultEncoding)
	v.SetDefault(KeyValidateParameters, false)
	v.SetDefault(KeyStrict, false)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyConcurrency, runtime.NumCPU())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, LogFormatText)
}

// NewViper returns a viper instance with the defaults registered, the
// environment bound and the configuration file read. cfgFile overrides the
// lookup of sqltmpl.yaml in the current directory and $HOME/.sqltmpl; unlike
// that file, it must exist.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sqltmpl")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, sqlerr.Configuration(cfgFile, err, "cannot read configuration file")
		}
	}

	return v, nil
}

// Load returns the validated settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sqlerr.Configuration(v.ConfigFileUsed(), err, "invalid configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, sqlerr.WithPath(err, v.ConfigFileUsed())
	}

	return &cfg, nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	d, err := generator.ParseDialect(c.Dialect)
	if err != nil {
		return err
	}

	c.Dialect = string(d)

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case LogFormatText, LogFormatJSON:
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		return sqlerr.Configuration("", nil, "invalid log format %q (expected %s or %s)",
			c.LogFormat, LogFormatText, LogFormatJSON)
	}

	if _, err := fileio.Encoding(c.Encoding); err != nil {
		return err
	}

	if c.Concurrency < 1 {
		return sqlerr.Configuration("", nil, "concurrency must be at least 1, got %d", c.Concurrency)
	}

	return nil
}

// ParseLevel parses a log level name.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, sqlerr.Configuration("", nil, "invalid log level %q", name)
	}
}

// NewLogger returns the logger described by c writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}

	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.LogFormat == LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// GeneratorOptions returns the generator options matching c.
func (c *Config) GeneratorOptions() []generator.Option {
	return []generator.Option{
		generator.WithPackage(c.Package),
		generator.WithDialect(generator.Dialect(c.Dialect)),
		generator.WithValidation(c.ValidateParameters),
		generator.WithConcurrency(c.Concurrency),
		generator.WithSchemaFile(c.SchemaFile),
		generator.WithEncoding(c.Encoding),
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("dialect=%s package=%s encoding=%s concurrency=%d", c.Dialect, c.Package, c.Encoding, c.Concurrency)
}
