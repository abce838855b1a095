package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/sim"
)

const (
	DefaultListen          = "0.0.0.0:5000"
	DefaultMetricsListen   = "127.0.0.1:9105"
	DefaultMaxMessageBytes = 50 * 1024 * 1024
	DefaultBackend         = "cpu"
	DefaultPrecision       = "double"
	DefaultFrames          = 100
	DefaultDataDir         = "runs"

	EnvPrefix = "REVSIM"
)

type Config struct {
	Listen          string    `yaml:"listen" mapstructure:"listen"`
	MetricsListen   string    `yaml:"metrics_listen" mapstructure:"metrics_listen"`
	MaxMessageBytes int       `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	Backend         string    `yaml:"backend" mapstructure:"backend"`
	Workers         int       `yaml:"workers" mapstructure:"workers"`
	Precision       string    `yaml:"precision" mapstructure:"precision"`
	Frames          int       `yaml:"frames" mapstructure:"frames"`
	DataDir         string    `yaml:"data_dir" mapstructure:"data_dir"`
	Log             LogConfig `yaml:"log" mapstructure:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		MetricsListen:   DefaultMetricsListen,
		MaxMessageBytes: DefaultMaxMessageBytes,
		Backend:         DefaultBackend,
		Precision:       DefaultPrecision,
		Frames:          DefaultFrames,
		DataDir:         DefaultDataDir,
		Log:             LogConfig{Level: "info", Format: "text"},
	}
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// keys lists every setting as a viper key. Flags bind by the same name
// with dots and underscores turned into dashes.
var keys = []string{
	"listen",
	"metrics_listen",
	"max_message_bytes",
	"backend",
	"workers",
	"precision",
	"frames",
	"data_dir",
	"log.level",
	"log.format",
}

func flagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// Resolve layers defaults, the optional YAML file at path, REVSIM_*
// environment variables and any flags in fs that were set, in increasing
// order of precedence.
func Resolve(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	defaults := map[string]any{
		"listen":            def.Listen,
		"metrics_listen":    def.MetricsListen,
		"max_message_bytes": def.MaxMessageBytes,
		"backend":           def.Backend,
		"workers":           def.Workers,
		"precision":         def.Precision,
		"frames":            def.Frames,
		"data_dir":          def.DataDir,
		"log.level":         def.Log.Level,
		"log.format":        def.Log.Format,
	}
	for _, k := range keys {
		v.SetDefault(k, defaults[k])
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for _, k := range keys {
			if f := fs.Lookup(flagName(k)); f != nil {
				if err := v.BindPFlag(k, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, dynamo.Configf("listen address is empty"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, dynamo.Configf("max_message_bytes must be positive, got %d", c.MaxMessageBytes))
	}
	if c.Workers < 0 {
		errs = append(errs, dynamo.Configf("workers must be non-negative, got %d", c.Workers))
	}
	if c.Frames < 0 {
		errs = append(errs, dynamo.Configf("frames must be non-negative, got %d", c.Frames))
	}
	if _, err := dynamo.ParsePrecision(c.Precision); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, dynamo.Configf("log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// LoadSystem reads a System from a YAML (or JSON, which is valid YAML)
// file and validates it.
func LoadSystem(path string) (sim.System, error) {
	var sys sim.System
	data, err := os.ReadFile(path)
	if err != nil {
		return sys, err
	}
	if err := yaml.Unmarshal(data, &sys); err != nil {
		return sys, fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidConfig, path, err)
	}
	return sys, sys.Validate()
}

func SaveSystem(path string, sys sim.System) error {
	data, err := yaml.Marshal(sys)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
