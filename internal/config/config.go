// Package config loads SlabNest settings from defaults, an optional YAML
// file, SLABNEST_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/piwi3910/SlabNest/internal/model"
)

const (
	envPrefix      = "SLABNEST"
	configDirName  = ".slabnest"
	configFileName = "config"
)

// Config is the fully resolved application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Nesting NestingConfig `mapstructure:"nesting"`
	Sheet   SheetConfig   `mapstructure:"sheet"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type NestingConfig struct {
	Mode       string  `mapstructure:"mode"`
	Spacing    float64 `mapstructure:"spacing"`
	Rotations  int     `mapstructure:"rotations"`
	MultiSheet bool    `mapstructure:"multi_sheet"`
}

type SheetConfig struct {
	DefaultWidth  float64 `mapstructure:"default_width"`
	DefaultHeight float64 `mapstructure:"default_height"`
}

// Dir returns the directory holding the config file and the default store.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// New returns a viper instance carrying the defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	d := model.DefaultAppDefaults()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.path", "")
	v.SetDefault("nesting.mode", string(d.Nesting.Mode))
	v.SetDefault("nesting.spacing", d.Nesting.Spacing)
	v.SetDefault("nesting.rotations", d.Nesting.Rotations)
	v.SetDefault("nesting.multi_sheet", d.Nesting.MultiSheet)
	v.SetDefault("sheet.default_width", d.SheetWidth)
	v.SetDefault("sheet.default_height", d.SheetHeight)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"dev":         "log.development",
	"addr":        "server.addr",
	"db":          "store.path",
	"mode":        "nesting.mode",
	"spacing":     "nesting.spacing",
	"rotations":   "nesting.rotations",
	"multi-sheet": "nesting.multi_sheet",
}

// BindFlags binds every known flag present in fs to its configuration key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load reads the config file, if any, and decodes the result. An empty path
// looks for config.yaml in the SlabNest directory; a missing default file is
// not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Store.Path == "" {
		dir, err := Dir()
		if err != nil {
			return Config{}, err
		}
		cfg.Store.Path = filepath.Join(dir, "slabnest.db")
	}
	if err := cfg.Nesting.Model().Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Model converts the nesting settings into an engine configuration.
func (n NestingConfig) Model() model.NestingConfig {
	return model.NestingConfig{
		Mode:       model.NestingMode(n.Mode),
		Spacing:    n.Spacing,
		Rotations:  n.Rotations,
		MultiSheet: n.MultiSheet,
	}
}

// AppDefaults returns the defaults applied to jobs loaded by the CLI and server.
func (c Config) AppDefaults() model.AppDefaults {
	return model.AppDefaults{
		Nesting:     c.Nesting.Model(),
		SheetWidth:  c.Sheet.DefaultWidth,
		SheetHeight: c.Sheet.DefaultHeight,
	}
}
