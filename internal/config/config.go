// Package config loads itemsync settings from an optional YAML file and
// ITEMSYNC_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/logging"
)

// Backend names accepted by the `backend` key.
const (
	BackendMemory    = "memory"
	BackendJSON      = "json"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

const envPrefix = "ITEMSYNC"

// Config is the fully resolved application configuration.
type Config struct {
	Backend    string          `mapstructure:"backend"`
	Collection string          `mapstructure:"collection"`
	Timeout    time.Duration   `mapstructure:"timeout"`
	Theme      string          `mapstructure:"theme"`
	JSON       JSONConfig      `mapstructure:"json"`
	SQLite     SQLiteConfig    `mapstructure:"sqlite"`
	Firestore  FirestoreConfig `mapstructure:"firestore"`
	Serve      ServeConfig     `mapstructure:"serve"`
	Log        logging.Config  `mapstructure:"log"`
}

type JSONConfig struct {
	Path string `mapstructure:"path"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// FirestoreConfig selects the Google Cloud project. Credentials is an optional
// service account file; when empty the SDK's default credential lookup applies,
// and FIRESTORE_EMULATOR_HOST is honored by the SDK itself.
type FirestoreConfig struct {
	Project     string `mapstructure:"project"`
	Credentials string `mapstructure:"credentials"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance with defaults and environment bindings applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("backend", BackendJSON)
	v.SetDefault("collection", "items")
	v.SetDefault("timeout", "10s")
	v.SetDefault("theme", "classic")
	v.SetDefault("json.path", "items.json")
	v.SetDefault("sqlite.path", "items.db")
	v.SetDefault("firestore.project", "")
	v.SetDefault("firestore.credentials", "")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.stderr", "auto")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path (or the default locations when path is
// empty) into a Config. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("itemsync")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "itemsync"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errs.Wrap(err, errs.ErrCodeConfigInvalid, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeConfigInvalid, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings each backend needs.
func (c *Config) Validate() error {
	if c.Collection == "" {
		return errs.ConfigInvalid("collection must not be empty")
	}
	if c.Timeout <= 0 {
		return errs.ConfigInvalid("timeout must be positive")
	}
	switch c.Backend {
	case BackendMemory:
	case BackendJSON:
		if c.JSON.Path == "" {
			return errs.ConfigInvalid("json.path must be set for the json backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errs.ConfigInvalid("sqlite.path must be set for the sqlite backend")
		}
	case BackendFirestore:
		if c.Firestore.Project == "" {
			return errs.ConfigInvalid("firestore.project must be set for the firestore backend")
		}
	default:
		return errs.UnknownBackend(c.Backend)
	}
	return nil
}
