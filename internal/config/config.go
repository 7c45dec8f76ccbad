package config

import (
	"os"
	"strings"
	"sync/atomic"

	"catdomains/internal/allowlist"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr     string `mapstructure:"LISTEN_ADDR"`
	DatabasePath   string `mapstructure:"DB_PATH"`
	AllowedEmails  string `mapstructure:"ALLOW_EMAIL_ADDRESSES"`
	AdminToken     string `mapstructure:"ADMIN_TOKEN"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogPretty      bool   `mapstructure:"LOG_PRETTY"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`
	DefaultEntity  string `mapstructure:"DEFAULT_ENTITY"`

	allow atomic.Pointer[allowlist.Allowlist]
}

const allowlistEnv = "CATDOMAINS_ALLOW_EMAIL_ADDRESSES"

func LoadConfig() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("DB_PATH", "catdomains.db")
	v.SetDefault("ALLOW_EMAIL_ADDRESSES", "")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("MAX_UPLOAD_BYTES", 512000)
	v.SetDefault("DEFAULT_ENTITY", "default")

	v.SetEnvPrefix("CATDOMAINS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The .env file is optional; when present it is watched so the
	// allowlist can change without a restart.
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	watch := v.ReadInConfig() == nil

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.setAllowlist(config.AllowedEmails)

	if watch {
		// viper is not safe for concurrent use: only the watcher goroutine
		// touches v from here on.
		v.OnConfigChange(func(e fsnotify.Event) {
			config.setAllowlist(v.GetString("ALLOW_EMAIL_ADDRESSES"))
			log.Info().Str("file", e.Name).Msg("configuration reloaded")
		})
		v.WatchConfig()
	}

	return &config, nil
}

func (c *Config) setAllowlist(raw string) {
	l := allowlist.Parse(raw)
	c.allow.Store(&l)
}

// Allowlist returns the allowed email domains at call time: the environment
// variable when set, otherwise the last value loaded from .env.
func (c *Config) Allowlist() allowlist.Allowlist {
	if raw, ok := os.LookupEnv(allowlistEnv); ok {
		return allowlist.Parse(raw)
	}
	if l := c.allow.Load(); l != nil {
		return *l
	}
	return allowlist.Parse(c.AllowedEmails)
}
