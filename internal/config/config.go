// Package config loads memodeck settings from defaults, an optional YAML
// file, MEMODECK_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "MEMODECK_"

// Config holds all memodeck configuration.
type Config struct {
	DB       string         `koanf:"db" validate:"required"`
	Listen   string         `koanf:"listen" validate:"required,hostname_port"`
	Repos    string         `koanf:"repos" validate:"required"`
	Log      string         `koanf:"log" validate:"oneof=debug info warn error"`
	Parser   ParserConfig   `koanf:"parser"`
	Sessions SessionsConfig `koanf:"sessions"`
}

// ParserConfig points at the remote spreadsheet parsing service.
type ParserConfig struct {
	URL     string        `koanf:"url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=1s"`
}

// SessionsConfig bounds how long an idle review session is kept by the
// HTTP server.
type SessionsConfig struct {
	TTL time.Duration `koanf:"ttl" validate:"gte=1m"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DB:     "memodeck.db",
		Listen: "127.0.0.1:8080",
		Repos:  "repos",
		Log:    "info",
		Parser: ParserConfig{
			Timeout: 30 * time.Second,
		},
		Sessions: SessionsConfig{
			TTL: 30 * time.Minute,
		},
	}
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("db", d.DB, "Path to the SQLite database file")
	fs.String("listen", d.Listen, "Address the HTTP server listens on")
	fs.String("repos", d.Repos, "Directory git sources are cloned into")
	fs.String("log", d.Log, "Log level: debug, info, warn or error")
	fs.String("parser.url", d.Parser.URL, "Endpoint of the spreadsheet parsing service")
	fs.Duration("parser.timeout", d.Parser.Timeout, "Timeout for spreadsheet parsing requests")
	fs.Duration("sessions.ttl", d.Sessions.TTL, "Idle time after which a review session is closed")
}

// Load builds the configuration. fs may be nil; when it carries a --config
// flag the named YAML file is read.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	var path string
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}
	k.Delete("config")

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return err
}

// Level maps the log setting to a slog level.
func (c Config) Level() slog.Level {
	switch c.Log {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger returns a text logger on stderr at the configured level.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level()}))
}
