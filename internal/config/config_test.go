package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memodeck.yaml")
	yamlDoc := strings.Join([]string{
		"db: from-file.db",
		"listen: 0.0.0.0:9000",
		"log: debug",
		"parser:",
		"  url: http://parser.local/parse",
		"  timeout: 10s",
	}, "\n")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEMODECK_LISTEN", "127.0.0.1:7000")
	t.Setenv("MEMODECK_PARSER_TIMEOUT", "5s")
	t.Setenv("MEMODECK_SESSIONS_TTL", "2h")

	cfg, err := Load(newFlags(t, "--config", path, "--db", "from-flag.db"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Config{
		DB:       "from-flag.db",
		Listen:   "127.0.0.1:7000",
		Repos:    "repos",
		Log:      "debug",
		Parser:   ParserConfig{URL: "http://parser.local/parse", Timeout: 5 * time.Second},
		Sessions: SessionsConfig{TTL: 2 * time.Hour},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.Level())
	}
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log level", args: []string{"--log", "loud"}},
		{name: "bad listen address", args: []string{"--listen", "nowhere"}},
		{name: "bad parser url", args: []string{"--parser.url", "not a url"}},
		{name: "tiny timeout", args: []string{"--parser.timeout", "10ms"}},
		{name: "tiny session ttl", args: []string{"--sessions.ttl", "5s"}},
		{name: "empty db", args: []string{"--db", ""}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(newFlags(t, tc.args...)); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	if err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestLoadWithoutFlags(t *testing.T) {
	t.Setenv("MEMODECK_REPOS", "/srv/repos")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repos != "/srv/repos" {
		t.Errorf("Expected repos from env, got %q", cfg.Repos)
	}
}
