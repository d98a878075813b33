package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	chdir(t, t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("journal", "./data/operations.jsonl", "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--journal", "/tmp/j.jsonl"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Journal != "/tmp/j.jsonl" {
		t.Fatalf("journal = %q", cfg.Journal)
	}
	if cfg.StateFile != "./data/pool.json" {
		t.Fatalf("state file default = %q", cfg.StateFile)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AMM_PG_DSN", "postgres://example")
	t.Setenv("AMM_STATE_FILE", "/var/lib/amm/pool.json")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PGDSN != "postgres://example" {
		t.Fatalf("pg dsn = %q", cfg.PGDSN)
	}
	if cfg.StateFile != "/var/lib/amm/pool.json" {
		t.Fatalf("state file = %q", cfg.StateFile)
	}
}

func TestLoadQuoteFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quote.yaml")
	content := "rpc: http://localhost:8545\nfee-bp: 30\nblock: 42\nretry-backoff: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadQuote(path, nil)
	if err != nil {
		t.Fatalf("load quote: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" || cfg.FeeBP != 30 || cfg.Block != 42 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.RetryBackoff != 2*time.Second || cfg.MaxRetries != 3 {
		t.Fatalf("unexpected retry settings %+v", cfg)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadReport(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"1700000000", 1700000000},
		{"2023-11-14T22:13:20Z", 1700000000},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
