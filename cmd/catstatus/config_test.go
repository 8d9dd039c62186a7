package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "catstatus.yaml")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("catstatus", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg != defaultConfig() {
		t.Fatalf("ParseConfig() = %+v, want %+v", cfg, defaultConfig())
	}
	if cfg.ImageBaseURL != "https://http.cat" {
		t.Fatalf("ImageBaseURL = %q", cfg.ImageBaseURL)
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("catstatus", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:9000", "-store", "sqlite", "-vv"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("Store = %q", cfg.Store)
	}
	if !cfg.Trace {
		t.Fatal("Trace = false, want true")
	}
}

func TestParseConfigFile(t *testing.T) {
	filename := writeConfig(t, `
addr: ":9090"
imageBaseURL: "http://images.local"
resolveTimeout: 5s
store: sqlite
`)
	fs := flag.NewFlagSet("catstatus", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-config", filename})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.ImageBaseURL != "http://images.local" {
		t.Fatalf("ImageBaseURL = %q", cfg.ImageBaseURL)
	}
	if cfg.ResolveTimeout != 5*time.Second {
		t.Fatalf("ResolveTimeout = %s", cfg.ResolveTimeout)
	}
	// not in file, default kept
	if cfg.FetchTimeout != defaultConfig().FetchTimeout {
		t.Fatalf("FetchTimeout = %s", cfg.FetchTimeout)
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("Store = %q", cfg.Store)
	}
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	filename := writeConfig(t, "addr: \":9090\"\nstore: sqlite\n")
	fs := flag.NewFlagSet("catstatus", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-config", filename, "-addr", ":7070"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr = %q, want flag value", cfg.Addr)
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("Store = %q, want file value", cfg.Store)
	}
}

func TestParseConfigMissingFile(t *testing.T) {
	fs := flag.NewFlagSet("catstatus", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
