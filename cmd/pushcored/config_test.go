package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := defaultConfig()
	if cfg.ListenAddr != want.ListenAddr {
		t.Fatalf("expected default listen addr %q, got %q", want.ListenAddr, cfg.ListenAddr)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0].Group != "ApplCerts" {
		t.Fatalf("expected default ApplCerts group, got %+v", cfg.Groups)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pushcored.yaml")
	yaml := `
logLevel: debug
listenAddr: "0.0.0.0:8080"
janitorInterval: 1m
sessionTTL: 10m
applicationURI: "urn:test:pushcored"
groups:
  - group: ApplCerts
    pkiRoot: /var/lib/pushcore/appl
  - group: HttpCerts
    pkiRoot: /var/lib/pushcore/http
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected logLevel debug, got %q", cfg.LogLevel)
	}
	if cfg.ListenAddr != "0.0.0.0:8080" {
		t.Fatalf("expected overridden listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.JanitorInterval != time.Minute {
		t.Fatalf("expected janitorInterval 1m, got %s", cfg.JanitorInterval)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Fatalf("expected sessionTTL 10m, got %s", cfg.SessionTTL)
	}
	if len(cfg.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(cfg.Groups))
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pushcored.yaml")
	if err := os.WriteFile(path, []byte("logLevel: [this is not a string"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected an error parsing malformed yaml")
	}
}
