package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".quickhand")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	home := t.TempDir()
	res := Load(home)
	if res.Found || res.ParseError != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	def := Default()
	if res.Config.API.BaseURL != def.API.BaseURL || res.Config.Locale != "en" {
		t.Fatalf("expected defaults, got %+v", res.Config)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
locale = "hi-IN"

[api]
base_url = "https://staging.quickhand.app"

[telemetry]
enabled = true
otlp_endpoint = "http://collector:4318"
insecure = true
`)

	res := Load(home)
	if !res.Found || res.ParseError != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	c := res.Config
	if c.API.BaseURL != "https://staging.quickhand.app" {
		t.Fatalf("base_url not merged: %q", c.API.BaseURL)
	}
	if c.API.TimeoutMS != 30000 {
		t.Fatalf("timeout default lost: %d", c.API.TimeoutMS)
	}
	if c.Locale != "hi-IN" {
		t.Fatalf("locale not merged: %q", c.Locale)
	}
	if !c.Telemetry.Enabled || c.Telemetry.OTLPEndpoint != "http://collector:4318" {
		t.Fatalf("telemetry not merged: %+v", c.Telemetry)
	}
}

func TestLoadMalformedFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `locale = [broken`)

	res := Load(home)
	if !res.Found {
		t.Fatalf("expected file to be found")
	}
	if !errors.Is(res.ParseError, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", res.ParseError)
	}
	if res.Config.API.BaseURL != Default().API.BaseURL {
		t.Fatalf("expected defaults on parse error")
	}
}
