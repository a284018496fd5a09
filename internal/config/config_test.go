package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeblew999/geofield/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.Provider != config.ProviderNominatim {
		t.Fatalf("provider=%q", cfg.Search.Provider)
	}
	if cfg.Bootstrap.Timeout != 2*time.Second {
		t.Fatalf("timeout=%s", cfg.Bootstrap.Timeout)
	}
	f, ok := cfg.Field("location")
	if !ok {
		t.Fatal("default location field missing")
	}
	if f.MaxZoom != 14 || f.Backend != "vector" {
		t.Fatalf("field=%+v", f)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geofield.yaml")
	yaml := `
search:
  provider: google
  google:
    api_key: from-file
fields:
  - name: venue
    backend: hosted
    required: true
    debounce: 200ms
    center_lat: -37.81
    center_lng: 144.96
    zoom: 8
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEOFIELD_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level=%q, want env override", cfg.Log.Level)
	}
	f, ok := cfg.Field("venue")
	if !ok {
		t.Fatal("venue field missing")
	}
	if !f.Required || f.Debounce != 200*time.Millisecond || f.InitialZoom() != 8 || f.MaxZoom != 14 {
		t.Fatalf("field=%+v", f)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &config.Config{
		Log:    config.LogConfig{Level: "loud"},
		Search: config.SearchConfig{Provider: config.ProviderGoogle},
		Store:  config.StoreConfig{Driver: "sqlite"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log.level", "api_key", "bootstrap.timeout", "store.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
