package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")
	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DataDir != "./data" || c.ListenAddr != "127.0.0.1:8000" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.DefaultMethod != "pca" || c.DefaultRadius != 0.1 {
		t.Fatalf("analysis defaults: method=%q radius=%v", c.DefaultMethod, c.DefaultRadius)
	}
	if !c.TSNEDeterministic || c.TSNESeed != 42 || c.TSNEIterations != 250 {
		t.Fatalf("tsne defaults: %+v", c)
	}
	if len(c.CORSOrigins) != len(DefaultCORSOrigins) {
		t.Fatalf("cors origins: %v", c.CORSOrigins)
	}
}

func TestSaveThenLoad(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.DataDir = "/srv/tables"
	c.DefaultRadius = 0.25
	c.NeighborStrategy = "brute"
	if err := Save(c, cfgPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DataDir != "/srv/tables" || got.DefaultRadius != 0.25 || got.NeighborStrategy != "brute" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	c, _ := Load(cfgPath)
	c.DefaultMethod = "pca"
	if err := Save(c, cfgPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Setenv("FINGERPRINT_DEFAULT_METHOD", "tsne")
	got, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DefaultMethod != "tsne" {
		t.Fatalf("env override not applied: %q", got.DefaultMethod)
	}
}
