package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
family_name = "rina-fa"
mpl_seconds = 30

[default_policy]
name = "PSOC_authentication-password"

[default_policy.params]
password = "s3cr3t"

[[cubes]]
id = 1
name = "reliable"
average_bandwidth = 1000000
average_bandwidth_set = true
ordered_delivery = true
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rinad.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FamilyName != "rina-fa" {
		t.Fatalf("got family name %q, want rina-fa", cfg.FamilyName)
	}
	if cfg.MPL() != 30*time.Second {
		t.Fatalf("got MPL %v, want 30s", cfg.MPL())
	}
	if cfg.DefaultPolicy.Name != "PSOC_authentication-password" {
		t.Fatalf("got default policy %q", cfg.DefaultPolicy.Name)
	}
	if cfg.DefaultPolicy.Params["password"] != "s3cr3t" {
		t.Fatalf("got password param %q", cfg.DefaultPolicy.Params["password"])
	}
	cubes := cfg.QoSCubes()
	if len(cubes) != 1 || cubes[0].Name != "reliable" {
		t.Fatalf("got cubes %+v", cubes)
	}
}

func TestLoadRejectsMissingFamilyName(t *testing.T) {
	path := writeTempConfig(t, "mpl_seconds = 10\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a config missing family_name")
	}
}

func TestChallengeTimeoutDefault(t *testing.T) {
	var cfg Config
	if cfg.ChallengeTimeout() != 10*time.Second {
		t.Fatalf("got default challenge timeout %v, want 10s", cfg.ChallengeTimeout())
	}
}
