package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesProgramSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
NetworkName = "testnet"
LogEnv = "staging"

[Programs]
Admin = 10
Auction = 20
Listing = 30
CreatorPool = 40
Rewards = 50
Subscription = 60
Spaces = [70, 71]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" || cfg.DataDir != "./data" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.NetworkName != "testnet" || cfg.LogEnv != "staging" {
		t.Fatalf("unexpected environment: %+v", cfg)
	}
	if cfg.Programs.Admin != 10 || cfg.Programs.Subscription != 60 {
		t.Fatalf("unexpected programs: %+v", cfg.Programs)
	}
	if len(cfg.Programs.Spaces) != 2 || cfg.Programs.Spaces[1] != 71 {
		t.Fatalf("unexpected spaces: %v", cfg.Programs.Spaces)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.NetworkName != "nift-local" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	// A second load round-trips the persisted defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if again.Programs.Admin != cfg.Programs.Admin {
		t.Fatalf("defaults did not round-trip: %+v", again.Programs)
	}
}

func TestValidateRejectsCollisions(t *testing.T) {
	cfg := &Config{Programs: Programs{
		Admin: 1, Auction: 2, Listing: 3, CreatorPool: 4, Rewards: 5, Subscription: 2,
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("shared identifier accepted")
	}

	cfg.Programs.Subscription = 6
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Programs.Spaces = []uint64{6}
	if err := cfg.Validate(); err == nil {
		t.Fatal("space identifier collision accepted")
	}

	cfg.Programs.Spaces = []uint64{0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero space identifier accepted")
	}
}
