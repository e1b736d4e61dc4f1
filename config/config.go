package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Programs fixes the identifier each marketplace program is registered
// under. Spaces lists collection programs deployed on this node.
type Programs struct {
	Admin        uint64   `toml:"Admin"`
	Auction      uint64   `toml:"Auction"`
	Listing      uint64   `toml:"Listing"`
	CreatorPool  uint64   `toml:"CreatorPool"`
	Rewards      uint64   `toml:"Rewards"`
	Subscription uint64   `toml:"Subscription"`
	Spaces       []uint64 `toml:"Spaces"`
}

type Config struct {
	RPCAddress  string   `toml:"RPCAddress"`
	DataDir     string   `toml:"DataDir"`
	NetworkName string   `toml:"NetworkName"`
	LogEnv      string   `toml:"LogEnv"`
	Programs    Programs `toml:"Programs"`
}

// Load loads the configuration from the given path, writing a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "nift-local"
	}
	if cfg.Programs.Spaces == nil {
		cfg.Programs.Spaces = []uint64{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations whose program identifiers collide or are
// unset. Zero is reserved for external callers.
func (c *Config) Validate() error {
	ids := map[uint64]string{}
	claim := func(id uint64, name string) error {
		if id == 0 {
			return fmt.Errorf("config: program %s has no identifier", name)
		}
		if prev, taken := ids[id]; taken {
			return fmt.Errorf("config: programs %s and %s share identifier %d", prev, name, id)
		}
		ids[id] = name
		return nil
	}
	fixed := []struct {
		id   uint64
		name string
	}{
		{c.Programs.Admin, "Admin"},
		{c.Programs.Auction, "Auction"},
		{c.Programs.Listing, "Listing"},
		{c.Programs.CreatorPool, "CreatorPool"},
		{c.Programs.Rewards, "Rewards"},
		{c.Programs.Subscription, "Subscription"},
	}
	for _, p := range fixed {
		if err := claim(p.id, p.name); err != nil {
			return err
		}
	}
	for i, id := range c.Programs.Spaces {
		if err := claim(id, fmt.Sprintf("Spaces[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./nift-data",
		NetworkName: "nift-local",
		LogEnv:      "dev",
		Programs: Programs{
			Admin:        100,
			Auction:      200,
			Listing:      210,
			CreatorPool:  300,
			Rewards:      310,
			Subscription: 400,
			Spaces:       []uint64{},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
