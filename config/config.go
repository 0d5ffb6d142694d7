package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Zero values in the YAML file fall
// back to the defaults below.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Group      string `yaml:"group"`
	ServerName string `yaml:"server_name"`
	MaxClients int    `yaml:"max_clients"`

	LoginAttempts   int `yaml:"login_attempts"`
	LoginTimeoutSec int `yaml:"login_timeout_sec"`

	// JournalDir enables the zstd event journal when non-empty.
	JournalDir string `yaml:"journal_dir"`
	// ImagesDir is where game plugins look for symbol images.
	ImagesDir string `yaml:"images_dir"`

	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            44455,
		Group:           "tileNet",
		ServerName:      "TileNet Server",
		MaxClients:      50,
		LoginAttempts:   5,
		LoginTimeoutSec: 300,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	d := Default()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.ServerName == "" {
		c.ServerName = d.ServerName
	}
	if c.MaxClients <= 0 {
		c.MaxClients = d.MaxClients
	}
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = d.LoginAttempts
	}
	if c.LoginTimeoutSec <= 0 {
		c.LoginTimeoutSec = d.LoginTimeoutSec
	}
}

// LoginTimeout is the per-read deadline for the login handshake.
func (c Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSec) * time.Second
}

// Addr is the host:port bind address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
