// Package config loads the YAML host file cmd/s3m reads its
// destinations from: a top-level hosts: map from alias to connection
// details, the same shape spec.md §6 names.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/s3m-go/s3m/s3err"
)

// Host is one entry of the hosts: map.
type Host struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	EncKey    string `yaml:"enc_key"` // exactly 32 chars when set
	Compress  bool   `yaml:"compress"`
}

// Config is the parsed host file.
type Config struct {
	Hosts map[string]Host `yaml:"hosts"`
}

// Load reads and parses the YAML host file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", s3err.ErrConfigInvalid, path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", s3err.ErrConfigInvalid, path, err)
	}
	for alias, h := range cfg.Hosts {
		if err := h.validate(); err != nil {
			return nil, fmt.Errorf("%w: host %q: %v", s3err.ErrConfigInvalid, alias, err)
		}
	}
	return &cfg, nil
}

func (h Host) validate() error {
	if h.Endpoint == "" && h.Region == "" {
		return fmt.Errorf("either endpoint or region must be set")
	}
	if h.AccessKey == "" || h.SecretKey == "" {
		return fmt.Errorf("access_key and secret_key are required")
	}
	if h.EncKey != "" && len(h.EncKey) != 32 {
		return fmt.Errorf("enc_key must be exactly 32 characters, got %d", len(h.EncKey))
	}
	return nil
}

// EncryptionKey returns the host's encryption key as the fixed-size
// array ChaCha20-Poly1305 needs, or ok=false when none is configured.
func (h Host) EncryptionKey() (key [32]byte, ok bool) {
	if h.EncKey == "" {
		return key, false
	}
	copy(key[:], h.EncKey)
	return key, true
}

// Find looks up alias in the host file at path.
func Find(path, alias string) (Host, error) {
	cfg, err := Load(path)
	if err != nil {
		return Host{}, err
	}
	h, ok := cfg.Hosts[alias]
	if !ok {
		return Host{}, fmt.Errorf("%w: no host named %q in %s", s3err.ErrConfigInvalid, alias, path)
	}
	return h, nil
}

// DefaultPath returns ~/.s3m.yml, the conventional host file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".s3m.yml"
	}
	return home + "/.s3m.yml"
}
