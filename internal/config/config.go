package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Provider is one source of a configuration value. Providers are
// consulted in the order given to Resolve; the first non-empty value
// wins.
type Provider struct {
	Name  string
	Value func() string
}

// Static wraps a known value as a Provider.
func Static(name, value string) Provider {
	return Provider{Name: name, Value: func() string { return value }}
}

// Env reads an environment variable as a Provider.
func Env(key string) Provider {
	return Provider{Name: "env:" + key, Value: func() string { return os.Getenv(key) }}
}

// Resolve returns the first non-empty value among the providers and
// the name of the provider that supplied it. Both are empty when no
// provider has a value.
func Resolve(providers ...Provider) (value, source string) {
	for _, p := range providers {
		if v := strings.TrimSpace(p.Value()); v != "" {
			return v, p.Name
		}
	}
	return "", ""
}

// File is the on-disk configuration, shared by the CLI client and the
// server.
type File struct {
	APIURL string       `toml:"api_url"`
	Server ServerConfig `toml:"server"`
}

// ServerConfig holds settings for the `serve` command.
type ServerConfig struct {
	Addr      string     `toml:"addr"`
	DBPath    string     `toml:"db_path"`
	IndexPath string     `toml:"index_path"`
	Blob      BlobConfig `toml:"blob"`
}

// BlobConfig selects the image payload store. The Type field
// determines which other fields are relevant.
type BlobConfig struct {
	Type string `toml:"type"` // "", "memory", "filesystem", or "s3"

	// Filesystem-specific
	Root string `toml:"root,omitempty"`

	// S3-specific
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// DefaultPath returns the default config file location (~/.muse/config.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".muse", "config.toml")
}

// Load reads a config file. A missing file is not an error: it yields
// an empty config so the provider chain can fall through.
func Load(path string) (*File, error) {
	var cfg File
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// ServerDefaults fills in unset server settings.
func (f *File) ServerDefaults(baseDir string) ServerConfig {
	s := f.Server
	if s.Addr == "" {
		s.Addr = ":3001"
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(baseDir, "muse.db")
	}
	if s.IndexPath == "" {
		s.IndexPath = filepath.Join(baseDir, "muse.bleve")
	}
	return s
}
