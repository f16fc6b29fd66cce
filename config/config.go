package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before they are mapped to keys
	EnvPrefix = "RATEFETCH_"

	// DefaultFile is read by Load when present
	DefaultFile = "config.yaml"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml and config.<app.env>.yaml in the working directory
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile is like Load but reads the YAML file at path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := loadOptionalFile(k, path); err != nil {
			return err
		}

		// Environment-specific overlay next to the base file
		if env := k.String("app.env"); env != "" && path != "" {
			overlay := strings.TrimSuffix(path, ".yaml") + "." + env + ".yaml"
			return loadOptionalFile(k, overlay)
		}
		return nil
	})
}

// LoadBytes loads defaults, then the given YAML document, then environment variables.
func LoadBytes(data []byte) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return NewLoadError("yaml", err)
		}
		return nil
	})
}

func load(source func(k *koanf.Koanf) error) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := source(k); err != nil {
		return nil, err
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// RATEFETCH_FETCH_MAXRETRIES -> fetch.maxretries
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewLoadError(path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return NewLoadError(path, err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "ratefetch",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"fetch.maxretries":           2,
		"fetch.maxretrydelay":        "60s",
		"fetch.backoffmultiplier":    2.0,
		"fetch.initialretrydelay":    "5s",
		"fetch.maxjittermultiplier":  1.3,
		"fetch.retryonzerodelay":     false,
		"fetch.retrytransporterrors": false,
		"fetch.debug":                false,

		"transport.timeout":        "30s",
		"transport.ratelimit":      0,
		"transport.burst":          1,
		"transport.propagatetrace": false,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
