// Package config loads the engine's process-wide settings: data root,
// retention thresholds, search defaults, and embedding provider selection
// (spec §1.A, §6). It layers github.com/spf13/viper over TOML and YAML,
// matching the way the retrieval pack's own config packages read either
// format through one viper instance rather than hand-rolling a parser per
// format.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the single environment-variable namespace the core reads
// from (spec §6: "the core exposes no other process-wide configuration").
const EnvPrefix = "MEMORIX"

// Config is the engine's process-wide configuration (spec §1.A).
type Config struct {
	// DataRoot is the flat directory all durable state lives under
	// (spec §4.B). Defaults to "~/.memorix/data" when unset.
	DataRoot string `mapstructure:"data-root" toml:"data-root" yaml:"data-root"`

	// ArchiveThreshold is the caller-supplied retention score cutoff
	// below which non-immune observations become archive candidates
	// (spec §4.I, Open Question in §9).
	ArchiveThreshold float64 `mapstructure:"archive-threshold" toml:"archive-threshold" yaml:"archive-threshold"`

	// EmbeddingProvider is loaded from config but not consulted by the
	// engine: engine.New always uses embedding.Select, which tries native,
	// then portable, then falls back to null (§4.E).
	EmbeddingProvider string `mapstructure:"embedding-provider" toml:"embedding-provider" yaml:"embedding-provider"`

	// SearchDefaultLimit is the Layer-1 search limit applied when a
	// caller omits one.
	SearchDefaultLimit int `mapstructure:"search-default-limit" toml:"search-default-limit" yaml:"search-default-limit"`

	// SearchDefaultMaxTokens is the Layer-1 token budget applied when a
	// caller omits one. Zero means unbounded.
	SearchDefaultMaxTokens int `mapstructure:"search-default-max-tokens" toml:"search-default-max-tokens" yaml:"search-default-max-tokens"`

	// VectorBackend selects the vector layer's storage: "memory" (the
	// default, linear-scan) or "sqlite" (sqlite-vec backed, spec §4.F.1).
	VectorBackend string `mapstructure:"vector-backend" toml:"vector-backend" yaml:"vector-backend"`

	// VectorDSN is the sqlite-vec data source name when VectorBackend is
	// "sqlite". Empty means ":memory:".
	VectorDSN string `mapstructure:"vector-dsn" toml:"vector-dsn" yaml:"vector-dsn"`
}

// Defaults returns the configuration used when no file or environment
// override is present.
func Defaults() Config {
	return Config{
		DataRoot:               "", // resolved to ~/.memorix/data by the caller
		ArchiveThreshold:       1.0,
		EmbeddingProvider:      "auto",
		SearchDefaultLimit:     20,
		SearchDefaultMaxTokens: 0,
		VectorBackend:          "memory",
	}
}

// Load reads configuration from configPath (TOML or YAML, detected by
// extension) if it exists, applies MEMORIX_* environment overrides, and
// falls back to Defaults() for anything unset. A missing configPath is not
// an error.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data-root", cfg.DataRoot)
	v.SetDefault("archive-threshold", cfg.ArchiveThreshold)
	v.SetDefault("embedding-provider", cfg.EmbeddingProvider)
	v.SetDefault("search-default-limit", cfg.SearchDefaultLimit)
	v.SetDefault("search-default-max-tokens", cfg.SearchDefaultMaxTokens)
	v.SetDefault("vector-backend", cfg.VectorBackend)
	v.SetDefault("vector-dsn", cfg.VectorDSN)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTOML and LoadYAML parse a known-format document directly, without
// viper's extension sniffing; Load does not use them. Like the teacher's
// LoadLocalConfig, these return Defaults() rather than an error when data
// is empty.

func LoadTOML(data []byte) (Config, error) {
	cfg := Defaults()
	if len(data) == 0 {
		return cfg, nil
	}
	_, err := toml.Decode(string(data), &cfg)
	return cfg, err
}

func LoadYAML(data []byte) (Config, error) {
	cfg := Defaults()
	if len(data) == 0 {
		return cfg, nil
	}
	err := yaml.Unmarshal(data, &cfg)
	return cfg, err
}
