// Package config loads the replica configuration from YAML.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/WoelkiM/antidote/internal/crdt"
)

// Config holds the replica configuration.
type Config struct {
	ReplicaID string        `yaml:"replica_id" validate:"required"`
	Types     []crdt.TypeID `yaml:"types" validate:"dive,oneof=register_lww counter_pn counter_b set_go"`
	BoundType crdt.TypeID   `yaml:"bound_type" validate:"omitempty,oneof=register_lww counter_pn counter_b set_go"`
	LogLevel  string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Metrics   Metrics       `yaml:"metrics"`
}

// Metrics controls the counters printed by the command line tool.
type Metrics struct {
	Dump bool `yaml:"dump"`
}

var validate = validator.New()

// Default returns a configuration with every capability type enabled.
func Default() Config {
	return Config{
		ReplicaID: "local",
		LogLevel:  "info",
	}
}

// Load reads and validates the YAML file at path. Fields missing from the
// file keep their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the bound type is enabled.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.BoundType != "" && len(c.Types) > 0 && !contains(c.Types, c.BoundType) {
		return errors.Errorf("invalid config: bound type %q is not enabled", c.BoundType)
	}
	return nil
}

// ParseTypes parses a comma-separated list of capability types:
// "register_lww,counter_pn"
func ParseTypes(s string) ([]crdt.TypeID, error) {
	if s == "" {
		return []crdt.TypeID{}, nil
	}

	parts := strings.Split(s, ",")
	types := make([]crdt.TypeID, 0, len(parts))
	known := crdt.DefaultRegistry()

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		typ := crdt.TypeID(part)
		if !known.IsType(typ) {
			return nil, errors.Errorf("unknown type: %s", part)
		}
		if contains(types, typ) {
			return nil, errors.Errorf("duplicate type: %s", part)
		}
		types = append(types, typ)
	}

	return types, nil
}

// Registry builds a registry holding the enabled types, or all of them when
// none are listed.
func (c *Config) Registry() *crdt.Registry {
	all := crdt.DefaultRegistry()
	if len(c.Types) == 0 {
		return all
	}

	reg := crdt.NewRegistry()
	for _, typ := range c.Types {
		if impl, ok := all.Lookup(typ); ok {
			reg.Register(impl)
		}
	}
	return reg
}

func contains(types []crdt.TypeID, typ crdt.TypeID) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}
