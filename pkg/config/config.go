// Package config provides YAML-based configuration loading with environment
// variable expansion. Callers pre-populate the target with defaults; the file
// overrides them.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target, expanding $VAR and ${VAR} references
// from the environment first. A missing file is not an error: the defaults
// already present in target are used as-is. Either way, if target implements
// Validator it is validated before Load returns.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Run with defaults.
	case err != nil:
		return fmt.Errorf("config: read %s: %w", filename, err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
			return fmt.Errorf("config: parse %s: %w", filename, err)
		}
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config: validation failed: %w", err)
		}
	}
	return nil
}
