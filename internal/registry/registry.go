// Package registry loads the instrument universe from a YAML file.
// Instruments are registered once at load and never mutated; universe edits
// happen in the file, not at runtime.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pricefeed/internal/model"
)

type file struct {
	Instruments []model.Instrument `yaml:"instruments"`
}

// Registry is the immutable instrument universe.
type Registry struct {
	instruments []model.Instrument
	byKey       map[string]model.Instrument
}

// Load reads and validates the universe file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file %s declares no instruments", path)
	}

	byKey := make(map[string]model.Instrument, len(f.Instruments))
	for _, inst := range f.Instruments {
		if inst.Key == "" {
			return nil, fmt.Errorf("instrument with empty key in %s", path)
		}
		if _, dup := byKey[inst.Key]; dup {
			return nil, fmt.Errorf("duplicate instrument key %q", inst.Key)
		}
		if len(inst.Identifiers) == 0 {
			return nil, fmt.Errorf("instrument %q has no source identifiers", inst.Key)
		}
		if inst.Scale < 0 {
			return nil, fmt.Errorf("instrument %q has negative scale", inst.Key)
		}
		byKey[inst.Key] = inst
	}
	return &Registry{instruments: f.Instruments, byKey: byKey}, nil
}

// Get returns the instrument for key.
func (r *Registry) Get(key string) (model.Instrument, bool) {
	inst, ok := r.byKey[key]
	return inst, ok
}

// Instruments returns the universe in file order.
func (r *Registry) Instruments() []model.Instrument {
	out := make([]model.Instrument, len(r.instruments))
	copy(out, r.instruments)
	return out
}

// Len returns the universe size.
func (r *Registry) Len() int { return len(r.instruments) }
