// Package params defines the catalog of tunable game parameters that the
// command interpreter is allowed to adjust.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes one tunable parameter. Normalized values sent by the
// interpreter are always in [-1, 1]; Range documents what the extremes mean.
type Definition struct {
	Key         string `yaml:"key" json:"key"`
	Description string `yaml:"description" json:"description"`
	Range       string `yaml:"range" json:"range"`
}

// Catalog is the closed set of parameter definitions, keyed for validation.
type Catalog struct {
	defs  []Definition
	byKey map[string]Definition
}

// LoadFile reads parameter definitions from a YAML file.
//
// Precondition: path must point to a YAML file with a top-level "parameters" list.
// Postcondition: Returns a Catalog with at least one definition, or a non-nil error.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameters file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Catalog from raw YAML.
//
// Postcondition: Returns an error for empty catalogs, duplicate keys, or
// definitions missing a key.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Parameters []Definition `yaml:"parameters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing parameters YAML: %w", err)
	}
	if len(doc.Parameters) == 0 {
		return nil, fmt.Errorf("parameters file defines no parameters")
	}

	byKey := make(map[string]Definition, len(doc.Parameters))
	for _, d := range doc.Parameters {
		if d.Key == "" {
			return nil, fmt.Errorf("parameter definition missing key")
		}
		if _, dup := byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate parameter key %q", d.Key)
		}
		byKey[d.Key] = d
	}

	return &Catalog{defs: doc.Parameters, byKey: byKey}, nil
}

// Default returns the built-in catalog used when no parameters file is
// configured.
func Default() *Catalog {
	c, err := Parse([]byte(defaultCatalogYAML))
	if err != nil {
		panic(fmt.Sprintf("params: default catalog invalid: %v", err))
	}
	return c
}

// All returns the definitions in file order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Known reports whether key is a defined parameter.
func (c *Catalog) Known(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Keys returns all parameter keys in file order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		keys = append(keys, d.Key)
	}
	return keys
}

// Clamp restricts a normalized parameter value to [-1, 1].
func Clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

const defaultCatalogYAML = `
parameters:
  - key: gravity
    description: Controls how quickly objects fall
    range: "(-1 = half gravity, 1 = double gravity)"
  - key: dart_speed
    description: Controls how fast darts move
    range: "(-1 = slower, 1 = faster)"
  - key: dart_frequency
    description: Controls how often darts are fired
    range: "(-1 = less frequent, 1 = more frequent)"
  - key: dart_wall_height
    description: Controls the height of dart walls
    range: "(-1 = shorter, 1 = taller)"
  - key: platform_height
    description: Controls the height of platforms
    range: "(-1 = thinner, 1 = thicker)"
  - key: platform_width
    description: Controls the width of platforms
    range: "(-1 = narrower, 1 = wider)"
  - key: spike_height
    description: Controls the height of spike platforms
    range: "(-1 = shorter, 1 = taller)"
  - key: spike_width
    description: Controls the width of spike platforms
    range: "(-1 = narrower, 1 = wider)"
  - key: oscillator_height
    description: Controls the height of oscillating platforms
    range: "(-1 = thinner, 1 = thicker)"
  - key: oscillator_width
    description: Controls the width of oscillating platforms
    range: "(-1 = narrower, 1 = wider)"
  - key: shield_height
    description: Controls the height of shield blocks
    range: "(-1 = shorter, 1 = taller)"
  - key: shield_width
    description: Controls the width of shield blocks
    range: "(-1 = narrower, 1 = wider)"
  - key: gap_width
    description: Controls the width of gaps between ground segments
    range: "(-1 = narrower, 1 = wider)"
  - key: tilt
    description: Controls the angle (tilt) of platforms in degrees
    range: "(-1 = tilted left, 1 = tilted right)"
`
