package board

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// ParseDefinition decodes a board definition from YAML bytes.
func ParseDefinition(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("board: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("board: decode definition: %w", err)
	}
	return def, nil
}

// Parse decodes and validates a board from YAML bytes.
func Parse(data []byte) (*Board, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return New(def)
}

// Load reads a board definition from r.
func Load(r io.Reader) (*Board, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("board: read definition: %w", err)
	}
	return Parse(content)
}

// LoadDefinitionFile reads a board definition from path without building it.
func LoadDefinitionFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("board: read %s: %w", path, err)
	}
	def, err := ParseDefinition(content)
	if err != nil {
		return Definition{}, fmt.Errorf("board: %s: %w", path, err)
	}
	return def, nil
}

// LoadFile reads and validates a board definition from path.
func LoadFile(path string) (*Board, error) {
	def, err := LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}
	b, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("board: %s: %w", path, err)
	}
	return b, nil
}

// SeedDefinition returns the built-in demo board definition.
func SeedDefinition() Definition {
	def, err := ParseDefinition(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("board: embedded seed is invalid: %v", err))
	}
	return def
}

// Seed builds the built-in demo board.
func Seed() (*Board, error) {
	return New(SeedDefinition())
}

// WithEndpoints returns a copy of def whose agents use the given endpoint
// map, keyed by agent id. Agents missing from the map keep their endpoint.
func (def Definition) WithEndpoints(endpoints map[string]string) Definition {
	if len(endpoints) == 0 {
		return def
	}
	agents := make([]Agent, len(def.Agents))
	copy(agents, def.Agents)
	for i := range agents {
		if url, ok := endpoints[agents[i].ID]; ok {
			agents[i].Endpoint = url
		}
	}
	def.Agents = agents
	return def
}
