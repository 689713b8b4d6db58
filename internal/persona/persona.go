// Package persona holds the executive personas a discussion can seat.
package persona

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"basegraph.app/boardroom/internal/model"
)

//go:embed personas.yaml
var defaultPersonas []byte

// Persona frames how one role speaks.
type Persona struct {
	Role         model.Role `yaml:"role"`
	Title        string     `yaml:"title"`
	Instructions string     `yaml:"instructions"`
}

// Catalog maps every known role to its persona. It is read-only after construction and safe
// to share across discussions.
type Catalog struct {
	personas map[model.Role]Persona
}

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultPersonas)
	if err != nil {
		panic(fmt.Sprintf("persona: built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file and layers it over the built-in personas, so a file may override
// only some roles.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("persona: %s: %w", path, err)
	}

	merged := Default()
	for role, p := range override.personas {
		merged.personas[role] = p
	}
	return merged, nil
}

// Parse decodes and validates a YAML catalog payload.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("persona: catalog payload is empty")
	}

	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("persona: decode catalog: %w", err)
	}

	c := &Catalog{personas: make(map[model.Role]Persona, len(file.Personas))}
	for i, p := range file.Personas {
		role, err := model.ParseRole(string(p.Role))
		if err != nil {
			return nil, fmt.Errorf("persona: personas[%d]: %w", i, err)
		}
		if _, dup := c.personas[role]; dup {
			return nil, fmt.Errorf("persona: personas[%d]: duplicate role %s", i, role)
		}
		if p.Instructions == "" {
			return nil, fmt.Errorf("persona: personas[%d]: instructions are required", i)
		}
		p.Role = role
		if p.Title == "" {
			p.Title = string(role)
		}
		c.personas[role] = p
	}
	return c, nil
}

// Get returns the persona for role, falling back to a bare persona named after the role.
func (c *Catalog) Get(role model.Role) Persona {
	if p, ok := c.personas[role]; ok {
		return p
	}
	return Persona{
		Role:         role,
		Title:        string(role),
		Instructions: fmt.Sprintf("Speak as the company's %s.", role),
	}
}

func (c *Catalog) Len() int {
	return len(c.personas)
}
