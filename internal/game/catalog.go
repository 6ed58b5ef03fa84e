/*
Package game
File: catalog.go
Description:
    Loads and validates the static production/upgrade catalog.
    The default catalog ships embedded in the binary; a custom 'catalog.yaml'
    can replace it at process start.
*/

package game

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the built-in catalog.
// It panics only if the embedded file is broken, which tests guard against.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file from disk. An empty path means the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids are unique, scales grow, and every effect is well formed.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Buildings))
	for _, b := range c.Buildings {
		if b.ID == "" {
			return fmt.Errorf("building with empty id")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate building id %q", b.ID)
		}
		seen[b.ID] = true
		if b.CostScale <= 1 {
			return fmt.Errorf("building %q: cost_scale must be > 1, got %v", b.ID, b.CostScale)
		}
		for _, r := range AllResources {
			if b.BaseCost.Get(r) < 0 {
				return fmt.Errorf("building %q: negative base cost for %s", b.ID, r)
			}
		}
	}

	seenUp := make(map[string]bool, len(c.Upgrades))
	for _, u := range c.Upgrades {
		if u.ID == "" {
			return fmt.Errorf("upgrade with empty id")
		}
		if seenUp[u.ID] {
			return fmt.Errorf("duplicate upgrade id %q", u.ID)
		}
		seenUp[u.ID] = true
		for _, r := range AllResources {
			if u.Cost.Get(r) < 0 {
				return fmt.Errorf("upgrade %q: negative cost for %s", u.ID, r)
			}
		}
		for i, e := range u.Effects {
			if err := c.validateEffect(e); err != nil {
				return fmt.Errorf("upgrade %q effect %d: %w", u.ID, i, err)
			}
		}
	}
	return nil
}

func (c *Catalog) validateEffect(e Effect) error {
	switch e.Field {
	case FieldOutputMultiplier, FieldUpkeepModifier:
		if e.Op != OpMultiply {
			return fmt.Errorf("%s supports only %q", e.Field, OpMultiply)
		}
		if e.Value < 0 {
			return fmt.Errorf("negative factor %v", e.Value)
		}
		if c.GetBuilding(e.Target) == nil {
			return fmt.Errorf("unknown target building %q", e.Target)
		}
	case FieldClickPower:
		// Click power only ever grows.
		if e.Op != OpAdd || e.Value <= 0 {
			return fmt.Errorf("%s supports only a positive %q", e.Field, OpAdd)
		}
	default:
		return fmt.Errorf("unknown field %q", e.Field)
	}
	return nil
}

// NewGame builds the initial state for this catalog: nothing owned, neutral modifiers.
func (c *Catalog) NewGame() GameState {
	s := GameState{
		ClickPower: 1,
		Buildings:  make([]Building, 0, len(c.Buildings)),
		Upgrades:   make([]Upgrade, 0, len(c.Upgrades)),
		Settings:   Settings{Autosave: true},
	}
	for _, b := range c.Buildings {
		s.Buildings = append(s.Buildings, newBuilding(b.ID))
	}
	for _, u := range c.Upgrades {
		s.Upgrades = append(s.Upgrades, Upgrade{ID: u.ID})
	}
	return s
}

func newBuilding(id string) Building {
	return Building{ID: id, OutputMultiplier: 1, UpkeepModifier: 1}
}
