/*
Package game
File: models.go
Description:
    Defines all data structures used by the Quantum Incremental economy.
    Templates (buildings, upgrades) map directly to 'catalog.yaml';
    instances (buildings owned, upgrades applied) are the mutable runtime state.

    No logic is performed here apart from small accessors on the resource vector.
*/

package game

// Resource names a single ledger entry.
type Resource string

const (
	Atoms  Resource = "atoms"
	Energy Resource = "energy"
	Quarks Resource = "quarks"
)

// AllResources is the fixed iteration order used everywhere a vector is walked.
var AllResources = [...]Resource{Atoms, Energy, Quarks}

// Resources is the vector every cost, output and ledger amount is expressed in.
// A missing YAML/JSON key decodes to 0.
type Resources struct {
	Atoms  float64 `yaml:"atoms" json:"atoms"`
	Energy float64 `yaml:"energy" json:"energy"`
	Quarks float64 `yaml:"quarks" json:"quarks"`
}

// Get returns the component for r (0 for an unknown name).
func (v Resources) Get(r Resource) float64 {
	switch r {
	case Atoms:
		return v.Atoms
	case Energy:
		return v.Energy
	case Quarks:
		return v.Quarks
	}
	return 0
}

// Set writes the component for r. Unknown names are ignored.
func (v *Resources) Set(r Resource, x float64) {
	switch r {
	case Atoms:
		v.Atoms = x
	case Energy:
		v.Energy = x
	case Quarks:
		v.Quarks = x
	}
}

// Add returns the component-wise sum.
func (v Resources) Add(o Resources) Resources {
	return Resources{Atoms: v.Atoms + o.Atoms, Energy: v.Energy + o.Energy, Quarks: v.Quarks + o.Quarks}
}

// Scale multiplies every component by k.
func (v Resources) Scale(k float64) Resources {
	return Resources{Atoms: v.Atoms * k, Energy: v.Energy * k, Quarks: v.Quarks * k}
}

// IsZero reports whether every component is 0.
func (v Resources) IsZero() bool {
	return v.Atoms == 0 && v.Energy == 0 && v.Quarks == 0
}

// BuildingTemplate is the immutable description of a production unit.
type BuildingTemplate struct {
	ID          string    `yaml:"id" json:"id"`                   // Unique key (e.g., "synth")
	Name        string    `yaml:"name" json:"name"`               // Display name
	Description string    `yaml:"description" json:"description"` // Flavor text, opaque to the engine
	BaseCost    Resources `yaml:"base_cost" json:"base_cost"`     // Price of the first unit
	BaseOutput  Resources `yaml:"base_output" json:"base_output"` // Per unit per second; negative = upkeep
	CostScale   float64   `yaml:"cost_scale" json:"cost_scale"`   // Geometric growth factor, > 1
}

// Building is the mutable per-template ownership record.
type Building struct {
	ID               string  `json:"id"`
	Amount           int     `json:"amount"`
	OutputMultiplier float64 `json:"outputMultiplier"` // Applied to every output component
	UpkeepModifier   float64 `json:"upkeepModifier"`   // Applied to negative (consumption) components only
}

// EffectField is the scalar an upgrade effect writes to.
type EffectField string

const (
	FieldOutputMultiplier EffectField = "output_multiplier"
	FieldUpkeepModifier   EffectField = "upkeep_modifier"
	FieldClickPower       EffectField = "click_power"
)

// EffectOp is how an effect combines its Value with the current field value.
type EffectOp string

const (
	OpMultiply EffectOp = "multiply"
	OpAdd      EffectOp = "add"
)

// Effect is a data-only description of what an upgrade changes.
// Target is the building id for building fields and empty for click_power.
type Effect struct {
	Target string      `yaml:"target,omitempty" json:"target,omitempty"`
	Field  EffectField `yaml:"field" json:"field"`
	Op     EffectOp    `yaml:"op" json:"op"`
	Value  float64     `yaml:"value" json:"value"`
}

// UpgradeTemplate is the immutable description of a one-shot upgrade.
type UpgradeTemplate struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Cost        Resources `yaml:"cost" json:"cost"` // Fixed, does not scale
	Effects     []Effect  `yaml:"effects" json:"effects"`
}

// Upgrade is the mutable purchase flag of an upgrade.
type Upgrade struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
}

// Settings holds player preferences persisted with the game.
type Settings struct {
	Autosave bool `json:"autosave"`
}

// Catalog is the root of 'catalog.yaml'.
type Catalog struct {
	Buildings []BuildingTemplate `yaml:"buildings" json:"buildings"`
	Upgrades  []UpgradeTemplate  `yaml:"upgrades" json:"upgrades"`
}

// GameState is the whole mutable aggregate; it is the unit of persistence.
type GameState struct {
	Resources  Resources  `json:"resources"`
	Totals     Resources  `json:"totals"` // Lifetime production
	ClickPower float64    `json:"clickPower"`
	Buildings  []Building `json:"buildings"`
	Upgrades   []Upgrade  `json:"upgrades"`
	Settings   Settings   `json:"settings"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s GameState) Clone() GameState {
	out := s
	out.Buildings = append([]Building(nil), s.Buildings...)
	out.Upgrades = append([]Upgrade(nil), s.Upgrades...)
	return out
}

// Building returns a pointer to the instance with the given id, or nil.
func (s *GameState) Building(id string) *Building {
	for i := range s.Buildings {
		if s.Buildings[i].ID == id {
			return &s.Buildings[i]
		}
	}
	return nil
}

// Upgrade returns a pointer to the upgrade flag with the given id, or nil.
func (s *GameState) Upgrade(id string) *Upgrade {
	for i := range s.Upgrades {
		if s.Upgrades[i].ID == id {
			return &s.Upgrades[i]
		}
	}
	return nil
}
