/*
Package game
File: persist.go
Description:
    The persisted view of a GameState and the merge rules used on load.
    Only mutable fields are saved; templates are re-derived from the Catalog.
*/

package game

import (
	"errors"
	"fmt"
)

// ErrInvalidSave is returned by Merge when loaded values break a state invariant.
var ErrInvalidSave = errors.New("invalid save data")

// MergeMode selects how loaded building/upgrade lists combine with the live ones.
type MergeMode string

const (
	// MergeReplace is a shallow top-level merge: a loaded list replaces the live
	// list wholesale. Catalog entries missing from an older save are lost.
	MergeReplace MergeMode = "replace"

	// MergeReconcile keeps every catalog entry and overlays loaded fields by id.
	MergeReconcile MergeMode = "reconcile"
)

// ParseMergeMode maps a config string to a MergeMode. Empty means MergeReplace.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case "", MergeReplace:
		return MergeReplace, nil
	case MergeReconcile:
		return MergeReconcile, nil
	}
	return "", fmt.Errorf("unknown merge mode %q", s)
}

// SavedBuilding is the persisted part of a Building.
// Missing modifiers decode as nil and load as 1.
type SavedBuilding struct {
	ID               string   `json:"id"`
	Amount           int      `json:"amount"`
	OutputMultiplier *float64 `json:"outputMultiplier,omitempty"`
	UpkeepModifier   *float64 `json:"upkeepModifier,omitempty"`
}

// SaveData is the persisted layout. A nil field means "absent from the save"
// and keeps the live value on merge.
type SaveData struct {
	Resources  *Resources      `json:"resources,omitempty"`
	Totals     *Resources      `json:"totals,omitempty"`
	ClickPower *float64        `json:"clickPower,omitempty"`
	Buildings  []SavedBuilding `json:"buildings"`
	Upgrades   []Upgrade       `json:"upgrades"`
	Settings   *Settings       `json:"settings,omitempty"`
}

// Export captures every mutable field of the live game.
func (e *Engine) Export() SaveData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return exportState(e.state.Clone())
}

func exportState(s GameState) SaveData {
	cp := s.ClickPower
	data := SaveData{
		Resources:  &s.Resources,
		Totals:     &s.Totals,
		ClickPower: &cp,
		Buildings:  make([]SavedBuilding, 0, len(s.Buildings)),
		Upgrades:   s.Upgrades,
		Settings:   &s.Settings,
	}
	for _, b := range s.Buildings {
		om, um := b.OutputMultiplier, b.UpkeepModifier
		data.Buildings = append(data.Buildings, SavedBuilding{
			ID:               b.ID,
			Amount:           b.Amount,
			OutputMultiplier: &om,
			UpkeepModifier:   &um,
		})
	}
	return data
}

// Merge overlays loaded data onto the live game. On error nothing changes.
func (e *Engine) Merge(data SaveData, mode MergeMode) error {
	if err := data.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	if data.Resources != nil {
		next.Resources = *data.Resources
	}
	if data.Totals != nil {
		next.Totals = *data.Totals
	}
	if data.ClickPower != nil {
		next.ClickPower = *data.ClickPower
	}
	if data.Settings != nil {
		next.Settings = *data.Settings
	}
	if data.Buildings != nil {
		next.Buildings = e.mergeBuildings(next.Buildings, data.Buildings, mode)
	}
	if data.Upgrades != nil {
		next.Upgrades = e.mergeUpgrades(next.Upgrades, data.Upgrades, mode)
	}
	e.state = next
	return nil
}

func (d SaveData) validate() error {
	if r := d.Resources; r != nil && (r.Atoms < 0 || r.Energy < 0 || r.Quarks < 0) {
		return fmt.Errorf("%w: negative resource amount", ErrInvalidSave)
	}
	// The atoms total follows the raw tick delta and may legitimately dip below zero.
	if t := d.Totals; t != nil && (t.Energy < 0 || t.Quarks < 0) {
		return fmt.Errorf("%w: negative lifetime total", ErrInvalidSave)
	}
	if d.ClickPower != nil && *d.ClickPower <= 0 {
		return fmt.Errorf("%w: click power must be positive", ErrInvalidSave)
	}
	for _, b := range d.Buildings {
		if b.Amount < 0 {
			return fmt.Errorf("%w: building %q has negative amount", ErrInvalidSave, b.ID)
		}
		if (b.OutputMultiplier != nil && *b.OutputMultiplier < 0) || (b.UpkeepModifier != nil && *b.UpkeepModifier < 0) {
			return fmt.Errorf("%w: building %q has negative modifier", ErrInvalidSave, b.ID)
		}
	}
	return nil
}

func (sb SavedBuilding) overlay(b Building) Building {
	b.Amount = sb.Amount
	b.OutputMultiplier, b.UpkeepModifier = 1, 1
	if sb.OutputMultiplier != nil {
		b.OutputMultiplier = *sb.OutputMultiplier
	}
	if sb.UpkeepModifier != nil {
		b.UpkeepModifier = *sb.UpkeepModifier
	}
	return b
}

// mergeBuildings applies the loaded list. Entries without a catalog template are
// dropped in both modes: there is nothing to price or produce them with.
// Note: Caller must hold e.mu.
func (e *Engine) mergeBuildings(live []Building, loaded []SavedBuilding, mode MergeMode) []Building {
	byID := make(map[string]SavedBuilding, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, sb := range loaded {
		if e.catalog.GetBuilding(sb.ID) == nil {
			e.log.Printf("SAVE: dropping unknown building %q", sb.ID)
			continue
		}
		if _, dup := byID[sb.ID]; dup {
			e.log.Printf("SAVE: dropping duplicate building %q", sb.ID)
			continue
		}
		byID[sb.ID] = sb
		order = append(order, sb.ID)
	}

	if mode != MergeReconcile {
		out := make([]Building, 0, len(order))
		for _, id := range order {
			out = append(out, byID[id].overlay(newBuilding(id)))
		}
		return out
	}

	out := make([]Building, 0, len(e.catalog.Buildings))
	for _, t := range e.catalog.Buildings {
		b := newBuilding(t.ID)
		for _, l := range live {
			if l.ID == t.ID {
				b = l
				break
			}
		}
		if sb, ok := byID[t.ID]; ok {
			b = sb.overlay(b)
		}
		out = append(out, b)
	}
	return out
}

// Note: Caller must hold e.mu.
func (e *Engine) mergeUpgrades(live, loaded []Upgrade, mode MergeMode) []Upgrade {
	byID := make(map[string]bool, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, u := range loaded {
		if e.catalog.GetUpgrade(u.ID) == nil {
			e.log.Printf("SAVE: dropping unknown upgrade %q", u.ID)
			continue
		}
		if _, dup := byID[u.ID]; dup {
			continue
		}
		byID[u.ID] = u.Applied
		order = append(order, u.ID)
	}

	if mode != MergeReconcile {
		out := make([]Upgrade, 0, len(order))
		for _, id := range order {
			out = append(out, Upgrade{ID: id, Applied: byID[id]})
		}
		return out
	}

	out := make([]Upgrade, 0, len(e.catalog.Upgrades))
	for _, t := range e.catalog.Upgrades {
		u := Upgrade{ID: t.ID}
		for _, l := range live {
			if l.ID == t.ID {
				u = l
				break
			}
		}
		if applied, ok := byID[t.ID]; ok {
			u.Applied = applied
		}
		out = append(out, u)
	}
	return out
}
