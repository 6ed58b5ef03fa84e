/*
Package game
File: economy.go
Description:
    Handles the economic simulation.
    This includes:
    1. Resolving building purchases (single and Buy Max).
    2. Buying upgrades and interpreting their effect descriptors.
    3. The fixed-step production tick and manual synthesis.

    "Can't afford" is an ordinary outcome here, reported through the return
    value. Unknown ids are logged and ignored.
*/

package game

import "math"

// BuyOne purchases a single unit of a building.
// Returns false, without touching state, if the id is unknown or the price is not covered.
func (e *Engine) BuyOne(buildingID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, b := e.lookupLocked(buildingID)
	if t == nil {
		e.log.Printf("ENGINE: buy of unknown building %q ignored", buildingID)
		return false
	}

	cost := CostOf(t.BaseCost, t.CostScale, b.Amount)
	if !CanAfford(cost, e.state.Resources) {
		return false
	}
	e.state.Resources = Debit(e.state.Resources, cost)
	b.Amount++
	return true
}

// BuyMax purchases as many units as the current ledger covers, pricing each
// unit at its own rising cost, and applies them as one debit.
// Returns the number bought (0 = nothing affordable, state untouched).
func (e *Engine) BuyMax(buildingID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, b := e.lookupLocked(buildingID)
	if t == nil {
		e.log.Printf("ENGINE: buy max of unknown building %q ignored", buildingID)
		return 0
	}

	have := e.state.Resources
	var total Resources
	k := 0
	// Greedy: cost never decreases with amount owned, so the first miss ends the search.
	for k < e.buyMaxLimit {
		next := total.Add(CostOf(t.BaseCost, t.CostScale, b.Amount+k))
		if !CanAfford(next, have) {
			break
		}
		total = next
		k++
	}
	if k == e.buyMaxLimit {
		e.log.Printf("ENGINE: buy max of %q stopped at limit %d", buildingID, k)
	}
	if k == 0 {
		return 0
	}

	e.state.Resources = Debit(have, total)
	b.Amount += k
	return k
}

// BuyUpgrade pays for an upgrade and applies its effects exactly once.
// Returns false if the upgrade is unknown, already applied, or unaffordable.
func (e *Engine) BuyUpgrade(upgradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.catalog.GetUpgrade(upgradeID)
	u := e.state.Upgrade(upgradeID)
	if t == nil || u == nil {
		e.log.Printf("ENGINE: unknown upgrade %q ignored", upgradeID)
		return false
	}
	if u.Applied {
		return false
	}
	if !CanAfford(t.Cost, e.state.Resources) {
		return false
	}

	// Debit, flag and effects happen under the same lock: the flag is the only
	// thing standing between an effect and a second application.
	e.state.Resources = Debit(e.state.Resources, t.Cost)
	u.Applied = true
	for _, eff := range t.Effects {
		if !ApplyEffect(&e.state, eff) {
			e.log.Printf("ENGINE: upgrade %q effect targets missing building %q", upgradeID, eff.Target)
		}
	}
	return true
}

// ApplyEffect interprets one effect descriptor against the state.
// It is not idempotent; calling it twice applies the effect twice.
// Returns false when the target building is not part of the state.
func ApplyEffect(s *GameState, eff Effect) bool {
	switch eff.Field {
	case FieldClickPower:
		if eff.Op == OpAdd {
			s.ClickPower += eff.Value
		} else {
			s.ClickPower *= eff.Value
		}
		return true
	case FieldOutputMultiplier, FieldUpkeepModifier:
		b := s.Building(eff.Target)
		if b == nil {
			return false
		}
		field := &b.OutputMultiplier
		if eff.Field == FieldUpkeepModifier {
			field = &b.UpkeepModifier
		}
		if eff.Op == OpAdd {
			*field += eff.Value
		} else {
			*field *= eff.Value
		}
		return true
	}
	return false
}

// Tick integrates one fixed step of production and returns the raw delta applied.
//
// Ledger amounts clamp at zero. The atoms total follows the raw delta; the
// energy and quarks totals only ever grow.
func (e *Engine) Tick() Resources {
	e.mu.Lock()
	defer e.mu.Unlock()

	delta := ProductionRates(e.catalog, e.state.Buildings).Scale(e.dt)

	res := &e.state.Resources
	res.Atoms = math.Max(0, res.Atoms+delta.Atoms)
	res.Energy = math.Max(0, res.Energy+delta.Energy)
	res.Quarks = math.Max(0, res.Quarks+delta.Quarks)

	tot := &e.state.Totals
	tot.Atoms += delta.Atoms
	tot.Energy += math.Max(0, delta.Energy)
	tot.Quarks += math.Max(0, delta.Quarks)

	e.ticks++
	return delta
}

// SynthManual is one manual click: ClickPower atoms, immediately.
// Returns the amount added.
func (e *Engine) SynthManual() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.state.ClickPower
	e.state.Resources.Atoms += p
	e.state.Totals.Atoms += p
	return p
}
