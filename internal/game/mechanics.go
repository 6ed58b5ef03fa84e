/*
Package game
File: mechanics.go
Description:
    Contains the pure math of the economy: catalog lookups, the geometric
    cost curve, affordability, and production rates.
    Nothing here touches the Engine lock; callers pass the values in.
*/

package game

import "math"

// GetBuilding is a helper to retrieve a BuildingTemplate pointer by its ID.
// Returns nil if not found.
func (c *Catalog) GetBuilding(id string) *BuildingTemplate {
	for i := range c.Buildings {
		if c.Buildings[i].ID == id {
			return &c.Buildings[i]
		}
	}
	return nil
}

// GetUpgrade is a helper to retrieve an UpgradeTemplate pointer by its ID.
func (c *Catalog) GetUpgrade(id string) *UpgradeTemplate {
	for i := range c.Upgrades {
		if c.Upgrades[i].ID == id {
			return &c.Upgrades[i]
		}
	}
	return nil
}

// CostOf prices the next unit when 'owned' are already built.
// Formula: round(base * scale^owned), each component rounded on its own.
func CostOf(base Resources, scale float64, owned int) Resources {
	f := math.Pow(scale, float64(owned))
	return Resources{
		Atoms:  math.Round(base.Atoms * f),
		Energy: math.Round(base.Energy * f),
		Quarks: math.Round(base.Quarks * f),
	}
}

// BulkCost sums CostOf for units start .. start+k-1.
// The rounding of every step is kept, so this is not the geometric series closed form.
func BulkCost(base Resources, scale float64, start, k int) Resources {
	var total Resources
	for i := 0; i < k; i++ {
		total = total.Add(CostOf(base, scale, start+i))
	}
	return total
}

// CanAfford reports whether every component of cost is covered by have.
func CanAfford(cost, have Resources) bool {
	for _, r := range AllResources {
		if cost.Get(r) > have.Get(r) {
			return false
		}
	}
	return true
}

// Debit subtracts cost from have, clamping each component at zero.
func Debit(have, cost Resources) Resources {
	return Resources{
		Atoms:  math.Max(0, have.Atoms-cost.Atoms),
		Energy: math.Max(0, have.Energy-cost.Energy),
		Quarks: math.Max(0, have.Quarks-cost.Quarks),
	}
}

// BuildingRates is the per-second output of one building instance.
// Consumption (negative) components are scaled by the upkeep modifier on top of
// the output multiplier; production components are not.
func BuildingRates(t *BuildingTemplate, b Building) Resources {
	var out Resources
	if t == nil || b.Amount <= 0 {
		return out
	}
	for _, r := range AllResources {
		rate := t.BaseOutput.Get(r) * float64(b.Amount) * b.OutputMultiplier
		if rate < 0 {
			rate *= b.UpkeepModifier
		}
		out.Set(r, rate)
	}
	return out
}

// ProductionRates sums BuildingRates over every instance that has a template.
func ProductionRates(c *Catalog, buildings []Building) Resources {
	var net Resources
	for _, b := range buildings {
		net = net.Add(BuildingRates(c.GetBuilding(b.ID), b))
	}
	return net
}
