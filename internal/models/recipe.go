package models

import "sort"

// Recipe maps reservoir ids to the millilitres dispensed from each.
type Recipe struct {
	Name        string          `json:"name"`
	Ingredients map[int]float64 `json:"ingredients"`
}

// TotalML is the sum of all ingredient volumes.
func (r Recipe) TotalML() float64 {
	var total float64
	for _, ml := range r.Ingredients {
		total += ml
	}
	return total
}

// ReservoirIDs returns the ids used by the recipe in ascending order.
func (r Recipe) ReservoirIDs() []int {
	ids := make([]int, 0, len(r.Ingredients))
	for id := range r.Ingredients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
