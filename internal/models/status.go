package models

// ReservoirStatus is a point-in-time view of one reservoir.
type ReservoirStatus struct {
	ID         int     `json:"id"`
	Ingredient string  `json:"ingredient"`
	CapacityML float64 `json:"capacity_ml"`
	VolumeML   float64 `json:"volume_ml"`
	Low        bool    `json:"low"` // last float switch reading was "not full"
	Refilling  bool    `json:"refilling"`
}

// SystemStatus is the read-only projection served to the UI. Map keys are
// reservoir ids rendered as strings so the JSON stays stable.
type SystemStatus struct {
	Pouring         bool               `json:"pouring"`
	CurrentDrink    *string            `json:"current_drink"`
	ReservoirLevels map[string]float64 `json:"reservoir_levels"`
	Refilling       map[string]bool    `json:"refilling"`
	Reservoirs      []ReservoirStatus  `json:"reservoirs"`
}
