package bartender

import (
	"sync"

	"smart_bartender/internal/config"
	"smart_bartender/internal/models"
)

// reservoir is the tracked state of one wall reservoir. Every field below mu
// is guarded by it; the lock is never held across hardware access.
type reservoir struct {
	id         int
	ingredient string
	capacity   float64
	rate       float64 // ml per second through the valve

	mu        sync.Mutex
	volume    float64
	low       bool
	refilling bool
}

func newReservoir(ch config.Channel) *reservoir {
	return &reservoir{
		id:         ch.ID,
		ingredient: ch.Ingredient,
		capacity:   ch.CapacityML,
		rate:       ch.MLPerSecond,
		volume:     ch.CapacityML,
	}
}

func (r *reservoir) tryBeginRefill() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refilling {
		return false
	}
	r.refilling = true
	return true
}

// endRefill clears the refilling flag. A full reservoir is reset to capacity.
func (r *reservoir) endRefill(full bool) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refilling = false
	if full {
		r.volume = r.capacity
		r.low = false
	}
	return r.volume
}

// consume subtracts ml and returns the new estimate, floored at zero.
func (r *reservoir) consume(ml float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume -= ml
	if r.volume < 0 {
		r.volume = 0
	}
	return r.volume
}

func (r *reservoir) setVolume(ml float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = clamp(ml, 0, r.capacity)
	return r.volume
}

func (r *reservoir) setLow(low bool) {
	r.mu.Lock()
	r.low = low
	r.mu.Unlock()
}

func (r *reservoir) volumeML() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

func (r *reservoir) isRefilling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refilling
}

func (r *reservoir) snapshot() models.ReservoirStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.ReservoirStatus{
		ID:         r.id,
		Ingredient: r.ingredient,
		CapacityML: r.capacity,
		VolumeML:   r.volume,
		Low:        r.low,
		Refilling:  r.refilling,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
