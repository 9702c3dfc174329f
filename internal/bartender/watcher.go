package bartender

import (
	"context"
	"errors"
	"time"

	"smart_bartender/internal/hardware"
)

// Run polls every float switch at tick until ctx is done or the coordinator
// shuts down. Reservoirs reading low get a refill when autoRefill is set.
func (c *Coordinator) Run(ctx context.Context, tick time.Duration, autoRefill bool) {
	t := time.NewTicker(tick)
	defer t.Stop()

	c.log.Infow("level_watcher_started", "interval", tick.String(), "auto_refill", autoRefill)
	defer c.log.Infow("level_watcher_stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closing:
			return
		case <-t.C:
			c.CheckLevels(autoRefill)
		}
	}
}

// CheckLevels reads every float switch once and returns the ids reading low.
func (c *Coordinator) CheckLevels(autoRefill bool) []int {
	var low []int
	for _, id := range c.ids {
		r := c.reservoirs[id]
		full, err := c.act.ReadInput(hardware.Float(id))
		if err != nil {
			c.log.Errorw("float_read_failed", "reservoir", id, "err", err)
			continue
		}
		r.setLow(!full)
		if full {
			continue
		}
		low = append(low, id)
		if !autoRefill || r.isRefilling() {
			continue
		}
		c.log.Infow("low_level_detected", "reservoir", id)
		if _, err := c.StartRefill(id); err != nil && !errors.Is(err, ErrAlreadyRefilling) && !errors.Is(err, ErrClosed) {
			c.log.Errorw("auto_refill_failed", "reservoir", id, "err", err)
		}
	}
	return low
}
