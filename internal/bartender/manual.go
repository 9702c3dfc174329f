package bartender

import (
	"fmt"
	"time"

	"smart_bartender/internal/hardware"
	"smart_bartender/internal/models"
)

// SetValve opens or closes a valve for diagnostics. An open valve closes on
// its own after the max pour time.
func (c *Coordinator) SetValve(id int, open bool) error {
	return c.setManual(hardware.Valve(id), open, c.cfg.MaxPour)
}

// SetPump switches a pump for diagnostics. A running pump stops on its own
// after the max pump time.
func (c *Coordinator) SetPump(id int, on bool) error {
	return c.setManual(hardware.Pump(id), on, c.cfg.MaxPump)
}

func (c *Coordinator) setManual(l hardware.Line, on bool, limit time.Duration) error {
	if _, ok := c.reservoirs[l.Reservoir]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownReservoir, l.Reservoir)
	}
	done, err := c.enter()
	if err != nil {
		return err
	}
	defer done()

	if !on {
		c.cancelManualTimer(l)
		if err := c.lines.forceOff(l); err != nil {
			c.log.Errorw("manual_off_failed", "line", l.String(), "err", err)
			return err
		}
		c.log.Infow("manual_off", "line", l.String())
		c.emit(models.EventManual, fmt.Sprintf("%s forced off", l), map[string]any{"line": l.String(), "on": false})
		return nil
	}

	// held across the acquire so a pour cannot claim the reservoir in between
	c.pourMu.Lock()
	if c.pour.active && c.pour.reservoirs[l.Reservoir] {
		drink := c.pour.drink
		c.pourMu.Unlock()
		return fmt.Errorf("%w: reservoir %d is pouring %s", ErrBusy, l.Reservoir, drink)
	}
	_, err = c.lines.acquire(l, ownerManual)
	c.pourMu.Unlock()
	if err != nil {
		c.log.Errorw("manual_on_failed", "line", l.String(), "err", err)
		return err
	}

	c.armManualTimer(l, limit)
	c.log.Infow("manual_on", "line", l.String(), "auto_off", limit.String())
	c.emit(models.EventManual, fmt.Sprintf("%s on", l), map[string]any{
		"line": l.String(), "on": true, "auto_off_s": limit.Seconds(),
	})
	return nil
}

func (c *Coordinator) armManualTimer(l hardware.Line, limit time.Duration) {
	c.manualMu.Lock()
	defer c.manualMu.Unlock()
	if t, ok := c.manual[l]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(limit, func() {
		c.manualMu.Lock()
		if c.manual[l] != t {
			c.manualMu.Unlock()
			return
		}
		delete(c.manual, l)
		c.manualMu.Unlock()

		if err := c.lines.release(l, ownerManual); err != nil {
			c.log.Errorw("manual_auto_off_failed", "line", l.String(), "err", err)
			return
		}
		c.log.Warnw("manual_auto_off", "line", l.String(), "after", limit.String())
		c.emit(models.EventManual, fmt.Sprintf("%s auto-off after %s", l, limit), map[string]any{"line": l.String(), "on": false})
	})
	c.manual[l] = t
}

func (c *Coordinator) cancelManualTimer(l hardware.Line) {
	c.manualMu.Lock()
	defer c.manualMu.Unlock()
	if t, ok := c.manual[l]; ok {
		t.Stop()
		delete(c.manual, l)
	}
}

func (c *Coordinator) stopManualTimers() {
	c.manualMu.Lock()
	defer c.manualMu.Unlock()
	for l, t := range c.manual {
		t.Stop()
		delete(c.manual, l)
	}
}
