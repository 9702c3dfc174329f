package bartender

import (
	"errors"
	"fmt"
	"sync"

	"smart_bartender/internal/hardware"
)

const ownerManual = "manual"

type lineState struct {
	owners  map[string]struct{}
	on      bool
	preempt chan struct{}
}

// lineTable reference-counts output lines. A line is energized while at
// least one owner holds it, so a pour and a refill sharing a pump never
// fight over it. forceOff drops every owner at once and closes the preempt
// channel they were handed.
type lineTable struct {
	act hardware.Actuator

	mu     sync.Mutex
	lines  map[hardware.Line]*lineState
	closed bool
}

func newLineTable(act hardware.Actuator, ids []int) *lineTable {
	t := &lineTable{act: act, lines: make(map[hardware.Line]*lineState, len(ids)*2)}
	for _, id := range ids {
		for _, l := range []hardware.Line{hardware.Pump(id), hardware.Valve(id)} {
			t.lines[l] = &lineState{owners: make(map[string]struct{}), preempt: make(chan struct{})}
		}
	}
	return t
}

// acquire adds owner to line, energizing it on the first owner. The returned
// channel is closed if the line is forced off while owner holds it.
func (t *lineTable) acquire(l hardware.Line, owner string) (<-chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	st, ok := t.lines[l]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReservoir, l)
	}
	if len(st.owners) == 0 && !st.on {
		if err := t.act.SetOutput(l, true); err != nil {
			return nil, fmt.Errorf("%w: energize %s: %v", ErrHardwareFault, l, err)
		}
		st.on = true
	}
	st.owners[owner] = struct{}{}
	return st.preempt, nil
}

// release drops owner from line and de-energizes it when no owner is left.
// Releasing a line the owner no longer holds is a no-op.
func (t *lineTable) release(l hardware.Line, owner string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.lines[l]
	if !ok {
		return nil
	}
	if _, held := st.owners[owner]; !held {
		return nil
	}
	delete(st.owners, owner)
	if len(st.owners) > 0 || !st.on {
		return nil
	}
	if err := t.act.SetOutput(l, false); err != nil {
		return fmt.Errorf("%w: de-energize %s: %v", ErrHardwareFault, l, err)
	}
	st.on = false
	return nil
}

// forceOff de-energizes line regardless of owners and preempts them.
func (t *lineTable) forceOff(l hardware.Line) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.lines[l]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReservoir, l)
	}
	return t.forceOffLocked(l, st)
}

func (t *lineTable) forceOffLocked(l hardware.Line, st *lineState) error {
	if len(st.owners) > 0 {
		close(st.preempt)
		st.preempt = make(chan struct{})
		clear(st.owners)
	}
	// written even when believed off: the last release may have failed
	if err := t.act.SetOutput(l, false); err != nil {
		return fmt.Errorf("%w: de-energize %s: %v", ErrHardwareFault, l, err)
	}
	st.on = false
	return nil
}

// shutdown refuses further acquisitions and forces every line off. A failure
// on one line never stops the others from being written.
func (t *lineTable) shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	var errs []error
	for l, st := range t.lines {
		if err := t.forceOffLocked(l, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *lineTable) owned(l hardware.Line, owner string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.lines[l]
	if !ok {
		return false
	}
	_, held := st.owners[owner]
	return held
}

func (t *lineTable) isOn(l hardware.Line) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.lines[l]
	return ok && st.on
}
