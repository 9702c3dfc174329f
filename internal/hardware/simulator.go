package hardware

import (
	"fmt"
	"sync"
	"time"
)

// Call is one recorded SetOutput invocation.
type Call struct {
	At   time.Time
	Line Line
	On   bool
}

type simReservoir struct {
	full      bool
	pumpSince time.Time // zero when the pump is off
	pumpTotal time.Duration
	valveOpen bool
}

// Simulator is an in-memory Actuator. It records every output change and
// models the float switch: opening a valve drains the reservoir below the
// switch, and running the pump for fillTime brings it back to full. With a
// zero fillTime the float only changes through SetFull.
type Simulator struct {
	mu         sync.Mutex
	fillTime   time.Duration
	reservoirs map[int]*simReservoir
	outputs    map[Line]bool
	calls      []Call
	outFaults  map[Line]error
	inFaults   map[Line]error
	closed     bool
	now        func() time.Time
}

// NewSimulator returns a simulator for the given reservoir ids, all full.
func NewSimulator(ids []int, fillTime time.Duration) *Simulator {
	s := &Simulator{
		fillTime:   fillTime,
		reservoirs: make(map[int]*simReservoir, len(ids)),
		outputs:    make(map[Line]bool),
		outFaults:  make(map[Line]error),
		inFaults:   make(map[Line]error),
		now:        time.Now,
	}
	for _, id := range ids {
		s.reservoirs[id] = &simReservoir{full: true}
	}
	return s
}

func (s *Simulator) SetOutput(line Line, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	r, ok := s.reservoirs[line.Reservoir]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	if line.Kind == KindFloat {
		return fmt.Errorf("%w: set %s", ErrWrongKind, line)
	}
	if err := s.outFaults[line]; err != nil {
		return err
	}

	now := s.now()
	s.calls = append(s.calls, Call{At: now, Line: line, On: on})
	s.outputs[line] = on

	switch line.Kind {
	case KindPump:
		if on && r.pumpSince.IsZero() {
			r.pumpSince = now
		} else if !on && !r.pumpSince.IsZero() {
			r.pumpTotal += now.Sub(r.pumpSince)
			r.pumpSince = time.Time{}
			s.settle(r, now)
		}
	case KindValve:
		r.valveOpen = on
		if on && s.fillTime > 0 {
			r.full = false
			r.pumpTotal = 0
		}
	}
	return nil
}

func (s *Simulator) ReadInput(line Line) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	r, ok := s.reservoirs[line.Reservoir]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	if line.Kind != KindFloat {
		return false, fmt.Errorf("%w: read %s", ErrWrongKind, line)
	}
	if err := s.inFaults[line]; err != nil {
		return false, err
	}
	s.settle(r, s.now())
	return r.full, nil
}

// settle applies accumulated pump time to the float model.
func (s *Simulator) settle(r *simReservoir, now time.Time) {
	if s.fillTime <= 0 || r.full {
		return
	}
	run := r.pumpTotal
	if !r.pumpSince.IsZero() {
		run += now.Sub(r.pumpSince)
	}
	if run >= s.fillTime && !r.valveOpen {
		r.full = true
		r.pumpTotal = 0
		if !r.pumpSince.IsZero() {
			r.pumpSince = now
		}
	}
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetFull forces the float switch reading of a reservoir.
func (s *Simulator) SetFull(reservoir int, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservoirs[reservoir]; ok {
		r.full = full
		r.pumpTotal = 0
	}
}

// FailOutput makes every SetOutput on line return err. A nil err clears it.
func (s *Simulator) FailOutput(line Line, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.outFaults, line)
		return
	}
	s.outFaults[line] = err
}

// FailInput makes every ReadInput on line return err. A nil err clears it.
func (s *Simulator) FailInput(line Line, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.inFaults, line)
		return
	}
	s.inFaults[line] = err
}

// IsOn reports the last value written to line.
func (s *Simulator) IsOn(line Line) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[line]
}

// AnyOn reports whether any output is currently energized.
func (s *Simulator) AnyOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, on := range s.outputs {
		if on {
			return true
		}
	}
	return false
}

// Calls returns a copy of the recorded output changes.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor returns the recorded output changes of one line.
func (s *Simulator) CallsFor(line Line) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Line == line {
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close has been called.
func (s *Simulator) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
