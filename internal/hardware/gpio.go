package hardware

import (
	"errors"
	"fmt"
	"sync"

	"smart_bartender/internal/logger"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "smart-bartender"

// Pins is the BCM wiring of one reservoir.
type Pins struct {
	Pump  int
	Valve int
	Float int
}

// GPIO drives relay boards and reads float switches through the Linux GPIO
// character device. Relays are active-low, so the line request carries
// AsActiveLow and on=true maps to a logical 1. Float switches close to ground
// when the reservoir is below the switch and use the internal pull-up.
type GPIO struct {
	mu     sync.Mutex
	chip   string
	lines  map[Line]*gpiocdev.Line
	pins   map[Line]int
	log    *logger.Logger
	closed bool
}

// NewGPIO requests every configured line on chip. Outputs start off.
func NewGPIO(chip string, wiring map[int]Pins, log *logger.Logger) (*GPIO, error) {
	g := &GPIO{
		chip:  chip,
		lines: make(map[Line]*gpiocdev.Line, len(wiring)*3),
		pins:  make(map[Line]int, len(wiring)*3),
		log:   log,
	}
	for id, p := range wiring {
		outputs := []struct {
			line Line
			pin  int
		}{{Pump(id), p.Pump}, {Valve(id), p.Valve}}
		for _, o := range outputs {
			l, err := gpiocdev.RequestLine(chip, o.pin,
				gpiocdev.AsOutput(0), gpiocdev.AsActiveLow, gpiocdev.WithConsumer(consumer))
			if err != nil {
				_ = g.Close()
				return nil, fmt.Errorf("request %s (pin %d): %w", o.line, o.pin, err)
			}
			g.lines[o.line] = l
			g.pins[o.line] = o.pin
		}
		l, err := gpiocdev.RequestLine(chip, p.Float,
			gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("request %s (pin %d): %w", Float(id), p.Float, err)
		}
		g.lines[Float(id)] = l
		g.pins[Float(id)] = p.Float
	}
	if log != nil {
		log.Infow("gpio_ready", "chip", chip, "lines", len(g.lines))
	}
	return g, nil
}

func (g *GPIO) line(l Line) (*gpiocdev.Line, error) {
	if g.closed {
		return nil, ErrClosed
	}
	gl, ok := g.lines[l]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLine, l)
	}
	return gl, nil
}

func (g *GPIO) SetOutput(l Line, on bool) error {
	if l.Kind == KindFloat {
		return fmt.Errorf("%w: set %s", ErrWrongKind, l)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	gl, err := g.line(l)
	if err != nil {
		return err
	}
	v := 0
	if on {
		v = 1
	}
	if err := gl.SetValue(v); err != nil {
		return fmt.Errorf("set %s (pin %d): %w", l, g.pins[l], err)
	}
	if g.log != nil {
		g.log.Debugw("gpio_output", "line", l.String(), "pin", g.pins[l], "on", on)
	}
	return nil
}

func (g *GPIO) ReadInput(l Line) (bool, error) {
	if l.Kind != KindFloat {
		return false, fmt.Errorf("%w: read %s", ErrWrongKind, l)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	gl, err := g.line(l)
	if err != nil {
		return false, err
	}
	v, err := gl.Value()
	if err != nil {
		return false, fmt.Errorf("read %s (pin %d): %w", l, g.pins[l], err)
	}
	return v == 1, nil
}

// Close drives every output off and releases all lines.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	var errs []error
	for l, gl := range g.lines {
		if l.Kind != KindFloat {
			if err := gl.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("off %s: %w", l, err))
			}
		}
		if err := gl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l, err))
		}
	}
	return errors.Join(errs...)
}
