package hardware

import (
	"errors"
	"fmt"
)

// Kind identifies what a GPIO line drives or senses.
type Kind int

const (
	KindPump Kind = iota
	KindValve
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindPump:
		return "pump"
	case KindValve:
		return "valve"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Line addresses one logical line of a reservoir.
type Line struct {
	Kind      Kind
	Reservoir int
}

func Pump(reservoir int) Line { return Line{Kind: KindPump, Reservoir: reservoir} }
func Valve(reservoir int) Line { return Line{Kind: KindValve, Reservoir: reservoir} }
func Float(reservoir int) Line { return Line{Kind: KindFloat, Reservoir: reservoir} }

func (l Line) String() string {
	return fmt.Sprintf("%s-%d", l.Kind, l.Reservoir)
}

// Actuator is the only way the rest of the program touches hardware.
// SetOutput with on=true energizes a pump or opens a valve. ReadInput returns
// true when the float switch reports the reservoir as full.
type Actuator interface {
	SetOutput(line Line, on bool) error
	ReadInput(line Line) (bool, error)
	Close() error
}

var (
	ErrUnknownLine = errors.New("unknown line")
	ErrWrongKind   = errors.New("line kind not valid for operation")
	ErrClosed      = errors.New("actuator closed")
)
