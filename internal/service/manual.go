package service

import (
	"errors"
	"fmt"
	"strings"
)

// Line kinds accepted by Switch.
const (
	LineValve = "valve"
	LinePump  = "pump"
)

var ErrBadAction = errors.New("unknown manual action")

// ManualDriver is the subset of the coordinator used for diagnostics.
type ManualDriver interface {
	SetValve(id int, open bool) error
	SetPump(id int, on bool) error
}

type ManualService struct {
	driver ManualDriver
}

func NewManualService(d ManualDriver) *ManualService {
	return &ManualService{driver: d}
}

// Switch turns a single line on or off. Valves accept open/close, pumps
// accept on/off; both accept the other pair as well.
func (s *ManualService) Switch(kind string, id int, action string) error {
	on, err := parseAction(action)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case LineValve:
		return s.driver.SetValve(id, on)
	case LinePump:
		return s.driver.SetPump(id, on)
	default:
		return fmt.Errorf("%w: line kind %q", ErrBadAction, kind)
	}
}

func parseAction(action string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "on", "open":
		return true, nil
	case "off", "close":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrBadAction, action)
	}
}
