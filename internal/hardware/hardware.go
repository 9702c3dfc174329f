package hardware

import (
	"fmt"
	"sort"
	"time"

	"smart_bartender/internal/logger"
)

const (
	BackendSimulation = "simulation"
	BackendGPIO       = "gpio"
)

// Open builds the actuator selected by backend.
func Open(backend, chip string, wiring map[int]Pins, fillTime time.Duration, log *logger.Logger) (Actuator, error) {
	switch backend {
	case BackendSimulation, "":
		ids := make([]int, 0, len(wiring))
		for id := range wiring {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		if log != nil {
			log.Infow("simulation_backend", "reservoirs", ids, "fill_time", fillTime.String())
		}
		return NewSimulator(ids, fillTime), nil
	case BackendGPIO:
		return NewGPIO(chip, wiring, log)
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", backend)
	}
}
