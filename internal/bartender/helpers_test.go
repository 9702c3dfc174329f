package bartender

import (
	"context"
	"sync"
	"testing"
	"time"

	"smart_bartender/internal/config"
	"smart_bartender/internal/hardware"
	"smart_bartender/internal/models"

	"github.com/stretchr/testify/require"
)

// Rates are high so recipes pour in tens of milliseconds.
func testConfig() config.BarConfig {
	channels := make([]config.Channel, 0, 4)
	for id, name := range []string{"Vodka", "Rum", "Orange Juice", "Cranberry Juice"} {
		channels = append(channels, config.Channel{
			ID:          id + 1,
			Ingredient:  name,
			CapacityML:  400,
			MLPerSecond: 1000,
		})
	}
	return config.BarConfig{
		Channels:          channels,
		RefillThresholdML: 100,
		MaxPour:           2 * time.Second,
		MaxPump:           5 * time.Second,
		RefillTimeout:     2 * time.Second,
		PollInterval:      5 * time.Millisecond,
		PourWithPump:      true,
	}
}

func testBook() map[string]models.Recipe {
	return map[string]models.Recipe{
		"Screwdriver": {Name: "Screwdriver", Ingredients: map[int]float64{1: 50, 3: 100}},
		"Rum Punch":   {Name: "Rum Punch", Ingredients: map[int]float64{2: 50, 3: 75, 4: 75}},
		"Slow Vodka":  {Name: "Slow Vodka", Ingredients: map[int]float64{1: 250}},
		"Five Alive":  {Name: "Five Alive", Ingredients: map[int]float64{1: 10, 5: 10}},
	}
}

type memLevels struct {
	mu    sync.Mutex
	saved map[int]float64
}

func (m *memLevels) LoadLevels(context.Context) (map[int]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]float64, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func (m *memLevels) SaveLevel(_ context.Context, id int, ml float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[int]float64)
	}
	m.saved[id] = ml
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.BarEvent
}

func (s *recordingSink) Emit(ev models.BarEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingMetrics struct {
	mu      sync.Mutex
	pours   map[models.Outcome]int
	refills map[models.Outcome]int
	volumes map[int]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		pours:   make(map[models.Outcome]int),
		refills: make(map[models.Outcome]int),
		volumes: make(map[int]float64),
	}
}

func (m *recordingMetrics) ObservePour(_ string, o models.Outcome, _ time.Duration) {
	m.mu.Lock()
	m.pours[o]++
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveRefill(_ int, o models.Outcome, _ time.Duration) {
	m.mu.Lock()
	m.refills[o]++
	m.mu.Unlock()
}

func (m *recordingMetrics) SetVolume(id int, ml float64) {
	m.mu.Lock()
	m.volumes[id] = ml
	m.mu.Unlock()
}

func (m *recordingMetrics) SetPouring(bool) {}

type fixture struct {
	c       *Coordinator
	sim     *hardware.Simulator
	levels  *memLevels
	events  *recordingSink
	metrics *recordingMetrics
}

func newFixture(t *testing.T, cfg config.BarConfig, start map[int]float64) *fixture {
	t.Helper()
	f := &fixture{
		sim:     hardware.NewSimulator(cfg.ChannelIDs(), 0),
		levels:  &memLevels{saved: start},
		events:  &recordingSink{},
		metrics: newRecordingMetrics(),
	}
	c, err := NewCoordinator(cfg, testBook(), Deps{
		Actuator: f.sim,
		Events:   f.events,
		Metrics:  f.metrics,
		Levels:   f.levels,
	})
	require.NoError(t, err)
	require.NoError(t, c.RestoreLevels(context.Background()))
	f.c = c

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return f
}

func (f *fixture) volume(t *testing.T, id int) float64 {
	t.Helper()
	r, err := f.c.Reservoir(id)
	require.NoError(t, err)
	return r.VolumeML
}

func (f *fixture) refilling(t *testing.T, id int) bool {
	t.Helper()
	r, err := f.c.Reservoir(id)
	require.NoError(t, err)
	return r.Refilling
}
