// Package bartender sequences pumps and valves to pour recipes and keeps the
// wall reservoirs topped up.
//
// A Coordinator owns all shared state: the pour slot, the per-reservoir
// trackers and the line ownership table. At most one pour runs at a time,
// fanning out one task per ingredient; each reservoir runs at most one refill.
// Locks are held only around state updates and single output writes.
package bartender

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"smart_bartender/internal/config"
	"smart_bartender/internal/hardware"
	"smart_bartender/internal/logger"
	"smart_bartender/internal/models"
	"smart_bartender/internal/recipes"

	"github.com/google/uuid"
)

const persistTimeout = 2 * time.Second

// EventSink receives journal events. Emit must not block for long.
type EventSink interface {
	Emit(ev models.BarEvent)
}

// Metrics receives operational measurements.
type Metrics interface {
	ObservePour(recipe string, outcome models.Outcome, d time.Duration)
	ObserveRefill(reservoir int, outcome models.Outcome, d time.Duration)
	SetVolume(reservoir int, ml float64)
	SetPouring(active bool)
}

// LevelStore persists volume estimates across restarts.
type LevelStore interface {
	LoadLevels(ctx context.Context) (map[int]float64, error)
	SaveLevel(ctx context.Context, reservoir int, ml float64) error
}

// Deps are the collaborators of a Coordinator. Only Actuator is required.
type Deps struct {
	Actuator hardware.Actuator
	Log      *logger.Logger
	Events   EventSink
	Metrics  Metrics
	Levels   LevelStore
}

type pourSlot struct {
	active     bool
	jobID      string
	drink      string
	reservoirs map[int]bool
}

// Coordinator is the process-wide state store and entry point for pours,
// refills and manual diagnostics.
type Coordinator struct {
	cfg     config.BarConfig
	act     hardware.Actuator
	log     *logger.Logger
	events  EventSink
	metrics Metrics
	levels  LevelStore

	ids        []int
	reservoirs map[int]*reservoir
	recipes    map[string]models.Recipe
	lines      *lineTable

	pourMu sync.Mutex
	pour   pourSlot

	manualMu sync.Mutex
	manual   map[hardware.Line]*time.Timer

	lifeMu  sync.RWMutex
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewCoordinator builds a coordinator for the configured channels. Recipes
// that cannot be poured with those channels are dropped and logged.
func NewCoordinator(cfg config.BarConfig, book map[string]models.Recipe, deps Deps) (*Coordinator, error) {
	if deps.Actuator == nil {
		return nil, errors.New("bartender: actuator is required")
	}
	if len(cfg.Channels) == 0 {
		return nil, errors.New("bartender: no channels configured")
	}
	c := &Coordinator{
		cfg:        cfg,
		act:        deps.Actuator,
		log:        deps.Log,
		events:     deps.Events,
		metrics:    deps.Metrics,
		levels:     deps.Levels,
		reservoirs: make(map[int]*reservoir, len(cfg.Channels)),
		manual:     make(map[hardware.Line]*time.Timer),
		closing:    make(chan struct{}),
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.events == nil {
		c.events = nopSink{}
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	for _, ch := range cfg.Channels {
		if _, dup := c.reservoirs[ch.ID]; dup {
			return nil, fmt.Errorf("bartender: duplicate channel %d", ch.ID)
		}
		c.reservoirs[ch.ID] = newReservoir(ch)
		c.ids = append(c.ids, ch.ID)
	}
	c.lines = newLineTable(c.act, c.ids)

	valid, rejected := recipes.Validate(book, func(id int) bool { return c.reservoirs[id] != nil })
	for _, err := range rejected {
		c.log.Warnw("recipe_rejected", "err", err)
	}
	c.recipes = valid

	for _, id := range c.ids {
		c.metrics.SetVolume(id, c.reservoirs[id].volumeML())
	}
	return c, nil
}

// RestoreLevels loads persisted volume estimates, clamped to capacity.
func (c *Coordinator) RestoreLevels(ctx context.Context) error {
	if c.levels == nil {
		return nil
	}
	saved, err := c.levels.LoadLevels(ctx)
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}
	for id, ml := range saved {
		r, ok := c.reservoirs[id]
		if !ok {
			c.log.Warnw("level_for_unknown_reservoir", "reservoir", id, "volume_ml", ml)
			continue
		}
		v := r.setVolume(ml)
		c.metrics.SetVolume(id, v)
		c.log.Infow("level_restored", "reservoir", id, "volume_ml", v)
	}
	return nil
}

// Status returns a point-in-time projection of the bar.
func (c *Coordinator) Status() models.SystemStatus {
	c.pourMu.Lock()
	slot := c.pour
	c.pourMu.Unlock()

	st := models.SystemStatus{
		Pouring:         slot.active,
		ReservoirLevels: make(map[string]float64, len(c.ids)),
		Refilling:       make(map[string]bool, len(c.ids)),
		Reservoirs:      make([]models.ReservoirStatus, 0, len(c.ids)),
	}
	if slot.active {
		drink := slot.drink
		st.CurrentDrink = &drink
	}
	for _, id := range c.ids {
		snap := c.reservoirs[id].snapshot()
		key := strconv.Itoa(id)
		st.ReservoirLevels[key] = snap.VolumeML
		st.Refilling[key] = snap.Refilling
		st.Reservoirs = append(st.Reservoirs, snap)
	}
	return st
}

// ListRecipes returns the pourable recipe names, sorted.
func (c *Coordinator) ListRecipes() []string {
	return recipes.Names(c.recipes)
}

// Recipes returns a copy of the pourable recipe book.
func (c *Coordinator) Recipes() map[string]models.Recipe {
	out := make(map[string]models.Recipe, len(c.recipes))
	for name, r := range c.recipes {
		ing := make(map[int]float64, len(r.Ingredients))
		for id, ml := range r.Ingredients {
			ing[id] = ml
		}
		out[name] = models.Recipe{Name: r.Name, Ingredients: ing}
	}
	return out
}

// Reservoir returns the state of one reservoir.
func (c *Coordinator) Reservoir(id int) (models.ReservoirStatus, error) {
	r, ok := c.reservoirs[id]
	if !ok {
		return models.ReservoirStatus{}, fmt.Errorf("%w: %d", ErrUnknownReservoir, id)
	}
	return r.snapshot(), nil
}

// enter registers a job with the lifecycle. The returned func must be
// called when the job ends.
func (c *Coordinator) enter() (func(), error) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.wg.Add(1)
	return c.wg.Done, nil
}

// Shutdown refuses new work, forces every output off, and waits for running
// jobs until ctx is done. The actuator is closed last.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return nil
	}
	c.closed = true
	c.lifeMu.Unlock()

	c.log.Infow("bartender_shutdown_started")
	c.stopManualTimers()

	if err := c.lines.shutdown(); err != nil {
		// keep going, the actuator is still closed below
		c.log.Errorw("shutdown_outputs_off_failed", "err", err)
	}
	close(c.closing)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("wait for jobs: %w", ctx.Err())
		c.log.Warnw("shutdown_jobs_still_running", "err", ctx.Err())
	}

	c.persistAll()

	if err := c.act.Close(); err != nil {
		c.log.Errorw("actuator_close_failed", "err", err)
		return errors.Join(waitErr, err)
	}
	c.log.Infow("bartender_shutdown_complete")
	return waitErr
}

func (c *Coordinator) emit(typ, desc string, meta map[string]any) {
	c.events.Emit(models.BarEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
}

func (c *Coordinator) persist(id int, ml float64) {
	c.metrics.SetVolume(id, ml)
	if c.levels == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.levels.SaveLevel(ctx, id, ml); err != nil {
		c.log.Warnw("level_save_failed", "reservoir", id, "err", err)
	}
}

func (c *Coordinator) persistAll() {
	for _, id := range c.ids {
		c.persist(id, c.reservoirs[id].volumeML())
	}
}

type nopSink struct{}

func (nopSink) Emit(models.BarEvent) {}

type nopMetrics struct{}

func (nopMetrics) ObservePour(string, models.Outcome, time.Duration) {}
func (nopMetrics) ObserveRefill(int, models.Outcome, time.Duration) {}
func (nopMetrics) SetVolume(int, float64) {}
func (nopMetrics) SetPouring(bool) {}
