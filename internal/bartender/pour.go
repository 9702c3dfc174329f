package bartender

import (
	"errors"
	"fmt"
	"math"
	"time"

	"smart_bartender/internal/hardware"
	"smart_bartender/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type pourPlan struct {
	reservoir int
	ml        float64
	planned   time.Duration
	clamped   bool
}

type pourJob struct {
	id        string
	recipe    models.Recipe
	startedAt time.Time
	plan      []pourPlan
	duration  time.Duration
	done      func()
}

func (j *pourJob) owner() string { return "pour:" + j.id }

// Pour dispenses the named recipe and blocks until every channel has
// stopped. A degraded result is returned together with the joined channel
// errors.
func (c *Coordinator) Pour(name string) (models.PourResult, error) {
	job, err := c.beginPour(name)
	if err != nil {
		return models.PourResult{}, err
	}
	return c.runPour(job)
}

// StartPour accepts the pour synchronously and dispenses in the background.
// The returned result carries the job id and the planned duration.
func (c *Coordinator) StartPour(name string) (models.PourResult, error) {
	job, err := c.beginPour(name)
	if err != nil {
		return models.PourResult{}, err
	}
	go func() {
		_, _ = c.runPour(job)
	}()
	return models.PourResult{
		JobID:     job.id,
		Recipe:    job.recipe.Name,
		StartedAt: job.startedAt,
		Duration:  job.duration,
		Outcome:   models.OutcomeRunning,
	}, nil
}

// beginPour is the atomic check-and-set of the pour slot. Nothing is
// energized when it returns an error.
func (c *Coordinator) beginPour(name string) (*pourJob, error) {
	done, err := c.enter()
	if err != nil {
		return nil, err
	}

	c.pourMu.Lock()
	defer c.pourMu.Unlock()

	if c.pour.active {
		done()
		return nil, fmt.Errorf("%w: pouring %s", ErrBusy, c.pour.drink)
	}
	recipe, ok := c.recipes[name]
	if !ok {
		done()
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipe, name)
	}
	ids := recipe.ReservoirIDs()
	for _, id := range ids {
		if c.lines.owned(hardware.Valve(id), ownerManual) || c.lines.owned(hardware.Pump(id), ownerManual) {
			done()
			return nil, fmt.Errorf("%w: reservoir %d is under manual control", ErrBusy, id)
		}
	}
	for _, id := range ids {
		want := recipe.Ingredients[id]
		if have := c.reservoirs[id].volumeML(); have < want {
			done()
			return nil, fmt.Errorf("%w: reservoir %d has %.0fml, %s needs %.0fml", ErrInsufficientVolume, id, have, name, want)
		}
	}

	job := &pourJob{
		id:        uuid.NewString(),
		recipe:    recipe,
		startedAt: time.Now().UTC(),
		done:      done,
	}
	inUse := make(map[int]bool, len(ids))
	for _, id := range ids {
		p := c.planChannel(id, recipe.Ingredients[id])
		job.plan = append(job.plan, p)
		if p.planned > job.duration {
			job.duration = p.planned
		}
		inUse[id] = true
	}
	c.pour = pourSlot{active: true, jobID: job.id, drink: recipe.Name, reservoirs: inUse}
	return job, nil
}

func (c *Coordinator) planChannel(id int, ml float64) pourPlan {
	secs := ml / c.reservoirs[id].rate
	planned := time.Duration(secs * float64(time.Second))
	p := pourPlan{reservoir: id, ml: ml, planned: planned}
	if planned > c.cfg.MaxPour {
		p.planned = c.cfg.MaxPour
		p.clamped = true
	}
	return p
}

func (c *Coordinator) runPour(job *pourJob) (models.PourResult, error) {
	defer job.done()

	finished := false
	defer func() {
		if !finished {
			c.clearPourSlot(job.id)
		}
	}()

	c.metrics.SetPouring(true)
	c.log.Infow("pour_started", "job_id", job.id, "recipe", job.recipe.Name, "duration", job.duration.String())
	c.emit(models.EventPourStarted, "Pouring "+job.recipe.Name, map[string]any{
		"job_id":      job.id,
		"recipe":      job.recipe.Name,
		"ingredients": job.recipe.Ingredients,
	})

	results := make([]models.ChannelResult, len(job.plan))
	errs := make([]error, len(job.plan))
	var g errgroup.Group
	for i, p := range job.plan {
		i, p := i, p
		g.Go(func() error {
			results[i], errs[i] = c.pourChannel(job, p)
			return errs[i]
		})
	}
	// every channel reports through errs, siblings are never cancelled
	_ = g.Wait()

	outcome := models.OutcomeSuccess
	for _, r := range results {
		if r.Outcome != models.OutcomeSuccess {
			outcome = models.OutcomeDegraded
		}
	}
	res := models.PourResult{
		JobID:     job.id,
		Recipe:    job.recipe.Name,
		StartedAt: job.startedAt,
		Duration:  job.duration,
		Outcome:   outcome,
		Channels:  results,
	}
	err := errors.Join(errs...)

	c.clearPourSlot(job.id)
	finished = true
	c.metrics.SetPouring(false)
	c.metrics.ObservePour(job.recipe.Name, outcome, time.Since(job.startedAt))

	if err != nil {
		c.log.Errorw("pour_degraded", "job_id", job.id, "recipe", job.recipe.Name, "elapsed", time.Since(job.startedAt).String(), "err", err)
		c.emit(models.EventError, "Pour of "+job.recipe.Name+" degraded", map[string]any{
			"job_id": job.id, "recipe": job.recipe.Name, "error": err.Error(),
		})
	}
	c.log.Infow("pour_finished", "job_id", job.id, "recipe", job.recipe.Name, "outcome", outcome)
	c.emit(models.EventPourFinished, "Finished "+job.recipe.Name, map[string]any{
		"job_id": job.id, "recipe": job.recipe.Name, "outcome": outcome, "channels": results,
	})

	c.refillDrained(job)
	return res, err
}

func (c *Coordinator) clearPourSlot(jobID string) {
	c.pourMu.Lock()
	defer c.pourMu.Unlock()
	if c.pour.jobID == jobID {
		c.pour = pourSlot{}
	}
}

// refillDrained starts a refill for every poured reservoir at or below the
// refill threshold.
func (c *Coordinator) refillDrained(job *pourJob) {
	for _, p := range job.plan {
		r := c.reservoirs[p.reservoir]
		if v := r.volumeML(); v > c.cfg.RefillThresholdML {
			continue
		}
		if _, err := c.StartRefill(p.reservoir); err != nil {
			c.log.Debugw("post_pour_refill_skipped", "job_id", job.id, "reservoir", p.reservoir, "err", err)
		}
	}
}

// pourChannel runs one ingredient line. Lines are released on every exit
// path and the reservoir estimate is updated before returning.
func (c *Coordinator) pourChannel(job *pourJob, p pourPlan) (cr models.ChannelResult, err error) {
	cr = models.ChannelResult{
		Reservoir:   p.reservoir,
		RequestedML: p.ml,
		Planned:     p.planned,
		Outcome:     models.OutcomeRunning,
	}
	owner := job.owner()
	wanted := []hardware.Line{hardware.Valve(p.reservoir)}
	if c.cfg.PourWithPump {
		wanted = append(wanted, hardware.Pump(p.reservoir))
	}

	var (
		held     []hardware.Line
		preempts []<-chan struct{}
		opened   time.Time
	)
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			if rerr := c.lines.release(held[i], owner); rerr != nil {
				err = errors.Join(err, rerr)
				cr.Outcome = models.OutcomeFault
			}
		}
		if !opened.IsZero() {
			cr.Elapsed = time.Since(opened)
		}
		cr.DispensedML = dispensed(cr.Outcome, p.ml, cr.Elapsed, c.reservoirs[p.reservoir].rate)
		if cr.DispensedML > 0 {
			c.persist(p.reservoir, c.reservoirs[p.reservoir].consume(cr.DispensedML))
		}
		if err != nil {
			cr.Error = err.Error()
			c.log.Errorw("pour_channel_failed", "job_id", job.id, "reservoir", p.reservoir,
				"outcome", cr.Outcome, "elapsed", cr.Elapsed.String(), "err", err)
		}
	}()

	for _, l := range wanted {
		pre, aerr := c.lines.acquire(l, owner)
		if aerr != nil {
			cr.Outcome = models.OutcomeFault
			return cr, fmt.Errorf("reservoir %d: %w", p.reservoir, aerr)
		}
		held = append(held, l)
		preempts = append(preempts, pre)
	}
	opened = time.Now()

	var pumpStop <-chan struct{}
	if len(preempts) > 1 {
		pumpStop = preempts[1]
	}
	timer := time.NewTimer(p.planned)
	defer timer.Stop()

	select {
	case <-timer.C:
		if p.clamped {
			cr.Outcome = models.OutcomeTimeout
			return cr, fmt.Errorf("%w: reservoir %d cut off at %s", ErrTimeout, p.reservoir, c.cfg.MaxPour)
		}
		cr.Outcome = models.OutcomeSuccess
		return cr, nil
	case <-preempts[0]:
	case <-pumpStop:
	case <-c.closing:
	}
	cr.Outcome = models.OutcomeStopped
	return cr, fmt.Errorf("%w: reservoir %d after %s", ErrStopped, p.reservoir, time.Since(opened).Round(time.Millisecond))
}

// dispensed is the amount booked against a reservoir. A complete channel
// books exactly what was requested. A channel cut short books what the
// calibrated rate says flowed, capped at the request. A channel that never
// opened books nothing.
func dispensed(outcome models.Outcome, requested float64, elapsed time.Duration, rate float64) float64 {
	if outcome == models.OutcomeSuccess {
		return requested
	}
	if elapsed <= 0 {
		return 0
	}
	return math.Min(requested, elapsed.Seconds()*rate)
}
