package bartender

import (
	"errors"
	"fmt"
	"time"

	"smart_bartender/internal/hardware"
	"smart_bartender/internal/models"

	"github.com/google/uuid"
)

type refillJob struct {
	id        string
	res       *reservoir
	startedAt time.Time
	timeout   time.Duration
	done      func()
}

// Refill runs the floor pump for reservoir id until its float switch reports
// full or the refill timeout fires. It blocks until the pump is off.
func (c *Coordinator) Refill(id int) (models.RefillResult, error) {
	job, err := c.beginRefill(id)
	if err != nil {
		return models.RefillResult{}, err
	}
	return c.runRefill(job)
}

// StartRefill accepts the refill synchronously and runs it in the background.
func (c *Coordinator) StartRefill(id int) (models.RefillResult, error) {
	job, err := c.beginRefill(id)
	if err != nil {
		return models.RefillResult{}, err
	}
	go func() {
		_, _ = c.runRefill(job)
	}()
	return models.RefillResult{
		JobID:     job.id,
		Reservoir: id,
		StartedAt: job.startedAt,
		Timeout:   job.timeout,
		Outcome:   models.OutcomeRunning,
	}, nil
}

func (c *Coordinator) beginRefill(id int) (*refillJob, error) {
	r, ok := c.reservoirs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownReservoir, id)
	}
	done, err := c.enter()
	if err != nil {
		return nil, err
	}
	if !r.tryBeginRefill() {
		done()
		return nil, fmt.Errorf("%w: %d", ErrAlreadyRefilling, id)
	}
	return &refillJob{
		id:        uuid.NewString(),
		res:       r,
		startedAt: time.Now().UTC(),
		timeout:   c.refillTimeout(r),
		done:      done,
	}, nil
}

// refillTimeout is the smallest of the refill timeout, the pump ceiling and
// 1.5x the time the pump needs to replace the missing volume, but never
// shorter than one poll interval.
func (c *Coordinator) refillTimeout(r *reservoir) time.Duration {
	limit := min(c.cfg.RefillTimeout, c.cfg.MaxPump)
	if c.cfg.PumpFlowMLPerMin > 0 {
		missing := r.capacity - r.volumeML()
		expected := time.Duration(missing / c.cfg.PumpFlowMLPerMin * 60 * float64(time.Second))
		limit = min(limit, expected*3/2)
	}
	return max(limit, c.cfg.PollInterval)
}

func (c *Coordinator) runRefill(job *refillJob) (res models.RefillResult, err error) {
	id := job.res.id
	owner := "refill:" + job.id
	res = models.RefillResult{
		JobID:     job.id,
		Reservoir: id,
		StartedAt: job.startedAt,
		Timeout:   job.timeout,
		Outcome:   models.OutcomeRunning,
	}

	c.log.Infow("refill_started", "job_id", job.id, "reservoir", id, "timeout", job.timeout.String())
	c.emit(models.EventRefillStarted, fmt.Sprintf("Refilling reservoir %d", id), map[string]any{
		"job_id": job.id, "reservoir": id, "timeout_s": job.timeout.Seconds(),
	})

	held := false
	defer func() {
		if held {
			if rerr := c.lines.release(hardware.Pump(id), owner); rerr != nil {
				err = errors.Join(err, rerr)
				res.Outcome = models.OutcomeFault
			}
		}
		res.Elapsed = time.Since(job.startedAt)
		v := job.res.endRefill(res.Outcome == models.OutcomeSuccess)
		c.persist(id, v)
		c.metrics.ObserveRefill(id, res.Outcome, res.Elapsed)
		job.done()

		if err != nil {
			res.Error = err.Error()
			c.log.Errorw("refill_failed", "job_id", job.id, "reservoir", id,
				"outcome", res.Outcome, "elapsed", res.Elapsed.String(), "err", err)
			c.emit(models.EventError, fmt.Sprintf("Refill of reservoir %d ended: %s", id, res.Outcome), map[string]any{
				"job_id": job.id, "reservoir": id, "outcome": res.Outcome, "error": err.Error(),
			})
		}
		c.log.Infow("refill_finished", "job_id", job.id, "reservoir", id, "outcome", res.Outcome, "volume_ml", v)
		c.emit(models.EventRefillFinished, fmt.Sprintf("Refill of reservoir %d finished", id), map[string]any{
			"job_id": job.id, "reservoir": id, "outcome": res.Outcome, "elapsed_s": res.Elapsed.Seconds(),
		})
	}()

	preempt, err := c.lines.acquire(hardware.Pump(id), owner)
	if err != nil {
		res.Outcome = models.OutcomeFault
		return res, fmt.Errorf("refill %d: %w", id, err)
	}
	held = true

	deadline := time.NewTimer(job.timeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		full, rerr := c.act.ReadInput(hardware.Float(id))
		if rerr != nil {
			res.Outcome = models.OutcomeFault
			return res, fmt.Errorf("%w: read %s: %v", ErrHardwareFault, hardware.Float(id), rerr)
		}
		job.res.setLow(!full)
		if full {
			res.Outcome = models.OutcomeSuccess
			return res, nil
		}

		select {
		case <-poll.C:
		case <-deadline.C:
			res.Outcome = models.OutcomeTimeout
			return res, fmt.Errorf("%w: reservoir %d not full after %s", ErrTimeout, id, job.timeout)
		case <-preempt:
			res.Outcome = models.OutcomeStopped
			return res, fmt.Errorf("%w: refill %d", ErrStopped, id)
		case <-c.closing:
			res.Outcome = models.OutcomeStopped
			return res, fmt.Errorf("%w: refill %d", ErrClosed, id)
		}
	}
}
