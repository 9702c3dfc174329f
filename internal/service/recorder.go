package service

import (
	"context"
	"sync"
	"time"

	"smart_bartender/internal/logger"
	"smart_bartender/internal/models"
	"smart_bartender/internal/notify"
	"smart_bartender/internal/repository"
)

const (
	recorderQueue = 128
	appendTimeout = 2 * time.Second
)

// Recorder journals coordinator events to the event repository and forwards
// them to the publisher. Emit only enqueues; a single worker does the I/O so
// pours never wait on the database or the broker.
type Recorder struct {
	repo repository.EventRepo
	pub  notify.Publisher
	log  *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.BarEvent
	done   chan struct{}
}

func NewRecorder(repo repository.EventRepo, pub notify.Publisher, log *logger.Logger) *Recorder {
	if pub == nil {
		pub = notify.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	r := &Recorder{
		repo:  repo,
		pub:   pub,
		log:   log,
		queue: make(chan models.BarEvent, recorderQueue),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Emit queues ev. Events are dropped, with a warning, when the queue is full
// or the recorder is closed.
func (r *Recorder) Emit(ev models.BarEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warnw("event_dropped", "type", ev.Type, "reason", "closed")
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.log.Warnw("event_dropped", "type", ev.Type, "reason", "queue_full")
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.queue {
		r.record(ev)
	}
}

func (r *Recorder) record(ev models.BarEvent) {
	if ev.Type == models.EventError {
		r.log.Warnw("bar_event", "type", ev.Type, "description", ev.Description, "meta", ev.Metadata)
	} else {
		r.log.Debugw("bar_event", "type", ev.Type, "description", ev.Description)
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.repo.Append(ctx, ev); err != nil {
		r.log.Errorw("event_append_failed", "type", ev.Type, "err", err)
	}
	if err := r.pub.Publish(ev); err != nil {
		r.log.Warnw("event_publish_failed", "type", ev.Type, "err", err)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
