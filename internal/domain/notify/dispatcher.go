package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers a single job. Implementations do not retry; the
// dispatcher owns the retry budget.
type Notifier interface {
	Send(ctx context.Context, job Job) error
}

const (
	defaultMaxConcurrent = 5
	defaultMaxAttempts   = 3
	defaultSendTimeout   = 10 * time.Second
	defaultBackoffBase   = time.Second
)

type Options struct {
	MaxConcurrent int
	MaxAttempts   int
	SendTimeout   time.Duration
	BackoffBase   time.Duration
}

// Dispatcher is an explicit, constructible instance. Production wiring holds
// one, tests construct their own.
type Dispatcher struct {
	notifier      Notifier
	maxConcurrent int
	maxAttempts   int
	sendTimeout   time.Duration
	backoffBase   time.Duration

	mu       sync.Mutex
	queue    []*Job
	inFlight int

	// generation increments on Clear; in-flight jobs from an older generation
	// are dropped instead of retried.
	generation uint64

	wake chan struct{}
}

func New(notifier Notifier) *Dispatcher {
	return NewWithOptions(notifier, Options{})
}

func NewWithOptions(notifier Notifier, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	return &Dispatcher{
		notifier:      notifier,
		maxConcurrent: opts.MaxConcurrent,
		maxAttempts:   opts.MaxAttempts,
		sendTimeout:   opts.SendTimeout,
		backoffBase:   opts.BackoffBase,
		wake:          make(chan struct{}, 1),
	}
}

// Start launches the processing loop. It returns immediately; the loop stops
// when ctx is cancelled, abandoning anything still queued.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.pump(ctx)
}

// Enqueue appends a job, optionally not eligible before now+delay, and wakes
// the loop. The returned id is only useful for logs.
func (d *Dispatcher) Enqueue(payload Payload, delay time.Duration) string {
	return d.enqueue(payload, delay, nil)
}

// EnqueueWithDone is Enqueue plus a terminal-outcome callback. The callback
// runs outside the dispatcher lock and must not block for long.
func (d *Dispatcher) EnqueueWithDone(payload Payload, delay time.Duration, done func(error)) string {
	return d.enqueue(payload, delay, done)
}

func (d *Dispatcher) enqueue(payload Payload, delay time.Duration, done func(error)) string {
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		Kind:        payload.NotificationKind(),
		Payload:     payload,
		MaxAttempts: d.maxAttempts,
		CreatedAt:   now,
		NotBefore:   now.Add(delay),
		done:        done,
	}

	d.mu.Lock()
	job.generation = d.generation
	d.queue = append(d.queue, job)
	d.mu.Unlock()

	d.signal()
	return job.ID
}

type Status struct {
	Total    int `json:"total"`
	InFlight int `json:"inFlight"`
	Pending  int `json:"pending"`
}

func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Total:    len(d.queue) + d.inFlight,
		InFlight: d.inFlight,
		Pending:  len(d.queue),
	}
}

// Clear empties the queue. In-flight jobs finish but failures are not
// re-enqueued into a cleared queue either way; this is a test/ops hook.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.queue = nil
	d.generation++
	d.mu.Unlock()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) pump(ctx context.Context) {
	for {
		d.mu.Lock()
		now := time.Now()
		var nextEligible time.Time
		i := 0
		for i < len(d.queue) && d.inFlight < d.maxConcurrent {
			job := d.queue[i]
			if job.NotBefore.After(now) {
				if nextEligible.IsZero() || job.NotBefore.Before(nextEligible) {
					nextEligible = job.NotBefore
				}
				i++
				continue
			}
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			d.inFlight++
			go d.run(ctx, job)
		}
		d.mu.Unlock()

		var timer *time.Timer
		var fire <-chan time.Time
		if !nextEligible.IsZero() {
			timer = time.NewTimer(time.Until(nextEligible))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-d.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, job *Job) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.notifier.Send(sendCtx, *job)
	cancel()

	d.mu.Lock()
	d.inFlight--
	if err == nil {
		d.mu.Unlock()
		if job.done != nil {
			job.done(nil)
		}
		d.signal()
		return
	}

	job.Attempts++
	if job.generation != d.generation {
		d.mu.Unlock()
		slog.Warn("notification dropped, queue cleared while in flight",
			"jobId", job.ID, "kind", job.Kind, "err", err)
		if job.done != nil {
			job.done(err)
		}
		d.signal()
		return
	}
	if job.Attempts >= job.MaxAttempts {
		d.mu.Unlock()
		slog.Warn("notification dropped after max attempts",
			"jobId", job.ID, "kind", job.Kind, "attempts", job.Attempts, "err", err)
		if job.done != nil {
			job.done(err)
		}
		d.signal()
		return
	}

	// Exponential backoff: 2^attempts units after the attempts-th failure.
	job.NotBefore = time.Now().Add(d.backoffBase * time.Duration(1<<job.Attempts))
	d.queue = append(d.queue, job)
	d.mu.Unlock()

	slog.Warn("notification send failed, retrying",
		"jobId", job.ID, "kind", job.Kind, "attempts", job.Attempts, "err", err)
	d.signal()
}
