package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []Job
	failNext int
	block    chan struct{}
	active   int
	maxSeen  int
}

func (n *recordingNotifier) Send(ctx context.Context, job Job) error {
	n.mu.Lock()
	n.active++
	if n.active > n.maxSeen {
		n.maxSeen = n.active
	}
	shouldFail := n.failNext > 0
	if shouldFail {
		n.failNext--
	}
	block := n.block
	n.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	n.mu.Lock()
	n.active--
	if shouldFail {
		n.mu.Unlock()
		return errors.New("send failed")
	}
	n.sent = append(n.sent, job)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDispatcherDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{}
	d := New(notifier)
	d.Start(ctx)

	done := make(chan error, 1)
	d.EnqueueWithDone(Reminder{RequestID: "r1", ApproverEmail: "boss@example.com"}, 0, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never completed")
	}

	require.Equal(t, 1, notifier.sentCount())
	assert.Equal(t, KindReminder, notifier.sent[0].Kind)

	status := d.Status()
	assert.Equal(t, 0, status.Total)
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{failNext: 2}
	d := NewWithOptions(notifier, Options{BackoffBase: time.Millisecond})
	d.Start(ctx)

	done := make(chan error, 1)
	d.EnqueueWithDone(PasswordReset{WorkerEmail: "w@example.com", Token: "tok"}, 0, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never completed")
	}
	assert.Equal(t, 1, notifier.sentCount())
}

func TestDispatcherDropsAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{failNext: 100}
	d := NewWithOptions(notifier, Options{MaxAttempts: 3, BackoffBase: time.Millisecond})
	d.Start(ctx)

	done := make(chan error, 1)
	d.EnqueueWithDone(Reminder{RequestID: "r1"}, 0, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached terminal state")
	}

	assert.Equal(t, 0, notifier.sentCount())
	waitFor(t, time.Second, func() bool { return d.Status().Total == 0 })
}

func TestDispatcherHonorsDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{}
	d := New(notifier)
	d.Start(ctx)

	d.Enqueue(Reminder{RequestID: "r1"}, 80*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, notifier.sentCount(), "job ran before its delay elapsed")

	waitFor(t, time.Second, func() bool { return notifier.sentCount() == 1 })
}

func TestDispatcherConcurrencyCap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{block: make(chan struct{})}
	d := NewWithOptions(notifier, Options{MaxConcurrent: 2})
	d.Start(ctx)

	for i := 0; i < 6; i++ {
		d.Enqueue(Reminder{RequestID: "r"}, 0)
	}

	waitFor(t, time.Second, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.active == 2
	})
	status := d.Status()
	assert.Equal(t, 2, status.InFlight)
	assert.Equal(t, 4, status.Pending)

	close(notifier.block)
	waitFor(t, time.Second, func() bool { return notifier.sentCount() == 6 })

	notifier.mu.Lock()
	assert.LessOrEqual(t, notifier.maxSeen, 2)
	notifier.mu.Unlock()
}

func TestDispatcherClear(t *testing.T) {
	notifier := &recordingNotifier{}
	d := New(notifier)
	// Not started: jobs stay queued.
	d.Enqueue(Reminder{RequestID: "a"}, 0)
	d.Enqueue(Reminder{RequestID: "b"}, 0)
	require.Equal(t, 2, d.Status().Pending)

	d.Clear()
	assert.Equal(t, 0, d.Status().Total)
}

func TestDispatcherClearDropsFailedInFlightJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := &recordingNotifier{failNext: 100, block: make(chan struct{})}
	d := NewWithOptions(notifier, Options{MaxAttempts: 3, BackoffBase: time.Millisecond})
	d.Start(ctx)

	done := make(chan error, 1)
	d.EnqueueWithDone(Reminder{RequestID: "r1"}, 0, func(err error) {
		done <- err
	})

	waitFor(t, time.Second, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.active == 1
	})

	// Clear while the send is still blocked; the failure that follows must not
	// repopulate the queue.
	d.Clear()
	close(notifier.block)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached terminal state")
	}
	waitFor(t, time.Second, func() bool { return d.Status().Total == 0 })
	assert.Equal(t, 0, d.Status().Pending)
}
