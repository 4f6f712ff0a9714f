package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/domain/calendar"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
	"github.com/vivektakcode/leave-tracker/internal/store/memory"
)

// syncNotifier records sends; failFor returns an error for matching kinds.
type syncNotifier struct {
	mu      sync.Mutex
	sent    []notify.Job
	failFor map[notify.Kind]bool
}

func (n *syncNotifier) Send(ctx context.Context, job notify.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[job.Kind] {
		return errors.New("delivery refused")
	}
	n.sent = append(n.sent, job)
	return nil
}

func (n *syncNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, len(n.sent))
	for i, job := range n.sent {
		out[i] = job.Kind
	}
	return out
}

type fixture struct {
	store      *memory.Store
	svc        *leave.Service
	notifier   *syncNotifier
	dispatcher *notify.Dispatcher
	workerID   string
	approverID string
	cancel     context.CancelFunc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewStore()
	approverID, err := store.CreateWorker(ctx, core.Worker{
		Name: "Maya", Email: "maya@example.com", Jurisdiction: "IN", Role: auth.RoleApprover,
	})
	require.NoError(t, err)
	workerID, err := store.CreateWorker(ctx, core.Worker{
		Name: "Arjun", Email: "arjun@example.com", Jurisdiction: "IN", Role: auth.RoleWorker,
		ApproverID: &approverID,
	})
	require.NoError(t, err)

	// A holiday to exercise the calendar path.
	store.AddHoliday("IN", day(2026, time.January, 26))

	notifier := &syncNotifier{failFor: map[notify.Kind]bool{}}
	dispatcher := notify.NewWithOptions(notifier, notify.Options{BackoffBase: time.Millisecond})
	dispatcher.Start(ctx)

	calendarSvc := calendar.NewService(calendar.NewCachedSource(store, time.Hour))
	svc := leave.NewService(store, store, store, calendarSvc, dispatcher)

	return &fixture{
		store:      store,
		svc:        svc,
		notifier:   notifier,
		dispatcher: dispatcher,
		workerID:   workerID,
		approverID: approverID,
		cancel:     cancel,
	}
}

func (f *fixture) create(t *testing.T, start, end time.Time) string {
	t.Helper()
	id, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     start,
		EndDate:       end,
		Justification: "family function",
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) balanceFor(t *testing.T, category balance.Category) decimal.Decimal {
	t.Helper()
	record, err := f.store.Get(context.Background(), f.workerID)
	require.NoError(t, err)
	return record.For(category)
}

// backdate rewrites a stored request's creation time, aging it into the
// reminder window.
func (f *fixture) backdate(t *testing.T, id string, age time.Duration) {
	t.Helper()
	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	req.CreatedAt = req.CreatedAt.Add(-age)
	require.NoError(t, f.store.CreateRequest(context.Background(), req))
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

func issueCodes(err error) []string {
	var verr *leave.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	codes := make([]string, len(verr.Issues))
	for i, issue := range verr.Issues {
		codes[i] = issue.Code
	}
	return codes
}

func TestCreateRequestHappyPath(t *testing.T) {
	f := newFixture(t)

	// Tue 2026-03-10 through Thu 2026-03-12: three working days.
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, req.Days.Equal(decimal.NewFromInt(3)), "days = %s", req.Days)
	assert.Equal(t, f.approverID, req.ApproverID)
	assert.Equal(t, "Maya", req.ApproverName)

	// Creation never touches the ledger.
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(balance.DefaultCasual))

	waitFor(t, time.Second, func() bool { return len(f.notifier.kinds()) == 1 })
	assert.Equal(t, notify.KindRequestCreated, f.notifier.kinds()[0])
}

func TestCreateRequestReportsAllViolations(t *testing.T) {
	f := newFixture(t)

	// Sick leave spanning too many days, no document, on a range ending before
	// it starts would mask other rules, so use a valid order with multiple
	// independent problems instead: weekend endpoints, half-day over a range,
	// and a missing justification.
	_, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:  f.workerID,
		Category:  "unpaid",
		StartDate: day(2026, time.March, 14), // Saturday
		EndDate:   day(2026, time.March, 15), // Sunday
		HalfDay:   true,
	})
	require.Error(t, err)

	codes := issueCodes(err)
	assert.Contains(t, codes, leave.CodeRequired)        // justification
	assert.Contains(t, codes, leave.CodeUnknownCategory) // unpaid
	assert.Contains(t, codes, leave.CodeNonBusinessDay)  // both endpoints
	assert.Contains(t, codes, leave.CodeHalfDayRange)    // multi-day half-day
	assert.GreaterOrEqual(t, len(codes), 5)
}

func TestCreateRequestDateOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 12),
		EndDate:       day(2026, time.March, 10),
		Justification: "trip",
	})
	require.Error(t, err)
	assert.Contains(t, issueCodes(err), leave.CodeDateOrder)
}

func TestCreateRequestInsufficientBalance(t *testing.T) {
	f := newFixture(t)

	// Casual default is 6; two full weeks cannot fit.
	_, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 2),
		EndDate:       day(2026, time.March, 13),
		Justification: "long trip",
	})
	require.Error(t, err)
	assert.Contains(t, issueCodes(err), leave.CodeInsufficientBalance)
}

func TestCreateRequestSickDocumentRule(t *testing.T) {
	f := newFixture(t)

	input := leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategorySick,
		StartDate:     day(2026, time.March, 9),
		EndDate:       day(2026, time.March, 12), // 4 working days
		Justification: "flu",
	}
	_, err := f.svc.CreateRequest(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, issueCodes(err), leave.CodeDocumentRequired)

	input.DocumentRef = "medcert-17"
	_, err = f.svc.CreateRequest(context.Background(), input)
	require.NoError(t, err)

	// Two days or fewer needs no document.
	_, err = f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategorySick,
		StartDate:     day(2026, time.April, 6),
		EndDate:       day(2026, time.April, 7),
		Justification: "fever",
	})
	require.NoError(t, err)
}

func TestCreateRequestOverlapAndDuplicate(t *testing.T) {
	f := newFixture(t)
	f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	// Partial overlap.
	_, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 12),
		EndDate:       day(2026, time.March, 13),
		Justification: "extension",
	})
	require.Error(t, err)
	assert.Contains(t, issueCodes(err), leave.CodeOverlappingRequest)

	// Exact duplicate reports the more specific code.
	_, err = f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 10),
		EndDate:       day(2026, time.March, 12),
		Justification: "again",
	})
	require.Error(t, err)
	codes := issueCodes(err)
	assert.Contains(t, codes, leave.CodeDuplicateRequest)
	assert.NotContains(t, codes, leave.CodeOverlappingRequest)

	var verr *leave.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Conflict())

	// Adjacent but disjoint dates are fine.
	_, err = f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 13),
		EndDate:       day(2026, time.March, 13),
		Justification: "one more day",
	})
	require.NoError(t, err)
}

func TestCreateRequestNoApprover(t *testing.T) {
	f := newFixture(t)
	orphanID, err := f.store.CreateWorker(context.Background(), core.Worker{
		Name: "Solo", Email: "solo@example.com", Jurisdiction: "IN", Role: auth.RoleWorker,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      orphanID,
		Category:      balance.CategoryCasual,
		StartDate:     day(2026, time.March, 10),
		EndDate:       day(2026, time.March, 10),
		Justification: "errand",
	})
	require.Error(t, err)
	assert.Contains(t, issueCodes(err), leave.CodeNoApprover)
}

func TestCreateRequestNotificationFailureDoesNotFailCreation(t *testing.T) {
	f := newFixture(t)
	f.notifier.failFor[notify.KindRequestCreated] = true

	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 10))

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
}

func TestProcessRequestApprove(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	err := f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionApproved, "enjoy")
	require.NoError(t, err)

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, req.Status)
	require.NotNil(t, req.ProcessedBy)
	assert.Equal(t, f.approverID, *req.ProcessedBy)
	require.NotNil(t, req.Comments)
	assert.Equal(t, "enjoy", *req.Comments)

	// 6 - 3 = 3.
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(decimal.NewFromInt(3)))
}

func TestProcessRequestReject(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	err := f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionRejected, "")
	require.NoError(t, err)

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, req.Status)
	assert.Nil(t, req.Comments)

	// Rejection never touches the ledger.
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(balance.DefaultCasual))
}

func TestProcessRequestInsufficientBalanceAtApproval(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	// Balance was sufficient at creation but is spent before the decision.
	require.NoError(t, f.store.Reserve(context.Background(), f.workerID, balance.CategoryCasual, decimal.NewFromInt(5)))

	err := f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionApproved, "")
	assert.ErrorIs(t, err, balance.ErrInsufficientBalance)

	// The request survives as pending, so the approver can still reject it.
	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Nil(t, req.ProcessedBy)
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(decimal.NewFromInt(1)))
}

func TestProcessRequestWrongApprover(t *testing.T) {
	f := newFixture(t)
	otherID, err := f.store.CreateWorker(context.Background(), core.Worker{
		Name: "Rival", Email: "rival@example.com", Jurisdiction: "IN", Role: auth.RoleApprover,
	})
	require.NoError(t, err)

	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	err = f.svc.ProcessRequest(context.Background(), id, otherID, leave.DecisionApproved, "")
	assert.ErrorIs(t, err, leave.ErrForbidden)
}

func TestProcessRequestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	require.NoError(t, f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionApproved, ""))

	err := f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionRejected, "")
	assert.ErrorIs(t, err, leave.ErrNotPending)

	err = f.svc.CancelRequest(context.Background(), id)
	assert.ErrorIs(t, err, leave.ErrNotPending)

	// Balance deducted exactly once.
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(decimal.NewFromInt(3)))
}

func TestProcessRequestInvalidDecision(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	err := f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.Decision("maybe"), "")
	assert.ErrorIs(t, err, leave.ErrInvalidDecision)
}

func TestConcurrentApprovalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)

	// Two 3-day requests against a balance of 6, approved concurrently many
	// times over: the ledger must end at 0 and never reject both.
	id1 := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))
	id2 := f.create(t, day(2026, time.March, 17), day(2026, time.March, 19))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{id1, id2} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionApproved, "")
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(decimal.Zero),
		"balance = %s", f.balanceFor(t, balance.CategoryCasual))
}

func TestCancelPendingRestoresNothingBecauseNothingWasTaken(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	require.NoError(t, f.svc.CancelRequest(context.Background(), id))

	_, err := f.store.GetRequest(context.Background(), id)
	assert.ErrorIs(t, err, leave.ErrNotFound)
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(balance.DefaultCasual))

	// The freed dates are usable again.
	f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))
}

func TestAutoApprovalSweep(t *testing.T) {
	f := newFixture(t)

	// Elapsed casual leave: eligible.
	pastID := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))
	// Future casual leave: not eligible.
	futureID := f.create(t, day(2026, time.March, 24), day(2026, time.March, 25))
	// Elapsed sick leave: never auto-approved.
	sickID, err := f.svc.CreateRequest(context.Background(), leave.CreateRequestInput{
		WorkerID:      f.workerID,
		Category:      balance.CategorySick,
		StartDate:     day(2026, time.March, 17),
		EndDate:       day(2026, time.March, 18),
		Justification: "fever",
	})
	require.NoError(t, err)

	summary, err := f.svc.RunAutoApprovalSweep(context.Background(), day(2026, time.March, 20))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 1, summary.Applied)

	past, _ := f.store.GetRequest(context.Background(), pastID)
	assert.Equal(t, leave.StatusApproved, past.Status)
	require.NotNil(t, past.ProcessedBy)
	assert.Equal(t, f.workerID, *past.ProcessedBy)
	require.NotNil(t, past.Comments)
	assert.Contains(t, *past.Comments, "Auto-approved")

	future, _ := f.store.GetRequest(context.Background(), futureID)
	assert.Equal(t, leave.StatusPending, future.Status)
	sick, _ := f.store.GetRequest(context.Background(), sickID)
	assert.Equal(t, leave.StatusPending, sick.Status)

	// Reservation applied for the approved request only.
	assert.True(t, f.balanceFor(t, balance.CategoryCasual).Equal(decimal.NewFromInt(3)))
	assert.True(t, f.balanceFor(t, balance.CategorySick).Equal(balance.DefaultSick))

	// A second sweep finds nothing new to apply.
	summary, err = f.svc.RunAutoApprovalSweep(context.Background(), day(2026, time.March, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Applied)
}

func TestReminderSweep(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.June, 10), day(2026, time.June, 11))
	f.backdate(t, id, 4*24*time.Hour)

	now := time.Now()
	summary, err := f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enqueued)

	waitFor(t, time.Second, func() bool {
		req, err := f.store.GetRequest(context.Background(), id)
		return err == nil && req.ReminderCount == 1
	})
	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req.LastReminderAt)

	// Freshly reminded requests are not eligible again.
	summary, err = f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Enqueued)
}

func TestReminderSweepFailedDeliveryLeavesRequestEligible(t *testing.T) {
	f := newFixture(t)
	f.notifier.failFor[notify.KindReminder] = true
	id := f.create(t, day(2026, time.June, 10), day(2026, time.June, 11))
	f.backdate(t, id, 4*24*time.Hour)

	now := time.Now()
	summary, err := f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enqueued)

	// Wait for the dispatcher to exhaust its attempts and give up.
	waitFor(t, 2*time.Second, func() bool { return f.dispatcher.Status().Total == 0 })

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, req.ReminderCount)
	assert.Nil(t, req.LastReminderAt)

	// Next sweep picks it up again.
	f.notifier.mu.Lock()
	f.notifier.failFor[notify.KindReminder] = false
	f.notifier.mu.Unlock()

	summary, err = f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enqueued)

	waitFor(t, time.Second, func() bool {
		req, err := f.store.GetRequest(context.Background(), id)
		return err == nil && req.ReminderCount == 1
	})
}

func TestReminderSweepInFlightGuard(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.June, 10), day(2026, time.June, 11))
	f.backdate(t, id, 4*24*time.Hour)

	// Stop the dispatcher so the first sweep's job never completes.
	f.cancel()
	time.Sleep(20 * time.Millisecond)

	now := time.Now()
	summary, err := f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Enqueued)

	// Back-to-back sweep sees the job still in flight and skips it.
	summary, err = f.svc.RunReminderSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Enqueued)
	assert.Equal(t, 1, summary.Skipped)
}

func TestReassignApprover(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, day(2026, time.March, 10), day(2026, time.March, 12))

	newApproverID, err := f.store.CreateWorker(context.Background(), core.Worker{
		Name: "Dev", Email: "dev@example.com", Jurisdiction: "IN", Role: auth.RoleApprover,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ReassignApprover(context.Background(), f.workerID, newApproverID))

	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, newApproverID, req.ApproverID)
	assert.Equal(t, "Dev", req.ApproverName)

	// The old approver can no longer decide; the new one can.
	err = f.svc.ProcessRequest(context.Background(), id, f.approverID, leave.DecisionApproved, "")
	assert.ErrorIs(t, err, leave.ErrForbidden)
	require.NoError(t, f.svc.ProcessRequest(context.Background(), id, newApproverID, leave.DecisionApproved, ""))
}

func TestReassignApproverRejectsNonApprover(t *testing.T) {
	f := newFixture(t)
	plainID, err := f.store.CreateWorker(context.Background(), core.Worker{
		Name: "Plain", Email: "plain@example.com", Jurisdiction: "IN", Role: auth.RoleWorker,
	})
	require.NoError(t, err)

	err = f.svc.ReassignApprover(context.Background(), f.workerID, plainID)
	assert.ErrorIs(t, err, leave.ErrInvalidApprover)
}
