// Package memory backs every store contract with plain maps under one mutex.
// It serves unit tests and the database-less local mode; the semantics mirror
// the postgres stores, including conditional state transitions and the
// check-and-decrement reservation.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
)

type Store struct {
	mu          sync.Mutex
	workers     map[string]core.Worker
	balances    map[string]balance.Record
	requests    map[string]leave.Request
	holidays    map[string]map[string]struct{}
	resetHashes map[string]string
}

func NewStore() *Store {
	return &Store{
		workers:     make(map[string]core.Worker),
		balances:    make(map[string]balance.Record),
		requests:    make(map[string]leave.Request),
		holidays:    make(map[string]map[string]struct{}),
		resetHashes: make(map[string]string),
	}
}

// ---- core.Directory ----

func (s *Store) CreateWorker(ctx context.Context, w core.Worker) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now()
	s.workers[w.ID] = w
	s.balances[w.ID] = balance.Record{
		WorkerID:  w.ID,
		Casual:    balance.DefaultCasual,
		Sick:      balance.DefaultSick,
		Privilege: balance.DefaultPrivilege,
		UpdatedAt: w.CreatedAt,
	}
	return w.ID, nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (core.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workers[id]
	if !ok {
		return core.Worker{}, core.ErrNotFound
	}
	return w, nil
}

func (s *Store) GetWorkerByEmail(ctx context.Context, email string) (core.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.workers {
		if w.Email == email {
			return w, nil
		}
	}
	return core.Worker{}, core.ErrNotFound
}

func (s *Store) ListWorkers(ctx context.Context) ([]core.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SetResetTokenHash(ctx context.Context, workerID, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[workerID]; !ok {
		return core.ErrNotFound
	}
	s.resetHashes[workerID] = tokenHash
	return nil
}

// ---- balance.Store ----

func (s *Store) Get(ctx context.Context, workerID string) (balance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.balances[workerID]
	if !ok {
		return balance.Record{}, balance.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Initialize(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[workerID]; ok {
		return nil
	}
	s.balances[workerID] = balance.Record{
		WorkerID:  workerID,
		Casual:    balance.DefaultCasual,
		Sick:      balance.DefaultSick,
		Privilege: balance.DefaultPrivilege,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *Store) Reserve(ctx context.Context, workerID string, category balance.Category, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.balances[workerID]
	if !ok {
		return balance.ErrNotFound
	}
	if !balance.ValidCategory(category) {
		return balance.ErrUnknownCategory
	}
	current := rec.For(category)
	if current.LessThan(amount) {
		return balance.ErrInsufficientBalance
	}
	if err := setCounter(&rec, category, current.Sub(amount)); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	s.balances[workerID] = rec
	return nil
}

func (s *Store) Restore(ctx context.Context, workerID string, category balance.Category, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.balances[workerID]
	if !ok {
		return balance.ErrNotFound
	}
	if err := setCounter(&rec, category, rec.For(category).Add(amount)); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	s.balances[workerID] = rec
	return nil
}

func setCounter(rec *balance.Record, category balance.Category, value decimal.Decimal) error {
	switch category {
	case balance.CategoryCasual:
		rec.Casual = value
	case balance.CategorySick:
		rec.Sick = value
	case balance.CategoryPrivilege:
		rec.Privilege = value
	default:
		return balance.ErrUnknownCategory
	}
	return nil
}

// ---- leave.Store ----

func (s *Store) CreateRequest(ctx context.Context, req leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[req.ID] = req
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return leave.Request{}, leave.ErrNotFound
	}
	return req, nil
}

func (s *Store) DeletePending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return leave.ErrNotFound
	}
	if req.Status != leave.StatusPending {
		return leave.ErrNotPending
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) MarkProcessed(ctx context.Context, id string, status leave.Status, processedBy string, comments *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return leave.ErrNotFound
	}
	if req.Status != leave.StatusPending {
		return leave.ErrNotPending
	}
	req.Status = status
	req.ProcessedBy = &processedBy
	processedAt := at
	req.ProcessedAt = &processedAt
	req.Comments = comments
	s.requests[id] = req
	return nil
}

func (s *Store) ListActiveForWorker(ctx context.Context, workerID string) ([]leave.Request, error) {
	return s.filter(func(req leave.Request) bool {
		return req.WorkerID == workerID && (req.Status == leave.StatusPending || req.Status == leave.StatusApproved)
	}), nil
}

func (s *Store) ListPending(ctx context.Context) ([]leave.Request, error) {
	return s.filter(func(req leave.Request) bool {
		return req.Status == leave.StatusPending
	}), nil
}

func (s *Store) ListReminderEligible(ctx context.Context, cutoff time.Time) ([]leave.Request, error) {
	return s.filter(func(req leave.Request) bool {
		if req.Status != leave.StatusPending || !req.CreatedAt.Before(cutoff) {
			return false
		}
		return req.LastReminderAt == nil || req.LastReminderAt.Before(cutoff)
	}), nil
}

func (s *Store) RecordReminderSent(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return leave.ErrNotFound
	}
	sentAt := at
	req.LastReminderAt = &sentAt
	req.ReminderCount++
	s.requests[id] = req
	return nil
}

func (s *Store) ReassignApprover(ctx context.Context, workerID, approverID, approverName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workers[workerID]
	if !ok {
		return leave.ErrNotFound
	}
	w.ApproverID = &approverID
	s.workers[workerID] = w

	for id, req := range s.requests {
		if req.WorkerID == workerID && req.Status == leave.StatusPending {
			req.ApproverID = approverID
			req.ApproverName = approverName
			s.requests[id] = req
		}
	}
	return nil
}

func (s *Store) ListForWorker(ctx context.Context, workerID string) ([]leave.Request, error) {
	return s.filter(func(req leave.Request) bool {
		return req.WorkerID == workerID
	}), nil
}

func (s *Store) ListForApprover(ctx context.Context, approverID string) ([]leave.Request, error) {
	return s.filter(func(req leave.Request) bool {
		return req.ApproverID == approverID
	}), nil
}

func (s *Store) ListCalendar(ctx context.Context) ([]leave.Request, error) {
	out := s.filter(func(req leave.Request) bool {
		return req.Status == leave.StatusPending || req.Status == leave.StatusApproved
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) filter(keep func(leave.Request) bool) []leave.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []leave.Request
	for _, req := range s.requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ---- calendar.HolidaySource ----

func (s *Store) HolidaysFor(ctx context.Context, jurisdiction string, year int) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{})
	prefix := strconv.Itoa(year)
	for day := range s.holidays[jurisdiction] {
		if len(day) >= 4 && day[:4] == prefix {
			out[day] = struct{}{}
		}
	}
	return out, nil
}

// AddHoliday declares a holiday for a jurisdiction. Seeding and test helper.
func (s *Store) AddHoliday(jurisdiction string, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.holidays[jurisdiction]
	if !ok {
		set = make(map[string]struct{})
		s.holidays[jurisdiction] = set
	}
	set[date.Format("2006-01-02")] = struct{}{}
}
