package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists stock requests. Implementations do not enforce the
// lifecycle; Service checks legality before writing.
type Repository interface {
	// Create assigns an id, a request number when none is set and version 1.
	Create(ctx context.Context, req StockRequest) (StockRequest, error)
	FindByID(ctx context.Context, id string) (StockRequest, error)
	// Update applies fn to the stored request when its version equals
	// expectedVersion, then bumps Version and UpdatedAt. Identity fields
	// (ID, RequestNumber, Date) are never changed.
	Update(ctx context.Context, id string, expectedVersion int64, fn func(*StockRequest) error) (StockRequest, error)
	// Delete removes the request. expectedVersion 0 skips the version check.
	Delete(ctx context.Context, id string, expectedVersion int64) error
	// List returns every request in creation order.
	List(ctx context.Context) ([]StockRequest, error)
}

// MemoryRepository is an ordered in-memory Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	seq   Sequencer
	order []string
	rows  map[string]StockRequest
	now   func() time.Time
}

// NewMemoryRepository constructs MemoryRepository numbering requests with
// seq (a fresh CounterSequencer when nil).
func NewMemoryRepository(seq Sequencer) *MemoryRepository {
	if seq == nil {
		seq = NewCounterSequencer(0)
	}
	return &MemoryRepository{
		seq:  seq,
		rows: make(map[string]StockRequest),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) Create(ctx context.Context, req StockRequest) (StockRequest, error) {
	supplied := req.RequestNumber
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	for attempt := 1; ; attempt++ {
		number, err := nextNumber(ctx, m.seq, supplied)
		if err != nil {
			return StockRequest{}, err
		}
		req.RequestNumber = number
		created, taken, err := m.insert(req)
		if err != nil || !taken {
			return created, err
		}
		if supplied != "" || attempt == maxNumberAttempts {
			return StockRequest{}, fmt.Errorf("%w: request number %s", ErrDuplicate, number)
		}
		if err := advancePast(ctx, m.seq, m.maxNumber()); err != nil {
			return StockRequest{}, err
		}
	}
}

// insert stores req. taken reports a request number collision.
func (m *MemoryRepository) insert(req StockRequest) (StockRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[req.ID]; ok {
		return StockRequest{}, false, ErrDuplicate
	}
	for _, existing := range m.rows {
		if existing.RequestNumber == req.RequestNumber {
			return StockRequest{}, true, nil
		}
	}
	now := m.now()
	if req.Date.IsZero() {
		req.Date = now
	}
	req.UpdatedAt = now
	req.Version = 1
	m.rows[req.ID] = req.clone()
	m.order = append(m.order, req.ID)
	return req.clone(), false, nil
}

func (m *MemoryRepository) maxNumber() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var highest int64
	for _, r := range m.rows {
		if n, ok := ParseRequestNumber(r.RequestNumber); ok && n > highest {
			highest = n
		}
	}
	return highest
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (StockRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.rows[id]
	if !ok {
		return StockRequest{}, ErrNotFound
	}
	return req.clone(), nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, expectedVersion int64, fn func(*StockRequest) error) (StockRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[id]
	if !ok {
		return StockRequest{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return StockRequest{}, ErrVersionConflict
	}
	next := current.clone()
	if err := fn(&next); err != nil {
		return StockRequest{}, err
	}
	next.ID, next.RequestNumber, next.Date = current.ID, current.RequestNumber, current.Date
	next.Version = current.Version + 1
	next.UpdatedAt = m.now()
	m.rows[id] = next.clone()
	return next, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return ErrVersionConflict
	}
	delete(m.rows, id)
	for i, rid := range m.order {
		if rid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRepository) List(_ context.Context) ([]StockRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StockRequest, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rows[id].clone())
	}
	return out, nil
}
