package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline/internal/shared"
)

type staticDirectory map[string]string

func (d staticDirectory) Names(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out, nil
}

func (d staticDirectory) Exists(_ context.Context, id string) (bool, error) {
	_, ok := d[id]
	return ok, nil
}

var testDirectory = staticDirectory{
	"hq":   "Headquarters",
	"br-1": "Harbour Street",
	"br-2": "Old Town",
	"br-3": "Airport Kiosk",
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type recordingApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *recordingApprovals) Record(_ context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (n *recordingNotifier) StatusChanged(_ context.Context, change StatusChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ObserveTransition(action, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[action+":"+from+">"+to]++
}

type fixture struct {
	svc       *Service
	repo      *MemoryRepository
	audit     *recordingAudit
	approvals *recordingApprovals
	notifier  *recordingNotifier
	metrics   *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      NewMemoryRepository(NewCounterSequencer(0)),
		audit:     &recordingAudit{},
		approvals: &recordingApprovals{},
		notifier:  &recordingNotifier{},
		metrics:   &countingMetrics{},
	}
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc = NewService(f.repo, testDirectory, Options{
		Idempotency: shared.NewMemoryIdempotency(),
		Audit:       f.audit,
		Approvals:   f.approvals,
		Notifier:    f.notifier,
		Metrics:     f.metrics,
		Now:         func() time.Time { return clock },
	})
	return f
}

func sampleInput(origin, destination string) CreateInput {
	return CreateInput{
		OriginID:      origin,
		DestinationID: destination,
		Items:         []Line{{ItemID: "X", Quantity: 5, Unit: "kg"}},
	}
}

// seed stores a request directly in status, bypassing the lifecycle.
func (f *fixture) seed(t *testing.T, status Status, origin, destination string) StockRequest {
	t.Helper()
	req, err := f.repo.Create(context.Background(), StockRequest{
		OriginID:      origin,
		DestinationID: destination,
		Status:        status,
		Items:         []Line{{ItemID: "X", Quantity: 1, Unit: "pcs"}},
	})
	require.NoError(t, err)
	return req
}
