package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forkline/forkline/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records approve/reject decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Notifier is told about every committed status change.
type Notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

// TransitionObserver receives transition counts for metrics.
type TransitionObserver interface {
	ObserveTransition(action, from, to string)
}

// Directory resolves location ids.
type Directory interface {
	Names(ctx context.Context) (map[string]string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// StatusChange describes a committed transition.
type StatusChange struct {
	RequestID     string    `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	Action        Action    `json:"action"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	OriginID      string    `json:"origin_id"`
	DestinationID string    `json:"destination_id"`
	ActorID       string    `json:"actor_id,omitempty"`
	At            time.Time `json:"at"`
}

// CreateInput is the payload for a new request.
type CreateInput struct {
	RequestNumber string `json:"request_number,omitempty" validate:"max=32"`
	OriginID      string `json:"origin_id" validate:"required"`
	DestinationID string `json:"destination_id" validate:"required"`
	Notes         string `json:"notes" validate:"max=2000"`
	Items         []Line `json:"items" validate:"required,min=1,dive"`
}

// EditInput changes notes and/or lines of a New request. Nil fields are
// left untouched.
type EditInput struct {
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Items           []Line  `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	ExpectedVersion int64   `json:"expected_version,omitempty"`
}

// TransitionOptions carries optional concurrency controls for a transition.
type TransitionOptions struct {
	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion int64
	// IdempotencyKey makes retries of the same call return the current
	// request instead of failing or transitioning twice.
	IdempotencyKey string
	Note           string
}

// Options wires optional collaborators into Service.
type Options struct {
	Locks       *shared.KeyedLocker
	Idempotency shared.Idempotency
	Audit       AuditPort
	Approvals   ApprovalPort
	Notifier    Notifier
	Metrics     TransitionObserver
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service runs the stock request lifecycle.
type Service struct {
	repo      Repository
	directory Directory
	locks     *shared.KeyedLocker
	idem      shared.Idempotency
	audit     AuditPort
	approvals ApprovalPort
	notifier  Notifier
	metrics   TransitionObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs Service. directory may be nil, in which case
// location ids are not checked and queues show raw ids.
func NewService(repo Repository, directory Directory, opts Options) *Service {
	s := &Service{
		repo:      repo,
		directory: directory,
		locks:     opts.Locks,
		idem:      opts.Idempotency,
		audit:     opts.Audit,
		approvals: opts.Approvals,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.locks == nil {
		s.locks = shared.NewKeyedLocker()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id string) (StockRequest, error) {
	return s.repo.FindByID(ctx, id)
}

// Create stores a new request in status New.
func (s *Service) Create(ctx context.Context, input CreateInput) (StockRequest, error) {
	origin := strings.TrimSpace(input.OriginID)
	destination := strings.TrimSpace(input.DestinationID)
	if err := s.validateRoute(ctx, origin, destination); err != nil {
		return StockRequest{}, err
	}
	if err := validateLines(input.Items); err != nil {
		return StockRequest{}, err
	}
	created, err := s.repo.Create(ctx, StockRequest{
		RequestNumber: strings.TrimSpace(input.RequestNumber),
		OriginID:      origin,
		DestinationID: destination,
		Notes:         input.Notes,
		Status:        StatusNew,
		Items:         append([]Line(nil), input.Items...),
		CreatedBy:     shared.ActorFromContext(ctx),
	})
	if err != nil {
		return StockRequest{}, err
	}
	s.observe("create", "", StatusNew)
	s.recordAudit(ctx, "TRANSFER_CREATE", created, map[string]any{
		"number":      created.RequestNumber,
		"origin":      created.OriginID,
		"destination": created.DestinationID,
		"items":       len(created.Items),
	})
	s.logger.Info("stock request created",
		slog.String("request_id", created.ID),
		slog.String("request_number", created.RequestNumber))
	return created, nil
}

// Edit updates notes and lines while the request is New.
func (s *Service) Edit(ctx context.Context, id string, input EditInput) (StockRequest, error) {
	if input.Items != nil {
		if err := validateLines(input.Items); err != nil {
			return StockRequest{}, err
		}
	}
	unlock, err := s.locks.Lock(ctx, shared.TransferLockKey(id))
	if err != nil {
		return StockRequest{}, err
	}
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return StockRequest{}, err
	}
	if err := checkVersion(current, input.ExpectedVersion); err != nil {
		return StockRequest{}, err
	}
	if _, err := Next(current.Status, ActionEdit); err != nil {
		return StockRequest{}, err
	}
	updated, err := s.repo.Update(ctx, id, current.Version, func(r *StockRequest) error {
		if input.Notes != nil {
			r.Notes = *input.Notes
		}
		if input.Items != nil {
			r.Items = append([]Line(nil), input.Items...)
		}
		return nil
	})
	if err != nil {
		return StockRequest{}, err
	}
	s.recordAudit(ctx, "TRANSFER_EDIT", updated, map[string]any{"items": len(updated.Items)})
	return updated, nil
}

// Delete removes a request that is still New.
func (s *Service) Delete(ctx context.Context, id string, expectedVersion int64) error {
	unlock, err := s.locks.Lock(ctx, shared.TransferLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return err
	}
	if _, err := Next(current.Status, ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, current.Version); err != nil {
		return err
	}
	s.observe(string(ActionDelete), current.Status, "")
	s.recordAudit(ctx, "TRANSFER_DELETE", current, map[string]any{"number": current.RequestNumber})
	return nil
}

// Approve moves a New request to Approved.
func (s *Service) Approve(ctx context.Context, id string, opts TransitionOptions) (StockRequest, error) {
	return s.transition(ctx, id, ActionApprove, opts, nil)
}

// Reject moves a New request to Rejected.
func (s *Service) Reject(ctx context.Context, id string, opts TransitionOptions) (StockRequest, error) {
	return s.transition(ctx, id, ActionReject, opts, nil)
}

// Dispatch moves an Approved request to Delivering.
func (s *Service) Dispatch(ctx context.Context, id string, opts TransitionOptions) (StockRequest, error) {
	return s.transition(ctx, id, ActionDispatch, opts, nil)
}

// Receive completes a Delivering request. Only the destination branch may
// receive.
func (s *Service) Receive(ctx context.Context, id, branchID string, opts TransitionOptions) (StockRequest, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return StockRequest{}, fmt.Errorf("%w: receiving branch required", ErrValidation)
	}
	return s.transition(ctx, id, ActionReceive, opts, func(current StockRequest) error {
		if current.DestinationID != branchID {
			return fmt.Errorf("%w: %s cannot receive %s", ErrWrongDestination, branchID, current.RequestNumber)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id string, action Action, opts TransitionOptions, guard func(StockRequest) error) (StockRequest, error) {
	unlock, err := s.locks.Lock(ctx, shared.TransferLockKey(id))
	if err != nil {
		return StockRequest{}, err
	}
	defer unlock()

	key, replay, err := s.claimKey(ctx, id, action, opts.IdempotencyKey)
	if err != nil {
		return StockRequest{}, err
	}
	if replay {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return StockRequest{}, err
		}
		// A reused key does not lift the caller's own restrictions.
		if guard != nil {
			if err := guard(current); err != nil {
				return StockRequest{}, err
			}
		}
		return current, nil
	}

	updated, from, err := s.apply(ctx, id, action, opts, guard)
	if err != nil {
		if key != "" {
			if derr := s.idem.Delete(ctx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return StockRequest{}, err
	}
	s.afterTransition(ctx, action, from, updated, opts.Note)
	return updated, nil
}

func (s *Service) apply(ctx context.Context, id string, action Action, opts TransitionOptions, guard func(StockRequest) error) (StockRequest, Status, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return StockRequest{}, "", err
	}
	if err := checkVersion(current, opts.ExpectedVersion); err != nil {
		return StockRequest{}, "", err
	}
	to, err := Next(current.Status, action)
	if err != nil {
		return StockRequest{}, "", err
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return StockRequest{}, "", err
		}
	}
	actor := shared.ActorFromContext(ctx)
	at := s.now()
	updated, err := s.repo.Update(ctx, id, current.Version, func(r *StockRequest) error {
		r.Status = to
		r.ProcessedBy = actor
		r.ProcessedAt = &at
		return nil
	})
	if err != nil {
		return StockRequest{}, "", err
	}
	return updated, current.Status, nil
}

// claimKey reserves the idempotency key for this call. replay is true when
// the key was already used.
func (s *Service) claimKey(ctx context.Context, id string, action Action, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.idem == nil {
		return "", false, nil
	}
	scoped := fmt.Sprintf("transfer:%s:%s:%s", action, id, key)
	err := s.idem.CheckAndInsert(ctx, scoped, "transfer."+string(action))
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		s.logger.Info("idempotent replay", slog.String("request_id", id), slog.String("action", string(action)))
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	return scoped, false, nil
}

func (s *Service) afterTransition(ctx context.Context, action Action, from Status, req StockRequest, note string) {
	s.observe(string(action), from, req.Status)
	s.recordAudit(ctx, "TRANSFER_"+strings.ToUpper(string(action)), req, map[string]any{
		"number": req.RequestNumber,
		"from":   string(from),
		"to":     string(req.Status),
	})
	if s.approvals != nil && (action == ActionApprove || action == ActionReject) {
		decision := shared.ApprovalApprove
		if action == ActionReject {
			decision = shared.ApprovalReject
		}
		refID := uuid.NewSHA1(uuid.Nil, []byte("TRANSFER:"+req.ID))
		if note == "" {
			note = fmt.Sprintf("%s %s", req.RequestNumber, strings.ToLower(string(req.Status)))
		}
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module: "TRANSFER", RefID: refID, ActorID: req.ProcessedBy, Action: decision, Note: note,
		}); err != nil {
			s.logger.Warn("record approval", slog.String("request_id", req.ID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		change := StatusChange{
			RequestID:     req.ID,
			RequestNumber: req.RequestNumber,
			Action:        action,
			From:          from,
			To:            req.Status,
			OriginID:      req.OriginID,
			DestinationID: req.DestinationID,
			ActorID:       req.ProcessedBy,
			At:            req.UpdatedAt,
		}
		if err := s.notifier.StatusChanged(ctx, change); err != nil {
			s.logger.Warn("notify status change", slog.String("request_id", req.ID), slog.Any("error", err))
		}
	}
	s.logger.Info("stock request transitioned",
		slog.String("request_id", req.ID),
		slog.String("action", string(action)),
		slog.String("from", string(from)),
		slog.String("to", string(req.Status)))
}

func (s *Service) recordAudit(ctx context.Context, action string, req StockRequest, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "stock_request",
		EntityID: req.ID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observe(action string, from, to Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(action, string(from), string(to))
	}
}

func (s *Service) validateRoute(ctx context.Context, origin, destination string) error {
	if origin == "" || destination == "" {
		return fmt.Errorf("%w: origin and destination required", ErrValidation)
	}
	if origin == destination {
		return fmt.Errorf("%w: origin and destination must differ", ErrValidation)
	}
	if s.directory == nil {
		return nil
	}
	for _, id := range []string{origin, destination} {
		ok, err := s.directory.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: unknown location %s", ErrValidation, id)
		}
	}
	return nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ItemID) == "" {
			return fmt.Errorf("%w: item %d has no item id", ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be > 0", ErrValidation, i+1)
		}
	}
	return nil
}

func checkVersion(current StockRequest, expected int64) error {
	if expected != 0 && expected != current.Version {
		return fmt.Errorf("%w: have version %d, expected %d", ErrVersionConflict, current.Version, expected)
	}
	return nil
}
