package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forkline/forkline/internal/platform/db"
)

// PGRepository stores requests in stock_requests and stock_request_lines.
type PGRepository struct {
	pool *pgxpool.Pool
	seq  Sequencer
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool, seq Sequencer) *PGRepository {
	return &PGRepository{pool: pool, seq: seq}
}

const requestColumns = `id, request_number, requested_at, origin_id, destination_id, notes, status, version,
updated_at, created_by, processed_by, processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (StockRequest, error) {
	var req StockRequest
	var status string
	err := row.Scan(&req.ID, &req.RequestNumber, &req.Date, &req.OriginID, &req.DestinationID, &req.Notes,
		&status, &req.Version, &req.UpdatedAt, &req.CreatedBy, &req.ProcessedBy, &req.ProcessedAt)
	if err != nil {
		return StockRequest{}, err
	}
	req.Status = Status(status)
	return req, nil
}

// requestNumberConstraint is the unique constraint on
// stock_requests.request_number.
const requestNumberConstraint = "stock_requests_request_number_key"

func (r *PGRepository) Create(ctx context.Context, req StockRequest) (StockRequest, error) {
	supplied := req.RequestNumber
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}
	req.Version = 1
	for attempt := 1; ; attempt++ {
		number, err := nextNumber(ctx, r.seq, supplied)
		if err != nil {
			return StockRequest{}, err
		}
		req.RequestNumber = number
		err = r.insert(ctx, &req)
		if err == nil {
			return req, nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
			return StockRequest{}, err
		}
		if pgErr.ConstraintName != requestNumberConstraint || supplied != "" || attempt == maxNumberAttempts {
			return StockRequest{}, fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		highest, err := r.maxNumber(ctx)
		if err != nil {
			return StockRequest{}, err
		}
		if err := advancePast(ctx, r.seq, highest); err != nil {
			return StockRequest{}, err
		}
	}
}

func (r *PGRepository) insert(ctx context.Context, req *StockRequest) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO stock_requests (id, request_number, requested_at, origin_id, destination_id,
notes, status, version, created_by) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING updated_at`,
			req.ID, req.RequestNumber, req.Date, req.OriginID, req.DestinationID, req.Notes, string(req.Status),
			req.Version, req.CreatedBy).Scan(&req.UpdatedAt)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, req.ID, req.Items)
	})
}

func (r *PGRepository) maxNumber(ctx context.Context) (int64, error) {
	var highest int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(substring(request_number FROM '^REQ-([0-9]+)$')::bigint), 0)
FROM stock_requests`).Scan(&highest)
	return highest, err
}

// RequestNumberSequence is the PostgreSQL sequence behind PGSequencer.
const RequestNumberSequence = "stock_request_number_seq"

// PGSequencer draws request numbers from a PostgreSQL sequence, so numbers
// survive restarts and are shared by every instance using the database.
type PGSequencer struct {
	pool *pgxpool.Pool
}

// NewPGSequencer constructs PGSequencer.
func NewPGSequencer(pool *pgxpool.Pool) *PGSequencer {
	return &PGSequencer{pool: pool}
}

func (s *PGSequencer) Next(ctx context.Context) (string, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('`+RequestNumberSequence+`')`).Scan(&n); err != nil {
		return "", fmt.Errorf("transfer: next request number: %w", err)
	}
	return FormatRequestNumber(n), nil
}

func (s *PGSequencer) Advance(ctx context.Context, floor int64) error {
	if floor < 1 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `SELECT setval('`+RequestNumberSequence+`', GREATEST($1::bigint,
(SELECT last_value FROM `+RequestNumberSequence+`)))`, floor)
	if err != nil {
		return fmt.Errorf("transfer: advance request number: %w", err)
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (StockRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM stock_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRequest{}, ErrNotFound
		}
		return StockRequest{}, err
	}
	lines, err := r.lines(ctx, r.pool, []string{id})
	if err != nil {
		return StockRequest{}, err
	}
	req.Items = lines[id]
	return req, nil
}

func (r *PGRepository) Update(ctx context.Context, id string, expectedVersion int64, fn func(*StockRequest) error) (StockRequest, error) {
	var updated StockRequest
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM stock_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}
		lines, err := r.lines(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		current.Items = lines[id]
		next := current.clone()
		if err := fn(&next); err != nil {
			return err
		}
		next.ID, next.RequestNumber, next.Date = current.ID, current.RequestNumber, current.Date
		next.Version = current.Version + 1
		tag, err := tx.Exec(ctx, `UPDATE stock_requests SET origin_id = $3, destination_id = $4, notes = $5, status = $6,
version = $7, updated_at = NOW(), processed_by = $8, processed_at = $9 WHERE id = $1 AND version = $2`,
			id, current.Version, next.OriginID, next.DestinationID, next.Notes, string(next.Status), next.Version,
			next.ProcessedBy, next.ProcessedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		if !sameLines(current.Items, next.Items) {
			if _, err := tx.Exec(ctx, `DELETE FROM stock_request_lines WHERE request_id = $1`, id); err != nil {
				return err
			}
			if err := insertLines(ctx, tx, id, next.Items); err != nil {
				return err
			}
		}
		if err := tx.QueryRow(ctx, `SELECT updated_at FROM stock_requests WHERE id = $1`, id).Scan(&next.UpdatedAt); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

func (r *PGRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var version int64
		err := tx.QueryRow(ctx, `SELECT version FROM stock_requests WHERE id = $1 FOR UPDATE`, id).Scan(&version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if expectedVersion != 0 && version != expectedVersion {
			return ErrVersionConflict
		}
		if _, err := tx.Exec(ctx, `DELETE FROM stock_request_lines WHERE request_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM stock_requests WHERE id = $1`, id)
		return err
	})
}

func (r *PGRepository) List(ctx context.Context) ([]StockRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM stock_requests ORDER BY requested_at, seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockRequest
	var ids []string
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
		ids = append(ids, req.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	lines, err := r.lines(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = lines[out[i].ID]
	}
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PGRepository) lines(ctx context.Context, q querier, ids []string) (map[string][]Line, error) {
	rows, err := q.Query(ctx, `SELECT request_id, item_id, quantity, unit FROM stock_request_lines
WHERE request_id = ANY($1) ORDER BY request_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]Line, len(ids))
	for rows.Next() {
		var requestID string
		var line Line
		if err := rows.Scan(&requestID, &line.ItemID, &line.Quantity, &line.Unit); err != nil {
			return nil, err
		}
		out[requestID] = append(out[requestID], line)
	}
	return out, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, requestID string, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"stock_request_lines"},
		[]string{"request_id", "position", "item_id", "quantity", "unit"},
		pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
			return []any{requestID, i, lines[i].ItemID, lines[i].Quantity, lines[i].Unit}, nil
		}))
	return err
}

func sameLines(a, b []Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
