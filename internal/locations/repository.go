package locations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context) ([]Location, error)
	Get(ctx context.Context, id string) (Location, error)
	Create(ctx context.Context, loc Location) (Location, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed directory.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, kind, address, active, created_at, updated_at
FROM locations ORDER BY kind, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		var kind string
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &kind, &l.Address, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Kind = Kind(kind)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Location, error) {
	var l Location
	var kind string
	err := r.db.QueryRow(ctx, `SELECT id, code, name, kind, address, active, created_at, updated_at
FROM locations WHERE id = $1`, id).Scan(&l.ID, &l.Code, &l.Name, &kind, &l.Address, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, err
	}
	l.Kind = Kind(kind)
	return l, nil
}

func (r *repository) Create(ctx context.Context, loc Location) (Location, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO locations (id, code, name, kind, address, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		loc.ID, loc.Code, loc.Name, string(loc.Kind), loc.Address, loc.Active).Scan(&loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Location{}, ErrDuplicate
		}
		return Location{}, err
	}
	return loc, nil
}

// MemoryRepository keeps locations in memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Location
}

// NewMemoryRepository seeds an in-memory directory with the given locations.
func NewMemoryRepository(seed ...Location) *MemoryRepository {
	m := &MemoryRepository{items: make(map[string]Location)}
	for _, l := range seed {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
			l.UpdatedAt = l.CreatedAt
		}
		m.items[l.ID] = l
	}
	return m
}

func (m *MemoryRepository) List(_ context.Context) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Location, 0, len(m.items))
	for _, l := range m.items {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.items[id]
	if !ok {
		return Location{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryRepository) Create(_ context.Context, loc Location) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[loc.ID]; ok {
		return Location{}, ErrDuplicate
	}
	for _, existing := range m.items {
		if existing.Code == loc.Code {
			return Location{}, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	loc.CreatedAt, loc.UpdatedAt = now, now
	m.items[loc.ID] = loc
	return loc, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
