package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forkline/forkline/internal/platform/db"
)

// Repository persists catalog items together with their branch records.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	// UpdateBranchData runs fn against the item's branch records and stores
	// the result atomically. Base defaults are never touched.
	UpdateBranchData(ctx context.Context, id string, fn func(map[string]BranchOverride) error) (Item, error)
}

// PGRepository stores items in catalog_items with branch_data as JSONB.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `id, name, sku, category, storage_unit, ingredient_unit, storage_ingredient_factor,
defaults, branch_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var defaults, branchData []byte
	if err := row.Scan(&item.ID, &item.Name, &item.SKU, &item.Category, &item.StorageUnit, &item.IngredientUnit,
		&item.StorageIngredientFactor, &defaults, &branchData, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	if err := json.Unmarshal(defaults, &item.Defaults); err != nil {
		return Item{}, fmt.Errorf("catalog: decode defaults: %w", err)
	}
	if len(branchData) > 0 {
		if err := json.Unmarshal(branchData, &item.BranchData); err != nil {
			return Item{}, fmt.Errorf("catalog: decode branch data: %w", err)
		}
	}
	return item, nil
}

func (r *PGRepository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM catalog_items ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id string) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

func (r *PGRepository) Create(ctx context.Context, item Item) (Item, error) {
	defaults, err := json.Marshal(item.Defaults)
	if err != nil {
		return Item{}, err
	}
	branchData, err := json.Marshal(item.BranchData)
	if err != nil {
		return Item{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO catalog_items (id, name, sku, category, storage_unit, ingredient_unit,
storage_ingredient_factor, defaults, branch_data) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		item.ID, item.Name, item.SKU, item.Category, item.StorageUnit, item.IngredientUnit,
		item.StorageIngredientFactor, defaults, branchData).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, ErrDuplicate
		}
		return Item{}, err
	}
	return item, nil
}

func (r *PGRepository) UpdateBranchData(ctx context.Context, id string, fn func(map[string]BranchOverride) error) (Item, error) {
	var updated Item
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		item, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if item.BranchData == nil {
			item.BranchData = make(map[string]BranchOverride)
		}
		if err := fn(item.BranchData); err != nil {
			return err
		}
		raw, err := json.Marshal(item.BranchData)
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `UPDATE catalog_items SET branch_data = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			id, raw).Scan(&item.UpdatedAt); err != nil {
			return err
		}
		updated = item
		return nil
	})
	return updated, err
}

// MemoryRepository keeps items in insertion order in memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]Item
	now   func() time.Time
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Item), now: func() time.Time { return time.Now().UTC() }}
}

func (m *MemoryRepository) List(_ context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneItem(m.items[id]))
	}
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return cloneItem(item), nil
}

func (m *MemoryRepository) Create(_ context.Context, item Item) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return Item{}, ErrDuplicate
	}
	for _, existing := range m.items {
		if existing.SKU == item.SKU {
			return Item{}, ErrDuplicate
		}
	}
	now := m.now()
	item.CreatedAt, item.UpdatedAt = now, now
	item = cloneItem(item)
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return cloneItem(item), nil
}

func (m *MemoryRepository) UpdateBranchData(_ context.Context, id string, fn func(map[string]BranchOverride) error) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	item = cloneItem(item)
	if item.BranchData == nil {
		item.BranchData = make(map[string]BranchOverride)
	}
	if err := fn(item.BranchData); err != nil {
		return Item{}, err
	}
	item.UpdatedAt = m.now()
	m.items[id] = item
	return cloneItem(item), nil
}

func cloneItem(item Item) Item {
	if item.BranchData == nil {
		return item
	}
	data := make(map[string]BranchOverride, len(item.BranchData))
	for k, v := range item.BranchData {
		data[k] = v
	}
	item.BranchData = data
	return item
}
