package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type branchSet map[string]bool

func (b branchSet) Exists(_ context.Context, id string) (bool, error) { return b[id], nil }

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewMemoryRepository()
	svc := NewService(repo, NewOverviewCache(client, time.Minute), branchSet{"br-1": true, "br-2": true, "br-3": true}, nil)
	return svc, repo
}

func createFlour(t *testing.T, svc *Service) Item {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), ItemForm{
		Name: "Flour", SKU: "FL-001", Category: "Dry Goods", StorageUnit: "bag", IngredientUnit: "kg",
		StorageIngredientFactor: 25,
		Defaults:                Attributes{UnitPrice: 12, MinLevel: 5, MaxLevel: 50, ReorderLevel: 10, Quantity: 30},
	})
	require.NoError(t, err)
	return item
}

func TestBranchFallbackScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	item := createFlour(t, svc)

	_, err := svc.SetBranchOverride(ctx, item.ID, "br-2", BranchOverride{ReorderLevel: f64(25)})
	require.NoError(t, err)

	br2, err := svc.ResolveItem(ctx, item.ID, "br-2")
	require.NoError(t, err)
	require.Equal(t, 25.0, br2.Effective.ReorderLevel)

	_, err = svc.ResolveItem(ctx, item.ID, "br-3")
	require.ErrorIs(t, err, ErrNotStocked)

	agg, err := svc.ResolveItem(ctx, item.ID, "")
	require.NoError(t, err)
	require.Equal(t, 10.0, agg.Effective.ReorderLevel)

	raw, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, raw.Defaults.ReorderLevel)
}

func TestOverviewIsInvalidatedByOverrideWrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	item := createFlour(t, svc)

	view, err := svc.Overview(ctx, OverviewFilter{BranchID: "br-1"})
	require.NoError(t, err)
	require.Empty(t, view)

	_, err = svc.SetBranchOverride(ctx, item.ID, "br-1", BranchOverride{Quantity: f64(3)})
	require.NoError(t, err)

	view, err = svc.Overview(ctx, OverviewFilter{BranchID: "br-1"})
	require.NoError(t, err)
	require.Len(t, view, 1)
	require.Equal(t, StatusLowStock, view[0].StockStatus)

	_, err = svc.ClearBranchOverride(ctx, item.ID, "br-1")
	require.NoError(t, err)

	view, err = svc.Overview(ctx, OverviewFilter{BranchID: "br-1"})
	require.NoError(t, err)
	require.Empty(t, view)
}

func TestOverviewFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createFlour(t, svc)
	_, err := svc.CreateItem(ctx, ItemForm{
		Name: "Olive Oil", SKU: "OIL-7", Category: "Liquids", StorageUnit: "can", IngredientUnit: "l",
		StorageIngredientFactor: 5,
	})
	require.NoError(t, err)

	view, err := svc.Overview(ctx, OverviewFilter{Category: "liquids"})
	require.NoError(t, err)
	require.Len(t, view, 1)
	require.Equal(t, "Olive Oil", view[0].Name)

	view, err = svc.Overview(ctx, OverviewFilter{Search: "fl-0"})
	require.NoError(t, err)
	require.Len(t, view, 1)
	require.Equal(t, "Flour", view[0].Name)
}

func TestOverrideValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	item := createFlour(t, svc)

	_, err := svc.SetBranchOverride(ctx, item.ID, "br-9", BranchOverride{Quantity: f64(1)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetBranchOverride(ctx, item.ID, "br-1", BranchOverride{MinLevel: f64(10), MaxLevel: f64(5)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetBranchOverride(ctx, "missing", "br-1", BranchOverride{Quantity: f64(1)})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ClearBranchOverride(ctx, item.ID, "br-2")
	require.ErrorIs(t, err, ErrNotStocked)

	_, err = svc.CreateItem(ctx, ItemForm{Name: "Dup", SKU: "FL-001", StorageIngredientFactor: 1})
	require.ErrorIs(t, err, ErrDuplicate)
}
