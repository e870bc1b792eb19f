package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// BranchChecker validates branch identifiers against the location directory.
type BranchChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service exposes catalog reads and branch override maintenance.
type Service struct {
	repo     Repository
	cache    *OverviewCache
	branches BranchChecker
	logger   *slog.Logger
}

// NewService builds Service. cache and branches are optional.
func NewService(repo Repository, cache *OverviewCache, branches BranchChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, branches: branches, logger: logger}
}

// CreateItem adds an item to the shared catalog.
func (s *Service) CreateItem(ctx context.Context, form ItemForm) (Item, error) {
	if strings.TrimSpace(form.Name) == "" || strings.TrimSpace(form.SKU) == "" {
		return Item{}, fmt.Errorf("%w: name and sku required", ErrValidation)
	}
	if form.StorageIngredientFactor <= 0 {
		return Item{}, fmt.Errorf("%w: storage ingredient factor must be > 0", ErrValidation)
	}
	if err := checkLevels(form.Defaults.MinLevel, form.Defaults.MaxLevel); err != nil {
		return Item{}, err
	}
	item := Item{
		ID:                      uuid.NewString(),
		Name:                    strings.TrimSpace(form.Name),
		SKU:                     strings.TrimSpace(form.SKU),
		Category:                strings.TrimSpace(form.Category),
		StorageUnit:             form.StorageUnit,
		IngredientUnit:          form.IngredientUnit,
		StorageIngredientFactor: form.StorageIngredientFactor,
		Defaults:                form.Defaults,
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// GetItem returns the raw item including every branch record.
func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	return s.repo.Get(ctx, id)
}

// ResolveItem returns the item as seen by branchID. Items without data for
// a non-empty branchID report ErrNotStocked.
func (s *Service) ResolveItem(ctx context.Context, id, branchID string) (ResolvedItem, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return ResolvedItem{}, err
	}
	if !StockedAt(item, branchID) {
		return ResolvedItem{}, fmt.Errorf("%w: %s at %s", ErrNotStocked, id, branchID)
	}
	return ResolveItem(item, branchID), nil
}

// Overview lists items resolved for filter.BranchID, narrowed by category
// and a case-insensitive search over name and sku.
func (s *Service) Overview(ctx context.Context, filter OverviewFilter) ([]ResolvedItem, error) {
	return s.cache.Fetch(ctx, filter, func(ctx context.Context) ([]ResolvedItem, error) {
		items, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		view := BranchView(items, filter.BranchID)
		out := view[:0]
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		for _, ri := range view {
			if filter.Category != "" && !strings.EqualFold(ri.Category, filter.Category) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(ri.Name), search) && !strings.Contains(strings.ToLower(ri.SKU), search) {
				continue
			}
			out = append(out, ri)
		}
		return out, nil
	})
}

// SetBranchOverride creates or patches the override record of branchID.
// Fields left nil in patch keep their current override value.
func (s *Service) SetBranchOverride(ctx context.Context, itemID, branchID string, patch BranchOverride) (Item, error) {
	if err := s.checkBranch(ctx, branchID); err != nil {
		return Item{}, err
	}
	item, err := s.repo.UpdateBranchData(ctx, itemID, func(data map[string]BranchOverride) error {
		merged := data[branchID].merge(patch)
		if merged.MinLevel != nil && merged.MaxLevel != nil {
			if err := checkLevels(*merged.MinLevel, *merged.MaxLevel); err != nil {
				return err
			}
		}
		data[branchID] = merged
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.logger.Info("branch override saved", slog.String("item_id", itemID), slog.String("branch_id", branchID))
	s.invalidate(ctx)
	return item, nil
}

// ClearBranchOverride removes the branch record; the item stops appearing
// in that branch's views.
func (s *Service) ClearBranchOverride(ctx context.Context, itemID, branchID string) (Item, error) {
	if strings.TrimSpace(branchID) == "" {
		return Item{}, fmt.Errorf("%w: branch required", ErrValidation)
	}
	item, err := s.repo.UpdateBranchData(ctx, itemID, func(data map[string]BranchOverride) error {
		if _, ok := data[branchID]; !ok {
			return fmt.Errorf("%w: %s at %s", ErrNotStocked, itemID, branchID)
		}
		delete(data, branchID)
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *Service) checkBranch(ctx context.Context, branchID string) error {
	if strings.TrimSpace(branchID) == "" {
		return fmt.Errorf("%w: branch required", ErrValidation)
	}
	if s.branches == nil {
		return nil
	}
	ok, err := s.branches.Exists(ctx, branchID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown branch %s", ErrValidation, branchID)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}

func checkLevels(minLevel, maxLevel float64) error {
	if minLevel < 0 || maxLevel < 0 {
		return fmt.Errorf("%w: levels must be >= 0", ErrValidation)
	}
	if maxLevel > 0 && minLevel > maxLevel {
		return fmt.Errorf("%w: min level exceeds max level", ErrValidation)
	}
	return nil
}
