package catalog

import "time"

// Resolve layers the branch override for branchID over the item's base
// defaults. An empty branchID is the aggregate view and always yields the
// base defaults. A branch without an override record also yields the base
// defaults; callers building branch lists use StockedAt to exclude it.
func Resolve(item Item, branchID string) Attributes {
	attrs := item.Defaults
	if branchID == "" {
		return detach(attrs)
	}
	o, ok := item.BranchData[branchID]
	if !ok {
		return detach(attrs)
	}
	if o.UnitPrice != nil {
		attrs.UnitPrice = *o.UnitPrice
	}
	if o.MinLevel != nil {
		attrs.MinLevel = *o.MinLevel
	}
	if o.MaxLevel != nil {
		attrs.MaxLevel = *o.MaxLevel
	}
	if o.ReorderLevel != nil {
		attrs.ReorderLevel = *o.ReorderLevel
	}
	if o.Quantity != nil {
		attrs.Quantity = *o.Quantity
	}
	if o.Status != nil {
		attrs.Status = *o.Status
	}
	if o.LastRestocked != nil {
		attrs.LastRestocked = o.LastRestocked
	}
	if o.ExpiresAt != nil {
		attrs.ExpiresAt = o.ExpiresAt
	}
	return detach(attrs)
}

// detach copies the time pointers so callers cannot write through to the
// stored item.
func detach(attrs Attributes) Attributes {
	attrs.LastRestocked = copyTime(attrs.LastRestocked)
	attrs.ExpiresAt = copyTime(attrs.ExpiresAt)
	return attrs
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StockedAt reports whether the item carries explicit data for branchID.
// Every item is stocked in the aggregate view.
func StockedAt(item Item, branchID string) bool {
	if branchID == "" {
		return true
	}
	_, ok := item.BranchData[branchID]
	return ok
}

// ResolveItem builds the branch-scoped view of item.
func ResolveItem(item Item, branchID string) ResolvedItem {
	attrs := Resolve(item, branchID)
	return ResolvedItem{
		ID:             item.ID,
		Name:           item.Name,
		SKU:            item.SKU,
		Category:       item.Category,
		StorageUnit:    item.StorageUnit,
		IngredientUnit: item.IngredientUnit,
		BranchID:       branchID,
		Effective:      attrs,
		StockStatus:    EffectiveStatus(attrs),
	}
}

// BranchView resolves items for branchID, dropping items without branch
// data. Input order is preserved.
func BranchView(items []Item, branchID string) []ResolvedItem {
	out := make([]ResolvedItem, 0, len(items))
	for _, item := range items {
		if !StockedAt(item, branchID) {
			continue
		}
		out = append(out, ResolveItem(item, branchID))
	}
	return out
}

// EffectiveStatus returns the stored status, deriving one from quantity and
// reorder level when none is stored.
func EffectiveStatus(attrs Attributes) StockStatus {
	if attrs.Status != "" {
		return attrs.Status
	}
	switch {
	case attrs.Quantity <= 0:
		return StatusOutOfStock
	case attrs.Quantity <= attrs.ReorderLevel:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// ToIngredientUnits converts a quantity in storage units to ingredient units.
func (i Item) ToIngredientUnits(storageQty float64) float64 {
	if i.StorageIngredientFactor <= 0 {
		return storageQty
	}
	return storageQty * i.StorageIngredientFactor
}

// ToStorageUnits converts a quantity in ingredient units to storage units.
func (i Item) ToStorageUnits(ingredientQty float64) float64 {
	if i.StorageIngredientFactor <= 0 {
		return ingredientQty
	}
	return ingredientQty / i.StorageIngredientFactor
}

// merge applies the set fields of patch over o.
func (o BranchOverride) merge(patch BranchOverride) BranchOverride {
	if patch.UnitPrice != nil {
		o.UnitPrice = patch.UnitPrice
	}
	if patch.MinLevel != nil {
		o.MinLevel = patch.MinLevel
	}
	if patch.MaxLevel != nil {
		o.MaxLevel = patch.MaxLevel
	}
	if patch.ReorderLevel != nil {
		o.ReorderLevel = patch.ReorderLevel
	}
	if patch.Quantity != nil {
		o.Quantity = patch.Quantity
	}
	if patch.Status != nil {
		o.Status = patch.Status
	}
	if patch.LastRestocked != nil {
		o.LastRestocked = patch.LastRestocked
	}
	if patch.ExpiresAt != nil {
		o.ExpiresAt = patch.ExpiresAt
	}
	return o
}
