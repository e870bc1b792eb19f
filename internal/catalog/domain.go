// Package catalog owns the shared ingredient/stock catalog and the rule that
// layers per-branch override records over an item's base defaults.
package catalog

import (
	"errors"
	"time"
)

// StockStatus is the stock badge shown for an item.
type StockStatus string

const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)

// Attributes is the overridable attribute set of an item.
type Attributes struct {
	UnitPrice     float64     `json:"unit_price"`
	MinLevel      float64     `json:"min_level"`
	MaxLevel      float64     `json:"max_level"`
	ReorderLevel  float64     `json:"reorder_level"`
	Quantity      float64     `json:"quantity"`
	Status        StockStatus `json:"status,omitempty"`
	LastRestocked *time.Time  `json:"last_restocked,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

// BranchOverride is a partial attribute record for one branch. Nil fields
// fall back to the item's base defaults.
type BranchOverride struct {
	UnitPrice     *float64     `json:"unit_price,omitempty"`
	MinLevel      *float64     `json:"min_level,omitempty"`
	MaxLevel      *float64     `json:"max_level,omitempty"`
	ReorderLevel  *float64     `json:"reorder_level,omitempty"`
	Quantity      *float64     `json:"quantity,omitempty"`
	Status        *StockStatus `json:"status,omitempty"`
	LastRestocked *time.Time   `json:"last_restocked,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// Item is a catalog entry shared by every branch.
type Item struct {
	ID                      string                    `json:"id"`
	Name                    string                    `json:"name"`
	SKU                     string                    `json:"sku"`
	Category                string                    `json:"category"`
	StorageUnit             string                    `json:"storage_unit"`
	IngredientUnit          string                    `json:"ingredient_unit"`
	StorageIngredientFactor float64                   `json:"storage_ingredient_factor"`
	Defaults                Attributes                `json:"defaults"`
	BranchData              map[string]BranchOverride `json:"branch_data,omitempty"`
	CreatedAt               time.Time                 `json:"created_at"`
	UpdatedAt               time.Time                 `json:"updated_at"`
}

// ResolvedItem is an item as seen from one branch (or the aggregate view
// when BranchID is empty).
type ResolvedItem struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	SKU            string      `json:"sku"`
	Category       string      `json:"category"`
	StorageUnit    string      `json:"storage_unit"`
	IngredientUnit string      `json:"ingredient_unit"`
	BranchID       string      `json:"branch_id,omitempty"`
	Effective      Attributes  `json:"effective"`
	StockStatus    StockStatus `json:"stock_status"`
}

// ItemForm is the payload for creating an item.
type ItemForm struct {
	Name                    string     `json:"name" validate:"required,max=200"`
	SKU                     string     `json:"sku" validate:"required,max=64"`
	Category                string     `json:"category" validate:"max=100"`
	StorageUnit             string     `json:"storage_unit" validate:"required,max=20"`
	IngredientUnit          string     `json:"ingredient_unit" validate:"required,max=20"`
	StorageIngredientFactor float64    `json:"storage_ingredient_factor" validate:"gt=0"`
	Defaults                Attributes `json:"defaults"`
}

// OverviewFilter narrows the stock overview.
type OverviewFilter struct {
	BranchID string
	Category string
	Search   string
}

var (
	ErrNotFound   = errors.New("catalog: item not found")
	ErrNotStocked = errors.New("catalog: item not stocked at branch")
	ErrDuplicate  = errors.New("catalog: duplicate sku")
	ErrValidation = errors.New("catalog: invalid input")
)
