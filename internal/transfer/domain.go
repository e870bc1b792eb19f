// Package transfer implements inter-branch stock requests: the request
// lifecycle, its persistence and the outbound/inbound queue views.
package transfer

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a stock request. The literal values are
// part of the public contract.
type Status string

const (
	StatusNew        Status = "New"
	StatusApproved   Status = "Approved"
	StatusRejected   Status = "Rejected"
	StatusDelivering Status = "Delivering"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusApproved, StatusRejected, StatusDelivering, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further operation is accepted.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// CanEdit reports whether header and lines may still change.
func (s Status) CanEdit() bool { return s == StatusNew }

// CanDelete reports whether the request may be removed.
func (s Status) CanDelete() bool { return s == StatusNew }

// Line is one requested item.
type Line struct {
	ItemID   string  `json:"item_id" validate:"required,max=64"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Unit     string  `json:"unit" validate:"max=20"`
}

// StockRequest is the aggregate root of a transfer between two locations.
type StockRequest struct {
	ID            string     `json:"id"`
	RequestNumber string     `json:"request_number"`
	Date          time.Time  `json:"date"`
	OriginID      string     `json:"origin_id"`
	DestinationID string     `json:"destination_id"`
	Notes         string     `json:"notes"`
	Status        Status     `json:"status"`
	Items         []Line     `json:"items"`
	Version       int64      `json:"version"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CreatedBy     string     `json:"created_by,omitempty"`
	ProcessedBy   string     `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// ItemCount returns the number of lines.
func (r StockRequest) ItemCount() int { return len(r.Items) }

func (r StockRequest) clone() StockRequest {
	r.Items = append([]Line(nil), r.Items...)
	if r.ProcessedAt != nil {
		at := *r.ProcessedAt
		r.ProcessedAt = &at
	}
	return r
}

var (
	ErrNotFound          = errors.New("transfer: request not found")
	ErrInvalidTransition = errors.New("transfer: operation not allowed in current status")
	ErrValidation        = errors.New("transfer: invalid request")
	ErrVersionConflict   = errors.New("transfer: request was modified concurrently")
	ErrWrongDestination  = errors.New("transfer: branch is not the destination")
	ErrDuplicate         = errors.New("transfer: duplicate request")
)
