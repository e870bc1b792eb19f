// Package locations is the organisation directory of branches and
// headquarters that stock requests move between.
package locations

import (
	"errors"
	"time"
)

// Kind distinguishes headquarters from branches.
type Kind string

const (
	KindHQ     Kind = "HQ"
	KindBranch Kind = "BRANCH"
)

// Location represents a branch or the headquarters.
type Location struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationForm is the payload for creating a location.
type LocationForm struct {
	ID      string `json:"id" validate:"omitempty,max=64"`
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=200"`
	Kind    Kind   `json:"kind" validate:"required,oneof=HQ BRANCH"`
	Address string `json:"address" validate:"max=500"`
}

var (
	ErrNotFound   = errors.New("locations: not found")
	ErrDuplicate  = errors.New("locations: duplicate code or id")
	ErrValidation = errors.New("locations: invalid input")
)
