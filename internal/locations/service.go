package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service manages the location directory.
type Service struct {
	repo Repository
}

// NewService constructs a location service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every location, active or not.
func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

// Get fetches a single location. A blank id is a validation error.
func (s *Service) Get(ctx context.Context, id string) (Location, error) {
	if strings.TrimSpace(id) == "" {
		return Location{}, fmt.Errorf("%w: id required", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create validates form and stores a new active location, generating an ID
// when the form leaves it blank.
func (s *Service) Create(ctx context.Context, form LocationForm) (Location, error) {
	loc := Location{
		ID:      strings.TrimSpace(form.ID),
		Code:    strings.TrimSpace(form.Code),
		Name:    strings.TrimSpace(form.Name),
		Kind:    form.Kind,
		Address: form.Address,
		Active:  true,
	}
	if err := s.validate(loc); err != nil {
		return Location{}, err
	}
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	return s.repo.Create(ctx, loc)
}

// Names returns an id -> name lookup of every known location.
func (s *Service) Names(ctx context.Context) (map[string]string, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(all))
	for _, l := range all {
		names[l.ID] = l.Name
	}
	return names, nil
}

// Exists reports whether id is a known active location.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	loc, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return loc.Active, nil
}
