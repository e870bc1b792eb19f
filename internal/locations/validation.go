package locations

import (
	"fmt"
	"strings"
)

func (s *Service) validate(l Location) error {
	if strings.TrimSpace(l.Code) == "" {
		return fmt.Errorf("%w: location code is required", ErrValidation)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: location name is required", ErrValidation)
	}
	if l.Kind != KindHQ && l.Kind != KindBranch {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, l.Kind)
	}
	return nil
}
