package authorization

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
)

// ValidationService answers whether a prospective billable service is covered
// by an authorization. The check is read-only: it reserves no capacity and
// mutates nothing, so callers can re-validate freely before recording.
type ValidationService struct {
	authRepo authorization.AuthorizationRepository
	utilRepo authorization.UtilizationRepository
}

// NewValidationService creates a new ValidationService
func NewValidationService(authRepo authorization.AuthorizationRepository, utilRepo authorization.UtilizationRepository) *ValidationService {
	return &ValidationService{
		authRepo: authRepo,
		utilRepo: utilRepo,
	}
}

// ValidateService checks a candidate service against the authorization and
// its current utilization. A missing authorization short-circuits to a
// not-found verdict instead of an error; every other storage failure
// propagates.
func (s *ValidationService) ValidateService(ctx context.Context, authorizationID uuid.UUID, req ValidateServiceRequest) (*authorization.ValidationResult, error) {
	auth, err := s.authRepo.FindByID(ctx, authorizationID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authorization.NotFoundResult(), nil
		}
		return nil, err
	}

	util, err := s.utilRepo.GetOrCreate(ctx, authorizationID)
	if err != nil {
		return nil, err
	}

	return auth.CheckService(authorization.CandidateService{
		ClientID:      req.ClientID,
		ServiceTypeID: req.ServiceTypeID,
		ServiceDate:   req.ServiceDate,
		Units:         req.Units,
	}, util), nil
}
