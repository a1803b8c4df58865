package authorization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
)

// DefaultExpiringDaysThreshold is the fallback window for the expiring-soon
// query when neither the caller nor the configuration supplies one
const DefaultExpiringDaysThreshold = 30

// AuthorizationService handles authorization lifecycle operations: creation,
// updates, manual status transitions and queries. Utilization adjustments live
// in UtilizationService.
type AuthorizationService struct {
	authRepo              authorization.AuthorizationRepository
	overlapChecker        *authorization.OverlapChecker
	eventPublisher        shared.EventPublisher
	expiringDaysThreshold int
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(authRepo authorization.AuthorizationRepository) *AuthorizationService {
	return &AuthorizationService{
		authRepo:              authRepo,
		overlapChecker:        authorization.NewOverlapChecker(authRepo),
		expiringDaysThreshold: DefaultExpiringDaysThreshold,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *AuthorizationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetExpiringDaysThreshold overrides the default expiring-soon window,
// typically from configuration. Non-positive values are ignored.
func (s *AuthorizationService) SetExpiringDaysThreshold(days int) {
	if days > 0 {
		s.expiringDaysThreshold = days
	}
}

// publishDomainEvents publishes all domain events from the aggregate
func (s *AuthorizationService) publishDomainEvents(ctx context.Context, auth *authorization.Authorization) {
	if s.eventPublisher == nil {
		return
	}
	events := auth.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = s.eventPublisher.Publish(ctx, events...)
	auth.ClearDomainEvents()
}

// Create creates an authorization with its full service-type set and a
// zero-initialized utilization ledger row, atomically. A conflicting
// authorization (same client, intersecting date range, shared service type,
// overlap-relevant status) rejects the request before anything is written.
func (s *AuthorizationService) Create(ctx context.Context, req CreateAuthorizationRequest, actorID uuid.UUID) (*AuthorizationResponse, error) {
	auth, err := authorization.NewAuthorization(
		req.ClientID, req.ProgramID, req.AuthorizationNumber,
		req.StartDate, req.EndDate, req.Notes, actorID,
	)
	if err != nil {
		return nil, err
	}

	serviceTypes, err := toServiceTypeEntities(req.ServiceTypes)
	if err != nil {
		return nil, err
	}
	if err := auth.SetServiceTypes(serviceTypes); err != nil {
		return nil, err
	}

	overlaps, err := s.overlapChecker.Overlaps(ctx, auth.ClientID, auth.ServiceTypeIDs(), auth.StartDate, auth.EndDate, nil)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, shared.NewDomainError(authorization.CodeDuplicate,
			"A conflicting authorization already exists for this client, date range and service type")
	}

	if err := s.authRepo.Create(ctx, auth); err != nil {
		return nil, err
	}

	auth.AddDomainEvent(authorization.NewAuthorizationCreatedEvent(auth))
	s.publishDomainEvents(ctx, auth)

	response := ToAuthorizationResponse(auth)
	return &response, nil
}

// Get retrieves the full aggregate by ID
func (s *AuthorizationService) Get(ctx context.Context, id uuid.UUID) (*AuthorizationResponse, error) {
	auth, err := s.authRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToAuthorizationResponse(auth)
	return &response, nil
}

// Update applies a partial update to the header and, when service types are
// supplied, replaces the whole sub-authorization set. The overlap guard runs
// against the updated range and set, excluding the authorization itself.
func (s *AuthorizationService) Update(ctx context.Context, id uuid.UUID, req UpdateAuthorizationRequest, actorID uuid.UUID) (*AuthorizationResponse, error) {
	auth, err := s.authRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := auth.UpdateDetails(req.AuthorizationNumber, req.StartDate, req.EndDate, req.Notes, actorID); err != nil {
		return nil, err
	}

	replaceServiceTypes := req.ServiceTypes != nil
	if replaceServiceTypes {
		serviceTypes, err := toServiceTypeEntities(req.ServiceTypes)
		if err != nil {
			return nil, err
		}
		if err := auth.ReplaceServiceTypes(serviceTypes, actorID); err != nil {
			return nil, err
		}
	}

	overlaps, err := s.overlapChecker.Overlaps(ctx, auth.ClientID, auth.ServiceTypeIDs(), auth.StartDate, auth.EndDate, &auth.ID)
	if err != nil {
		return nil, err
	}
	if overlaps {
		return nil, shared.NewDomainError(authorization.CodeDuplicate,
			"The updated authorization would conflict with an existing one for this client, date range and service type")
	}

	if err := s.authRepo.Update(ctx, auth, replaceServiceTypes); err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, auth)

	response := ToAuthorizationResponse(auth)
	return &response, nil
}

// UpdateStatus performs a manual lifecycle transition. The aggregate's state
// machine validates the transition before anything is written.
func (s *AuthorizationService) UpdateStatus(ctx context.Context, id uuid.UUID, status authorization.Status, actorID uuid.UUID) (*AuthorizationResponse, error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown authorization status: "+string(status))
	}

	auth, err := s.authRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := auth.TransitionTo(status, actorID); err != nil {
		return nil, err
	}

	if err := s.authRepo.UpdateStatus(ctx, id, auth.Status, actorID); err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, auth)

	response := ToAuthorizationResponse(auth)
	return &response, nil
}

// ListForClient retrieves a client's authorizations as a paginated result
func (s *AuthorizationService) ListForClient(ctx context.Context, clientID uuid.UUID, filter AuthorizationListFilter) (*shared.Paginated[AuthorizationListItemResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "updated_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.Status != nil {
		domainFilter.Filters["status"] = string(*filter.Status)
	}

	auths, err := s.authRepo.FindAllForClient(ctx, clientID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.authRepo.CountForClient(ctx, clientID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]AuthorizationListItemResponse, 0, len(auths))
	for i := range auths {
		items = append(items, ToAuthorizationListItemResponse(&auths[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// FindActiveForClient returns the client's ACTIVE authorizations whose date
// range covers asOf
func (s *AuthorizationService) FindActiveForClient(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]AuthorizationResponse, error) {
	auths, err := s.authRepo.FindActiveForClient(ctx, clientID, asOf)
	if err != nil {
		return nil, err
	}

	responses := make([]AuthorizationResponse, 0, len(auths))
	for i := range auths {
		responses = append(responses, ToAuthorizationResponse(&auths[i]))
	}
	return responses, nil
}

// FindExpiring returns ACTIVE authorizations whose end date falls within the
// next daysThreshold days, for proactive renewal workflows. A non-positive
// daysThreshold falls back to the configured window.
func (s *AuthorizationService) FindExpiring(ctx context.Context, daysThreshold int) ([]AuthorizationResponse, error) {
	if daysThreshold <= 0 {
		daysThreshold = s.expiringDaysThreshold
	}

	auths, err := s.authRepo.FindExpiring(ctx, daysThreshold)
	if err != nil {
		return nil, err
	}

	responses := make([]AuthorizationResponse, 0, len(auths))
	for i := range auths {
		responses = append(responses, ToAuthorizationResponse(&auths[i]))
	}
	return responses, nil
}

// CheckOverlap runs the overlap guard against a prospective authorization
// without writing anything, so callers can surface conflicts before submitting
func (s *AuthorizationService) CheckOverlap(ctx context.Context, req CheckOverlapRequest) (*OverlapCheckResponse, error) {
	if req.EndDate.Before(req.StartDate) {
		return nil, shared.NewDomainError("INVALID_DATE_RANGE", "End date must not be before start date")
	}

	overlaps, err := s.overlapChecker.Overlaps(ctx, req.ClientID, req.ServiceTypeIDs, req.StartDate, req.EndDate, req.ExcludeID)
	if err != nil {
		return nil, err
	}
	return &OverlapCheckResponse{HasOverlap: overlaps}, nil
}
