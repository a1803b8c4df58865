package authorization

import (
	"context"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UtilizationService handles utilization ledger adjustments. All writes run
// inside a transaction scope so the conditional ledger increment and any
// automatic status transition commit or roll back together.
type UtilizationService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
}

// NewUtilizationService creates a new UtilizationService
func NewUtilizationService(txScope TransactionScope) *UtilizationService {
	return &UtilizationService{txScope: txScope}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *UtilizationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Adjust applies a ledger adjustment in either direction.
//
// Adds are conditional: the increment succeeds only when the post-add value
// stays within the authorization's total authorized units; concurrent adds can
// never jointly exceed the cap. When a successful add pushes utilization to or
// past the expiring threshold and the authorization is ACTIVE, the automatic
// EXPIRING transition happens in the same transaction.
//
// Removes clamp at zero and never demote EXPIRING back to ACTIVE.
func (s *UtilizationService) Adjust(ctx context.Context, authorizationID uuid.UUID, req AdjustUtilizationRequest, actorID uuid.UUID) (*UtilizationResponse, error) {
	if !req.Direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Adjustment direction must be add or remove")
	}
	if req.Units.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_UNITS", "Adjustment units must be positive")
	}

	var (
		response UtilizationResponse
		events   []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		auth, err := repos.AuthorizationRepo().FindByID(ctx, authorizationID)
		if err != nil {
			return err
		}
		if req.Direction == authorization.AdjustAdd && auth.Status.IsTerminal() {
			return shared.NewDomainError(authorization.CodeExpired,
				"Cannot record utilization against an authorization in a terminal state")
		}

		authorizedUnits := auth.TotalAuthorizedUnits()
		if _, err := repos.UtilizationRepo().GetOrCreate(ctx, authorizationID); err != nil {
			return err
		}

		var util *authorization.AuthorizationUtilization
		switch req.Direction {
		case authorization.AdjustAdd:
			util, err = repos.UtilizationRepo().AddUnits(ctx, authorizationID, req.Units, authorizedUnits, actorID)
		case authorization.AdjustRemove:
			util, err = repos.UtilizationRepo().RemoveUnits(ctx, authorizationID, req.Units, actorID)
		}
		if err != nil {
			return err
		}

		events = append(events, authorization.NewAuthorizationUnitsAdjustedEvent(
			auth, req.Direction, req.Units, util.UsedUnits, util.RemainingUnits(authorizedUnits)))

		if req.Direction == authorization.AdjustAdd {
			percentage := util.Percentage(authorizedUnits)
			threshold := decimal.NewFromInt(authorization.ExpiringThresholdPercent)
			if percentage.GreaterThanOrEqual(threshold) {
				events = append(events, authorization.NewAuthorizationNearLimitEvent(auth, util.UsedUnits, authorizedUnits))

				if auth.Status == authorization.StatusActive {
					if err := auth.MarkExpiring(actorID); err != nil {
						return err
					}
					if err := repos.AuthorizationRepo().UpdateStatus(ctx, authorizationID, auth.Status, actorID); err != nil {
						return err
					}
					events = append(events, auth.GetDomainEvents()...)
					auth.ClearDomainEvents()
				}
			}
		}

		response = ToUtilizationResponse(util, authorizedUnits)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Events only go out after the transaction committed
	if s.eventPublisher != nil && len(events) > 0 {
		_ = s.eventPublisher.Publish(ctx, events...)
	}

	return &response, nil
}

// Get returns the ledger state for an authorization, lazily creating the zero
// row on first read
func (s *UtilizationService) Get(ctx context.Context, authorizationID uuid.UUID) (*UtilizationResponse, error) {
	var response UtilizationResponse

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		auth, err := repos.AuthorizationRepo().FindByID(ctx, authorizationID)
		if err != nil {
			return err
		}

		util, err := repos.UtilizationRepo().GetOrCreate(ctx, authorizationID)
		if err != nil {
			return err
		}

		response = ToUtilizationResponse(util, auth.TotalAuthorizedUnits())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &response, nil
}
