package authorization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AuthorizationRepository defines the interface for authorization persistence.
// The aggregate (header + service-type set + utilization row) is always
// written atomically; a failure at any step rolls back the whole operation.
type AuthorizationRepository interface {
	// Create persists the header, the full sub-authorization set and a
	// zero-initialized utilization row as one atomic unit
	Create(ctx context.Context, auth *Authorization) error

	// FindByID loads the full aggregate (service types and utilization
	// included)
	FindByID(ctx context.Context, id uuid.UUID) (*Authorization, error)

	// Update persists header changes; when replaceServiceTypes is true the
	// existing sub-authorization set is deleted and the aggregate's current
	// set inserted in its place, atomically. The utilization row is left
	// untouched.
	Update(ctx context.Context, auth *Authorization, replaceServiceTypes bool) error

	// SaveWithLock persists header fields with an optimistic version check
	SaveWithLock(ctx context.Context, auth *Authorization) error

	// UpdateStatus writes the status directly, without lifecycle checks.
	// Lifecycle rules are enforced by the aggregate's state machine before
	// this is called.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, actorID uuid.UUID) error

	// FindActiveForClient returns ACTIVE authorizations whose date range
	// covers asOf
	FindActiveForClient(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]Authorization, error)

	// FindExpiring returns ACTIVE authorizations ending within
	// [today, today+daysThreshold]
	FindExpiring(ctx context.Context, daysThreshold int) ([]Authorization, error)

	// FindOverlapping returns authorizations for the client in an
	// overlap-relevant status whose date range intersects [start, end]
	// (closed intervals), excluding excludeID when non-nil. Service types
	// are preloaded so the caller can intersect type sets.
	FindOverlapping(ctx context.Context, clientID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]Authorization, error)

	// FindAllForClient lists a client's authorizations with filtering and
	// pagination
	FindAllForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) ([]Authorization, error)

	// CountForClient counts a client's authorizations matching the filter
	CountForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) (int64, error)
}

// UtilizationRepository defines the interface for the utilization ledger.
// Mutations go through conditional writes so that concurrent adjustments to
// the same authorization can never jointly exceed the cap.
type UtilizationRepository interface {
	// GetOrCreate returns the ledger row, lazily inserting a zero row on
	// first access. Safe under concurrent callers (insert-if-absent).
	GetOrCreate(ctx context.Context, authorizationID uuid.UUID) (*AuthorizationUtilization, error)

	// AddUnits applies a single conditional increment: it succeeds only when
	// the post-add value stays within authorizedUnits, otherwise it fails
	// with the units-exceeded business rule and changes nothing.
	AddUnits(ctx context.Context, authorizationID uuid.UUID, units, authorizedUnits decimal.Decimal, actorID uuid.UUID) (*AuthorizationUtilization, error)

	// RemoveUnits decrements usage, clamping at zero. Never fails on
	// underflow.
	RemoveUnits(ctx context.Context, authorizationID uuid.UUID, units decimal.Decimal, actorID uuid.UUID) (*AuthorizationUtilization, error)
}
