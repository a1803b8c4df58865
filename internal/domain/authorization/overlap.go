package authorization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OverlapChecker detects conflicting authorizations: same client, intersecting
// date ranges and at least one shared service type. It is consulted before an
// authorization is created or updated so conflicts are rejected up front.
type OverlapChecker struct {
	repo AuthorizationRepository
}

// NewOverlapChecker creates a new OverlapChecker
func NewOverlapChecker(repo AuthorizationRepository) *OverlapChecker {
	return &OverlapChecker{repo: repo}
}

// Overlaps returns true if any authorization for the client in an
// overlap-relevant status (ACTIVE, APPROVED, EXPIRING) intersects the
// candidate date range with the closed-interval test
// existing.start <= candidate.end AND existing.end >= candidate.start,
// and shares at least one of the candidate service types. An empty service
// type set or no date intersection yields false without further checks.
// excludeID skips the authorization being updated when checking against
// itself.
func (c *OverlapChecker) Overlaps(ctx context.Context, clientID uuid.UUID, serviceTypeIDs []uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if len(serviceTypeIDs) == 0 {
		return false, nil
	}

	candidates, err := c.repo.FindOverlapping(ctx, clientID, start, end, excludeID)
	if err != nil {
		return false, err
	}

	for i := range candidates {
		if candidates[i].SharesServiceType(serviceTypeIDs) {
			return true, nil
		}
	}
	return false, nil
}
