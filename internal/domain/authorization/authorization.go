package authorization

import (
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Authorization is a payer/program-granted permission for a client to receive
// up to a capped number of units of specified service types within a date
// range. It is the aggregate root for authorization operations; the
// sub-authorization set and the utilization ledger row are owned children.
type Authorization struct {
	shared.AuditedAggregateRoot
	ClientID            uuid.UUID `gorm:"type:uuid;not null;index"`
	ProgramID           uuid.UUID `gorm:"type:uuid;not null;index"`
	AuthorizationNumber string    `gorm:"size:64;index"` // external payer reference, not unique-enforced
	StartDate           time.Time `gorm:"type:date;not null"`
	EndDate             time.Time `gorm:"type:date;not null"`
	Status              Status    `gorm:"size:16;not null;default:'requested';index"`
	Notes               string    `gorm:"type:text"`

	// Associations
	ServiceTypes []AuthorizationServiceType `gorm:"foreignKey:AuthorizationID;references:ID"`
	Utilization  *AuthorizationUtilization  `gorm:"foreignKey:AuthorizationID;references:ID"`
}

// TableName returns the table name for GORM
func (Authorization) TableName() string {
	return "authorizations"
}

// NewAuthorization creates a new authorization in the requested state
func NewAuthorization(clientID, programID uuid.UUID, authorizationNumber string, startDate, endDate time.Time, notes string, createdBy uuid.UUID) (*Authorization, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if programID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROGRAM", "Program ID cannot be empty")
	}
	if startDate.IsZero() || endDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE_RANGE", "Start and end dates are required")
	}
	if endDate.Before(startDate) {
		return nil, shared.NewDomainError("INVALID_DATE_RANGE", "End date cannot be before start date")
	}

	auth := &Authorization{
		AuditedAggregateRoot: shared.NewAuditedAggregateRoot(createdBy),
		ClientID:             clientID,
		ProgramID:            programID,
		AuthorizationNumber:  authorizationNumber,
		StartDate:            startDate,
		EndDate:              endDate,
		Status:               StatusRequested,
		Notes:                notes,
		ServiceTypes:         make([]AuthorizationServiceType, 0),
	}

	return auth, nil
}

// SetServiceTypes attaches the sub-authorization set during creation.
// The (authorizationID, serviceTypeID) pair must be unique within the set.
func (a *Authorization) SetServiceTypes(entries []AuthorizationServiceType) error {
	if err := checkDuplicateServiceTypes(entries); err != nil {
		return err
	}
	for i := range entries {
		entries[i].AuthorizationID = a.ID
	}
	a.ServiceTypes = entries
	return nil
}

// ReplaceServiceTypes swaps the sub-authorization set wholesale. The existing
// utilization row is left untouched; callers must re-validate capacity after
// a set change.
func (a *Authorization) ReplaceServiceTypes(entries []AuthorizationServiceType, actorID uuid.UUID) error {
	if err := checkDuplicateServiceTypes(entries); err != nil {
		return err
	}
	for i := range entries {
		entries[i].AuthorizationID = a.ID
	}
	a.ServiceTypes = entries
	a.SetUpdatedBy(actorID)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return nil
}

func checkDuplicateServiceTypes(entries []AuthorizationServiceType) error {
	seen := make(map[uuid.UUID]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.ServiceTypeID]; dup {
			return shared.NewDomainError("DUPLICATE_SERVICE_TYPE", "Service type appears more than once in authorization")
		}
		seen[entry.ServiceTypeID] = struct{}{}
	}
	return nil
}

// UpdateDetails patches header fields. Nil pointers leave a field unchanged.
func (a *Authorization) UpdateDetails(authorizationNumber *string, startDate, endDate *time.Time, notes *string, actorID uuid.UUID) error {
	newStart, newEnd := a.StartDate, a.EndDate
	if startDate != nil {
		newStart = *startDate
	}
	if endDate != nil {
		newEnd = *endDate
	}
	if newEnd.Before(newStart) {
		return shared.NewDomainError("INVALID_DATE_RANGE", "End date cannot be before start date")
	}

	a.StartDate = newStart
	a.EndDate = newEnd
	if authorizationNumber != nil {
		a.AuthorizationNumber = *authorizationNumber
	}
	if notes != nil {
		a.Notes = *notes
	}
	a.SetUpdatedBy(actorID)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return nil
}

// TransitionTo advances the lifecycle status through the state machine,
// rejecting transitions the table does not allow
func (a *Authorization) TransitionTo(next Status, actorID uuid.UUID) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown authorization status")
	}
	if next == a.Status {
		return nil
	}
	if !a.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			"Cannot transition authorization from "+string(a.Status)+" to "+string(next))
	}

	from := a.Status
	a.Status = next
	a.SetUpdatedBy(actorID)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewAuthorizationStatusChangedEvent(a, from, next))
	return nil
}

// MarkExpiring applies the automatic ACTIVE → EXPIRING transition driven by
// the utilization threshold. No-op when the authorization is already EXPIRING.
func (a *Authorization) MarkExpiring(actorID uuid.UUID) error {
	if a.Status == StatusExpiring {
		return nil
	}
	return a.TransitionTo(StatusExpiring, actorID)
}

// CoversDate returns true if the date falls within [StartDate, EndDate]
// (closed interval on both ends)
func (a *Authorization) CoversDate(date time.Time) bool {
	return !date.Before(a.StartDate) && !date.After(a.EndDate)
}

// HasServiceType returns true if the service type is among the
// sub-authorizations
func (a *Authorization) HasServiceType(serviceTypeID uuid.UUID) bool {
	return a.FindServiceType(serviceTypeID) != nil
}

// FindServiceType returns the sub-authorization for a service type, or nil
func (a *Authorization) FindServiceType(serviceTypeID uuid.UUID) *AuthorizationServiceType {
	for i := range a.ServiceTypes {
		if a.ServiceTypes[i].ServiceTypeID == serviceTypeID {
			return &a.ServiceTypes[i]
		}
	}
	return nil
}

// TotalAuthorizedUnits is the capacity the ledger enforces: the sum of
// authorized units across the sub-authorization set. The ledger tracks
// consumption at the authorization level, so the aggregate cap is the sum of
// the per-type caps.
func (a *Authorization) TotalAuthorizedUnits() decimal.Decimal {
	total := decimal.Zero
	for i := range a.ServiceTypes {
		total = total.Add(a.ServiceTypes[i].AuthorizedUnits)
	}
	return total
}

// ServiceTypeIDs returns the service types covered by this authorization
func (a *Authorization) ServiceTypeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.ServiceTypes))
	for i := range a.ServiceTypes {
		ids = append(ids, a.ServiceTypes[i].ServiceTypeID)
	}
	return ids
}

// SharesServiceType returns true if any sub-authorization matches one of the
// given service types
func (a *Authorization) SharesServiceType(serviceTypeIDs []uuid.UUID) bool {
	for _, id := range serviceTypeIDs {
		if a.HasServiceType(id) {
			return true
		}
	}
	return false
}
