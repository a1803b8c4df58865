package authorization

import (
	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeAuthorization = "Authorization"

// Event type constants
const (
	EventTypeAuthorizationCreated       = "AuthorizationCreated"
	EventTypeAuthorizationStatusChanged = "AuthorizationStatusChanged"
	EventTypeAuthorizationUnitsAdjusted = "AuthorizationUnitsAdjusted"
	EventTypeAuthorizationNearLimit     = "AuthorizationNearLimit"
)

// AuthorizationCreatedEvent is raised when an authorization aggregate is
// persisted for the first time
type AuthorizationCreatedEvent struct {
	shared.BaseDomainEvent
	AuthorizationID     uuid.UUID       `json:"authorization_id"`
	ClientID            uuid.UUID       `json:"client_id"`
	ProgramID           uuid.UUID       `json:"program_id"`
	AuthorizationNumber string          `json:"authorization_number,omitempty"`
	AuthorizedUnits     decimal.Decimal `json:"authorized_units"`
	ServiceTypeCount    int             `json:"service_type_count"`
}

// NewAuthorizationCreatedEvent creates a new AuthorizationCreatedEvent
func NewAuthorizationCreatedEvent(auth *Authorization) *AuthorizationCreatedEvent {
	return &AuthorizationCreatedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeAuthorizationCreated, AggregateTypeAuthorization, auth.ID),
		AuthorizationID:     auth.ID,
		ClientID:            auth.ClientID,
		ProgramID:           auth.ProgramID,
		AuthorizationNumber: auth.AuthorizationNumber,
		AuthorizedUnits:     auth.TotalAuthorizedUnits(),
		ServiceTypeCount:    len(auth.ServiceTypes),
	}
}

// EventType returns the event type name
func (e *AuthorizationCreatedEvent) EventType() string {
	return EventTypeAuthorizationCreated
}

// AuthorizationStatusChangedEvent is raised on every lifecycle transition,
// manual or automatic
type AuthorizationStatusChangedEvent struct {
	shared.BaseDomainEvent
	AuthorizationID uuid.UUID `json:"authorization_id"`
	ClientID        uuid.UUID `json:"client_id"`
	FromStatus      Status    `json:"from_status"`
	ToStatus        Status    `json:"to_status"`
}

// NewAuthorizationStatusChangedEvent creates a new AuthorizationStatusChangedEvent
func NewAuthorizationStatusChangedEvent(auth *Authorization, from, to Status) *AuthorizationStatusChangedEvent {
	return &AuthorizationStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuthorizationStatusChanged, AggregateTypeAuthorization, auth.ID),
		AuthorizationID: auth.ID,
		ClientID:        auth.ClientID,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// EventType returns the event type name
func (e *AuthorizationStatusChangedEvent) EventType() string {
	return EventTypeAuthorizationStatusChanged
}

// AuthorizationUnitsAdjustedEvent is raised after a successful ledger
// adjustment in either direction
type AuthorizationUnitsAdjustedEvent struct {
	shared.BaseDomainEvent
	AuthorizationID uuid.UUID       `json:"authorization_id"`
	ClientID        uuid.UUID       `json:"client_id"`
	Direction       AdjustDirection `json:"direction"`
	Units           decimal.Decimal `json:"units"`
	UsedUnits       decimal.Decimal `json:"used_units"`
	RemainingUnits  decimal.Decimal `json:"remaining_units"`
}

// NewAuthorizationUnitsAdjustedEvent creates a new AuthorizationUnitsAdjustedEvent
func NewAuthorizationUnitsAdjustedEvent(auth *Authorization, direction AdjustDirection, units, usedUnits, remainingUnits decimal.Decimal) *AuthorizationUnitsAdjustedEvent {
	return &AuthorizationUnitsAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuthorizationUnitsAdjusted, AggregateTypeAuthorization, auth.ID),
		AuthorizationID: auth.ID,
		ClientID:        auth.ClientID,
		Direction:       direction,
		Units:           units,
		UsedUnits:       usedUnits,
		RemainingUnits:  remainingUnits,
	}
}

// EventType returns the event type name
func (e *AuthorizationUnitsAdjustedEvent) EventType() string {
	return EventTypeAuthorizationUnitsAdjusted
}

// AuthorizationNearLimitEvent is raised when a ledger add pushes utilization
// to or past the expiring threshold
type AuthorizationNearLimitEvent struct {
	shared.BaseDomainEvent
	AuthorizationID uuid.UUID       `json:"authorization_id"`
	ClientID        uuid.UUID       `json:"client_id"`
	ProgramID       uuid.UUID       `json:"program_id"`
	UsedUnits       decimal.Decimal `json:"used_units"`
	AuthorizedUnits decimal.Decimal `json:"authorized_units"`
	Percentage      decimal.Decimal `json:"percentage"`
}

// NewAuthorizationNearLimitEvent creates a new AuthorizationNearLimitEvent
func NewAuthorizationNearLimitEvent(auth *Authorization, usedUnits, authorizedUnits decimal.Decimal) *AuthorizationNearLimitEvent {
	return &AuthorizationNearLimitEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuthorizationNearLimit, AggregateTypeAuthorization, auth.ID),
		AuthorizationID: auth.ID,
		ClientID:        auth.ClientID,
		ProgramID:       auth.ProgramID,
		UsedUnits:       usedUnits,
		AuthorizedUnits: authorizedUnits,
		Percentage:      PercentageOf(usedUnits, authorizedUnits),
	}
}

// EventType returns the event type name
func (e *AuthorizationNearLimitEvent) EventType() string {
	return EventTypeAuthorizationNearLimit
}
