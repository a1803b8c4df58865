package authorization

import (
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AuthorizationServiceType is the per-service-type sub-authorization within an
// Authorization: the unit cap, optional frequency sub-caps and negotiated rate
// for one service type. It is a child entity of the Authorization aggregate
// and is only ever replaced as a full set, never edited row by row.
type AuthorizationServiceType struct {
	shared.BaseEntity
	AuthorizationID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_authorization_service_type,priority:1"`
	ServiceTypeID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_authorization_service_type,priority:2"`
	AuthorizedUnits  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	MaxUnitsPerDay   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MaxUnitsPerWeek  *decimal.Decimal `gorm:"type:decimal(18,4)"`
	MaxUnitsPerMonth *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Rate             *decimal.Decimal `gorm:"type:decimal(18,4)"` // negotiated rate per unit, when it differs from the program rate
	EffectiveDate    *time.Time       `gorm:"type:date"`
	EndDate          *time.Time       `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (AuthorizationServiceType) TableName() string {
	return "authorization_service_types"
}

// NewAuthorizationServiceType creates a sub-authorization for one service type
func NewAuthorizationServiceType(serviceTypeID uuid.UUID, authorizedUnits decimal.Decimal) (*AuthorizationServiceType, error) {
	if serviceTypeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SERVICE_TYPE", "Service type ID cannot be empty")
	}
	if authorizedUnits.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_UNITS", "Authorized units must be positive")
	}

	return &AuthorizationServiceType{
		BaseEntity:      shared.NewBaseEntity(),
		ServiceTypeID:   serviceTypeID,
		AuthorizedUnits: authorizedUnits,
	}, nil
}

// WithSubCaps sets the optional per-day/per-week/per-month sub-caps
func (st *AuthorizationServiceType) WithSubCaps(perDay, perWeek, perMonth *decimal.Decimal) *AuthorizationServiceType {
	st.MaxUnitsPerDay = perDay
	st.MaxUnitsPerWeek = perWeek
	st.MaxUnitsPerMonth = perMonth
	return st
}

// WithRate sets the optional negotiated rate
func (st *AuthorizationServiceType) WithRate(rate *decimal.Decimal) *AuthorizationServiceType {
	st.Rate = rate
	return st
}

// WithValidityWindow sets the optional effective/end dates; when absent the
// sub-authorization inherits the parent authorization's range.
func (st *AuthorizationServiceType) WithValidityWindow(effective, end *time.Time) *AuthorizationServiceType {
	st.EffectiveDate = effective
	st.EndDate = end
	return st
}

// EffectiveRange resolves the validity window against the parent range
func (st *AuthorizationServiceType) EffectiveRange(parentStart, parentEnd time.Time) (time.Time, time.Time) {
	start, end := parentStart, parentEnd
	if st.EffectiveDate != nil {
		start = *st.EffectiveDate
	}
	if st.EndDate != nil {
		end = *st.EndDate
	}
	return start, end
}

// Covers returns true if the date falls within the resolved validity window
// (closed interval on both ends)
func (st *AuthorizationServiceType) Covers(date time.Time, parentStart, parentEnd time.Time) bool {
	start, end := st.EffectiveRange(parentStart, parentEnd)
	return !date.Before(start) && !date.After(end)
}
