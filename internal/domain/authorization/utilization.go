package authorization

import (
	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Utilization thresholds, expressed as percentages of the authorized cap.
const (
	// ExpiringThresholdPercent triggers the automatic ACTIVE → EXPIRING
	// transition after a successful ledger add.
	ExpiringThresholdPercent = 80
	// NearLimitWarnPercent triggers the near-limit validation warning when a
	// prospective service would push utilization beyond it.
	NearLimitWarnPercent = 90
)

// AdjustDirection is the direction of a ledger adjustment
type AdjustDirection string

const (
	AdjustAdd    AdjustDirection = "add"
	AdjustRemove AdjustDirection = "remove"
)

// IsValid returns true for a known adjustment direction
func (d AdjustDirection) IsValid() bool {
	return d == AdjustAdd || d == AdjustRemove
}

// AuthorizationUtilization is the running ledger of units consumed against an
// Authorization. One row per authorization, created lazily (zero-initialized)
// on first read or write and never deleted while the authorization exists.
// remainingUnits and utilizationPercentage are derived on read, not stored.
type AuthorizationUtilization struct {
	shared.BaseEntity
	AuthorizationID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	UsedUnits        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastUpdateAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastUpdatedBy    *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AuthorizationUtilization) TableName() string {
	return "authorization_utilizations"
}

// NewAuthorizationUtilization creates a zero-initialized ledger row
func NewAuthorizationUtilization(authorizationID uuid.UUID) *AuthorizationUtilization {
	return &AuthorizationUtilization{
		BaseEntity:       shared.NewBaseEntity(),
		AuthorizationID:  authorizationID,
		UsedUnits:        decimal.Zero,
		LastUpdateAmount: decimal.Zero,
	}
}

// RemainingUnits returns the units still available under the given cap,
// never negative
func (u *AuthorizationUtilization) RemainingUnits(authorizedUnits decimal.Decimal) decimal.Decimal {
	remaining := authorizedUnits.Sub(u.UsedUnits)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Percentage returns usedUnits ÷ authorizedUnits × 100, rounded to two
// decimal places. A zero cap yields zero.
func (u *AuthorizationUtilization) Percentage(authorizedUnits decimal.Decimal) decimal.Decimal {
	return PercentageOf(u.UsedUnits, authorizedUnits)
}

// WouldExceed returns true if adding delta would push usage past the cap
func (u *AuthorizationUtilization) WouldExceed(authorizedUnits, delta decimal.Decimal) bool {
	return u.UsedUnits.Add(delta).GreaterThan(authorizedUnits)
}

// PercentageOf computes used ÷ cap × 100 rounded to two decimal places
func PercentageOf(used, cap decimal.Decimal) decimal.Decimal {
	if cap.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return used.Div(cap).Mul(decimal.NewFromInt(100)).Round(2)
}
