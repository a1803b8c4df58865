package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUtilizationRepository implements UtilizationRepository using GORM.
// Adds run as a single conditional UPDATE so the cap holds under concurrent
// writers without application-level locking.
type GormUtilizationRepository struct {
	db *gorm.DB
}

// NewGormUtilizationRepository creates a new GormUtilizationRepository
func NewGormUtilizationRepository(db *gorm.DB) *GormUtilizationRepository {
	return &GormUtilizationRepository{db: db}
}

// GetOrCreate returns the ledger row, lazily inserting a zero row on first
// access. Safe under concurrent callers.
func (r *GormUtilizationRepository) GetOrCreate(ctx context.Context, authorizationID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	util, err := r.findByAuthorizationID(ctx, authorizationID)
	if err == nil {
		return util, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	// Use ON CONFLICT to handle race conditions
	util = authorization.NewAuthorizationUtilization(authorizationID)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "authorization_id"}},
			DoNothing: true,
		}).
		Create(util).Error; err != nil {
		return nil, err
	}

	// If the row wasn't created (conflict), fetch the existing one
	return r.findByAuthorizationID(ctx, authorizationID)
}

// AddUnits applies a single conditional increment: the UPDATE only matches
// when the post-add value stays within authorizedUnits, so concurrent adds
// can never jointly exceed the cap.
func (r *GormUtilizationRepository) AddUnits(ctx context.Context, authorizationID uuid.UUID, units, authorizedUnits decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	updates := map[string]interface{}{
		"used_units":         gorm.Expr("used_units + ?", units),
		"last_update_amount": units,
		"updated_at":         time.Now(),
	}
	if actorID != uuid.Nil {
		updates["last_updated_by"] = actorID
	}

	result := r.db.WithContext(ctx).
		Model(&authorization.AuthorizationUtilization{}).
		Where("authorization_id = ? AND used_units + ? <= ?", authorizationID, units, authorizedUnits).
		Updates(updates)

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is missing or the add would break the cap;
		// distinguish so callers get the right business rule.
		if _, err := r.findByAuthorizationID(ctx, authorizationID); err != nil {
			return nil, err
		}
		return nil, shared.NewDomainError(authorization.CodeUnitsExceeded,
			"Adjustment would exceed the authorized units")
	}

	return r.findByAuthorizationID(ctx, authorizationID)
}

// RemoveUnits decrements usage, clamping at zero. Never fails on underflow.
func (r *GormUtilizationRepository) RemoveUnits(ctx context.Context, authorizationID uuid.UUID, units decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	var util *authorization.AuthorizationUtilization

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row authorization.AuthorizationUtilization
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "authorization_id = ?", authorizationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		newUsed := row.UsedUnits.Sub(units)
		if newUsed.IsNegative() {
			newUsed = decimal.Zero
		}

		updates := map[string]interface{}{
			"used_units":         newUsed,
			"last_update_amount": units.Neg(),
			"updated_at":         time.Now(),
		}
		if actorID != uuid.Nil {
			updates["last_updated_by"] = actorID
		}
		if err := tx.Model(&row).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return err
		}

		row.UsedUnits = newUsed
		row.LastUpdateAmount = units.Neg()
		if actorID != uuid.Nil {
			row.LastUpdatedBy = &actorID
		}
		util = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return util, nil
}

func (r *GormUtilizationRepository) findByAuthorizationID(ctx context.Context, authorizationID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	var util authorization.AuthorizationUtilization
	if err := r.db.WithContext(ctx).
		First(&util, "authorization_id = ?", authorizationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &util, nil
}

// Ensure GormUtilizationRepository implements UtilizationRepository
var _ authorization.UtilizationRepository = (*GormUtilizationRepository)(nil)
