package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormAuthorizationRepository implements AuthorizationRepository using GORM
type GormAuthorizationRepository struct {
	db *gorm.DB
}

// NewGormAuthorizationRepository creates a new GormAuthorizationRepository
func NewGormAuthorizationRepository(db *gorm.DB) *GormAuthorizationRepository {
	return &GormAuthorizationRepository{db: db}
}

// Create persists the header, the full sub-authorization set and a
// zero-initialized utilization ledger row as one atomic unit
func (r *GormAuthorizationRepository) Create(ctx context.Context, auth *authorization.Authorization) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("ServiceTypes", "Utilization").Create(auth).Error; err != nil {
			return err
		}
		if len(auth.ServiceTypes) > 0 {
			if err := tx.Create(&auth.ServiceTypes).Error; err != nil {
				return err
			}
		}
		util := authorization.NewAuthorizationUtilization(auth.ID)
		if err := tx.Create(util).Error; err != nil {
			return err
		}
		auth.Utilization = util
		return nil
	})
}

// FindByID loads the full aggregate: header, service-type set and ledger row
func (r *GormAuthorizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*authorization.Authorization, error) {
	var auth authorization.Authorization
	if err := r.db.WithContext(ctx).
		Preload("ServiceTypes").
		Preload("Utilization").
		First(&auth, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &auth, nil
}

// Update persists header changes; when replaceServiceTypes is true the
// existing sub-authorization set is deleted and the current set inserted in
// its place, atomically. The ledger row is left untouched.
func (r *GormAuthorizationRepository) Update(ctx context.Context, auth *authorization.Authorization, replaceServiceTypes bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&authorization.Authorization{}).
			Where("id = ?", auth.ID).
			Updates(map[string]interface{}{
				"authorization_number": auth.AuthorizationNumber,
				"start_date":           auth.StartDate,
				"end_date":             auth.EndDate,
				"notes":                auth.Notes,
				"updated_by":           auth.UpdatedBy,
				"version":              auth.Version,
				"updated_at":           auth.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if replaceServiceTypes {
			if err := tx.Where("authorization_id = ?", auth.ID).
				Delete(&authorization.AuthorizationServiceType{}).Error; err != nil {
				return err
			}
			if len(auth.ServiceTypes) > 0 {
				if err := tx.Create(&auth.ServiceTypes).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SaveWithLock persists header fields with an optimistic version check
func (r *GormAuthorizationRepository) SaveWithLock(ctx context.Context, auth *authorization.Authorization) error {
	result := r.db.WithContext(ctx).
		Model(auth).
		Where("id = ? AND version = ?", auth.ID, auth.Version-1).
		Updates(map[string]interface{}{
			"authorization_number": auth.AuthorizationNumber,
			"start_date":           auth.StartDate,
			"end_date":             auth.EndDate,
			"status":               auth.Status,
			"notes":                auth.Notes,
			"updated_by":           auth.UpdatedBy,
			"version":              auth.Version,
			"updated_at":           auth.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Authorization was modified by another transaction")
	}
	return nil
}

// UpdateStatus writes the status directly. Lifecycle rules are enforced by
// the aggregate's state machine before this is called.
func (r *GormAuthorizationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status authorization.Status, actorID uuid.UUID) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if actorID != uuid.Nil {
		updates["updated_by"] = actorID
	}

	result := r.db.WithContext(ctx).
		Model(&authorization.Authorization{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindActiveForClient returns ACTIVE authorizations whose date range covers
// asOf
func (r *GormAuthorizationRepository) FindActiveForClient(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]authorization.Authorization, error) {
	var auths []authorization.Authorization
	if err := r.db.WithContext(ctx).
		Preload("ServiceTypes").
		Preload("Utilization").
		Where("client_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
			clientID, authorization.StatusActive, asOf, asOf).
		Order("start_date ASC").
		Find(&auths).Error; err != nil {
		return nil, err
	}
	return auths, nil
}

// FindExpiring returns ACTIVE authorizations ending within the next
// daysThreshold days
func (r *GormAuthorizationRepository) FindExpiring(ctx context.Context, daysThreshold int) ([]authorization.Authorization, error) {
	today := time.Now().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, daysThreshold)

	var auths []authorization.Authorization
	if err := r.db.WithContext(ctx).
		Preload("ServiceTypes").
		Preload("Utilization").
		Where("status = ? AND end_date >= ? AND end_date <= ?",
			authorization.StatusActive, today, cutoff).
		Order("end_date ASC").
		Find(&auths).Error; err != nil {
		return nil, err
	}
	return auths, nil
}

// FindOverlapping returns authorizations for the client in an overlap-relevant
// status whose date range intersects [start, end] (closed intervals),
// excluding excludeID when non-nil. Service types are preloaded so the caller
// can intersect type sets.
func (r *GormAuthorizationRepository) FindOverlapping(ctx context.Context, clientID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]authorization.Authorization, error) {
	query := r.db.WithContext(ctx).
		Preload("ServiceTypes").
		Where("client_id = ? AND status IN ? AND start_date <= ? AND end_date >= ?",
			clientID, authorization.OverlapStatuses, end, start)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var auths []authorization.Authorization
	if err := query.Find(&auths).Error; err != nil {
		return nil, err
	}
	return auths, nil
}

// FindAllForClient lists a client's authorizations with filtering and
// pagination
func (r *GormAuthorizationRepository) FindAllForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) ([]authorization.Authorization, error) {
	var auths []authorization.Authorization
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&authorization.Authorization{}).
			Preload("ServiceTypes").
			Where("client_id = ?", clientID),
		filter,
	)

	if err := query.Find(&auths).Error; err != nil {
		return nil, err
	}
	return auths, nil
}

// CountForClient counts a client's authorizations matching the filter
func (r *GormAuthorizationRepository) CountForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&authorization.Authorization{}).Where("client_id = ?", clientID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormAuthorizationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, AuthorizationSortFields, "created_at")
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormAuthorizationRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "program_id":
			query = query.Where("program_id = ?", value)
		}
	}

	if filter.Search != "" {
		query = query.Where("authorization_number ILIKE ?", "%"+filter.Search+"%")
	}

	return query
}

// Ensure GormAuthorizationRepository implements AuthorizationRepository
var _ authorization.AuthorizationRepository = (*GormAuthorizationRepository)(nil)
