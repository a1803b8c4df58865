package authorization

import (
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/shopspring/decimal"
)

// ServiceTypeEntry is one per-service-type sub-authorization in a create or
// update request
type ServiceTypeEntry struct {
	ServiceTypeID    uuid.UUID        `json:"service_type_id" binding:"required"`
	AuthorizedUnits  decimal.Decimal  `json:"authorized_units" binding:"required"`
	MaxUnitsPerDay   *decimal.Decimal `json:"max_units_per_day"`
	MaxUnitsPerWeek  *decimal.Decimal `json:"max_units_per_week"`
	MaxUnitsPerMonth *decimal.Decimal `json:"max_units_per_month"`
	Rate             *decimal.Decimal `json:"rate"`
	EffectiveDate    *time.Time       `json:"effective_date"`
	EndDate          *time.Time       `json:"end_date"`
}

// CreateAuthorizationRequest represents a request to create an authorization
// with its full service-type set
type CreateAuthorizationRequest struct {
	ClientID            uuid.UUID          `json:"client_id" binding:"required"`
	ProgramID           uuid.UUID          `json:"program_id" binding:"required"`
	AuthorizationNumber string             `json:"authorization_number"`
	StartDate           time.Time          `json:"start_date" binding:"required"`
	EndDate             time.Time          `json:"end_date" binding:"required"`
	Notes               string             `json:"notes"`
	ServiceTypes        []ServiceTypeEntry `json:"service_types" binding:"required,min=1,dive"`
}

// UpdateAuthorizationRequest represents a partial update of an authorization.
// Nil fields are left unchanged; a non-nil ServiceTypes replaces the whole
// sub-authorization set.
type UpdateAuthorizationRequest struct {
	AuthorizationNumber *string            `json:"authorization_number"`
	StartDate           *time.Time         `json:"start_date"`
	EndDate             *time.Time         `json:"end_date"`
	Notes               *string            `json:"notes"`
	ServiceTypes        []ServiceTypeEntry `json:"service_types"`
}

// UpdateStatusRequest represents a manual lifecycle transition
type UpdateStatusRequest struct {
	Status authorization.Status `json:"status" binding:"required,authorization_status"`
}

// AdjustUtilizationRequest represents a ledger adjustment in either direction
type AdjustUtilizationRequest struct {
	Direction authorization.AdjustDirection `json:"direction" binding:"required,adjust_direction"`
	Units     decimal.Decimal               `json:"units" binding:"required"`
}

// ValidateServiceRequest represents a prospective billable service to check
// against an authorization
type ValidateServiceRequest struct {
	ClientID      uuid.UUID       `json:"client_id" binding:"required"`
	ServiceTypeID uuid.UUID       `json:"service_type_id" binding:"required"`
	ServiceDate   time.Time       `json:"service_date" binding:"required"`
	Units         decimal.Decimal `json:"units" binding:"required"`
}

// CheckOverlapRequest represents a prospective authorization to test for
// conflicts without writing anything. ExcludeID skips the authorization being
// edited when checking a renewal against itself.
type CheckOverlapRequest struct {
	ClientID       uuid.UUID   `json:"client_id" binding:"required"`
	ServiceTypeIDs []uuid.UUID `json:"service_type_ids" binding:"required,min=1"`
	StartDate      time.Time   `json:"start_date" binding:"required"`
	EndDate        time.Time   `json:"end_date" binding:"required"`
	ExcludeID      *uuid.UUID  `json:"exclude_id"`
}

// OverlapCheckResponse reports whether a conflicting authorization exists
type OverlapCheckResponse struct {
	HasOverlap bool `json:"has_overlap"`
}

// AuthorizationListFilter represents filter options for authorization lists
type AuthorizationListFilter struct {
	Search   string                `form:"search"`
	Status   *authorization.Status `form:"status"`
	Page     int                   `form:"page" binding:"min=0"`
	PageSize int                   `form:"page_size" binding:"min=0,max=100"`
	OrderBy  string                `form:"order_by"`
	OrderDir string                `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ServiceTypeResponse represents a sub-authorization in API responses
type ServiceTypeResponse struct {
	ID               uuid.UUID        `json:"id"`
	ServiceTypeID    uuid.UUID        `json:"service_type_id"`
	AuthorizedUnits  decimal.Decimal  `json:"authorized_units"`
	MaxUnitsPerDay   *decimal.Decimal `json:"max_units_per_day,omitempty"`
	MaxUnitsPerWeek  *decimal.Decimal `json:"max_units_per_week,omitempty"`
	MaxUnitsPerMonth *decimal.Decimal `json:"max_units_per_month,omitempty"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	EffectiveDate    *time.Time       `json:"effective_date,omitempty"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
}

// UtilizationResponse represents the ledger state with derived fields
type UtilizationResponse struct {
	AuthorizationID  uuid.UUID       `json:"authorization_id"`
	UsedUnits        decimal.Decimal `json:"used_units"`
	AuthorizedUnits  decimal.Decimal `json:"authorized_units"`
	RemainingUnits   decimal.Decimal `json:"remaining_units"`
	Percentage       decimal.Decimal `json:"utilization_percentage"`
	LastUpdateAmount decimal.Decimal `json:"last_update_amount"`
	LastUpdatedBy    *uuid.UUID      `json:"last_updated_by,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AuthorizationResponse represents a full authorization aggregate in API
// responses
type AuthorizationResponse struct {
	ID                   uuid.UUID             `json:"id"`
	ClientID             uuid.UUID             `json:"client_id"`
	ProgramID            uuid.UUID             `json:"program_id"`
	AuthorizationNumber  string                `json:"authorization_number,omitempty"`
	StartDate            time.Time             `json:"start_date"`
	EndDate              time.Time             `json:"end_date"`
	Status               authorization.Status  `json:"status"`
	Notes                string                `json:"notes,omitempty"`
	TotalAuthorizedUnits decimal.Decimal       `json:"total_authorized_units"`
	ServiceTypes         []ServiceTypeResponse `json:"service_types"`
	Utilization          *UtilizationResponse  `json:"utilization,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	Version              int                   `json:"version"`
}

// AuthorizationListItemResponse represents an authorization list item
type AuthorizationListItemResponse struct {
	ID                  uuid.UUID            `json:"id"`
	ClientID            uuid.UUID            `json:"client_id"`
	ProgramID           uuid.UUID            `json:"program_id"`
	AuthorizationNumber string               `json:"authorization_number,omitempty"`
	StartDate           time.Time            `json:"start_date"`
	EndDate             time.Time            `json:"end_date"`
	Status              authorization.Status `json:"status"`
	ServiceTypeCount    int                  `json:"service_type_count"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// toServiceTypeEntities converts request entries into domain child entities
func toServiceTypeEntities(entries []ServiceTypeEntry) ([]authorization.AuthorizationServiceType, error) {
	result := make([]authorization.AuthorizationServiceType, 0, len(entries))
	for _, entry := range entries {
		st, err := authorization.NewAuthorizationServiceType(entry.ServiceTypeID, entry.AuthorizedUnits)
		if err != nil {
			return nil, err
		}
		st.WithSubCaps(entry.MaxUnitsPerDay, entry.MaxUnitsPerWeek, entry.MaxUnitsPerMonth).
			WithRate(entry.Rate).
			WithValidityWindow(entry.EffectiveDate, entry.EndDate)
		result = append(result, *st)
	}
	return result, nil
}

// ToServiceTypeResponse converts a domain child entity to a response DTO
func ToServiceTypeResponse(st *authorization.AuthorizationServiceType) ServiceTypeResponse {
	return ServiceTypeResponse{
		ID:               st.ID,
		ServiceTypeID:    st.ServiceTypeID,
		AuthorizedUnits:  st.AuthorizedUnits,
		MaxUnitsPerDay:   st.MaxUnitsPerDay,
		MaxUnitsPerWeek:  st.MaxUnitsPerWeek,
		MaxUnitsPerMonth: st.MaxUnitsPerMonth,
		Rate:             st.Rate,
		EffectiveDate:    st.EffectiveDate,
		EndDate:          st.EndDate,
	}
}

// ToUtilizationResponse converts a ledger row to a response DTO, deriving
// remaining units and percentage against the given cap
func ToUtilizationResponse(util *authorization.AuthorizationUtilization, authorizedUnits decimal.Decimal) UtilizationResponse {
	return UtilizationResponse{
		AuthorizationID:  util.AuthorizationID,
		UsedUnits:        util.UsedUnits,
		AuthorizedUnits:  authorizedUnits,
		RemainingUnits:   util.RemainingUnits(authorizedUnits),
		Percentage:       util.Percentage(authorizedUnits),
		LastUpdateAmount: util.LastUpdateAmount,
		LastUpdatedBy:    util.LastUpdatedBy,
		UpdatedAt:        util.UpdatedAt,
	}
}

// ToAuthorizationResponse converts a domain aggregate to a response DTO
func ToAuthorizationResponse(auth *authorization.Authorization) AuthorizationResponse {
	serviceTypes := make([]ServiceTypeResponse, 0, len(auth.ServiceTypes))
	for i := range auth.ServiceTypes {
		serviceTypes = append(serviceTypes, ToServiceTypeResponse(&auth.ServiceTypes[i]))
	}

	response := AuthorizationResponse{
		ID:                   auth.ID,
		ClientID:             auth.ClientID,
		ProgramID:            auth.ProgramID,
		AuthorizationNumber:  auth.AuthorizationNumber,
		StartDate:            auth.StartDate,
		EndDate:              auth.EndDate,
		Status:               auth.Status,
		Notes:                auth.Notes,
		TotalAuthorizedUnits: auth.TotalAuthorizedUnits(),
		ServiceTypes:         serviceTypes,
		CreatedAt:            auth.CreatedAt,
		UpdatedAt:            auth.UpdatedAt,
		Version:              auth.Version,
	}

	if auth.Utilization != nil {
		util := ToUtilizationResponse(auth.Utilization, auth.TotalAuthorizedUnits())
		response.Utilization = &util
	}

	return response
}

// ToAuthorizationListItemResponse converts a domain aggregate to a list item DTO
func ToAuthorizationListItemResponse(auth *authorization.Authorization) AuthorizationListItemResponse {
	return AuthorizationListItemResponse{
		ID:                  auth.ID,
		ClientID:            auth.ClientID,
		ProgramID:           auth.ProgramID,
		AuthorizationNumber: auth.AuthorizationNumber,
		StartDate:           auth.StartDate,
		EndDate:             auth.EndDate,
		Status:              auth.Status,
		ServiceTypeCount:    len(auth.ServiceTypes),
		UpdatedAt:           auth.UpdatedAt,
	}
}
