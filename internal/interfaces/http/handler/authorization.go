package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	authapp "github.com/hcbs/backend/internal/application/authorization"
)

// parseDate parses a date string in the formats accepted by query parameters
func parseDate(s string) (time.Time, error) {
	// Try RFC3339 first
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Try ISO date format
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	// Default to RFC3339 parsing error
	return time.Parse(time.RFC3339, s)
}

// AuthorizationHandler handles authorization-related API endpoints
type AuthorizationHandler struct {
	BaseHandler
	authorizationService *authapp.AuthorizationService
	utilizationService   *authapp.UtilizationService
	validationService    *authapp.ValidationService
}

// NewAuthorizationHandler creates a new AuthorizationHandler
func NewAuthorizationHandler(
	authorizationService *authapp.AuthorizationService,
	utilizationService *authapp.UtilizationService,
	validationService *authapp.ValidationService,
) *AuthorizationHandler {
	return &AuthorizationHandler{
		authorizationService: authorizationService,
		utilizationService:   utilizationService,
		validationService:    validationService,
	}
}

// Create handles POST /authorizations
func (h *AuthorizationHandler) Create(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid actor ID")
		return
	}

	var req authapp.CreateAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authorizationService.Create(c.Request.Context(), req, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetByID handles GET /authorizations/:id
func (h *AuthorizationHandler) GetByID(c *gin.Context) {
	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	resp, err := h.authorizationService.Get(c.Request.Context(), authID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// Update handles PUT /authorizations/:id
func (h *AuthorizationHandler) Update(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid actor ID")
		return
	}

	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	var req authapp.UpdateAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authorizationService.Update(c.Request.Context(), authID, req, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// UpdateStatus handles PUT /authorizations/:id/status
func (h *AuthorizationHandler) UpdateStatus(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid actor ID")
		return
	}

	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	var req authapp.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authorizationService.UpdateStatus(c.Request.Context(), authID, req.Status, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// AdjustUtilization handles POST /authorizations/:id/utilization/adjustments
func (h *AuthorizationHandler) AdjustUtilization(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid actor ID")
		return
	}

	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	var req authapp.AdjustUtilizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.utilizationService.Adjust(c.Request.Context(), authID, req, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// GetUtilization handles GET /authorizations/:id/utilization
func (h *AuthorizationHandler) GetUtilization(c *gin.Context) {
	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	resp, err := h.utilizationService.Get(c.Request.Context(), authID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// ValidateService handles POST /authorizations/:id/validate-service.
// The verdict is always 200; blocking findings live in the result body.
func (h *AuthorizationHandler) ValidateService(c *gin.Context) {
	authID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid authorization ID format")
		return
	}

	var req authapp.ValidateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.validationService.ValidateService(c.Request.Context(), authID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// CheckOverlap handles POST /authorizations/overlap-checks. It runs the
// overlap guard against a prospective authorization without writing anything.
func (h *AuthorizationHandler) CheckOverlap(c *gin.Context) {
	var req authapp.CheckOverlapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authorizationService.CheckOverlap(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, resp)
}

// ListForClient handles GET /clients/:client_id/authorizations
func (h *AuthorizationHandler) ListForClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("client_id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}

	var filter authapp.AuthorizationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.authorizationService.ListForClient(c.Request.Context(), clientID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListActiveForClient handles GET /clients/:client_id/authorizations/active
func (h *AuthorizationHandler) ListActiveForClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("client_id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID format")
		return
	}

	asOf := time.Now()
	if asOfStr := c.Query("as_of"); asOfStr != "" {
		asOf, err = parseDate(asOfStr)
		if err != nil {
			h.BadRequest(c, "Invalid as_of date format")
			return
		}
	}

	items, err := h.authorizationService.FindActiveForClient(c.Request.Context(), clientID, asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, items)
}

// ExpiringQuery binds the expiring-soon query parameters
type ExpiringQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// ListExpiring handles GET /authorizations/expiring
func (h *AuthorizationHandler) ListExpiring(c *gin.Context) {
	var query ExpiringQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, err := h.authorizationService.FindExpiring(c.Request.Context(), query.Days)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, items)
}
