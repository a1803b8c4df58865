package authorization

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stable business-rule codes surfaced by the validation engine, the ledger
// and the overlap guard. Callers match on these, never on message text.
const (
	CodeNotFound       = "authorization.not_found"
	CodeDateRange      = "authorization.date_range"
	CodeServiceType    = "authorization.service_type"
	CodeClient         = "authorization.client"
	CodeUnitsExceeded  = "authorization.units.exceeded"
	CodeUnitsNearLimit = "authorization.units.near_limit"
	CodeExpired        = "authorization.expired"
	CodeExpiring       = "authorization.expiring"
	CodeDuplicate      = "duplicate"
)

// CandidateService is the prospective billable service supplied by the
// service-recording workflow: who, what, when and how many units.
type CandidateService struct {
	ClientID      uuid.UUID
	ServiceTypeID uuid.UUID
	ServiceDate   time.Time
	Units         decimal.Decimal
}

// ValidationIssue is a single structured validation finding
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the verdict of checking a candidate service against an
// authorization. Warnings never block; IsAuthorized is true iff Errors is
// empty.
type ValidationResult struct {
	IsAuthorized bool              `json:"is_authorized"`
	Errors       []ValidationIssue `json:"errors"`
	Warnings     []ValidationIssue `json:"warnings"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		Errors:   make([]ValidationIssue, 0),
		Warnings: make([]ValidationIssue, 0),
	}
}

// AddError records a blocking finding
func (r *ValidationResult) AddError(code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Message: message})
}

// AddWarning records a non-blocking finding
func (r *ValidationResult) AddWarning(code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Code: code, Message: message})
}

// HasError returns true if a finding with the given code was recorded
func (r *ValidationResult) HasError(code string) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// HasWarning returns true if a warning with the given code was recorded
func (r *ValidationResult) HasWarning(code string) bool {
	for _, issue := range r.Warnings {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// NotFoundResult is the short-circuit verdict when the authorization itself
// does not exist; no other check is meaningful.
func NotFoundResult() *ValidationResult {
	result := newValidationResult()
	result.AddError(CodeNotFound, "Authorization not found")
	return result
}

// CheckService evaluates a candidate service against this authorization and
// its current utilization. All applicable checks run; findings accumulate so
// the caller sees every violation at once rather than fixing them one by one.
// The check is read-only and reserves no capacity.
func (a *Authorization) CheckService(candidate CandidateService, utilization *AuthorizationUtilization) *ValidationResult {
	result := newValidationResult()

	if !a.CoversDate(candidate.ServiceDate) {
		result.AddError(CodeDateRange, "Service date is outside the authorization date range")
	}

	if !a.HasServiceType(candidate.ServiceTypeID) {
		result.AddError(CodeServiceType, "Service type is not covered by this authorization")
	}

	if candidate.ClientID != a.ClientID {
		result.AddError(CodeClient, "Service client does not match the authorization client")
	}

	authorizedUnits := a.TotalAuthorizedUnits()
	usedUnits := decimal.Zero
	if utilization != nil {
		usedUnits = utilization.UsedUnits
	}
	projected := usedUnits.Add(candidate.Units)
	if projected.GreaterThan(authorizedUnits) {
		result.AddError(CodeUnitsExceeded, "Service would exceed the authorized units")
	} else if PercentageOf(projected, authorizedUnits).GreaterThan(decimal.NewFromInt(NearLimitWarnPercent)) {
		result.AddWarning(CodeUnitsNearLimit, "Service would push utilization near the authorized limit")
	}

	switch a.Status {
	case StatusExpired:
		result.AddError(CodeExpired, "Authorization has expired")
	case StatusExpiring:
		result.AddWarning(CodeExpiring, "Authorization is close to exhausting its units")
	}

	result.IsAuthorized = len(result.Errors) == 0
	return result
}
