package authorization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func validCreateRequest() CreateAuthorizationRequest {
	return CreateAuthorizationRequest{
		ClientID:            uuid.New(),
		ProgramID:           uuid.New(),
		AuthorizationNumber: "AUTH-2024-001",
		StartDate:           testDate(2024, time.January, 1),
		EndDate:             testDate(2024, time.December, 31),
		ServiceTypes: []ServiceTypeEntry{
			{ServiceTypeID: uuid.New(), AuthorizedUnits: decimal.NewFromInt(100)},
		},
	}
}

func conflictingAuthorization(t *testing.T, clientID, serviceTypeID uuid.UUID) authorization.Authorization {
	t.Helper()
	auth, err := authorization.NewAuthorization(clientID, uuid.New(), "AUTH-EXISTING",
		testDate(2024, time.June, 1), testDate(2024, time.August, 31), "", uuid.Nil)
	require.NoError(t, err)
	auth.Status = authorization.StatusActive
	entry, err := authorization.NewAuthorizationServiceType(serviceTypeID, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, auth.SetServiceTypes([]authorization.AuthorizationServiceType{*entry}))
	return *auth
}

func TestAuthorizationService_Create(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("creates authorization with service types", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		publisher := NewMockEventPublisher()
		service := NewAuthorizationService(repo)
		service.SetEventPublisher(publisher)
		req := validCreateRequest()

		repo.On("FindOverlapping", ctx, req.ClientID, req.StartDate, req.EndDate, (*uuid.UUID)(nil)).
			Return([]authorization.Authorization{}, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*authorization.Authorization")).Return(nil)

		response, err := service.Create(ctx, req, actorID)

		require.NoError(t, err)
		assert.Equal(t, authorization.StatusRequested, response.Status)
		assert.Len(t, response.ServiceTypes, 1)
		assert.True(t, response.TotalAuthorizedUnits.Equal(decimal.NewFromInt(100)))
		assert.Len(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationCreated), 1)
		repo.AssertExpectations(t)
	})

	t.Run("rejects conflicting authorization", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		req := validCreateRequest()

		existing := conflictingAuthorization(t, req.ClientID, req.ServiceTypes[0].ServiceTypeID)
		repo.On("FindOverlapping", ctx, req.ClientID, req.StartDate, req.EndDate, (*uuid.UUID)(nil)).
			Return([]authorization.Authorization{existing}, nil)

		response, err := service.Create(ctx, req, actorID)

		require.Error(t, err)
		assert.Nil(t, response)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, authorization.CodeDuplicate, domainErr.Code)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("allows overlap when service types are disjoint", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		req := validCreateRequest()

		existing := conflictingAuthorization(t, req.ClientID, uuid.New())
		repo.On("FindOverlapping", ctx, req.ClientID, req.StartDate, req.EndDate, (*uuid.UUID)(nil)).
			Return([]authorization.Authorization{existing}, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*authorization.Authorization")).Return(nil)

		_, err := service.Create(ctx, req, actorID)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid date range before touching storage", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		req := validCreateRequest()
		req.StartDate, req.EndDate = req.EndDate, req.StartDate

		_, err := service.Create(ctx, req, actorID)

		require.Error(t, err)
		repo.AssertNotCalled(t, "FindOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthorizationService_CheckOverlap(t *testing.T) {
	ctx := context.Background()
	clientID := uuid.New()
	serviceTypeID := uuid.New()

	request := CheckOverlapRequest{
		ClientID:       clientID,
		ServiceTypeIDs: []uuid.UUID{serviceTypeID},
		StartDate:      testDate(2024, time.July, 1),
		EndDate:        testDate(2024, time.September, 30),
	}

	t.Run("detects shared service type in an intersecting range", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		existing := conflictingAuthorization(t, clientID, serviceTypeID)
		repo.On("FindOverlapping", ctx, clientID, request.StartDate, request.EndDate, (*uuid.UUID)(nil)).
			Return([]authorization.Authorization{existing}, nil)

		result, err := service.CheckOverlap(ctx, request)

		require.NoError(t, err)
		assert.True(t, result.HasOverlap)
	})

	t.Run("disjoint service types do not conflict", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		existing := conflictingAuthorization(t, clientID, uuid.New())
		repo.On("FindOverlapping", ctx, clientID, request.StartDate, request.EndDate, (*uuid.UUID)(nil)).
			Return([]authorization.Authorization{existing}, nil)

		result, err := service.CheckOverlap(ctx, request)

		require.NoError(t, err)
		assert.False(t, result.HasOverlap)
	})

	t.Run("exclude id skips the authorization being edited", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		excludeID := uuid.New()
		req := request
		req.ExcludeID = &excludeID
		repo.On("FindOverlapping", ctx, clientID, req.StartDate, req.EndDate, &excludeID).
			Return([]authorization.Authorization{}, nil)

		result, err := service.CheckOverlap(ctx, req)

		require.NoError(t, err)
		assert.False(t, result.HasOverlap)
	})

	t.Run("rejects an inverted date range", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		req := request
		req.StartDate, req.EndDate = req.EndDate, req.StartDate

		_, err := service.CheckOverlap(ctx, req)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_DATE_RANGE", domainErr.Code)
		repo.AssertNotCalled(t, "FindOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthorizationService_Update(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("propagates not found", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		id := uuid.New()

		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		response, err := service.Update(ctx, id, UpdateAuthorizationRequest{}, actorID)

		require.ErrorIs(t, err, shared.ErrNotFound)
		assert.Nil(t, response)
	})

	t.Run("replaces service type set when supplied", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		existing := conflictingAuthorization(t, uuid.New(), uuid.New())

		repo.On("FindByID", ctx, existing.ID).Return(&existing, nil)
		repo.On("FindOverlapping", ctx, existing.ClientID, existing.StartDate, existing.EndDate, &existing.ID).
			Return([]authorization.Authorization{}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*authorization.Authorization"), true).Return(nil)

		response, err := service.Update(ctx, existing.ID, UpdateAuthorizationRequest{
			ServiceTypes: []ServiceTypeEntry{
				{ServiceTypeID: uuid.New(), AuthorizedUnits: decimal.NewFromInt(40)},
				{ServiceTypeID: uuid.New(), AuthorizedUnits: decimal.NewFromInt(60)},
			},
		}, actorID)

		require.NoError(t, err)
		assert.Len(t, response.ServiceTypes, 2)
		assert.True(t, response.TotalAuthorizedUnits.Equal(decimal.NewFromInt(100)))
		repo.AssertExpectations(t)
	})

	t.Run("header-only update keeps the set", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		existing := conflictingAuthorization(t, uuid.New(), uuid.New())
		notes := "extended after review"

		repo.On("FindByID", ctx, existing.ID).Return(&existing, nil)
		repo.On("FindOverlapping", ctx, existing.ClientID, existing.StartDate, existing.EndDate, &existing.ID).
			Return([]authorization.Authorization{}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*authorization.Authorization"), false).Return(nil)

		response, err := service.Update(ctx, existing.ID, UpdateAuthorizationRequest{Notes: &notes}, actorID)

		require.NoError(t, err)
		assert.Equal(t, "extended after review", response.Notes)
		repo.AssertExpectations(t)
	})
}

func TestAuthorizationService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("performs a valid transition", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		publisher := NewMockEventPublisher()
		service := NewAuthorizationService(repo)
		service.SetEventPublisher(publisher)
		existing := conflictingAuthorization(t, uuid.New(), uuid.New())
		existing.Status = authorization.StatusRequested

		repo.On("FindByID", ctx, existing.ID).Return(&existing, nil)
		repo.On("UpdateStatus", ctx, existing.ID, authorization.StatusApproved, actorID).Return(nil)

		response, err := service.UpdateStatus(ctx, existing.ID, authorization.StatusApproved, actorID)

		require.NoError(t, err)
		assert.Equal(t, authorization.StatusApproved, response.Status)
		assert.Len(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationStatusChanged), 1)
		repo.AssertExpectations(t)
	})

	t.Run("rejects an invalid transition", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		existing := conflictingAuthorization(t, uuid.New(), uuid.New())
		existing.Status = authorization.StatusExpired

		repo.On("FindByID", ctx, existing.ID).Return(&existing, nil)

		_, err := service.UpdateStatus(ctx, existing.ID, authorization.StatusActive, actorID)

		require.Error(t, err)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		_, err := service.UpdateStatus(ctx, uuid.New(), authorization.Status("archived"), actorID)

		require.Error(t, err)
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestAuthorizationService_ListForClient(t *testing.T) {
	ctx := context.Background()
	clientID := uuid.New()

	t.Run("applies default paging", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		existing := conflictingAuthorization(t, clientID, uuid.New())

		expectedFilter := shared.Filter{
			Page: 1, PageSize: 20,
			OrderBy: "updated_at", OrderDir: "desc",
			Filters: map[string]interface{}{},
		}
		repo.On("FindAllForClient", ctx, clientID, expectedFilter).
			Return([]authorization.Authorization{existing}, nil)
		repo.On("CountForClient", ctx, clientID, expectedFilter).Return(int64(1), nil)

		page, err := service.ListForClient(ctx, clientID, AuthorizationListFilter{})

		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.PageSize)
		assert.Equal(t, 1, page.TotalPages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, existing.ID, page.Items[0].ID)
		repo.AssertExpectations(t)
	})

	t.Run("forwards status filter", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		status := authorization.StatusActive

		expectedFilter := shared.Filter{
			Page: 1, PageSize: 20,
			OrderBy: "updated_at", OrderDir: "desc",
			Filters: map[string]interface{}{"status": "active"},
		}
		repo.On("FindAllForClient", ctx, clientID, expectedFilter).
			Return([]authorization.Authorization{}, nil)
		repo.On("CountForClient", ctx, clientID, expectedFilter).Return(int64(0), nil)

		_, err := service.ListForClient(ctx, clientID, AuthorizationListFilter{Status: &status})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestAuthorizationService_FindExpiring(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to the default window", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)

		repo.On("FindExpiring", ctx, 30).Return([]authorization.Authorization{}, nil)

		responses, err := service.FindExpiring(ctx, 0)

		require.NoError(t, err)
		assert.Empty(t, responses)
		repo.AssertExpectations(t)
	})

	t.Run("configured window drives the fallback", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		service.SetExpiringDaysThreshold(45)

		repo.On("FindExpiring", ctx, 45).Return([]authorization.Authorization{}, nil)

		_, err := service.FindExpiring(ctx, 0)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("explicit days win over the configured window", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		service.SetExpiringDaysThreshold(45)

		repo.On("FindExpiring", ctx, 7).Return([]authorization.Authorization{}, nil)

		_, err := service.FindExpiring(ctx, 7)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("non-positive configuration is ignored", func(t *testing.T) {
		repo := new(MockAuthorizationRepository)
		service := NewAuthorizationService(repo)
		service.SetExpiringDaysThreshold(0)

		repo.On("FindExpiring", ctx, 30).Return([]authorization.Authorization{}, nil)

		_, err := service.FindExpiring(ctx, 0)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
