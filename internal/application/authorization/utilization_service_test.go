package authorization

import (
	"context"
	"errors"
	"sync"
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

// utilizationFixture wires a UtilizationService against a mock authorization
// repository and the in-memory ledger, with the authorization preloaded.
func utilizationFixture(t *testing.T, status authorization.Status, authorizedUnits int64) (*UtilizationService, *authorization.Authorization, *MockAuthorizationRepository, *MockEventPublisher) {
	t.Helper()

	auth, err := authorization.NewAuthorization(uuid.New(), uuid.New(), "AUTH-1",
		testDate(2024, time.January, 1), testDate(2024, time.December, 31), "", uuid.Nil)
	require.NoError(t, err)
	auth.Status = status
	entry, err := authorization.NewAuthorizationServiceType(uuid.New(), decimal.NewFromInt(authorizedUnits))
	require.NoError(t, err)
	require.NoError(t, auth.SetServiceTypes([]authorization.AuthorizationServiceType{*entry}))

	authRepo := new(MockAuthorizationRepository)
	authRepo.On("FindByID", mock.Anything, auth.ID).Return(auth, nil)

	utilRepo := newInMemoryUtilizationRepo()
	publisher := NewMockEventPublisher()

	service := NewUtilizationService(NewNoOpTransactionScope(authRepo, utilRepo))
	service.SetEventPublisher(publisher)
	return service, auth, authRepo, publisher
}

func TestUtilizationService_Adjust(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("add increments usage", func(t *testing.T) {
		service, auth, _, publisher := utilizationFixture(t, authorization.StatusActive, 100)

		response, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(25),
		}, actorID)

		require.NoError(t, err)
		assert.True(t, response.UsedUnits.Equal(decimal.NewFromInt(25)))
		assert.True(t, response.RemainingUnits.Equal(decimal.NewFromInt(75)))
		assert.True(t, response.Percentage.Equal(decimal.NewFromInt(25)))
		assert.Len(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationUnitsAdjusted), 1)
		assert.Empty(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationNearLimit))
	})

	t.Run("add exceeding the cap fails and changes nothing", func(t *testing.T) {
		service, auth, _, publisher := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(101),
		}, actorID)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, authorization.CodeUnitsExceeded, domainErr.Code)
		assert.Empty(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationUnitsAdjusted))

		state, err := service.Get(ctx, auth.ID)
		require.NoError(t, err)
		assert.True(t, state.UsedUnits.IsZero())
	})

	t.Run("add landing exactly on the cap succeeds", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusActive, 100)

		response, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(100),
		}, actorID)

		require.NoError(t, err)
		assert.True(t, response.UsedUnits.Equal(decimal.NewFromInt(100)))
		assert.True(t, response.RemainingUnits.IsZero())
	})

	t.Run("crossing the threshold flips active to expiring in the same transaction", func(t *testing.T) {
		service, auth, authRepo, publisher := utilizationFixture(t, authorization.StatusActive, 100)
		authRepo.On("UpdateStatus", mock.Anything, auth.ID, authorization.StatusExpiring, actorID).Return(nil)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(80),
		}, actorID)

		require.NoError(t, err)
		assert.Equal(t, authorization.StatusExpiring, auth.Status)
		assert.Len(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationNearLimit), 1)
		assert.Len(t, publisher.GetEventsByType(authorization.EventTypeAuthorizationStatusChanged), 1)
		authRepo.AssertExpectations(t)
	})

	t.Run("below the threshold leaves status alone", func(t *testing.T) {
		service, auth, authRepo, _ := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(79),
		}, actorID)

		require.NoError(t, err)
		assert.Equal(t, authorization.StatusActive, auth.Status)
		authRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remove clamps at zero", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(10),
		}, actorID)
		require.NoError(t, err)

		response, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustRemove,
			Units:     decimal.NewFromInt(40),
		}, actorID)

		require.NoError(t, err)
		assert.True(t, response.UsedUnits.IsZero())
	})

	t.Run("remove never demotes expiring back to active", func(t *testing.T) {
		service, auth, authRepo, _ := utilizationFixture(t, authorization.StatusExpiring, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(90),
		}, actorID)
		require.NoError(t, err)

		_, err = service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustRemove,
			Units:     decimal.NewFromInt(50),
		}, actorID)

		require.NoError(t, err)
		assert.Equal(t, authorization.StatusExpiring, auth.Status)
		authRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("add against a terminal authorization fails", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusExpired, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(10),
		}, actorID)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, authorization.CodeExpired, domainErr.Code)
	})

	t.Run("remove against a terminal authorization still drains the ledger", func(t *testing.T) {
		service, auth, authRepo, _ := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(40),
		}, actorID)
		require.NoError(t, err)

		// Authorization closes after the usage was recorded
		auth.Status = authorization.StatusExpired

		response, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustRemove,
			Units:     decimal.NewFromInt(15),
		}, actorID)

		require.NoError(t, err)
		assert.True(t, response.UsedUnits.Equal(decimal.NewFromInt(25)))
		authRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects non-positive units", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustAdd,
			Units:     decimal.NewFromInt(-5),
		}, actorID)

		require.Error(t, err)
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusActive, 100)

		_, err := service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
			Direction: authorization.AdjustDirection("increment"),
			Units:     decimal.NewFromInt(5),
		}, actorID)

		require.Error(t, err)
	})
}

// concurrentAuthRepo hands every caller its own copy of the aggregate so
// parallel adjustments cannot race on shared state, mirroring how each
// transaction reads its own row.
type concurrentAuthRepo struct {
	authorization.AuthorizationRepository
	mu     sync.Mutex
	auth   authorization.Authorization
	status authorization.Status
}

func newConcurrentAuthRepo(auth *authorization.Authorization) *concurrentAuthRepo {
	return &concurrentAuthRepo{auth: *auth, status: auth.Status}
}

func (r *concurrentAuthRepo) FindByID(_ context.Context, id uuid.UUID) (*authorization.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.auth.ID {
		return nil, shared.ErrNotFound
	}
	copied := r.auth
	copied.Status = r.status
	return &copied, nil
}

func (r *concurrentAuthRepo) UpdateStatus(_ context.Context, id uuid.UUID, status authorization.Status, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.auth.ID {
		return shared.ErrNotFound
	}
	r.status = status
	return nil
}

func TestUtilizationService_Adjust_Concurrent(t *testing.T) {
	// Four concurrent adds of 30 against a cap of 100: exactly three can fit,
	// the fourth must fail, regardless of interleaving.
	ctx := context.Background()

	auth, err := authorization.NewAuthorization(uuid.New(), uuid.New(), "AUTH-1",
		testDate(2024, time.January, 1), testDate(2024, time.December, 31), "", uuid.Nil)
	require.NoError(t, err)
	auth.Status = authorization.StatusActive
	entry, err := authorization.NewAuthorizationServiceType(uuid.New(), decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, auth.SetServiceTypes([]authorization.AuthorizationServiceType{*entry}))

	authRepo := newConcurrentAuthRepo(auth)
	service := NewUtilizationService(NewNoOpTransactionScope(authRepo, newInMemoryUtilizationRepo()))

	const workers = 4
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = service.Adjust(ctx, auth.ID, AdjustUtilizationRequest{
				Direction: authorization.AdjustAdd,
				Units:     decimal.NewFromInt(30),
			}, uuid.New())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, authorization.CodeUnitsExceeded, domainErr.Code)
		}
	}
	assert.Equal(t, 3, succeeded)

	state, err := service.Get(ctx, auth.ID)
	require.NoError(t, err)
	assert.True(t, state.UsedUnits.Equal(decimal.NewFromInt(90)), "got %s", state.UsedUnits)
}

func TestUtilizationService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("lazily creates the zero row", func(t *testing.T) {
		service, auth, _, _ := utilizationFixture(t, authorization.StatusActive, 100)

		response, err := service.Get(ctx, auth.ID)

		require.NoError(t, err)
		assert.True(t, response.UsedUnits.IsZero())
		assert.True(t, response.AuthorizedUnits.Equal(decimal.NewFromInt(100)))
		assert.True(t, response.RemainingUnits.Equal(decimal.NewFromInt(100)))
	})

	t.Run("propagates not found", func(t *testing.T) {
		authRepo := new(MockAuthorizationRepository)
		id := uuid.New()
		authRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)
		service := NewUtilizationService(NewNoOpTransactionScope(authRepo, newInMemoryUtilizationRepo()))

		_, err := service.Get(ctx, id)

		require.ErrorIs(t, err, shared.ErrNotFound)
	})
}
