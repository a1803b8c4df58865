package authorization

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func createTestAuthorization(t *testing.T) *Authorization {
	t.Helper()
	auth, err := NewAuthorization(
		uuid.New(), uuid.New(), "AUTH-2024-001",
		date(2024, time.January, 1), date(2024, time.December, 31),
		"", uuid.New(),
	)
	require.NoError(t, err)
	return auth
}

func serviceTypeEntry(t *testing.T, units int64) AuthorizationServiceType {
	t.Helper()
	entry, err := NewAuthorizationServiceType(uuid.New(), decimal.NewFromInt(units))
	require.NoError(t, err)
	return *entry
}

func TestNewAuthorization(t *testing.T) {
	clientID := uuid.New()
	programID := uuid.New()

	t.Run("creates authorization in requested state", func(t *testing.T) {
		auth, err := NewAuthorization(clientID, programID, "AUTH-1",
			date(2024, time.January, 1), date(2024, time.June, 30), "initial request", uuid.New())

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, auth.ID)
		assert.Equal(t, clientID, auth.ClientID)
		assert.Equal(t, programID, auth.ProgramID)
		assert.Equal(t, StatusRequested, auth.Status)
		assert.Equal(t, "AUTH-1", auth.AuthorizationNumber)
		assert.Empty(t, auth.ServiceTypes)
	})

	t.Run("fails with nil client ID", func(t *testing.T) {
		auth, err := NewAuthorization(uuid.Nil, programID, "AUTH-1",
			date(2024, time.January, 1), date(2024, time.June, 30), "", uuid.Nil)

		require.Error(t, err)
		assert.Nil(t, auth)
		assert.Contains(t, err.Error(), "Client ID")
	})

	t.Run("fails with nil program ID", func(t *testing.T) {
		auth, err := NewAuthorization(clientID, uuid.Nil, "AUTH-1",
			date(2024, time.January, 1), date(2024, time.June, 30), "", uuid.Nil)

		require.Error(t, err)
		assert.Nil(t, auth)
	})

	t.Run("fails when end date precedes start date", func(t *testing.T) {
		auth, err := NewAuthorization(clientID, programID, "AUTH-1",
			date(2024, time.June, 30), date(2024, time.January, 1), "", uuid.Nil)

		require.Error(t, err)
		assert.Nil(t, auth)
		assert.Contains(t, err.Error(), "End date")
	})

	t.Run("allows single-day range", func(t *testing.T) {
		auth, err := NewAuthorization(clientID, programID, "AUTH-1",
			date(2024, time.March, 15), date(2024, time.March, 15), "", uuid.Nil)

		require.NoError(t, err)
		assert.True(t, auth.CoversDate(date(2024, time.March, 15)))
	})
}

func TestAuthorization_SetServiceTypes(t *testing.T) {
	t.Run("attaches entries and assigns owner", func(t *testing.T) {
		auth := createTestAuthorization(t)
		entries := []AuthorizationServiceType{
			serviceTypeEntry(t, 100),
			serviceTypeEntry(t, 50),
		}

		err := auth.SetServiceTypes(entries)

		require.NoError(t, err)
		require.Len(t, auth.ServiceTypes, 2)
		for _, st := range auth.ServiceTypes {
			assert.Equal(t, auth.ID, st.AuthorizationID)
		}
	})

	t.Run("rejects duplicate service types", func(t *testing.T) {
		auth := createTestAuthorization(t)
		entry := serviceTypeEntry(t, 100)
		dup := entry
		dup.ID = uuid.New()

		err := auth.SetServiceTypes([]AuthorizationServiceType{entry, dup})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})
}

func TestAuthorization_ReplaceServiceTypes(t *testing.T) {
	auth := createTestAuthorization(t)
	require.NoError(t, auth.SetServiceTypes([]AuthorizationServiceType{serviceTypeEntry(t, 100)}))
	originalVersion := auth.Version

	replacement := []AuthorizationServiceType{
		serviceTypeEntry(t, 30),
		serviceTypeEntry(t, 70),
	}
	err := auth.ReplaceServiceTypes(replacement, uuid.New())

	require.NoError(t, err)
	assert.Len(t, auth.ServiceTypes, 2)
	assert.Equal(t, originalVersion+1, auth.Version)
	assert.Equal(t, decimal.NewFromInt(100), auth.TotalAuthorizedUnits())
}

func TestAuthorization_UpdateDetails(t *testing.T) {
	t.Run("patches only provided fields", func(t *testing.T) {
		auth := createTestAuthorization(t)
		newNumber := "AUTH-2024-002"
		newNotes := "renewed"

		err := auth.UpdateDetails(&newNumber, nil, nil, &newNotes, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, "AUTH-2024-002", auth.AuthorizationNumber)
		assert.Equal(t, "renewed", auth.Notes)
		assert.Equal(t, date(2024, time.January, 1), auth.StartDate)
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		auth := createTestAuthorization(t)
		badStart := date(2025, time.June, 1)

		err := auth.UpdateDetails(nil, &badStart, nil, nil, uuid.Nil)

		require.Error(t, err)
		assert.Equal(t, date(2024, time.January, 1), auth.StartDate)
	})
}

func TestAuthorization_CoversDate(t *testing.T) {
	auth := createTestAuthorization(t)

	assert.True(t, auth.CoversDate(date(2024, time.January, 1)), "start date is inclusive")
	assert.True(t, auth.CoversDate(date(2024, time.December, 31)), "end date is inclusive")
	assert.True(t, auth.CoversDate(date(2024, time.July, 4)))
	assert.False(t, auth.CoversDate(date(2023, time.December, 31)))
	assert.False(t, auth.CoversDate(date(2025, time.January, 1)))
}

func TestAuthorization_TotalAuthorizedUnits(t *testing.T) {
	auth := createTestAuthorization(t)
	require.NoError(t, auth.SetServiceTypes([]AuthorizationServiceType{
		serviceTypeEntry(t, 100),
		serviceTypeEntry(t, 40),
	}))

	assert.Equal(t, decimal.NewFromInt(140), auth.TotalAuthorizedUnits())
}

func TestAuthorization_SharesServiceType(t *testing.T) {
	auth := createTestAuthorization(t)
	covered := serviceTypeEntry(t, 100)
	require.NoError(t, auth.SetServiceTypes([]AuthorizationServiceType{covered}))

	assert.True(t, auth.SharesServiceType([]uuid.UUID{uuid.New(), covered.ServiceTypeID}))
	assert.False(t, auth.SharesServiceType([]uuid.UUID{uuid.New()}))
	assert.False(t, auth.SharesServiceType(nil))
}

func TestAuthorization_TransitionTo(t *testing.T) {
	t.Run("advances through the forward chain", func(t *testing.T) {
		auth := createTestAuthorization(t)
		actor := uuid.New()

		require.NoError(t, auth.TransitionTo(StatusApproved, actor))
		require.NoError(t, auth.TransitionTo(StatusActive, actor))
		require.NoError(t, auth.TransitionTo(StatusExpiring, actor))
		require.NoError(t, auth.TransitionTo(StatusExpired, actor))

		assert.Equal(t, StatusExpired, auth.Status)
	})

	t.Run("emits status changed events", func(t *testing.T) {
		auth := createTestAuthorization(t)

		require.NoError(t, auth.TransitionTo(StatusApproved, uuid.New()))

		events := auth.GetDomainEvents()
		require.Len(t, events, 1)
		changed, ok := events[0].(*AuthorizationStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, StatusRequested, changed.FromStatus)
		assert.Equal(t, StatusApproved, changed.ToStatus)
	})

	t.Run("rejects skipping states", func(t *testing.T) {
		auth := createTestAuthorization(t)

		err := auth.TransitionTo(StatusExpired, uuid.Nil)

		require.Error(t, err)
		assert.Equal(t, StatusRequested, auth.Status)
	})

	t.Run("allows manual denial from any non-terminal state", func(t *testing.T) {
		for _, from := range []Status{StatusRequested, StatusApproved, StatusActive, StatusExpiring} {
			auth := createTestAuthorization(t)
			auth.Status = from

			require.NoError(t, auth.TransitionTo(StatusDenied, uuid.Nil), "from %s", from)
			require.NoError(t, func() error {
				other := createTestAuthorization(t)
				other.Status = from
				return other.TransitionTo(StatusCancelled, uuid.Nil)
			}(), "cancel from %s", from)
		}
	})

	t.Run("rejects transitions out of terminal states", func(t *testing.T) {
		for _, terminal := range []Status{StatusExpired, StatusDenied, StatusCancelled} {
			auth := createTestAuthorization(t)
			auth.Status = terminal

			err := auth.TransitionTo(StatusActive, uuid.Nil)
			require.Error(t, err, "from %s", terminal)
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		auth := createTestAuthorization(t)

		require.NoError(t, auth.TransitionTo(StatusRequested, uuid.Nil))
		assert.Empty(t, auth.GetDomainEvents())
	})
}

func TestAuthorization_MarkExpiring(t *testing.T) {
	t.Run("transitions active to expiring", func(t *testing.T) {
		auth := createTestAuthorization(t)
		auth.Status = StatusActive

		require.NoError(t, auth.MarkExpiring(uuid.New()))
		assert.Equal(t, StatusExpiring, auth.Status)
	})

	t.Run("no-op when already expiring", func(t *testing.T) {
		auth := createTestAuthorization(t)
		auth.Status = StatusExpiring

		require.NoError(t, auth.MarkExpiring(uuid.Nil))
		assert.Equal(t, StatusExpiring, auth.Status)
		assert.Empty(t, auth.GetDomainEvents())
	})
}
