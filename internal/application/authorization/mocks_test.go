package authorization

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hcbs/backend/internal/domain/authorization"
	"github.com/hcbs/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockAuthorizationRepository is a mock implementation of AuthorizationRepository
type MockAuthorizationRepository struct {
	mock.Mock
}

func (m *MockAuthorizationRepository) Create(ctx context.Context, auth *authorization.Authorization) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

func (m *MockAuthorizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*authorization.Authorization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authorization.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) Update(ctx context.Context, auth *authorization.Authorization, replaceServiceTypes bool) error {
	args := m.Called(ctx, auth, replaceServiceTypes)
	return args.Error(0)
}

func (m *MockAuthorizationRepository) SaveWithLock(ctx context.Context, auth *authorization.Authorization) error {
	args := m.Called(ctx, auth)
	return args.Error(0)
}

func (m *MockAuthorizationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status authorization.Status, actorID uuid.UUID) error {
	args := m.Called(ctx, id, status, actorID)
	return args.Error(0)
}

func (m *MockAuthorizationRepository) FindActiveForClient(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]authorization.Authorization, error) {
	args := m.Called(ctx, clientID, asOf)
	return args.Get(0).([]authorization.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) FindExpiring(ctx context.Context, daysThreshold int) ([]authorization.Authorization, error) {
	args := m.Called(ctx, daysThreshold)
	return args.Get(0).([]authorization.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) FindOverlapping(ctx context.Context, clientID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]authorization.Authorization, error) {
	args := m.Called(ctx, clientID, start, end, excludeID)
	return args.Get(0).([]authorization.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) FindAllForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) ([]authorization.Authorization, error) {
	args := m.Called(ctx, clientID, filter)
	return args.Get(0).([]authorization.Authorization), args.Error(1)
}

func (m *MockAuthorizationRepository) CountForClient(ctx context.Context, clientID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, clientID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockUtilizationRepository is a mock implementation of UtilizationRepository
type MockUtilizationRepository struct {
	mock.Mock
}

func (m *MockUtilizationRepository) GetOrCreate(ctx context.Context, authorizationID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authorization.AuthorizationUtilization), args.Error(1)
}

func (m *MockUtilizationRepository) AddUnits(ctx context.Context, authorizationID uuid.UUID, units, authorizedUnits decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	args := m.Called(ctx, authorizationID, units, authorizedUnits, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authorization.AuthorizationUtilization), args.Error(1)
}

func (m *MockUtilizationRepository) RemoveUnits(ctx context.Context, authorizationID uuid.UUID, units decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	args := m.Called(ctx, authorizationID, units, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authorization.AuthorizationUtilization), args.Error(1)
}

// inMemoryUtilizationRepo is a thread-safe in-memory ledger used to exercise
// concurrent adjustments without a database. The conditional add mirrors the
// semantics of the SQL implementation: check and increment under one lock.
type inMemoryUtilizationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*authorization.AuthorizationUtilization
}

func newInMemoryUtilizationRepo() *inMemoryUtilizationRepo {
	return &inMemoryUtilizationRepo{
		rows: make(map[uuid.UUID]*authorization.AuthorizationUtilization),
	}
}

func (r *inMemoryUtilizationRepo) GetOrCreate(_ context.Context, authorizationID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[authorizationID]; ok {
		copied := *row
		return &copied, nil
	}
	row := authorization.NewAuthorizationUtilization(authorizationID)
	r.rows[authorizationID] = row
	copied := *row
	return &copied, nil
}

func (r *inMemoryUtilizationRepo) AddUnits(_ context.Context, authorizationID uuid.UUID, units, authorizedUnits decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[authorizationID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if row.UsedUnits.Add(units).GreaterThan(authorizedUnits) {
		return nil, shared.NewDomainError(authorization.CodeUnitsExceeded, "Adjustment would exceed the authorized units")
	}
	row.UsedUnits = row.UsedUnits.Add(units)
	row.LastUpdateAmount = units
	if actorID != uuid.Nil {
		row.LastUpdatedBy = &actorID
	}
	copied := *row
	return &copied, nil
}

func (r *inMemoryUtilizationRepo) RemoveUnits(_ context.Context, authorizationID uuid.UUID, units decimal.Decimal, actorID uuid.UUID) (*authorization.AuthorizationUtilization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[authorizationID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	row.UsedUnits = row.UsedUnits.Sub(units)
	if row.UsedUnits.IsNegative() {
		row.UsedUnits = decimal.Zero
	}
	row.LastUpdateAmount = units.Neg()
	if actorID != uuid.Nil {
		row.LastUpdatedBy = &actorID
	}
	copied := *row
	return &copied, nil
}

var _ authorization.UtilizationRepository = (*inMemoryUtilizationRepo)(nil)
