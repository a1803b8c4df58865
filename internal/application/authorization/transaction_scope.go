package authorization

import (
	"context"

	"github.com/hcbs/backend/internal/domain/authorization"
)

// TransactionScope provides transactional access to authorization repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the authorization repositories
// within a transaction. Both repositories share the same underlying database
// transaction.
//
// Aggregate boundary notes:
//   - AuthorizationRepo: Repository for the Authorization aggregate root. The
//     header, the service-type set and the lifecycle status all go through it.
//   - UtilizationRepo: The per-authorization utilization ledger. The ledger row
//     is a child of the Authorization aggregate but has its own repository so
//     increments can run as single conditional statements instead of full
//     aggregate saves.
type TransactionalRepositories interface {
	// AuthorizationRepo returns the authorization repository scoped to the current transaction
	AuthorizationRepo() authorization.AuthorizationRepository
	// UtilizationRepo returns the utilization ledger repository scoped to the current transaction
	UtilizationRepo() authorization.UtilizationRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	authorizationRepo authorization.AuthorizationRepository
	utilizationRepo   authorization.UtilizationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	authorizationRepo authorization.AuthorizationRepository,
	utilizationRepo authorization.UtilizationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		authorizationRepo: authorizationRepo,
		utilizationRepo:   utilizationRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// AuthorizationRepo returns the authorization repository.
func (s *NoOpTransactionScope) AuthorizationRepo() authorization.AuthorizationRepository {
	return s.authorizationRepo
}

// UtilizationRepo returns the utilization ledger repository.
func (s *NoOpTransactionScope) UtilizationRepo() authorization.UtilizationRepository {
	return s.utilizationRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
