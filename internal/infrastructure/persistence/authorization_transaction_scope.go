package persistence

import (
	"context"

	appauth "github.com/hcbs/backend/internal/application/authorization"
	"github.com/hcbs/backend/internal/domain/authorization"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appauth.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// AuthorizationRepo returns the authorization repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AuthorizationRepo() authorization.AuthorizationRepository {
	return NewGormAuthorizationRepository(r.tx)
}

// UtilizationRepo returns the utilization ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) UtilizationRepo() authorization.UtilizationRepository {
	return NewGormUtilizationRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appauth.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appauth.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
