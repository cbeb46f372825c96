// Package repository persists ledger entries through gorm.
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tigerroll/surfin-persistence/example/ledger/internal/domain"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
)

const moduleName = "ledger_repository"

// EntryRepository reads and writes ledger entries on the *gorm.DB it is handed, which is either
// the pool or a session bound to an open transaction.
type EntryRepository struct{}

// NewEntryRepository creates an EntryRepository.
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{}
}

// Append inserts entries in one statement.
func (r *EntryRepository) Append(ctx context.Context, db *gorm.DB, entries ...*domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).Create(entries).Error; err != nil {
		return exception.NewSQLError(moduleName, "failed to append ledger entries", err)
	}
	return nil
}

// Balance sums the entries of account.
func (r *EntryRepository) Balance(ctx context.Context, db *gorm.DB, account string) (int64, error) {
	var balance int64
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Where("account = ?", account).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	if err != nil {
		return 0, exception.NewSQLError(moduleName, "failed to compute balance", err)
	}
	return balance, nil
}

// ByTransfer returns the entries written by one transfer.
func (r *EntryRepository) ByTransfer(ctx context.Context, db *gorm.DB, transferID string) ([]domain.Entry, error) {
	var entries []domain.Entry
	if err := db.WithContext(ctx).Where("transfer_id = ?", transferID).Order("amount").Find(&entries).Error; err != nil {
		return nil, exception.NewSQLError(moduleName, "failed to load transfer entries", err)
	}
	return entries, nil
}
