// Package service implements deposits and transfers on top of the transaction layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-persistence/example/ledger/internal/domain"
	"github.com/tigerroll/surfin-persistence/example/ledger/internal/repository"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database"
	gormadapter "github.com/tigerroll/surfin-persistence/pkg/persistence/adapter/database/gorm"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/transaction"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/tx"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "ledger_service"

// ErrInsufficientFunds is returned when a transfer would leave the source account negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// SessionSource opens gorm sessions on the connection of a transaction.
type SessionSource interface {
	Session(ctx context.Context, conn database.Connection) (*gorm.DB, error)
	Gorm() *gorm.DB
}

// TransferService moves amounts between accounts.
type TransferService struct {
	sessions SessionSource
	manager  *transaction.Manager
	factory  *tx.TransactionStateFactory
	entries  *repository.EntryRepository
	now      func() time.Time
}

// NewTransferService creates a TransferService.
func NewTransferService(sessions SessionSource, manager *transaction.Manager, factory *tx.TransactionStateFactory, entries *repository.EntryRepository) *TransferService {
	return &TransferService{
		sessions: sessions,
		manager:  manager,
		factory:  factory,
		entries:  entries,
		now:      time.Now,
	}
}

// NewTransferServiceFromSource is the fx constructor. The configured source must be gorm-backed.
func NewTransferServiceFromSource(src database.ConnectionSource, manager *transaction.Manager, factory *tx.TransactionStateFactory, entries *repository.EntryRepository) (*TransferService, error) {
	gormSrc, ok := src.(*gormadapter.Source)
	if !ok {
		return nil, exception.NewPersistenceError(moduleName,
			fmt.Sprintf("connection source %T is not gorm-backed", src), exception.ErrUnsupportedOperation)
	}
	return NewTransferService(gormSrc, manager, factory, entries), nil
}

// Deposit credits account in a transaction of its own.
func (s *TransferService) Deposit(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return exception.NewIllegalArgumentError(moduleName, fmt.Sprintf("deposit amount must be positive, got %d", amount))
	}
	return tx.CallInTransaction(ctx, s.factory, func(ctx context.Context, conn database.Connection) error {
		session, err := s.sessions.Session(ctx, conn)
		if err != nil {
			return err
		}
		return s.entries.Append(ctx, session, s.newEntry("", account, amount))
	})
}

// Transfer debits from and credits to. The debit is checked right before the commit, so a
// transfer that overdraws from is rolled back and ErrInsufficientFunds is returned.
func (s *TransferService) Transfer(ctx context.Context, from, to string, amount int64) (string, error) {
	if amount <= 0 {
		return "", exception.NewIllegalArgumentError(moduleName, fmt.Sprintf("transfer amount must be positive, got %d", amount))
	}
	if from == to {
		return "", exception.NewIllegalArgumentError(moduleName, "cannot transfer to the same account")
	}
	transferID := uuid.NewString()
	approved := false

	et := s.manager.NewTransaction(
		transaction.WithPreCommit(func(ctx context.Context, conn database.Connection) (bool, error) {
			session, err := s.sessions.Session(ctx, conn)
			if err != nil {
				return false, err
			}
			balance, err := s.entries.Balance(ctx, session, from)
			if err != nil {
				return false, err
			}
			if balance < 0 {
				return false, fmt.Errorf("account '%s' would end at %d: %w", from, balance, ErrInsufficientFunds)
			}
			approved = true
			return true, nil
		}),
		transaction.WithPostCommit(func(ctx context.Context) (bool, error) {
			if !approved {
				logger.Infof("Transfer %s rejected: %d from '%s' to '%s'.", transferID, amount, from, to)
				return true, nil
			}
			logger.Infof("Transfer %s settled: %d from '%s' to '%s'.", transferID, amount, from, to)
			return true, nil
		}),
	)

	if err := et.Begin(ctx); err != nil {
		return "", err
	}
	conn, err := et.Connection()
	if err != nil {
		return "", err
	}
	session, err := s.sessions.Session(ctx, conn)
	if err != nil {
		_ = et.Rollback(ctx)
		return "", err
	}
	if err := s.entries.Append(ctx, session,
		s.newEntry(transferID, from, -amount),
		s.newEntry(transferID, to, amount),
	); err != nil {
		_ = et.Rollback(ctx)
		return "", err
	}
	if err := et.Commit(ctx); err != nil {
		return "", err
	}
	return transferID, nil
}

// Balance returns the committed balance of account.
func (s *TransferService) Balance(ctx context.Context, account string) (int64, error) {
	return s.entries.Balance(ctx, s.sessions.Gorm(), account)
}

// Entries returns the committed entries of a transfer.
func (s *TransferService) Entries(ctx context.Context, transferID string) ([]domain.Entry, error) {
	return s.entries.ByTransfer(ctx, s.sessions.Gorm(), transferID)
}

func (s *TransferService) newEntry(transferID, account string, amount int64) *domain.Entry {
	return &domain.Entry{
		ID:         uuid.NewString(),
		TransferID: transferID,
		Account:    account,
		Amount:     amount,
		CreatedAt:  s.now().UTC(),
	}
}
