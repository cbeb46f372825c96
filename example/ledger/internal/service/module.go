package service

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-persistence/example/ledger/internal/repository"
)

// Module provides the EntryRepository and the TransferService.
var Module = fx.Options(
	fx.Provide(repository.NewEntryRepository),
	fx.Provide(NewTransferServiceFromSource),
)
