// Package ledgerdb opens the ledger store selected by configuration.
package ledgerdb

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/infra/bigquery"
	"github.com/dvloznov/statement-import/internal/infra/memory"
	"github.com/dvloznov/statement-import/internal/infra/sqlite"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
)

// Drivers understood by Open.
const (
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
	DriverMemory   = "memory"
)

// Store is a ledger store that can also create accounts and be closed.
type Store interface {
	ledger.Store
	CreateAccount(ctx context.Context, a *ledger.Account) (string, error)
	Close() error
}

// Open returns the store for cfg.LedgerDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	log := logger.FromContext(ctx)

	switch cfg.LedgerDriver {
	case DriverSQLite:
		log.Info().Str("path", cfg.SQLitePath).Msg("Opening SQLite ledger")
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("ledgerdb.Open: %w", err)
		}
		return s, nil

	case DriverBigQuery:
		if cfg.BigQueryProject == "" {
			return nil, fmt.Errorf("ledgerdb.Open: BQ_PROJECT is required for the bigquery driver")
		}
		log.Info().Str("project", cfg.BigQueryProject).Str("dataset", cfg.BigQueryDataset).Msg("Opening BigQuery ledger")
		s, err := bigquery.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("ledgerdb.Open: %w", err)
		}
		return s, nil

	case DriverMemory:
		log.Warn().Msg("Using in-memory ledger; data is lost on exit")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("ledgerdb.Open: unknown ledger driver %q", cfg.LedgerDriver)
	}
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*bigquery.Store)(nil)
	_ Store = (*memory.Store)(nil)
)
