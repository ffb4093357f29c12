// Package factory builds the ledger adapter selected by configuration.
package factory

import (
	"context"
	"fmt"

	"orangebook/internal/config"
	"orangebook/internal/ledger"
	"orangebook/internal/ledger/adapters/nop"
	"orangebook/internal/ledger/adapters/postgres"
	"orangebook/internal/observability"
)

// New creates the ledger selected by cfg.Adapters.Ledger
func New(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (ledger.Ledger, error) {
	switch cfg.Adapters.Ledger {
	case "postgres":
		return postgres.New(ctx, &cfg.Database, logger, metrics)
	case "none", "":
		return nop.New(logger), nil
	default:
		return nil, fmt.Errorf("unsupported ledger adapter: %s", cfg.Adapters.Ledger)
	}
}
