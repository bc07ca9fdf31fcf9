// Package store persists deployment records once a run has finished.
package store

import (
	"context"
	"fmt"

	"github.com/compose-network/ocean-deployer/configs"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
)

type Store interface {
	Save(ctx context.Context, deployment *orchestrator.Deployment) error
	Close()
}

// Open returns the store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg configs.Deploy) (Store, error) {
	switch cfg.Store.Driver {
	case configs.StoreDriverFile, "":
		return NewFileStore(cfg.OutputDir, json.NewWriter()), nil
	case configs.StoreDriverPostgres:
		return NewPostgresStore(ctx, cfg.Store.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported store driver '%s'", cfg.Store.Driver)
	}
}
