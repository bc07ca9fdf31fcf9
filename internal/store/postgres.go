package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore records every step of a run as one row of contract_deployments.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to databaseURL and creates the schema when missing.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger.Named("postgres_store"),
	}, nil
}

func (s *PostgresStore) Save(ctx context.Context, deployment *orchestrator.Deployment) error {
	query := `
		INSERT INTO contract_deployments (
			run_id, step, network, chain_id, deployer, contract_name, address,
			tx_hash, block_number, nonce, constructor_args, deployed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i, record := range deployment.Records {
			args, err := json.Marshal(record.ConstructorArgs)
			if err != nil {
				return fmt.Errorf("failed to encode constructor arguments of %s: %w", record.Contract, err)
			}

			var txHash *string
			if record.TxHash != (common.Hash{}) {
				hash := record.TxHash.Hex()
				txHash = &hash
			}

			var blockNumber *int64
			if record.BlockNumber != 0 {
				number := int64(record.BlockNumber)
				blockNumber = &number
			}

			if _, err := tx.Exec(ctx, query,
				deployment.RunID,
				i+1,
				deployment.Network,
				int64(deployment.ChainID),
				deployment.Deployer.Hex(),
				string(record.Contract),
				record.Address.Hex(),
				txHash,
				blockNumber,
				int64(record.Nonce),
				args,
				record.DeployedAt,
			); err != nil {
				return fmt.Errorf("failed to insert %s: %w", record.Contract, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", deployment.RunID, err)
	}

	s.logger.
		With("run_id", deployment.RunID).
		With("records", len(deployment.Records)).
		Info("deployment saved")

	return nil
}

// LatestAddress returns the most recently recorded address of a contract on a network.
func (s *PostgresStore) LatestAddress(ctx context.Context, network string, name contracts.ContractName) (common.Address, bool, error) {
	query := `
		SELECT address
		FROM contract_deployments
		WHERE network = $1 AND contract_name = $2
		ORDER BY deployed_at DESC, step DESC
		LIMIT 1`

	var address string
	err := s.pool.QueryRow(ctx, query, network, string(name)).Scan(&address)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, fmt.Errorf("failed to query %s on %s: %w", name, network, err)
	}

	return common.HexToAddress(address), true, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
