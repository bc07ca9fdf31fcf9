package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/compose-network/ocean-deployer/configs"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
	"github.com/compose-network/ocean-deployer/internal/output"
	"github.com/compose-network/ocean-deployer/internal/preflight"
	"github.com/compose-network/ocean-deployer/internal/store"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the data token contract suite",
	Long:  "Deploys DataTokenTemplate, DTFactory, BPool, BFactory, FixedRateExchange and DDO in order and records their addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values.Deploy
		slog.Info("starting deploy command. Validating config", slog.String("network", cfg.Network), slog.String("target", string(cfg.DeploymentTarget)))

		if err := cfg.Validate(); err != nil {
			return err
		}

		slog.Info("config validation successful. Starting deployment...")

		deployment, err := newService(cfg).Deploy(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("ocean contracts deployment failed: %w", err)
		}

		slog.With("run_id", deployment.RunID).With("contracts", len(deployment.Records)).Info("ocean contracts deployed successfully")

		return nil
	},
}

func newService(cfg configs.Deploy) *Service {
	writer := json.NewWriter()
	return NewService(
		dialEthereum,
		json.NewReader(),
		writer,
		orchestrator.New(),
		preflight.NewChecker(),
		store.Open,
		output.NewGenerator(filepath.Join(cfg.OutputDir, "networks", cfg.Network), writer),
	)
}

func dialEthereum(ctx context.Context, rpcURL string) (chainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}
