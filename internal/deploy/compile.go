package deploy

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/ocean-deployer/configs"
	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ocean-deployer/internal/infra/git"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the data token contracts with forge",
	Long:  "Compiles the Ocean contracts checkout and writes contracts.json with ABIs and bytecodes for the deploy command",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running contract compilation command")
		ctx := cmd.Context()
		cfg := configs.Values.Deploy.Contracts

		if err := cfg.ValidateCompile(); err != nil {
			return err
		}

		if cfg.RepositoryURL != "" {
			repo := git.Repository{URL: cfg.RepositoryURL, Ref: cfg.Branch}
			if err := git.NewCloner().Clone(ctx, cfg.Dir, repo); err != nil {
				return fmt.Errorf("failed to clone contracts repository: %w", err)
			}
		}

		compiler := contracts.NewCompiler(cfg.Dir, cfg.OutputDir, json.NewWriter())

		slog.Info("starting contract compilation", "contracts", contracts.Contracts)
		path, err := compiler.Compile(ctx, contracts.Contracts)
		if err != nil {
			return fmt.Errorf("contract compilation failed: %w", err)
		}

		slog.With("path", path).Info("contract compilation completed successfully. Point deploy.artifacts-path at this file")

		return nil
	},
}
