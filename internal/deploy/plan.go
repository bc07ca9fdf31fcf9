package deploy

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/compose-network/ocean-deployer/configs"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the resolved deployment plan without sending transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values.Deploy
		if err := cfg.Validate(); err != nil {
			return err
		}

		plan, err := newService(cfg).Plan(cfg)
		if err != nil {
			return fmt.Errorf("failed to resolve deployment plan: %w", err)
		}

		slog.With("steps", len(plan)).Info("deployment plan resolved")

		return writePlan(cmd.OutOrStdout(), plan)
	},
}

type stepView struct {
	Step     int      `yaml:"step"`
	Contract string   `yaml:"contract"`
	Args     []string `yaml:"args,omitempty"`
}

func writePlan(w io.Writer, plan orchestrator.Plan) error {
	views := make([]stepView, 0, len(plan))
	for i, step := range plan {
		view := stepView{Step: i + 1, Contract: string(step.Contract)}
		for _, arg := range step.Args {
			view.Args = append(view.Args, describeArg(arg))
		}
		views = append(views, view)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(views); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return encoder.Close()
}

func describeArg(arg any) string {
	switch v := arg.(type) {
	case orchestrator.AddressOf:
		return fmt.Sprintf("address(%s)", string(v))
	case common.Address:
		return v.Hex()
	case *big.Int:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
