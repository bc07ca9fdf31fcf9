package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

/*
Orchestrator deploys a Plan one step at a time:
  - validates dependency order and artifacts before sending anything
  - resolves address references from the records confirmed so far
  - stops at the first failing step; nothing is retried or rolled back
*/
type (
	deployer interface {
		Deploy(ctx context.Context, name contracts.ContractName, contract contracts.CompiledContract, constructorArgs ...any) (contracts.Receipt, error)
	}

	// Config replaces the ambient state a migration framework would provide.
	Config struct {
		Network   string
		ChainID   uint64
		Deployer  deployer
		Accounts  []common.Address
		Artifacts contracts.Registry
		Constants Constants
		// Plan overrides DefaultPlan(Constants, Accounts[0]) when set.
		Plan Plan
	}

	Record struct {
		Contract        contracts.ContractName `json:"contract"`
		ConstructorArgs []any                  `json:"constructorArgs"`
		Address         common.Address         `json:"address"`
		TxHash          common.Hash            `json:"txHash"`
		BlockNumber     uint64                 `json:"blockNumber"`
		Nonce           uint64                 `json:"nonce"`
		DeployedAt      time.Time              `json:"deployedAt"`
	}

	Deployment struct {
		RunID    uuid.UUID      `json:"runId"`
		Network  string         `json:"network"`
		ChainID  uint64         `json:"chainId"`
		Deployer common.Address `json:"deployer"`
		Records  []Record       `json:"records"`
	}

	Orchestrator struct {
		now    func() time.Time
		logger *slog.Logger
	}
)

// New creates a deployment orchestrator
func New() *Orchestrator {
	return &Orchestrator{
		now:    time.Now,
		logger: logger.Named("orchestrator"),
	}
}

// Run deploys every step of the configured plan in order. On failure the records of the steps
// that did confirm are returned together with the error.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Deployment, error) {
	if cfg.Deployer == nil {
		return nil, errors.New("no deployer configured")
	}
	if len(cfg.Accounts) == 0 {
		return nil, errors.New("at least one account is required")
	}

	plan := cfg.Plan
	if plan == nil {
		if cfg.Constants.TokenCap == nil {
			return nil, errors.New("token cap is not set")
		}
		plan = DefaultPlan(cfg.Constants, cfg.Accounts[0])
	}

	if err := plan.Validate(cfg.Artifacts); err != nil {
		return nil, err
	}

	deployment := &Deployment{
		RunID:    uuid.New(),
		Network:  cfg.Network,
		ChainID:  cfg.ChainID,
		Deployer: cfg.Accounts[0],
		Records:  make([]Record, 0, len(plan)),
	}

	log := o.logger.
		With("run_id", deployment.RunID).
		With("network", cfg.Network)

	log.With("steps", len(plan)).Info("starting deployment")

	deployed := make(map[contracts.ContractName]common.Address, len(plan))
	for i, step := range plan {
		stepLog := log.With("step", i+1).With("contract", step.Contract)

		if err := ctx.Err(); err != nil {
			return deployment, fmt.Errorf("deployment of %s cancelled: %w", step.Contract, err)
		}

		args, err := step.resolve(deployed)
		if err != nil {
			return deployment, err
		}

		stepLog.Info("deploying contract")
		receipt, err := cfg.Deployer.Deploy(ctx, step.Contract, cfg.Artifacts[step.Contract], args...)
		if err != nil {
			return deployment, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Contract, err)
		}

		deployed[step.Contract] = receipt.Address
		deployment.Records = append(deployment.Records, Record{
			Contract:        step.Contract,
			ConstructorArgs: args,
			Address:         receipt.Address,
			TxHash:          receipt.TxHash,
			BlockNumber:     receipt.BlockNumber,
			Nonce:           receipt.Nonce,
			DeployedAt:      o.now().UTC(),
		})

		stepLog.With("address", receipt.Address).Info("deployed")
	}

	log.Info("deployment completed")

	return deployment, nil
}

// Address returns the address a contract was deployed at in this run.
func (d *Deployment) Address(name contracts.ContractName) (common.Address, bool) {
	for _, record := range d.Records {
		if record.Contract == name {
			return record.Address, true
		}
	}
	return common.Address{}, false
}

// Addresses returns the deployed addresses keyed by contract name.
func (d *Deployment) Addresses() map[contracts.ContractName]common.Address {
	addresses := make(map[contracts.ContractName]common.Address, len(d.Records))
	for _, record := range d.Records {
		addresses[record.Contract] = record.Address
	}
	return addresses
}
