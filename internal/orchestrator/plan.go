package orchestrator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidPlan = errors.New("invalid deployment plan")

type (
	// Constants are the literal constructor values of the data-token suite.
	Constants struct {
		TokenName    string
		TokenSymbol  string
		TokenCap     *big.Int
		BaseURI      string
		FeeCollector common.Address
	}

	// AddressOf is a constructor argument resolved to the address deployed by an earlier step.
	AddressOf contracts.ContractName

	Step struct {
		Contract contracts.ContractName
		Args     []any
	}

	Plan []Step
)

// DefaultConstants returns the values the contracts repository ships with.
func DefaultConstants(feeCollector common.Address) Constants {
	return Constants{
		TokenName:    "DataTokenTemplate",
		TokenSymbol:  "DTT",
		TokenCap:     big.NewInt(10_000_000),
		BaseURI:      "http://oceanprotocol.com",
		FeeCollector: feeCollector,
	}
}

// DefaultPlan builds the data-token deployment sequence. The template is minted by minter
// and both the template and its factory send fees to the configured collector.
func DefaultPlan(constants Constants, minter common.Address) Plan {
	return Plan{
		{
			Contract: contracts.ContractNameDataTokenTemplate,
			Args: []any{
				constants.TokenName,
				constants.TokenSymbol,
				minter,
				new(big.Int).Set(constants.TokenCap),
				constants.BaseURI,
				constants.FeeCollector,
			},
		},
		{
			Contract: contracts.ContractNameDTFactory,
			Args: []any{
				AddressOf(contracts.ContractNameDataTokenTemplate),
				constants.FeeCollector,
			},
		},
		{Contract: contracts.ContractNameBPool},
		{
			Contract: contracts.ContractNameBFactory,
			Args:     []any{AddressOf(contracts.ContractNameBPool)},
		},
		{Contract: contracts.ContractNameFixedRateExchange},
		{Contract: contracts.ContractNameDDO},
	}
}

// Contracts returns the artifact names of the plan in execution order.
func (p Plan) Contracts() []contracts.ContractName {
	names := make([]contracts.ContractName, 0, len(p))
	for _, step := range p {
		names = append(names, step.Contract)
	}
	return names
}

// Validate checks that every address reference points at a step that runs earlier, that no
// artifact is deployed twice and that the registry carries every artifact the plan needs.
func (p Plan) Validate(artifacts contracts.Registry) error {
	var errs []error

	if len(p) == 0 {
		errs = append(errs, errors.New("plan has no steps"))
	}

	seen := make(map[contracts.ContractName]int, len(p))
	for i, step := range p {
		if previous, ok := seen[step.Contract]; ok {
			errs = append(errs, fmt.Errorf("step %d deploys %s again (first deployed by step %d)", i+1, step.Contract, previous+1))
		}

		for j, arg := range step.Args {
			ref, ok := arg.(AddressOf)
			if !ok {
				continue
			}
			if _, deployed := seen[contracts.ContractName(ref)]; !deployed {
				errs = append(errs, fmt.Errorf("step %d (%s) argument %d needs the address of %s, which is not deployed by an earlier step", i+1, step.Contract, j, ref))
			}
		}

		seen[step.Contract] = i
	}

	if err := artifacts.Require(p.Contracts()...); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(errs...))
	}

	return nil
}

// resolve replaces address references with the addresses of already confirmed records.
func (s Step) resolve(deployed map[contracts.ContractName]common.Address) ([]any, error) {
	args := make([]any, len(s.Args))
	for i, arg := range s.Args {
		ref, ok := arg.(AddressOf)
		if !ok {
			args[i] = arg
			continue
		}

		address, ok := deployed[contracts.ContractName(ref)]
		if !ok {
			return nil, fmt.Errorf("%w: %s has not been deployed", ErrInvalidPlan, ref)
		}
		args[i] = address
	}

	return args, nil
}
