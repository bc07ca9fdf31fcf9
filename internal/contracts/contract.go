package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type (
	ContractName string

	CompiledContract struct {
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}

	// Registry holds the compiled artifacts available to a deployment, keyed by contract name.
	Registry map[ContractName]CompiledContract

	// Receipt describes a contract creation once it has been sent (and, when waited for, mined).
	Receipt struct {
		Address     common.Address
		TxHash      common.Hash
		BlockNumber uint64
		Nonce       uint64
	}
)

const (
	ContractNameDataTokenTemplate ContractName = "DataTokenTemplate"
	ContractNameDTFactory         ContractName = "DTFactory"
	ContractNameBPool             ContractName = "BPool"
	ContractNameBFactory          ContractName = "BFactory"
	ContractNameFixedRateExchange ContractName = "FixedRateExchange"
	ContractNameDDO               ContractName = "DDO"
)

var (
	ErrArtifactNotFound   = errors.New("contract artifact not found")
	ErrDeploymentReverted = errors.New("contract deployment reverted")
)

// Contracts lists every artifact the deployer knows about, in deployment order.
var Contracts = []ContractName{
	ContractNameDataTokenTemplate,
	ContractNameDTFactory,
	ContractNameBPool,
	ContractNameBFactory,
	ContractNameFixedRateExchange,
	ContractNameDDO,
}

func IsKnown(name ContractName) bool {
	for _, known := range Contracts {
		if known == name {
			return true
		}
	}
	return false
}

// Require reports every name that has no usable artifact in the registry.
func (r Registry) Require(names ...ContractName) error {
	var errs []error
	for _, name := range names {
		contract, ok := r[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrArtifactNotFound, name))
			continue
		}
		if len(contract.Bytecode) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s has no creation bytecode", ErrArtifactNotFound, name))
		}
	}

	return errors.Join(errs...)
}
