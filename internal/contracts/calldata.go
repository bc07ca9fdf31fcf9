package contracts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	// CalldataTransaction is an unsigned contract creation to be broadcast by another tool.
	CalldataTransaction struct {
		Contract         ContractName   `json:"contract"`
		From             common.Address `json:"from"`
		Nonce            uint64         `json:"nonce"`
		To               *string        `json:"to"`
		Data             hexutil.Bytes  `json:"data"`
		PredictedAddress common.Address `json:"predictedAddress"`
	}

	// CalldataDeployer predicts CREATE addresses instead of sending transactions, so a plan can be
	// resolved offline and its calldata handed to a separate signer.
	CalldataDeployer struct {
		from         common.Address
		nextNonce    uint64
		transactions []CalldataTransaction
		logger       *slog.Logger
	}
)

// NewCalldataDeployer creates a calldata deployer for sender starting at startNonce
func NewCalldataDeployer(from common.Address, startNonce uint64) *CalldataDeployer {
	return &CalldataDeployer{
		from:      from,
		nextNonce: startNonce,
		logger:    logger.Named("calldata_deployer"),
	}
}

func (d *CalldataDeployer) Deploy(_ context.Context, name ContractName, contract CompiledContract, constructorArgs ...any) (Receipt, error) {
	input, err := contract.ABI.Pack("", constructorArgs...)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to pack constructor arguments for %s: %w", name, err)
	}

	data := make([]byte, 0, len(contract.Bytecode)+len(input))
	data = append(data, contract.Bytecode...)
	data = append(data, input...)

	nonce := d.nextNonce
	address := crypto.CreateAddress(d.from, nonce)
	d.nextNonce++

	d.transactions = append(d.transactions, CalldataTransaction{
		Contract:         name,
		From:             d.from,
		Nonce:            nonce,
		Data:             data,
		PredictedAddress: address,
	})

	d.logger.
		With("contract", name).
		With("predicted_address", address).
		With("nonce", nonce).
		Debug("calldata generated")

	return Receipt{Address: address, Nonce: nonce}, nil
}

// Transactions returns the creations collected so far, in deployment order.
func (d *CalldataDeployer) Transactions() []CalldataTransaction {
	return append([]CalldataTransaction(nil), d.transactions...)
}
