package contracts

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	DefaultGasLimit      = uint64(10_000_000)
	DefaultDeployTimeout = time.Minute
)

type (
	// Backend is the subset of an RPC client needed to send and confirm contract creations.
	// *ethclient.Client and the simulated backend client both satisfy it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
	}

	ChainDeployerConfig struct {
		GasLimit uint64
		Timeout  time.Duration
	}

	// ChainDeployer sends contract creation transactions signed with a single key.
	ChainDeployer struct {
		backend    Backend
		privateKey *ecdsa.PrivateKey
		chainID    *big.Int
		cfg        ChainDeployerConfig
		logger     *slog.Logger
	}
)

// NewChainDeployer creates a deployer bound to one chain and one signing key
func NewChainDeployer(backend Backend, privateKey *ecdsa.PrivateKey, chainID *big.Int, cfg ChainDeployerConfig) *ChainDeployer {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDeployTimeout
	}

	return &ChainDeployer{
		backend:    backend,
		privateKey: privateKey,
		chainID:    chainID,
		cfg:        cfg,
		logger:     logger.Named("chain_deployer"),
	}
}

// Deploy sends the creation transaction for contract and blocks until it is mined. A receipt with a
// failed status is reported as ErrDeploymentReverted.
func (d *ChainDeployer) Deploy(ctx context.Context, name ContractName, contract CompiledContract, constructorArgs ...any) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	auth, err := bind.NewKeyedTransactorWithChainID(d.privateKey, d.chainID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = d.cfg.GasLimit
	auth.GasPrice = gasPrice

	address, tx, _, err := bind.DeployContract(auth, contract.ABI, contract.Bytecode, d.backend, constructorArgs...)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to deploy %s: %w", name, err)
	}

	d.logger.
		With("contract", name).
		With("address", address).
		With("tx_hash", tx.Hash().Hex()).
		With("nonce", tx.Nonce()).
		Info("contract deployment transaction sent")

	receipt := Receipt{
		Address: address,
		TxHash:  tx.Hash(),
		Nonce:   tx.Nonce(),
	}

	mined, err := bind.WaitMined(ctx, d.backend, tx)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to wait for %s deployment transaction %s: %w", name, tx.Hash().Hex(), err)
	}

	if mined.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fmt.Errorf("%w: %s deployment transaction %s finished with status %d", ErrDeploymentReverted, name, tx.Hash().Hex(), mined.Status)
	}

	if mined.ContractAddress != (common.Address{}) {
		receipt.Address = mined.ContractAddress
	}
	if mined.BlockNumber != nil {
		receipt.BlockNumber = mined.BlockNumber.Uint64()
	}

	d.logger.
		With("contract", name).
		With("address", receipt.Address).
		With("block_number", receipt.BlockNumber).
		With("gas_used", mined.GasUsed).
		Info("contract deployment confirmed")

	return receipt, nil
}
