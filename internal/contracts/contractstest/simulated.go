// Package contractstest provides a simulated chain and throwaway artifacts for deployment tests.
package contractstest

import (
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

// StubBytecode is creation code that installs a one byte runtime (STOP) and ignores constructor input.
const StubBytecode = "0x600060005360016000f3"

// RevertBytecode is creation code that always reverts.
const RevertBytecode = "0x60006000fd"

type Chain struct {
	Backend *simulated.Backend
	Client  simulated.Client
	Key     *ecdsa.PrivateKey
	From    common.Address
	ChainID *big.Int
}

// NewChain starts a simulated chain with one funded account and mines a block every few
// milliseconds until the test ends, so callers waiting for receipts make progress.
func NewChain(t *testing.T) *Chain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	backend := simulated.NewBackend(types.GenesisAlloc{
		from: {Balance: new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))},
	})
	client := backend.Client()

	chainID, err := client.ChainID(t.Context())
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	t.Cleanup(func() {
		close(stop)
		wg.Wait()
		_ = backend.Close()
	})

	return &Chain{
		Backend: backend,
		Client:  client,
		Key:     key,
		From:    from,
		ChainID: chainID,
	}
}

// Artifact builds a compiled contract from an ABI and hex creation code.
func Artifact(t *testing.T, abiJSON, bytecodeHex string) contracts.CompiledContract {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)

	return contracts.CompiledContract{
		ABI:      parsed,
		RawABI:   abiJSON,
		Bytecode: common.FromHex(bytecodeHex),
	}
}

// Constructor ABIs matching the Ocean contracts' constructor signatures.
const (
	DataTokenTemplateABI = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"minter","type":"address"},{"name":"cap","type":"uint256"},{"name":"blob","type":"string"},{"name":"feeCollector","type":"address"}]}]`
	DTFactoryABI         = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_template","type":"address"},{"name":"_collector","type":"address"}]}]`
	BFactoryABI          = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_bpoolTemplate","type":"address"}]}]`
	NoArgsABI            = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[]}]`
)

// Registry returns stub artifacts for every contract the deployer knows.
func Registry(t *testing.T) contracts.Registry {
	t.Helper()

	return contracts.Registry{
		contracts.ContractNameDataTokenTemplate: Artifact(t, DataTokenTemplateABI, StubBytecode),
		contracts.ContractNameDTFactory:         Artifact(t, DTFactoryABI, StubBytecode),
		contracts.ContractNameBPool:             Artifact(t, NoArgsABI, StubBytecode),
		contracts.ContractNameBFactory:          Artifact(t, BFactoryABI, StubBytecode),
		contracts.ContractNameFixedRateExchange: Artifact(t, NoArgsABI, StubBytecode),
		contracts.ContractNameDDO:               Artifact(t, NoArgsABI, StubBytecode),
	}
}

// WriteArtifacts writes a combined contracts.json with stub artifacts for every contract into dir
// and returns its path.
func WriteArtifacts(t *testing.T, dir string) string {
	t.Helper()
	return WriteArtifactsWithBytecode(t, dir, nil)
}

// WriteArtifactsWithBytecode is WriteArtifacts with the creation code of some contracts replaced.
func WriteArtifactsWithBytecode(t *testing.T, dir string, bytecodes map[contracts.ContractName]string) string {
	t.Helper()

	abis := map[contracts.ContractName]string{
		contracts.ContractNameDataTokenTemplate: DataTokenTemplateABI,
		contracts.ContractNameDTFactory:         DTFactoryABI,
		contracts.ContractNameBPool:             NoArgsABI,
		contracts.ContractNameBFactory:          BFactoryABI,
		contracts.ContractNameFixedRateExchange: NoArgsABI,
		contracts.ContractNameDDO:               NoArgsABI,
	}

	combined := make(map[contracts.ContractName]map[string]any, len(abis))
	for name, abiJSON := range abis {
		bytecode, ok := bytecodes[name]
		if !ok {
			bytecode = StubBytecode
		}
		combined[name] = map[string]any{
			"abi":      json.RawMessage(abiJSON),
			"bytecode": bytecode,
		}
	}

	data, err := json.Marshal(combined)
	require.NoError(t, err)

	path := filepath.Join(dir, "contracts.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	return path
}
