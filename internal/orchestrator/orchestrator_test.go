package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/contracts/contractstest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	minter       = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	feeCollector = common.HexToAddress("0xeE9300b7961e0a01d9f0adb863C7A227A07AaD75")
)

// recordingDeployer hands out sequential addresses and remembers the arguments of every call.
type recordingDeployer struct {
	calls []deployCall
}

type deployCall struct {
	name contracts.ContractName
	args []any
}

func (r *recordingDeployer) Deploy(_ context.Context, name contracts.ContractName, _ contracts.CompiledContract, args ...any) (contracts.Receipt, error) {
	r.calls = append(r.calls, deployCall{name: name, args: args})
	n := len(r.calls)
	return contracts.Receipt{
		Address:     common.BigToAddress(big.NewInt(int64(0x1000 + n))),
		TxHash:      common.BigToHash(big.NewInt(int64(n))),
		BlockNumber: uint64(n),
		Nonce:       uint64(n - 1),
	}, nil
}

type mockDeployer struct {
	mock.Mock
}

func (m *mockDeployer) Deploy(ctx context.Context, name contracts.ContractName, contract contracts.CompiledContract, args ...any) (contracts.Receipt, error) {
	called := m.Called(ctx, name)
	return called.Get(0).(contracts.Receipt), called.Error(1)
}

func testConfig(t *testing.T, d deployer) Config {
	return Config{
		Network:   "development",
		ChainID:   8996,
		Deployer:  d,
		Accounts:  []common.Address{minter, common.HexToAddress("0x0000000000000000000000000000000000000002")},
		Artifacts: contractstest.Registry(t),
		Constants: DefaultConstants(feeCollector),
	}
}

func TestRun_WiresAddressesBetweenSteps(t *testing.T) {
	d := &recordingDeployer{}

	deployment, err := New().Run(t.Context(), testConfig(t, d))
	require.NoError(t, err)

	require.Len(t, d.calls, 6)
	assert.Equal(t, contracts.Contracts, deploymentContracts(deployment))

	distinct := make(map[common.Address]struct{})
	for _, record := range deployment.Records {
		distinct[record.Address] = struct{}{}
	}
	assert.Len(t, distinct, 6)

	template, ok := deployment.Address(contracts.ContractNameDataTokenTemplate)
	require.True(t, ok)
	pool, ok := deployment.Address(contracts.ContractNameBPool)
	require.True(t, ok)

	templateArgs := d.calls[0].args
	assert.Equal(t, []any{"DataTokenTemplate", "DTT", minter, big.NewInt(10_000_000), "http://oceanprotocol.com", feeCollector}, templateArgs)

	factoryArgs := d.calls[1].args
	require.Len(t, factoryArgs, 2)
	assert.Equal(t, template, factoryArgs[0])
	assert.Equal(t, templateArgs[5], factoryArgs[1])

	assert.Empty(t, d.calls[2].args)
	assert.Equal(t, []any{pool}, d.calls[3].args)
	assert.Empty(t, d.calls[4].args)
	assert.Empty(t, d.calls[5].args)

	assert.Equal(t, "development", deployment.Network)
	assert.Equal(t, uint64(8996), deployment.ChainID)
	assert.Equal(t, minter, deployment.Deployer)
	assert.NotEmpty(t, deployment.RunID.String())
	assert.Equal(t, factoryArgs, deployment.Records[1].ConstructorArgs)
	assert.Len(t, deployment.Addresses(), 6)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	d := new(mockDeployer)
	d.On("Deploy", mock.Anything, contracts.ContractNameDataTokenTemplate).
		Return(contracts.Receipt{}, errors.New("execution reverted"))

	deployment, err := New().Run(t.Context(), testConfig(t, d))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (DataTokenTemplate) failed: execution reverted")
	assert.Empty(t, deployment.Records)

	d.AssertNumberOfCalls(t, "Deploy", 1)
	d.AssertExpectations(t)
}

func TestRun_KeepsConfirmedRecordsOnLaterFailure(t *testing.T) {
	d := new(mockDeployer)
	d.On("Deploy", mock.Anything, contracts.ContractNameDataTokenTemplate).
		Return(contracts.Receipt{Address: common.HexToAddress("0x01")}, nil).Once()
	d.On("Deploy", mock.Anything, contracts.ContractNameDTFactory).
		Return(contracts.Receipt{Address: common.HexToAddress("0x02")}, nil).Once()
	d.On("Deploy", mock.Anything, contracts.ContractNameBPool).
		Return(contracts.Receipt{}, contracts.ErrDeploymentReverted).Once()

	deployment, err := New().Run(t.Context(), testConfig(t, d))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrDeploymentReverted)
	require.NotNil(t, deployment)
	assert.Equal(t, []contracts.ContractName{contracts.ContractNameDataTokenTemplate, contracts.ContractNameDTFactory}, deploymentContracts(deployment))

	d.AssertNumberOfCalls(t, "Deploy", 3)
	d.AssertNotCalled(t, "Deploy", mock.Anything, contracts.ContractNameBFactory)
}

func TestRun_CancelledContext(t *testing.T) {
	d := &recordingDeployer{}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New().Run(ctx, testConfig(t, d))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.calls)
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no deployer",
			mutate:  func(c *Config) { c.Deployer = nil },
			wantErr: "no deployer configured",
		},
		{
			name:    "no accounts",
			mutate:  func(c *Config) { c.Accounts = nil },
			wantErr: "at least one account is required",
		},
		{
			name:    "no cap",
			mutate:  func(c *Config) { c.Constants.TokenCap = nil },
			wantErr: "token cap is not set",
		},
		{
			name:    "missing artifact",
			mutate:  func(c *Config) { delete(c.Artifacts, contracts.ContractNameDDO) },
			wantErr: "contract artifact not found: DDO",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &recordingDeployer{}
			cfg := testConfig(t, d)
			tc.mutate(&cfg)

			_, err := New().Run(t.Context(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Empty(t, d.calls)
		})
	}
}

func TestRun_CustomPlan(t *testing.T) {
	d := &recordingDeployer{}
	cfg := testConfig(t, d)
	cfg.Plan = Plan{
		{Contract: contracts.ContractNameBPool},
		{Contract: contracts.ContractNameBFactory, Args: []any{AddressOf(contracts.ContractNameBPool)}},
	}

	deployment, err := New().Run(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, deployment.Records, 2)
	assert.Equal(t, []any{deployment.Records[0].Address}, d.calls[1].args)
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name: "default plan",
			plan: DefaultPlan(DefaultConstants(feeCollector), minter),
		},
		{
			name:    "empty plan",
			plan:    Plan{},
			wantErr: "plan has no steps",
		},
		{
			name: "forward reference",
			plan: Plan{
				{Contract: contracts.ContractNameBFactory, Args: []any{AddressOf(contracts.ContractNameBPool)}},
				{Contract: contracts.ContractNameBPool},
			},
			wantErr: "step 1 (BFactory) argument 0 needs the address of BPool",
		},
		{
			name: "self reference",
			plan: Plan{
				{Contract: contracts.ContractNameBPool, Args: []any{AddressOf(contracts.ContractNameBPool)}},
			},
			wantErr: "needs the address of BPool",
		},
		{
			name: "duplicate step",
			plan: Plan{
				{Contract: contracts.ContractNameDDO},
				{Contract: contracts.ContractNameDDO},
			},
			wantErr: "step 2 deploys DDO again",
		},
		{
			name:    "unknown artifact",
			plan:    Plan{{Contract: "Migrations"}},
			wantErr: "contract artifact not found: Migrations",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Validate(contractstest.Registry(t))
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPlan)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultPlan_DoesNotShareCap(t *testing.T) {
	constants := DefaultConstants(feeCollector)
	plan := DefaultPlan(constants, minter)

	plan[0].Args[3].(*big.Int).SetInt64(1)
	assert.Equal(t, int64(10_000_000), constants.TokenCap.Int64())
}

func TestRun_SimulatedChain(t *testing.T) {
	chain := contractstest.NewChain(t)
	d := contracts.NewChainDeployer(chain.Client, chain.Key, chain.ChainID, contracts.ChainDeployerConfig{
		Timeout: 30 * time.Second,
	})

	cfg := testConfig(t, d)
	cfg.Accounts = []common.Address{chain.From}
	cfg.ChainID = chain.ChainID.Uint64()

	deployment, err := New().Run(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, deployment.Records, 6)

	for i, record := range deployment.Records {
		assert.Equal(t, crypto.CreateAddress(chain.From, uint64(i)), record.Address, record.Contract)

		code, err := chain.Client.CodeAt(t.Context(), record.Address, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, code, record.Contract)
	}

	template, _ := deployment.Address(contracts.ContractNameDataTokenTemplate)
	factoryTx, _, err := chain.Client.TransactionByHash(t.Context(), deployment.Records[1].TxHash)
	require.NoError(t, err)

	factoryArtifact := cfg.Artifacts[contracts.ContractNameDTFactory]
	packed, err := factoryArtifact.ABI.Pack("", template, feeCollector)
	require.NoError(t, err)
	assert.Equal(t, packed, factoryTx.Data()[len(factoryArtifact.Bytecode):])
}

func TestRun_SimulatedChainStopsWhenTemplateReverts(t *testing.T) {
	chain := contractstest.NewChain(t)
	d := contracts.NewChainDeployer(chain.Client, chain.Key, chain.ChainID, contracts.ChainDeployerConfig{
		GasLimit: 1_000_000,
		Timeout:  30 * time.Second,
	})

	cfg := testConfig(t, d)
	cfg.Accounts = []common.Address{chain.From}
	cfg.Artifacts[contracts.ContractNameDataTokenTemplate] = contractstest.Artifact(t, contractstest.DataTokenTemplateABI, contractstest.RevertBytecode)

	deployment, err := New().Run(t.Context(), cfg)
	require.ErrorIs(t, err, contracts.ErrDeploymentReverted)
	assert.Contains(t, err.Error(), "step 1 (DataTokenTemplate)")
	require.NotNil(t, deployment)
	assert.Empty(t, deployment.Records)

	nonce, err := chain.Client.PendingNonceAt(t.Context(), chain.From)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce, "no transaction after the reverted template may be sent")
}

func TestRun_CalldataTarget(t *testing.T) {
	d := contracts.NewCalldataDeployer(minter, 3)

	deployment, err := New().Run(t.Context(), testConfig(t, d))
	require.NoError(t, err)

	txs := d.Transactions()
	require.Len(t, txs, 6)
	for i, record := range deployment.Records {
		assert.Equal(t, crypto.CreateAddress(minter, uint64(3+i)), record.Address)
		assert.Equal(t, record.Address, txs[i].PredictedAddress)
	}

	pool, _ := deployment.Address(contracts.ContractNameBPool)
	factoryArtifact := testConfig(t, d).Artifacts[contracts.ContractNameBFactory]
	packed, err := factoryArtifact.ABI.Pack("", pool)
	require.NoError(t, err)
	assert.Equal(t, packed, []byte(txs[3].Data[len(factoryArtifact.Bytecode):]))
}

func deploymentContracts(d *Deployment) []contracts.ContractName {
	names := make([]contracts.ContractName, 0, len(d.Records))
	for _, record := range d.Records {
		names = append(names, record.Contract)
	}
	return names
}
