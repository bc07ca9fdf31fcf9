package contracts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-network/ocean-deployer/internal/infra/filesystem/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolABI      = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[]}]`
	factoryABI   = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"_bpoolTemplate","type":"address"}]}]`
	stubBytecode = "0x600060005360016000f3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadCompiledContracts_CombinedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.json")
	writeFile(t, path, `{
		"BPool": {"abi": `+poolABI+`, "bytecode": "`+stubBytecode+`"},
		"BFactory": {"abi": `+factoryABI+`, "bytecode": "600060005360016000f3"},
		"Migrations": {"abi": [], "bytecode": "0x00"}
	}`)

	registry, err := LoadCompiledContracts(json.NewReader(), path)
	require.NoError(t, err)

	require.Len(t, registry, 2)
	assert.Equal(t, []byte{0x60, 0x00, 0x60, 0x00, 0x53, 0x60, 0x01, 0x60, 0x00, 0xf3}, registry[ContractNameBPool].Bytecode)
	assert.Equal(t, registry[ContractNameBPool].Bytecode, registry[ContractNameBFactory].Bytecode)
	assert.Len(t, registry[ContractNameBFactory].ABI.Constructor.Inputs, 1)
	assert.JSONEq(t, factoryABI, registry[ContractNameBFactory].RawABI)
}

func TestLoadCompiledContracts_TruffleBuildDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BPool.json"), `{"contractName": "BPool", "abi": `+poolABI+`, "bytecode": "`+stubBytecode+`"}`)
	writeFile(t, filepath.Join(dir, "Migrations.json"), `{"contractName": "Migrations", "abi": [], "bytecode": "0x00"}`)

	registry, err := LoadCompiledContracts(json.NewReader(), dir)
	require.NoError(t, err)

	require.Len(t, registry, 1)
	assert.NotEmpty(t, registry[ContractNameBPool].Bytecode)
}

func TestLoadCompiledContracts_DirectoryWithCombinedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, contractsFileName), `{"BPool": {"abi": `+poolABI+`, "bytecode": "`+stubBytecode+`"}}`)
	writeFile(t, filepath.Join(dir, "BFactory.json"), `{"abi": `+factoryABI+`, "bytecode": "`+stubBytecode+`"}`)

	registry, err := LoadCompiledContracts(json.NewReader(), dir)
	require.NoError(t, err)

	assert.Contains(t, registry, ContractNameBPool)
	assert.NotContains(t, registry, ContractNameBFactory)
}

func TestLoadCompiledContracts_ForgeOutDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "BFactory.sol", "BFactory.json"), `{"abi": `+factoryABI+`, "bytecode": {"object": "`+stubBytecode+`"}}`)

	registry, err := LoadCompiledContracts(json.NewReader(), dir)
	require.NoError(t, err)

	require.Contains(t, registry, ContractNameBFactory)
	assert.NotEmpty(t, registry[ContractNameBFactory].Bytecode)
}

func TestLoadCompiledContracts_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "not json",
			content: `{`,
			wantErr: "failed to parse compiled contracts",
		},
		{
			name:    "invalid abi",
			content: `{"BPool": {"abi": [{"type": "nonsense"}], "bytecode": "0x00"}}`,
			wantErr: "failed to parse ABI for BPool",
		},
		{
			name:    "missing abi",
			content: `{"BPool": {"bytecode": "0x00"}}`,
			wantErr: "artifact for BPool has no ABI",
		},
		{
			name:    "unlinked library placeholder",
			content: `{"BPool": {"abi": ` + poolABI + `, "bytecode": "0x6080__BNum______________________________6080"}}`,
			wantErr: "bytecode for BPool is not valid hex",
		},
		{
			name:    "bytecode of wrong type",
			content: `{"BPool": {"abi": ` + poolABI + `, "bytecode": 12}}`,
			wantErr: "bytecode must be a hex string",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "contracts.json")
			writeFile(t, path, tc.content)

			_, err := LoadCompiledContracts(json.NewReader(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadCompiledContracts_MissingPath(t *testing.T) {
	_, err := LoadCompiledContracts(json.NewReader(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorContains(t, err, "is not accessible")
}

func TestRegistry_Require(t *testing.T) {
	registry := Registry{
		ContractNameBPool:    {Bytecode: []byte{0x00}},
		ContractNameBFactory: {},
	}

	assert.NoError(t, registry.Require(ContractNameBPool))

	err := registry.Require(Contracts...)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
	assert.Contains(t, err.Error(), "BFactory has no creation bytecode")
	assert.Contains(t, err.Error(), "contract artifact not found: DataTokenTemplate")
	assert.Contains(t, err.Error(), "contract artifact not found: DDO")
	assert.NotContains(t, err.Error(), "BPool")
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(ContractNameDDO))
	assert.False(t, IsKnown("Migrations"))
}
