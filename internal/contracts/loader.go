package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/ocean-deployer/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const contractsFileName = "contracts.json"

type (
	// artifact matches the truffle layout ({"abi": [...], "bytecode": "0x.."}), the forge layout
	// ({"abi": [...], "bytecode": {"object": "0x.."}}) and the combined contracts.json entries.
	artifact struct {
		ABI      json.RawMessage  `json:"abi"`
		Bytecode artifactBytecode `json:"bytecode"`
	}

	artifactBytecode string
)

func (b *artifactBytecode) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*b = artifactBytecode(plain)
		return nil
	}

	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("bytecode must be a hex string or an object with an 'object' field: %w", err)
	}
	*b = artifactBytecode(object.Object)

	return nil
}

// LoadCompiledContracts loads compiled contracts from path, which is either a combined
// contracts.json or a build directory holding one <Name>.json (or <Name>.sol/<Name>.json) per contract.
func LoadCompiledContracts(reader filesystem.Reader, path string) (Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("artifacts path '%s' is not accessible: %w", path, err)
	}

	if !info.IsDir() {
		data, err := reader.ReadBytes(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read compiled contracts: %w", err)
		}
		return parseContracts(data)
	}

	return loadBuildDirectory(reader, path)
}

// parseContracts parses combined contract JSON data into a Registry
func parseContracts(data []byte) (Registry, error) {
	var result map[string]artifact
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse compiled contracts: %w", err)
	}

	loadedContracts := make(Registry)
	for name, entry := range result {
		if !IsKnown(ContractName(name)) {
			continue
		}

		compiled, err := entry.compile(name)
		if err != nil {
			return nil, err
		}
		loadedContracts[ContractName(name)] = compiled
	}

	return loadedContracts, nil
}

func loadBuildDirectory(reader filesystem.Reader, dir string) (Registry, error) {
	combined, err := reader.ReadBytes(filepath.Join(dir, contractsFileName))
	switch {
	case err == nil:
		return parseContracts(combined)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", contractsFileName, err)
	}

	loadedContracts := make(Registry)

	for _, name := range Contracts {
		candidates := []string{
			filepath.Join(dir, string(name)+".json"),
			filepath.Join(dir, string(name)+".sol", string(name)+".json"),
		}

		for _, candidate := range candidates {
			var entry artifact
			if err := reader.ReadJSON(candidate, &entry); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("failed to load artifact for %s: %w", name, err)
			}

			compiled, err := entry.compile(string(name))
			if err != nil {
				return nil, err
			}
			loadedContracts[name] = compiled
			break
		}
	}

	return loadedContracts, nil
}

func (a artifact) compile(name string) (CompiledContract, error) {
	if len(a.ABI) == 0 {
		return CompiledContract{}, fmt.Errorf("artifact for %s has no ABI", name)
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(a.ABI)))
	if err != nil {
		return CompiledContract{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	bytecodeHex := strings.TrimSpace(string(a.Bytecode))
	if !strings.HasPrefix(bytecodeHex, "0x") {
		bytecodeHex = "0x" + bytecodeHex
	}

	var bytecode []byte
	if bytecodeHex != "0x" {
		bytecode, err = hexutil.Decode(bytecodeHex)
		if err != nil {
			return CompiledContract{}, fmt.Errorf("bytecode for %s is not valid hex (unlinked library?): %w", name, err)
		}
	}

	return CompiledContract{
		ABI:      parsedABI,
		RawABI:   string(a.ABI),
		Bytecode: bytecode,
	}, nil
}
