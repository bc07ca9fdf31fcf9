package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/compose-network/ocean-deployer/internal/infra/filesystem"
	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	commandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// Compiler compiles the Solidity contracts with forge and writes a combined contracts.json
	Compiler struct {
		contractsRootDir string
		outputDir        string
		writer           filesystem.Writer
		run              commandRunner
		logger           *slog.Logger
	}
)

// NewCompiler creates a new contract compiler
func NewCompiler(contractsRootDir, outputDir string, writer filesystem.Writer) *Compiler {
	return &Compiler{
		contractsRootDir: contractsRootDir,
		outputDir:        outputDir,
		writer:           writer,
		run:              runCommand,
		logger:           logger.Named("contracts_compiler"),
	}
}

// Compile compiles Solidity contracts and returns the path of the written contracts.json
func (c *Compiler) Compile(ctx context.Context, contractNames []ContractName) (string, error) {
	c.logger.
		With("contracts_dir", c.contractsRootDir).
		Info("starting contract compilation")

	c.logger.Info("installing forge dependencies")
	if _, err := c.run(ctx, c.contractsRootDir, "forge", "install"); err != nil {
		return "", fmt.Errorf("forge install failed: %w", err)
	}

	jsonContracts := make(map[ContractName]map[string]any, len(contractNames))
	for _, name := range contractNames {
		c.logger.With("name", name).Info("compiling contract")

		abiJSON, bytecodeHex, err := c.compileContractRaw(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to compile %s: %w", name, err)
		}

		jsonContracts[name] = map[string]any{
			"abi":      json.RawMessage(abiJSON),
			"bytecode": bytecodeHex,
		}
	}

	outputPath := filepath.Join(c.outputDir, contractsFileName)
	if err := c.writer.WriteJSON(outputPath, jsonContracts); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", contractsFileName, err)
	}

	c.logger.With("path", outputPath).Info("contracts compiled successfully")

	return outputPath, nil
}

// compileContractRaw compiles a contract and returns raw JSON ABI and hex bytecode
func (c *Compiler) compileContractRaw(ctx context.Context, name ContractName) ([]byte, string, error) {
	// forge resolves contract names against src/ relative to the working directory
	abiOutput, err := c.run(ctx, c.contractsRootDir, "forge", "inspect", string(name), "abi", "--json")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get ABI for %s: %w", name, err)
	}

	if _, err := abi.JSON(bytes.NewReader(abiOutput)); err != nil {
		return nil, "", fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	bytecodeOutput, err := c.run(ctx, c.contractsRootDir, "forge", "inspect", string(name), "bytecode")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get bytecode for %s: %w", name, err)
	}

	bytecodeStr := strings.TrimSpace(string(bytecodeOutput))
	if bytecodeStr == "" || bytecodeStr == "0x" {
		return nil, "", fmt.Errorf("forge returned empty bytecode for %s (abstract contract or interface?)", name)
	}

	return abiOutput, bytecodeStr, nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w, stderr: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return output, nil
}
