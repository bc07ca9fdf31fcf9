package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem"
	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
)

const (
	networksDirName    = "networks"
	addressesFileName  = "contracts.json"
	deploymentFileName = "deployment.json"
)

// FileStore writes one directory per network under outputDir:
//
//	networks/<network>/contracts.json   chain ID and address book
//	networks/<network>/deployment.json  the full run, including constructor arguments
type FileStore struct {
	outputDir string
	writer    filesystem.Writer
	logger    *slog.Logger
}

func NewFileStore(outputDir string, writer filesystem.Writer) *FileStore {
	return &FileStore{
		outputDir: outputDir,
		writer:    writer,
		logger:    logger.Named("file_store"),
	}
}

func (s *FileStore) Save(_ context.Context, deployment *orchestrator.Deployment) error {
	if deployment.Network == "" {
		return fmt.Errorf("deployment has no network name")
	}

	directory := s.NetworkDir(deployment.Network)

	addresses := make(map[contracts.ContractName]string, len(deployment.Records))
	for _, record := range deployment.Records {
		addresses[record.Contract] = record.Address.Hex()
	}

	addressBook := map[string]any{
		"chainInfo": map[string]any{
			"chainId": deployment.ChainID,
		},
		"addresses": addresses,
	}

	addressesPath := filepath.Join(directory, addressesFileName)
	if err := s.writer.WriteJSON(addressesPath, addressBook); err != nil {
		return fmt.Errorf("failed to write %s for %s: %w", addressesFileName, deployment.Network, err)
	}

	deploymentPath := filepath.Join(directory, deploymentFileName)
	if err := s.writer.WriteJSON(deploymentPath, deployment); err != nil {
		return fmt.Errorf("failed to write %s for %s: %w", deploymentFileName, deployment.Network, err)
	}

	s.logger.
		With("network", deployment.Network).
		With("path", addressesPath).
		Info("deployment saved")

	return nil
}

// NetworkDir returns the directory holding the files of a network.
func (s *FileStore) NetworkDir(network string) string {
	return filepath.Join(s.outputDir, networksDirName, network)
}

func (s *FileStore) Close() {}
