package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const FileName = "output.yaml"

// Generator writes a YAML summary that client tooling can load without the build artifacts.
type Generator struct {
	outputDir string
	writer    filesystem.Writer
}

func NewGenerator(outputDir string, writer filesystem.Writer) *Generator {
	return &Generator{
		outputDir: outputDir,
		writer:    writer,
	}
}

// Generate writes output.yaml and returns its path
func (g *Generator) Generate(_ context.Context, deployment *orchestrator.Deployment, artifacts contracts.Registry) (string, error) {
	model := &Model{
		Network:   deployment.Network,
		ChainID:   deployment.ChainID,
		RunID:     deployment.RunID.String(),
		Deployer:  deployment.Deployer,
		Contracts: make(map[string]ContractConfig, len(deployment.Records)),
	}

	for _, record := range deployment.Records {
		config := ContractConfig{
			Address: record.Address,
			ABI:     SingleQuotedString(compactJSON(artifacts[record.Contract].RawABI)),
		}
		if record.TxHash != (common.Hash{}) {
			config.TxHash = record.TxHash.Hex()
		}
		model.Contracts[strings.ToLower(string(record.Contract))] = config
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("could not marshal output model. Err: '%w'", err)
	}

	path := filepath.Join(g.outputDir, FileName)
	if err := g.writer.WriteBytes(path, data); err != nil {
		return "", fmt.Errorf("could not write output file. Err: '%w'", err)
	}

	return path, nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
