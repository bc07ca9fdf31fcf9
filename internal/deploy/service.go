package deploy

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"
	"time"

	"github.com/compose-network/ocean-deployer/configs"
	"github.com/compose-network/ocean-deployer/internal/contracts"
	"github.com/compose-network/ocean-deployer/internal/crypto"
	"github.com/compose-network/ocean-deployer/internal/infra/filesystem"
	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/compose-network/ocean-deployer/internal/orchestrator"
	"github.com/compose-network/ocean-deployer/internal/preflight"
	"github.com/compose-network/ocean-deployer/internal/store"
	"github.com/ethereum/go-ethereum/common"
)

const calldataFileName = "calldata.json"

// Service wires configuration, chain access, the orchestrator and the result sinks together
type (
	chainClient interface {
		contracts.Backend
		preflight.Client
		BlockNumber(ctx context.Context) (uint64, error)
		Close()
	}
	dialer func(ctx context.Context, rpcURL string) (chainClient, error)

	contractDeployer interface {
		Deploy(ctx context.Context, name contracts.ContractName, contract contracts.CompiledContract, constructorArgs ...any) (contracts.Receipt, error)
	}

	deploymentRunner interface {
		Run(ctx context.Context, cfg orchestrator.Config) (*orchestrator.Deployment, error)
	}
	preflightChecker interface {
		Run(ctx context.Context, client preflight.Client, req preflight.Request) (*preflight.Report, error)
	}
	storeOpener func(ctx context.Context, cfg configs.Deploy) (store.Store, error)
	// addressHistory is implemented by stores that keep earlier runs, such as the postgres store
	addressHistory interface {
		LatestAddress(ctx context.Context, network string, name contracts.ContractName) (common.Address, bool, error)
	}
	outputGenerator interface {
		Generate(ctx context.Context, deployment *orchestrator.Deployment, artifacts contracts.Registry) (string, error)
	}

	Service struct {
		dial            dialer
		reader          filesystem.Reader
		writer          filesystem.Writer
		orchestrator    deploymentRunner
		checker         preflightChecker
		openStore       storeOpener
		outputGenerator outputGenerator
		rpcWaitInterval time.Duration
		logger          *slog.Logger
	}

	// prepared is everything derived from configuration before a chain is touched
	prepared struct {
		privateKey *ecdsa.PrivateKey
		accounts   []common.Address
		artifacts  contracts.Registry
		constants  orchestrator.Constants
		plan       orchestrator.Plan
	}
)

// NewService creates a new deploy service
func NewService(
	dial dialer,
	reader filesystem.Reader,
	writer filesystem.Writer,
	orchestrator deploymentRunner,
	checker preflightChecker,
	openStore storeOpener,
	outputGenerator outputGenerator) *Service {
	return &Service{
		dial:            dial,
		reader:          reader,
		writer:          writer,
		orchestrator:    orchestrator,
		checker:         checker,
		openStore:       openStore,
		outputGenerator: outputGenerator,
		rpcWaitInterval: time.Second,
		logger:          logger.Named("deploy_service"),
	}
}

// Plan resolves the deployment plan from configuration without contacting a node.
func (s *Service) Plan(cfg configs.Deploy) (orchestrator.Plan, error) {
	p, err := s.prepare(cfg)
	if err != nil {
		return nil, err
	}
	return p.plan, nil
}

// Deploy runs the full deployment for the configured target. When a step fails the confirmed
// part of the deployment is returned with the error.
func (s *Service) Deploy(ctx context.Context, cfg configs.Deploy) (*orchestrator.Deployment, error) {
	s.logger.Info("preparing deployment")

	p, err := s.prepare(cfg)
	if err != nil {
		return nil, err
	}

	var client chainClient
	if cfg.RPCURL != "" {
		s.logger.With("rpc_url", cfg.RPCURL).Info("connecting to node")
		client, err = s.dial(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
		}
		defer client.Close()
	}

	var (
		deployer  contractDeployer
		calldata  *contracts.CalldataDeployer
		chainID   *big.Int
		deployLog = s.logger.With("target", cfg.DeploymentTarget).With("network", cfg.Network)
	)

	switch cfg.DeploymentTarget {
	case configs.DeploymentTargetLive:
		if client == nil {
			return nil, errors.New("the live deployment target needs an rpc url")
		}
		if chainID, err = s.checkNode(ctx, client, cfg, p.accounts[0]); err != nil {
			return nil, err
		}
		deployer = contracts.NewChainDeployer(client, p.privateKey, chainID, contracts.ChainDeployerConfig{
			GasLimit: cfg.Transactions.GasLimit,
			Timeout:  time.Duration(cfg.Transactions.TimeoutSeconds) * time.Second,
		})
	case configs.DeploymentTargetCalldata:
		nonce, resolvedChainID, err := s.calldataStart(ctx, client, cfg, p.accounts[0])
		if err != nil {
			return nil, err
		}
		chainID = resolvedChainID
		calldata = contracts.NewCalldataDeployer(p.accounts[0], nonce)
		deployer = calldata
	default:
		return nil, fmt.Errorf("unsupported deployment target '%s'", cfg.DeploymentTarget)
	}

	deployLog.With("chain_id", chainID).With("deployer", p.accounts[0]).Info("running deployment")

	deployment, err := s.orchestrator.Run(ctx, orchestrator.Config{
		Network:   cfg.Network,
		ChainID:   chainID.Uint64(),
		Deployer:  deployer,
		Accounts:  p.accounts,
		Artifacts: p.artifacts,
		Constants: p.constants,
		Plan:      p.plan,
	})
	if err != nil {
		if deployment != nil {
			for _, record := range deployment.Records {
				deployLog.
					With("contract", record.Contract).
					With("address", record.Address).
					With("tx_hash", record.TxHash).
					Warn("contract deployed before the failure")
			}
		}
		return deployment, fmt.Errorf("deployment failed: %w", err)
	}

	if calldata != nil {
		path := filepath.Join(cfg.OutputDir, "networks", cfg.Network, calldataFileName)
		if err := s.writer.WriteJSON(path, calldata.Transactions()); err != nil {
			return deployment, fmt.Errorf("failed to write %s: %w", calldataFileName, err)
		}
		deployLog.With("path", path).Info("calldata written")
	}

	if err := s.save(ctx, cfg, deployment); err != nil {
		return deployment, err
	}

	outputPath, err := s.outputGenerator.Generate(ctx, deployment, p.artifacts)
	if err != nil {
		return deployment, fmt.Errorf("failed to generate output file: %w", err)
	}

	deployLog.With("output", outputPath).With("run_id", deployment.RunID).Info("deployment finished")

	return deployment, nil
}

func (s *Service) prepare(cfg configs.Deploy) (*prepared, error) {
	privateKey, err := crypto.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid deployer key: %w", err)
	}
	from, err := crypto.Address(privateKey)
	if err != nil {
		return nil, err
	}
	if cfg.Wallet.Address != "" && common.HexToAddress(cfg.Wallet.Address) != from {
		return nil, fmt.Errorf("deploy.wallet.address %s does not belong to the configured private key (%s)", cfg.Wallet.Address, from.Hex())
	}

	accounts := []common.Address{from}
	for _, account := range cfg.Accounts {
		address := common.HexToAddress(account)
		if address != from {
			accounts = append(accounts, address)
		}
	}

	if cfg.UsesPlaceholderFeeCollector() {
		s.logger.
			With("fee_collector", cfg.FeeCollectorAddress()).
			Warn("using the placeholder community fee collector. Set deploy.fee-collector for production networks")
	}

	constants, err := constantsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	artifacts, err := contracts.LoadCompiledContracts(s.reader, cfg.ArtifactsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load contract artifacts: %w", err)
	}

	plan := orchestrator.DefaultPlan(constants, from)
	if err := plan.Validate(artifacts); err != nil {
		return nil, err
	}

	return &prepared{
		privateKey: privateKey,
		accounts:   accounts,
		artifacts:  artifacts,
		constants:  constants,
		plan:       plan,
	}, nil
}

func constantsFromConfig(cfg configs.Deploy) (orchestrator.Constants, error) {
	constants := orchestrator.DefaultConstants(cfg.FeeCollectorAddress())

	if cfg.Token.Name != "" {
		constants.TokenName = cfg.Token.Name
	}
	if cfg.Token.Symbol != "" {
		constants.TokenSymbol = cfg.Token.Symbol
	}
	if cfg.Token.BaseURI != "" {
		constants.BaseURI = cfg.Token.BaseURI
	}
	if cfg.Token.Cap != "" {
		tokenCap, ok := new(big.Int).SetString(cfg.Token.Cap, 10)
		if !ok {
			return orchestrator.Constants{}, fmt.Errorf("invalid token cap '%s'", cfg.Token.Cap)
		}
		constants.TokenCap = tokenCap
	}

	return constants, nil
}

// checkNode waits for the node, runs the preflight checks and returns the chain ID to sign for
func (s *Service) checkNode(ctx context.Context, client chainClient, cfg configs.Deploy, from common.Address) (*big.Int, error) {
	if cfg.Preflight.Skip {
		s.logger.Warn("skipping preflight checks")
		if cfg.ChainID > 0 {
			return big.NewInt(int64(cfg.ChainID)), nil
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		return chainID, nil
	}

	if err := preflight.WaitForRPC(ctx, client, cfg.Preflight.RPCWaitAttempts, s.rpcWaitInterval); err != nil {
		return nil, err
	}

	minBalance := big.NewInt(1)
	if cfg.Preflight.MinBalanceWei != "" {
		if _, ok := minBalance.SetString(cfg.Preflight.MinBalanceWei, 10); !ok {
			return nil, fmt.Errorf("invalid minimum balance '%s'", cfg.Preflight.MinBalanceWei)
		}
	}

	report, err := s.checker.Run(ctx, client, preflight.Request{
		ExpectedChainID: uint64(max(cfg.ChainID, 0)),
		Deployer:        from,
		MinBalance:      minBalance,
	})
	if err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	return report.ChainID, nil
}

// calldataStart resolves the first nonce and the chain ID for the calldata target. Without an
// rpc url both must come from configuration.
func (s *Service) calldataStart(ctx context.Context, client chainClient, cfg configs.Deploy, from common.Address) (uint64, *big.Int, error) {
	var (
		nonce   uint64
		chainID *big.Int
	)

	if cfg.ChainID > 0 {
		chainID = big.NewInt(int64(cfg.ChainID))
	}

	if client != nil {
		if chainID == nil {
			id, err := client.ChainID(ctx)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to get chain ID: %w", err)
			}
			chainID = id
		}
		if cfg.Transactions.StartNonce < 0 {
			pending, err := client.PendingNonceAt(ctx, from)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to get nonce of %s: %w", from.Hex(), err)
			}
			nonce = pending
		}
	}

	if cfg.Transactions.StartNonce >= 0 {
		nonce = uint64(cfg.Transactions.StartNonce)
	}
	if chainID == nil {
		return 0, nil, errors.New("chain ID is unknown: set deploy.chain-id or deploy.rpc-url")
	}

	return nonce, chainID, nil
}

func (s *Service) save(ctx context.Context, cfg configs.Deploy, deployment *orchestrator.Deployment) error {
	st, err := s.openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open deployment store: %w", err)
	}
	defer st.Close()

	if history, ok := st.(addressHistory); ok {
		s.logReplacedAddresses(ctx, history, deployment)
	}

	if err := st.Save(ctx, deployment); err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}

	return nil
}

// logReplacedAddresses reports the address each contract had after the previous recorded run.
// Lookup failures are logged and do not stop the save.
func (s *Service) logReplacedAddresses(ctx context.Context, history addressHistory, deployment *orchestrator.Deployment) {
	for _, record := range deployment.Records {
		log := s.logger.With("network", deployment.Network).With("contract", record.Contract)

		previous, found, err := history.LatestAddress(ctx, deployment.Network, record.Contract)
		if err != nil {
			log.With("err", err.Error()).Warn("could not look up previous deployment")
			continue
		}
		if !found {
			continue
		}

		log.With("previous_address", previous).With("address", record.Address).Info("replacing previously recorded deployment")
	}
}
