// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/ocean-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckChainIDMatch verifies the chain ID matches the configured value.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer can pay for the deployment.
	CheckDeployerBalance CheckName = "deployer_balance"
)

type (
	// Client is the read-only RPC surface the checks need.
	Client interface {
		ChainID(ctx context.Context) (*big.Int, error)
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	}

	// CheckResult represents the result of a single pre-flight check.
	CheckResult struct {
		Name    CheckName `json:"name"`
		Passed  bool      `json:"passed"`
		Message string    `json:"message"`
	}

	// Request contains the parameters for pre-flight checks. A zero ExpectedChainID skips the
	// chain ID comparison.
	Request struct {
		ExpectedChainID uint64
		Deployer        common.Address
		MinBalance      *big.Int
	}

	// Report contains the results of all pre-flight checks.
	Report struct {
		OK      bool          `json:"ok"`
		ChainID *big.Int      `json:"chainId"`
		Balance *big.Int      `json:"balance"`
		Checks  []CheckResult `json:"checks"`
	}

	// Checker performs pre-flight validation checks.
	Checker struct {
		timeout time.Duration
		logger  *slog.Logger
	}
)

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
		logger:  logger.Named("preflight"),
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// Run performs all pre-flight checks. RPC failures are returned as errors; failed checks are
// reported in the Report with OK set to false.
func (c *Checker) Run(ctx context.Context, client Client, req Request) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	balance, err := client.BalanceAt(ctx, req.Deployer, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", req.Deployer.Hex(), err)
	}

	report := &Report{
		OK:      true,
		ChainID: chainID,
		Balance: balance,
		Checks:  make([]CheckResult, 0, 2),
	}

	if req.ExpectedChainID != 0 {
		report.add(checkChainID(chainID, req.ExpectedChainID))
	}
	report.add(checkBalance(req.Deployer, balance, req.MinBalance))

	for _, check := range report.Checks {
		c.logger.
			With("check", check.Name).
			With("passed", check.Passed).
			Info(check.Message)
	}

	return report, nil
}

func (r *Report) add(result CheckResult) {
	r.Checks = append(r.Checks, result)
	if !result.Passed {
		r.OK = false
	}
}

// Err summarises the failed checks, or returns nil when every check passed.
func (r *Report) Err() error {
	if r.OK {
		return nil
	}

	for _, check := range r.Checks {
		if !check.Passed {
			return fmt.Errorf("preflight check %s failed: %s", check.Name, check.Message)
		}
	}

	return fmt.Errorf("preflight checks failed")
}

func checkChainID(actual *big.Int, expected uint64) CheckResult {
	result := CheckResult{Name: CheckChainIDMatch}

	if actual.Cmp(new(big.Int).SetUint64(expected)) != 0 {
		result.Message = fmt.Sprintf("chain ID mismatch: expected %d, got %s", expected, actual)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("chain ID %d matches", expected)
	return result
}

func checkBalance(deployer common.Address, balance, minBalance *big.Int) CheckResult {
	result := CheckResult{Name: CheckDeployerBalance}

	if minBalance == nil {
		minBalance = big.NewInt(1)
	}

	if balance.Cmp(minBalance) < 0 {
		result.Message = fmt.Sprintf("insufficient balance for %s: have %s wei, need %s wei", deployer.Hex(), balance, minBalance)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("deployer %s has %s wei", deployer.Hex(), balance)
	return result
}
