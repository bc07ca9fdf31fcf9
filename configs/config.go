package configs

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

var Values Config

type (
	DeploymentTarget string
	StoreDriver      string

	Config struct {
		LogLevel string `mapstructure:"log-level"`
		Deploy   Deploy `mapstructure:"deploy"`
	}

	Deploy struct {
		Network          string           `mapstructure:"network" validate:"required"`
		RPCURL           string           `mapstructure:"rpc-url" validate:"omitempty,url"`
		ChainID          int              `mapstructure:"chain-id" validate:"min=0"`
		Wallet           Wallet           `mapstructure:"wallet"`
		Accounts         []string         `mapstructure:"accounts" validate:"dive,eth_addr"`
		ArtifactsPath    string           `mapstructure:"artifacts-path" validate:"required"`
		OutputDir        string           `mapstructure:"output-dir"`
		DeploymentTarget DeploymentTarget `mapstructure:"deployment-target" validate:"required,oneof=live calldata"`
		FeeCollector     string           `mapstructure:"fee-collector" validate:"omitempty,eth_addr"`
		Token            Token            `mapstructure:"token"`
		Transactions     Transactions     `mapstructure:"transactions"`
		Preflight        Preflight        `mapstructure:"preflight"`
		Store            Store            `mapstructure:"store"`
		Contracts        Contracts        `mapstructure:"contracts"`
	}

	// Contracts locates the Solidity sources used by the compile command.
	Contracts struct {
		Dir           string `mapstructure:"dir"`
		RepositoryURL string `mapstructure:"repository-url"`
		Branch        string `mapstructure:"branch"`
		OutputDir     string `mapstructure:"output-dir"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key" validate:"required"`
		Address    string `mapstructure:"address" validate:"omitempty,eth_addr"`
	}

	Token struct {
		Name    string `mapstructure:"name"`
		Symbol  string `mapstructure:"symbol"`
		Cap     string `mapstructure:"cap"`
		BaseURI string `mapstructure:"base-uri"`
	}

	Transactions struct {
		GasLimit       uint64 `mapstructure:"gas-limit"`
		TimeoutSeconds int    `mapstructure:"timeout-seconds" validate:"min=0"`
		StartNonce     int64  `mapstructure:"start-nonce"`
	}

	Preflight struct {
		Skip            bool   `mapstructure:"skip"`
		RPCWaitAttempts int    `mapstructure:"rpc-wait-attempts" validate:"min=0"`
		MinBalanceWei   string `mapstructure:"min-balance-wei"`
	}

	Store struct {
		Driver      StoreDriver `mapstructure:"driver" validate:"omitempty,oneof=file postgres"`
		PostgresURL string      `mapstructure:"postgres-url"`
	}
)

const (
	DeploymentTargetLive     DeploymentTarget = "live"
	DeploymentTargetCalldata DeploymentTarget = "calldata"

	StoreDriverFile     StoreDriver = "file"
	StoreDriverPostgres StoreDriver = "postgres"

	// PlaceholderFeeCollector is the community fee collector shipped with the contracts repository.
	// It is not a real wallet; production deployments must override it.
	PlaceholderFeeCollector = "0xeE9300b7961e0a01d9f0adb863C7A227A07AaD75"
)

func (c *Deploy) Validate() error {
	errs := fieldErrors(c)

	switch c.DeploymentTarget {
	case DeploymentTargetLive:
		if c.RPCURL == "" {
			errs = append(errs, errors.New("deploy.rpc-url is required for the live deployment target"))
		}
	case DeploymentTargetCalldata:
		if c.RPCURL == "" && c.ChainID == 0 {
			errs = append(errs, errors.New("deploy.chain-id is required for the calldata target when no rpc-url is set"))
		}
	}

	if c.Token.Cap != "" {
		if _, ok := new(big.Int).SetString(c.Token.Cap, 10); !ok {
			errs = append(errs, errors.New("deploy.token.cap must be a base-10 integer"))
		}
	}
	if c.Preflight.MinBalanceWei != "" {
		if _, ok := new(big.Int).SetString(c.Preflight.MinBalanceWei, 10); !ok {
			errs = append(errs, errors.New("deploy.preflight.min-balance-wei must be a base-10 integer"))
		}
	}

	switch c.Store.Driver {
	case StoreDriverFile, "":
		if c.OutputDir == "" {
			errs = append(errs, errors.New("deploy.output-dir is required for the file store"))
		}
	case StoreDriverPostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("deploy.store.postgres-url is required for the postgres store"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("deploy configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateCompile checks the settings the compile command needs.
func (c *Contracts) ValidateCompile() error {
	var errs []error

	if c.Dir == "" {
		errs = append(errs, errors.New("deploy.contracts.dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("deploy.contracts.output-dir is required"))
	}
	if c.RepositoryURL != "" && c.Branch == "" {
		errs = append(errs, errors.New("deploy.contracts.branch is required when repository-url is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("compile configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors runs the struct tag rules and reports each failure by its config key, e.g. deploy.wallet.address.
func fieldErrors(c *Deploy) []error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []error{err}
	}

	errs := make([]error, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		_, key, _ := strings.Cut(fieldError.Namespace(), ".")
		key = "deploy." + key

		switch fieldError.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s is required", key))
		case "eth_addr":
			errs = append(errs, fmt.Errorf("%s is not a valid address", key))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s '%v' must be one of: %s", key, fieldError.Value(), fieldError.Param()))
		case "url":
			errs = append(errs, fmt.Errorf("%s must be a valid URL", key))
		case "min":
			errs = append(errs, fmt.Errorf("%s must be at least %s", key, fieldError.Param()))
		default:
			errs = append(errs, fmt.Errorf("%s is invalid", key))
		}
	}

	return errs
}

// FeeCollectorAddress returns the configured fee collector, falling back to the placeholder.
func (c *Deploy) FeeCollectorAddress() common.Address {
	if c.FeeCollector == "" {
		return common.HexToAddress(PlaceholderFeeCollector)
	}
	return common.HexToAddress(c.FeeCollector)
}

// UsesPlaceholderFeeCollector reports whether the deployment would send fees to the placeholder wallet.
func (c *Deploy) UsesPlaceholderFeeCollector() bool {
	return c.FeeCollectorAddress() == common.HexToAddress(PlaceholderFeeCollector)
}
