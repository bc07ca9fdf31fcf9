package deploy

import (
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag bound to a viper configuration key.
type (
	flagType interface {
		string | int | bool | []string
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

var (
	stringFlags = []flagDef[string]{
		// Network
		{"network", "deploy.network", "development", "Network name used for output directories and records"},
		{"rpc-url", "deploy.rpc-url", "http://localhost:8545", "JSON-RPC URL of the target node"},

		// Wallet
		{"wallet-private-key", "deploy.wallet.private-key", "", "Deployer wallet private key (accounts[0])"},
		{"wallet-address", "deploy.wallet.address", "", "Deployer wallet address, checked against the private key"},

		// Deployment
		{"artifacts-path", "deploy.artifacts-path", "./build/contracts", "Compiled contracts: a contracts.json file or a build directory"},
		{"output-dir", "deploy.output-dir", "./.deployments", "Directory for deployment records and output.yaml"},
		{"deployment-target", "deploy.deployment-target", "live", "Deployment target (live or calldata)"},
		{"fee-collector", "deploy.fee-collector", "", "Community fee collector address (defaults to the placeholder collector)"},

		// Token
		{"token-name", "deploy.token.name", "DataTokenTemplate", "Data token template name"},
		{"token-symbol", "deploy.token.symbol", "DTT", "Data token template symbol"},
		{"token-cap", "deploy.token.cap", "10000000", "Data token template cap"},
		{"token-base-uri", "deploy.token.base-uri", "http://oceanprotocol.com", "Data token template blob"},

		// Preflight
		{"min-balance-wei", "deploy.preflight.min-balance-wei", "1", "Minimum deployer balance in wei"},

		// Store
		{"store-driver", "deploy.store.driver", "file", "Deployment store (file or postgres)"},
		{"store-postgres-url", "deploy.store.postgres-url", "", "PostgreSQL connection string for the postgres store"},

		// Contracts sources
		{"contracts-dir", "deploy.contracts.dir", "./contracts", "Contracts checkout compiled by the compile command"},
		{"contracts-repository-url", "deploy.contracts.repository-url", "", "Repository cloned into contracts-dir when it is missing"},
		{"contracts-branch", "deploy.contracts.branch", "", "Branch or tag of the contracts repository"},
		{"contracts-output-dir", "deploy.contracts.output-dir", "./build", "Directory the compile command writes contracts.json to"},
	}

	intFlags = []flagDef[int]{
		{"chain-id", "deploy.chain-id", 0, "Expected chain ID (0 skips the check on live targets)"},
		{"gas-limit", "deploy.transactions.gas-limit", 10_000_000, "Gas limit of every deployment transaction"},
		{"timeout-seconds", "deploy.transactions.timeout-seconds", 60, "Per contract deployment timeout in seconds"},
		{"start-nonce", "deploy.transactions.start-nonce", -1, "First nonce for the calldata target (-1 reads the pending nonce)"},
		{"rpc-wait-attempts", "deploy.preflight.rpc-wait-attempts", 120, "Attempts to reach the node before giving up"},
	}

	boolFlags = []flagDef[bool]{
		{"skip-preflight", "deploy.preflight.skip", false, "Skip the RPC wait, chain ID and balance checks"},
	}

	stringSliceFlags = []flagDef[[]string]{
		{"accounts", "deploy.accounts", nil, "Additional accounts recorded after the deployer"},
	}
)

func init() {
	if err := declareFlags(stringFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(intFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(boolFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(stringSliceFlags); err != nil {
		panic(err)
	}
	CMD.AddCommand(compileCmd)
	CMD.AddCommand(planCmd)
}

// declareFlags declares multiple flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a persistent flag so compile and plan share the deploy settings.
func declareFlag[T flagType](flagName, viperKey string, defaultValue T, description string) error {
	flags := CMD.PersistentFlags()

	var zero T
	switch any(zero).(type) {
	case string:
		flags.String(flagName, any(defaultValue).(string), description)
	case int:
		flags.Int(flagName, any(defaultValue).(int), description)
	case bool:
		flags.Bool(flagName, any(defaultValue).(bool), description)
	case []string:
		flags.StringSlice(flagName, any(defaultValue).([]string), description)
	}
	return viper.BindPFlag(viperKey, flags.Lookup(flagName))
}
