package testvalues

import (
	"time"

	"cosmossdk.io/math"
)

const (
	// StartingTokenAmount is the amount of tokens to give to each user at the start of the test.
	StartingTokenAmount int64 = 10_000_000_000

	// TransferAmount is the default amount of tokens to transfer between users.
	TransferAmount int64 = 1_000_000

	// EnvKeyE2EEnabled enables the docker backed end-to-end tests when set to "true".
	EnvKeyE2EEnabled = "E2E_ENABLED"
	// EnvKeyChainAImage overrides the docker image of the first chain.
	EnvKeyChainAImage = "CHAIN_A_IMAGE"
	// EnvKeyChainBImage overrides the docker image of the second chain.
	EnvKeyChainBImage = "CHAIN_B_IMAGE"
	// EnvKeyNumValidators is the number of validators of each e2e chain.
	EnvKeyNumValidators = "NUM_VALIDATORS"

	// EnvPrefix prefixes every environment variable read by the CLI configuration.
	EnvPrefix = "INTERCHAIN"

	// DefaultDenom is the staking and fee denom of the e2e chains.
	DefaultDenom = "stake"
	// DefaultChainAID is the chain id of the first e2e chain.
	DefaultChainAID = "simd-1"
	// DefaultChainBID is the chain id of the second e2e chain.
	DefaultChainBID = "simd-2"
	// DefaultSimdImage is the ibc-go simd image used by the e2e chains.
	DefaultSimdImage = "ghcr.io/cosmos/ibc-go-simd"
	// DefaultSimdVersion is the tag of DefaultSimdImage.
	DefaultSimdVersion = "v10.1.0"

	// DefaultRetryAttempts is the number of polls for a packet leg or a channel creation.
	DefaultRetryAttempts uint = 5
	// DefaultOutFile is the JSONL sink path of the CLI.
	DefaultOutFile = "./data/records.jsonl"
	// DefaultStateFile is the deployment state file read by address-book fetch.
	DefaultStateFile = "./state.json"
	// DefaultAddressBook is the address book written by address-book fetch.
	DefaultAddressBook = "./address_book.toml"
)

var (
	// DefaultPollInterval is the pause between two tracker polls.
	DefaultPollInterval = 4 * time.Second
	// DefaultRetryDelay is the pause between two polls of a channel creation.
	DefaultRetryDelay = 10 * time.Second
	// DefaultQueryTimeout bounds every single node query issued by the CLI.
	DefaultQueryTimeout = 30 * time.Second

	// StartingBalance is StartingTokenAmount as an sdk integer.
	StartingBalance = math.NewInt(StartingTokenAmount)
)
