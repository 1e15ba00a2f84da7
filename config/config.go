package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

// Config keys, shared with the CLI flag names.
const (
	KeyChainAID      = "chain-a-id"
	KeyChainAGRPC    = "chain-a-grpc"
	KeyChainAPort    = "chain-a-port"
	KeyChainAChannel = "chain-a-channel"
	KeyChainBID      = "chain-b-id"
	KeyChainBGRPC    = "chain-b-grpc"
	KeyChainBPort    = "chain-b-port"
	KeyChainBChannel = "chain-b-channel"
	KeyConnectionID  = "connection-id"
	KeyPollInterval  = "poll-interval"
	KeyRetryAttempts = "retry-attempts"
	KeyRetryDelay    = "retry-delay"
	KeyQueryTimeout  = "query-timeout"
	KeyOut           = "out"
	KeyPgDSN         = "pg-dsn"
	KeyLogLevel      = "log-level"
	KeyStateFile     = "state-file"
	KeyAddressBook   = "address-book"
	KeyDeployment    = "deployment"
)

// Endpoint is one side of the tracked channel.
type Endpoint struct {
	ChainID string
	GRPC    string
	Port    string
	Channel string
}

func (e Endpoint) validate(name string) error {
	if e.ChainID == "" {
		return fmt.Errorf("%s chain id is required", name)
	}
	if e.GRPC == "" {
		return fmt.Errorf("%s grpc address is required", name)
	}
	if e.Port == "" {
		return fmt.Errorf("%s port is required", name)
	}
	return nil
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ChainA       Endpoint
	ChainB       Endpoint
	ConnectionID string

	PollInterval  time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	QueryTimeout  time.Duration

	Out      string
	PgDSN    string
	LogLevel string

	StateFile   string
	AddressBook string
	Deployment  string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(testvalues.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPollInterval, testvalues.DefaultPollInterval)
	v.SetDefault(KeyRetryAttempts, testvalues.DefaultRetryAttempts)
	v.SetDefault(KeyRetryDelay, testvalues.DefaultRetryDelay)
	v.SetDefault(KeyQueryTimeout, testvalues.DefaultQueryTimeout)
	v.SetDefault(KeyOut, testvalues.DefaultOutFile)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStateFile, testvalues.DefaultStateFile)
	v.SetDefault(KeyAddressBook, testvalues.DefaultAddressBook)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("interchain")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		ChainA: Endpoint{
			ChainID: v.GetString(KeyChainAID),
			GRPC:    v.GetString(KeyChainAGRPC),
			Port:    v.GetString(KeyChainAPort),
			Channel: v.GetString(KeyChainAChannel),
		},
		ChainB: Endpoint{
			ChainID: v.GetString(KeyChainBID),
			GRPC:    v.GetString(KeyChainBGRPC),
			Port:    v.GetString(KeyChainBPort),
			Channel: v.GetString(KeyChainBChannel),
		},
		ConnectionID:  v.GetString(KeyConnectionID),
		PollInterval:  v.GetDuration(KeyPollInterval),
		RetryAttempts: v.GetUint(KeyRetryAttempts),
		RetryDelay:    v.GetDuration(KeyRetryDelay),
		QueryTimeout:  v.GetDuration(KeyQueryTimeout),
		Out:           v.GetString(KeyOut),
		PgDSN:         v.GetString(KeyPgDSN),
		LogLevel:      v.GetString(KeyLogLevel),
		StateFile:     v.GetString(KeyStateFile),
		AddressBook:   v.GetString(KeyAddressBook),
		Deployment:    v.GetString(KeyDeployment),
	}

	return cfg, nil
}

// ValidateChannel checks the settings needed to build a channel between both endpoints.
func (c Config) ValidateChannel() error {
	if err := c.ChainA.validate("chain a"); err != nil {
		return err
	}
	if err := c.ChainB.validate("chain b"); err != nil {
		return err
	}
	if c.ChainA.ChainID == c.ChainB.ChainID {
		return fmt.Errorf("chain a and chain b must differ, both are %s", c.ChainA.ChainID)
	}
	if c.ConnectionID == "" {
		return fmt.Errorf("connection id is required")
	}
	return nil
}

// Endpoint returns the endpoint configured for chainID.
func (c Config) Endpoint(chainID string) (Endpoint, error) {
	switch chainID {
	case c.ChainA.ChainID:
		return c.ChainA, nil
	case c.ChainB.ChainID:
		return c.ChainB, nil
	default:
		return Endpoint{}, fmt.Errorf("chain %s is neither %s nor %s", chainID, c.ChainA.ChainID, c.ChainB.ChainID)
	}
}
