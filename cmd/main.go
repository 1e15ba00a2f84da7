package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/srdtrk/ibc-packet-tracker/config"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

const (
	FlagConfig = "config"

	FlagLogLevel    = config.KeyLogLevel
	DefaultLogLevel = "info"

	FlagGRPCTLS = "grpc-tls"

	FlagPollInterval  = config.KeyPollInterval
	FlagRetryAttempts = config.KeyRetryAttempts
	FlagRetryDelay    = config.KeyRetryDelay
	FlagQueryTimeout  = config.KeyQueryTimeout

	FlagOut    = config.KeyOut
	DefaultOut = testvalues.DefaultOutFile
	FlagPgDSN  = config.KeyPgDSN

	FlagStateFile   = config.KeyStateFile
	FlagAddressBook = config.KeyAddressBook
	FlagDeployment  = config.KeyDeployment

	FlagNameStrategy    = "name-strategy"
	DefaultNameStrategy = "keep"

	FlagDuplicate    = "duplicate"
	DefaultDuplicate = "skip"

	FlagAlias = "alias"
)

func main() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "interchain-cli",
		Short:        "Follow IBC packets and track channel state",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(FollowPacketCmd())
	rootCmd.AddCommand(PacketOutcomeCmd())
	rootCmd.AddCommand(FindChannelCmd())
	rootCmd.AddCommand(TrackCmd())
	rootCmd.AddCommand(AddressBookCmd())

	rootCmd.PersistentFlags().String(FlagConfig, "", "config file path")
	rootCmd.PersistentFlags().String(FlagLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool(FlagGRPCTLS, false, "use TLS for the gRPC connections")

	return rootCmd
}

// AddChannelFlags registers the two endpoints of a channel and the connection between them.
func AddChannelFlags(cmd *cobra.Command) {
	cmd.Flags().String(config.KeyChainAID, "", "chain id of the first chain")
	cmd.Flags().String(config.KeyChainAGRPC, "", "gRPC address of the first chain")
	cmd.Flags().String(config.KeyChainAPort, "", "port of the first chain")
	cmd.Flags().String(config.KeyChainAChannel, "", "channel of the first chain, empty when not bound yet")
	cmd.Flags().String(config.KeyChainBID, "", "chain id of the second chain")
	cmd.Flags().String(config.KeyChainBGRPC, "", "gRPC address of the second chain")
	cmd.Flags().String(config.KeyChainBPort, "", "port of the second chain")
	cmd.Flags().String(config.KeyChainBChannel, "", "channel of the second chain, empty when not bound yet")
	cmd.Flags().String(config.KeyConnectionID, "", "connection id of the first chain")
	cmd.Flags().Duration(FlagQueryTimeout, testvalues.DefaultQueryTimeout, "timeout of a single node query")
}

// AddRetryFlags registers the polling limits of commands that wait for transactions.
func AddRetryFlags(cmd *cobra.Command) {
	cmd.Flags().Uint(FlagRetryAttempts, testvalues.DefaultRetryAttempts, "number of polls before giving up")
	cmd.Flags().Duration(FlagRetryDelay, testvalues.DefaultRetryDelay, "delay between two polls")
}

// AddSinkFlags registers where records are written.
func AddSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String(FlagOut, DefaultOut, "output JSONL path")
	cmd.Flags().String(FlagPgDSN, "", "Postgres DSN, replaces the JSONL output when set")
}

func UseTLS(cmd *cobra.Command) bool {
	useTLS, _ := cmd.Flags().GetBool(FlagGRPCTLS)
	return useTLS
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
