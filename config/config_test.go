package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/srdtrk/ibc-packet-tracker/config"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, testvalues.DefaultPollInterval, cfg.PollInterval)
	require.Equal(t, testvalues.DefaultRetryAttempts, cfg.RetryAttempts)
	require.Equal(t, "info", cfg.LogLevel)
	require.Error(t, cfg.ValidateChannel())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "interchain.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
chain-a-id = "juno-1"
chain-a-grpc = "localhost:9090"
chain-a-port = "transfer"
chain-b-id = "osmosis-1"
chain-b-grpc = "localhost:9091"
chain-b-port = "transfer"
connection-id = "connection-0"
poll-interval = "1s"
`), 0o600))

	t.Setenv("INTERCHAIN_CHAIN_A_CHANNEL", "channel-7")
	t.Setenv("INTERCHAIN_POLL_INTERVAL", "2s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration(config.KeyPollInterval, time.Second, "")
	flags.Uint(config.KeyRetryAttempts, 5, "")
	require.NoError(t, flags.Parse([]string{"--" + config.KeyRetryAttempts + "=9"}))

	cfg, err := config.Load(cfgFile, flags)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateChannel())

	require.Equal(t, "channel-7", cfg.ChainA.Channel)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, uint(9), cfg.RetryAttempts)

	ep, err := cfg.Endpoint("osmosis-1")
	require.NoError(t, err)
	require.Equal(t, "localhost:9091", ep.GRPC)
	_, err = cfg.Endpoint("stargaze-1")
	require.Error(t, err)
}
