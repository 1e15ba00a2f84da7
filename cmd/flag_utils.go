package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/srdtrk/ibc-packet-tracker/cmd/utils"
	"github.com/srdtrk/ibc-packet-tracker/config"
	"github.com/srdtrk/ibc-packet-tracker/cosmos"
	"github.com/srdtrk/ibc-packet-tracker/interchain"
	"github.com/srdtrk/ibc-packet-tracker/storage"
	"github.com/srdtrk/ibc-packet-tracker/storage/postgres"
)

// setup loads the configuration of cmd and builds its logger.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString(FlagConfig)
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// connections closes every gRPC connection opened for a command.
type connections []*grpc.ClientConn

func (c connections) Close() error {
	var errs []error
	for _, conn := range c {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}

func dialClient(cmd *cobra.Command, endpoint config.Endpoint, logger *zap.Logger) (*cosmos.Client, *grpc.ClientConn, error) {
	conn, err := utils.GetGRPC(endpoint.GRPC, UseTLS(cmd))
	if err != nil {
		return nil, nil, err
	}
	return cosmos.NewClient(conn, endpoint.ChainID, logger), conn, nil
}

// newChannel connects to both chains of cfg and returns the channel between
// them. Endpoints with a configured channel id are bound to it.
func newChannel(cmd *cobra.Command, cfg config.Config, logger *zap.Logger) (*interchain.Channel, connections, error) {
	if err := cfg.ValidateChannel(); err != nil {
		return nil, nil, err
	}

	var conns connections
	clientA, connA, err := dialClient(cmd, cfg.ChainA, logger)
	if err != nil {
		return nil, nil, err
	}
	conns = append(conns, connA)

	clientB, connB, err := dialClient(cmd, cfg.ChainB, logger)
	if err != nil {
		conns.Close()
		return nil, nil, err
	}
	conns = append(conns, connB)

	portA := interchain.NewPort(cfg.ChainA.ChainID, clientA, cfg.ChainA.Port)
	portB := interchain.NewPort(cfg.ChainB.ChainID, clientB, cfg.ChainB.Port)
	channel, err := interchain.NewChannel(cfg.ConnectionID, portA, portB)
	if err != nil {
		conns.Close()
		return nil, nil, err
	}
	channel = channel.WithLogger(logger)

	if cfg.ChainA.Channel != "" || cfg.ChainB.Channel != "" {
		if channel, err = channel.WithChannelIDs(cfg.ChainA.Channel, cfg.ChainB.Channel); err != nil {
			conns.Close()
			return nil, nil, err
		}
	}
	return channel, conns, nil
}

// openSink returns the Postgres store when a DSN is configured and the JSONL sink otherwise.
func openSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Sink, func(), error) {
	if cfg.PgDSN == "" {
		logger.Info("writing records", zap.String("out", cfg.Out))
		return storage.NewJsonlSink(cfg.Out), func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PgDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	logger.Info("writing records to postgres")
	return store, store.Close, nil
}
