package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srdtrk/ibc-packet-tracker/config"
	"github.com/srdtrk/ibc-packet-tracker/storage"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
	"github.com/srdtrk/ibc-packet-tracker/tracker"
)

func TrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track [chain-id]",
		Short: "Log the channels and packets of a port over a connection as they change",
		Long: "Polls the chain every poll interval and logs the channels opened on the configured port " +
			"over --connection-id and the packets committed and acknowledged on them. " +
			"The connection id must be the one of the tracked chain.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			endpoint, err := cfg.Endpoint(args[0])
			if err != nil {
				return err
			}
			if cfg.ConnectionID == "" || endpoint.Port == "" {
				return fmt.Errorf("connection id and port are required to track %s", endpoint.ChainID)
			}

			client, conn, err := dialClient(cmd, endpoint, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink, closeSink, err := openSink(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeSink()

			h := tracker.Spawn[tracker.ContractState, tracker.ContractStateDiff](ctx, client,
				tracker.NewContractState(cfg.ConnectionID, endpoint.Port),
				tracker.Config{
					LogInterval:  cfg.PollInterval,
					QueryTimeout: cfg.QueryTimeout,
					Label:        endpoint.ChainID,
				}, logger)

			for update := range h.Updates() {
				rec := storage.NewUpdateRecord(update, time.Now())
				// the sink write must finish even when the run is being interrupted
				writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.QueryTimeout)
				err := sink.PutUpdates(writeCtx, []storage.UpdateRecord{rec})
				cancel()
				if err != nil {
					logger.Error("failed to store update", zap.Uint64("height", update.Height), zap.Error(err))
				}
			}
			return h.Wait()
		},
	}

	cmd.Flags().String(config.KeyChainAID, "", "chain id of the first chain")
	cmd.Flags().String(config.KeyChainAGRPC, "", "gRPC address of the first chain")
	cmd.Flags().String(config.KeyChainAPort, "", "port tracked on the first chain")
	cmd.Flags().String(config.KeyChainBID, "", "chain id of the second chain")
	cmd.Flags().String(config.KeyChainBGRPC, "", "gRPC address of the second chain")
	cmd.Flags().String(config.KeyChainBPort, "", "port tracked on the second chain")
	cmd.Flags().String(config.KeyConnectionID, "", "connection id on the tracked chain")
	cmd.Flags().Duration(FlagPollInterval, testvalues.DefaultPollInterval, "interval between two polls")
	cmd.Flags().Duration(FlagQueryTimeout, testvalues.DefaultQueryTimeout, "timeout of a single poll")
	AddSinkFlags(cmd)

	return cmd
}
