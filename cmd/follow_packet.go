package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srdtrk/ibc-packet-tracker/interchain"
	"github.com/srdtrk/ibc-packet-tracker/storage"
)

func FollowPacketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow-packet [from-chain-id] [sequence]",
		Short: "Print the receive and acknowledgement transactions of a packet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			channel, conns, err := newChannel(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer conns.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
			defer cancel()

			txs, err := channel.FollowPacket(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			for _, ref := range txs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (height %d)\n", ref.ChainID, ref.Tx.TxHash, ref.Tx.Height)
			}
			return nil
		},
	}

	AddChannelFlags(cmd)

	return cmd
}

func PacketOutcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet-outcome [from-chain-id] [sequence...]",
		Short: "Wait for packets to complete and record whether they succeeded, failed or timed out",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			channel, conns, err := newChannel(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer conns.Close()

			ctx := cmd.Context()
			sink, closeSink, err := openSink(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeSink()

			from := args[0]
			src, err := channel.GetChain(from)
			if err != nil {
				return err
			}

			opts := interchain.WaitOptions{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}
			records := make([]storage.OutcomeRecord, 0, len(args)-1)
			for _, seq := range args[1:] {
				outcome, err := channel.WaitForPacketOutcome(ctx, from, seq, opts)
				if err != nil {
					return fmt.Errorf("packet %s: %w", seq, err)
				}
				logger.Info("packet outcome", zap.String("sequence", seq), zap.String("kind", string(outcome.Kind())))
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", seq, outcome.Kind())
				records = append(records, storage.NewOutcomeRecord(src, outcome, time.Now()))
			}

			return sink.PutPacketOutcomes(ctx, records)
		},
	}

	AddChannelFlags(cmd)
	AddRetryFlags(cmd)
	AddSinkFlags(cmd)

	return cmd
}
