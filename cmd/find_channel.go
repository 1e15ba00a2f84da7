package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srdtrk/ibc-packet-tracker/interchain"
)

func FindChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find-channel [from-chain-id]",
		Short: "Wait for a channel handshake newer than the current one and print its channel ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			// any channel id configured here would be replaced by the handshake
			cfg.ChainA.Channel, cfg.ChainB.Channel = "", ""
			channel, conns, err := newChannel(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer conns.Close()

			ctx := cmd.Context()
			from := args[0]

			baseline, err := channel.GetLastChannelCreationHash(ctx, from)
			if err != nil {
				return err
			}
			logger.Info("waiting for channel creation",
				zap.String("from", from),
				zap.String("ack_tx_hash", baseline.AckTxHash),
				zap.String("confirm_tx_hash", baseline.ConfirmTxHash))

			ack, confirm, err := channel.FindNewChannelCreationTx(ctx, from, baseline,
				interchain.WithCreationAttempts(cfg.RetryAttempts),
				interchain.WithCreationDelay(cfg.RetryDelay),
			)
			if err != nil {
				return err
			}

			created, err := channel.ChannelFromCreation(from, ack, confirm)
			if err != nil {
				return err
			}
			portA, portB := created.Ports()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", portA, portB)
			return nil
		},
	}

	AddChannelFlags(cmd)
	AddRetryFlags(cmd)

	return cmd
}
