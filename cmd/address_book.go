package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srdtrk/ibc-packet-tracker/addressbook"
	"github.com/srdtrk/ibc-packet-tracker/state"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

func AddressBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address-book",
		Short: "Manage contract aliases",
	}

	cmd.AddCommand(FetchAddressesCmd())

	return cmd
}

func FetchAddressesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [chain-name] [chain-id]",
		Short: "Copy the contract addresses of a deployment state file into the address book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			chainName, chainID := args[0], args[1]

			nameStrategy, _ := cmd.Flags().GetString(FlagNameStrategy)
			strategy, err := addressbook.ParseAliasStrategy(nameStrategy)
			if err != nil {
				return err
			}
			duplicate, _ := cmd.Flags().GetString(FlagDuplicate)
			resolution, err := addressbook.ParseResolution(duplicate)
			if err != nil {
				return err
			}
			aliasPairs, _ := cmd.Flags().GetStringSlice(FlagAlias)
			aliases, err := parseAliases(aliasPairs)
			if err != nil {
				return err
			}

			contracts, err := state.ReadDeployment(cfg.StateFile, chainName, chainID, cfg.Deployment)
			if err != nil {
				return err
			}

			book, err := addressbook.Load(cfg.AddressBook)
			if err != nil {
				return err
			}

			report, err := addressbook.Merge(book, chainID, contracts, strategy,
				addressbook.FixedResolver{Duplicate: resolution, Aliases: aliases})
			if err != nil {
				return err
			}
			if err := book.Save(); err != nil {
				return err
			}

			logger.Info("address book updated",
				zap.String("path", book.Path()),
				zap.String("chain_id", chainID),
				zap.Strings("inserted", report.Inserted),
				zap.Strings("overridden", report.Overridden),
				zap.Strings("skipped", report.Skipped))
			return nil
		},
	}

	cmd.Flags().String(FlagStateFile, testvalues.DefaultStateFile, "deployment state file")
	cmd.Flags().String(FlagAddressBook, testvalues.DefaultAddressBook, "address book file")
	cmd.Flags().String(FlagDeployment, state.DefaultDeployment, "deployment id")
	cmd.Flags().String(FlagNameStrategy, DefaultNameStrategy, "alias names strategy (keep, rename)")
	cmd.Flags().String(FlagDuplicate, DefaultDuplicate, "what to do with aliases already in the book (rename, skip, override, skip-all, override-all)")
	cmd.Flags().StringSlice(FlagAlias, nil, "contract-id=alias pairs used by the rename strategy")

	return cmd
}

func parseAliases(pairs []string) (map[string]string, error) {
	aliases := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		contractID, alias, ok := strings.Cut(pair, "=")
		if !ok || contractID == "" || alias == "" {
			return nil, fmt.Errorf("invalid alias %q, expected contract-id=alias", pair)
		}
		aliases[contractID] = alias
	}
	return aliases, nil
}
