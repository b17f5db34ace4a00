package main

import (
	"ctchen222/item-registry/internal/config"

	"github.com/spf13/cobra"
)

// configFile is the optional YAML file shared by every subcommand.
var configFile string

// NewRootCmd creates the root command of the item registry CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "itemreg",
		Short: "Item registry with transferable ownership",
		Long: `itemreg serves an HTTP API where users register, log in, manage the
items they own and hand them to other users through signed transfer links.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
