package stash

import (
	"github.com/spf13/cobra"

	"github.com/riddopic/garcun/cmd/util"
	store "github.com/riddopic/garcun/lib/stash"
)

var (
	journal *store.Stash

	// StashCommands represents the stash command group
	StashCommands = &cobra.Command{
		Use:                "stash",
		Short:              "Operate on a stash journal file",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: teardownStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	StashCommands.PersistentFlags().String("path", "", util.WrapString("Path of the journal file to operate on"))
	StashCommands.PersistentFlags().String("default", "", util.WrapString("Value returned for missing keys instead of an error"))

	// Add subcommands
	StashCommands.AddCommand(setCmd)
	StashCommands.AddCommand(setSyncCmd)
	StashCommands.AddCommand(getCmd)
	StashCommands.AddCommand(delCmd)
	StashCommands.AddCommand(hasCmd)
	StashCommands.AddCommand(keysCmd)
	StashCommands.AddCommand(lenCmd)
	StashCommands.AddCommand(compactCmd)
	StashCommands.AddCommand(inspectCmd)
}

// setupStore opens the journal configured via --path
func setupStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// inspect reads the raw file itself, no store needed
	if cmd.Name() == inspectCmd.Name() {
		return nil
	}

	path, err := util.GetStorePath()
	if err != nil {
		return err
	}
	opts, err := util.GetStoreOptions()
	if err != nil {
		return err
	}

	journal, err = store.Open(path, opts...)
	return err
}

// teardownStore flushes and closes the journal opened by setupStore
func teardownStore(_ *cobra.Command, _ []string) error {
	if journal == nil {
		return nil
	}
	return journal.Close()
}
