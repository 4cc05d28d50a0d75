package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riddopic/garcun/cmd/perf"
	"github.com/riddopic/garcun/cmd/stash"
	"github.com/riddopic/garcun/cmd/util"
)

const (
	Version = "0.4.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "garcun",
		Short: "concurrency toolkit and journaled key-value store",
		Long: fmt.Sprintf(`garcun (v%s)

A concurrency toolkit and embedded append-only key-value store
library written in Go. The CLI inspects and manipulates stash
journal files and benchmarks the library primitives.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of garcun",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("garcun v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(stash.StashCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "raw", util.WrapString("value codec to use (raw, gob, json)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
