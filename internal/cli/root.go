// Package cli implements the command-line interface for the localsearchd
// indexing daemon.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	dbPath  string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "localsearchd",
	Short: "localsearchd - local filesystem indexing daemon",
	Long: `localsearchd watches configured directories, crawls and monitors them for
changes, and maintains a queryable index of file metadata in an embedded
store.

Commands:
  run         Start monitoring and indexing the configured roots
  status      Show indexing status and store stats
  config      Inspect the active configuration
  completion  Generate or install shell completion scripts`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .localsearch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "store-path", "", "path to the badger store directory")

	bindFlag := func(key, flag string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
	bindFlag("config_file", "config")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}
