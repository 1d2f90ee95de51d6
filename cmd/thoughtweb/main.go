package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	outputJSON bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "thoughtweb",
	Short: "Offline connection and pattern analysis for captured thoughts",
	Long: `thoughtweb runs the connection, pattern and insight engines over a file of
thoughts. With --db the resulting memories and graph are kept in a SQLite
file so later commands can query them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file holding memories and the graph (in-memory when empty)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	pathCmd.Flags().Int("max-depth", 3, "maximum number of hops")

	rootCmd.AddCommand(analyzeCmd, pathCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
