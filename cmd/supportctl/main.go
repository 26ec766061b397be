// Command supportctl inspects and operates the support backend: quota
// usage, queue reconciliation and issue search.
package main

import (
	"fmt"
	"os"

	"birdwatch-support/cmd/supportctl/commands"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/logger"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "supportctl",
		Short: "Birdwatch support administration tool",
		Long: `Birdwatch support administration tool.

Commands connect to the same Postgres, Redis and Elasticsearch as the
support server and read the same configuration.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (defaults to configs/config.yaml)")

	env := &commands.Env{
		LoadConfig: func() (*config.Config, error) {
			if configPath != "" {
				return config.LoadFromFile(configPath)
			}
			return config.Load()
		},
		Logger: logger.New("error", "console", "stderr"),
		Out:    os.Stdout,
	}

	rootCmd.AddCommand(commands.MigrateCommand(env))
	rootCmd.AddCommand(commands.QuotaCommand(env))
	rootCmd.AddCommand(commands.ReconcileCommand(env))
	rootCmd.AddCommand(commands.SearchCommand(env))
	rootCmd.AddCommand(commands.TasksCommand(env))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
