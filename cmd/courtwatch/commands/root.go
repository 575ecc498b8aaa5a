package commands

import (
	"context"
	"fmt"
	"os"

	"courtwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "courtwatch",
	Short: "courtwatch checks badminton court availability and reports new openings.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		InitTelemetry(cmd.Context(), debug)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "courtwatch.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and dump http exchanges.")
}

func readConfig() Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
