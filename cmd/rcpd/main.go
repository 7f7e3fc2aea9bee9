// rcpd runs the RCP device engine.
//
// It emulates the configured devices, takes commands from the MQTT broker and
// publishes every status change back to it, with optional history, telemetry
// and an HTTP API alongside.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor RCP_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rcpd",
		Short:         "RCP device engine",
		Long:          `rcpd emulates RCP devices over MQTT: it applies commands under optimistic concurrency and publishes every status change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to the configuration file (default $RCP_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// configPath resolves the --config flag, then RCP_CONFIG, then the default.
func configPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if path := os.Getenv("RCP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
