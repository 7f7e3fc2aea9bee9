package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
	"github.com/nerrad567/rcp-core/internal/rcp"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(cmd)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			// The command schemas are embedded; compiling them catches a bad build.
			topics := rcp.NewTopics(cfg.Protocol.Prefix, cfg.Protocol.ID, cfg.Protocol.Version)
			if _, err := rcp.NewRouter(topics); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is valid\n", path)
			fmt.Fprintf(out, "  namespace: %s\n", topics.AllCommands())
			fmt.Fprintf(out, "  devices:   %d\n", len(cfg.Devices))
			for _, d := range cfg.Devices {
				fmt.Fprintf(out, "    %s (%s)\n", d.ID, d.Class)
			}
			return nil
		},
	}
}
