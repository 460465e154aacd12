package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long:  "Write a starter switchpoint.yaml at the resolved config path. An existing file is left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			created, err := config.WriteDefault(path)
			if err != nil {
				return systemError(err)
			}
			if created {
				a.logger.Info().Str("path", path).Msg("wrote default config")
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
			return nil
		},
	}
}
