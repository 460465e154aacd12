package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/pkg/switchpoint"
)

const modulePath = "github.com/mesh-intelligence/switchpoint"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the switchpoint version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "switchpoint v%s\nmodule: %s\n", switchpoint.Version, modulePath)
			return nil
		},
	}
}
