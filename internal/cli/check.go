package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/internal/config"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// checkReport is the --json output of check.
type checkReport struct {
	Config       string             `json:"config"`
	Default      types.PhysicalID   `json:"default,omitempty"`
	AutoWritable bool               `json:"auto_writable"`
	CacheSize    int                `json:"cache_size"`
	Databases    []string           `json:"databases"`
	SwitchPoints []types.Definition `json:"switch_points"`
}

func newCheckCmd(a *app) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list switch points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asYAML {
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			report := checkReport{
				Config:       path,
				Default:      cfg.Default,
				AutoWritable: cfg.AutoWritable,
				CacheSize:    cfg.CacheSize(),
				Databases:    databaseNames(cfg),
				SwitchPoints: cfg.Definitions(),
			}
			if a.jsonMode {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "Config %s is valid: %d databases, %d switch points\n\n",
				path, len(report.Databases), len(report.SwitchPoints))
			t := newTable(out, "SWITCH POINT", "READONLY", "WRITABLE")
			for _, def := range report.SwitchPoints {
				t.row(def.Name, def.Target(types.Readonly), def.Target(types.Writable))
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the resolved configuration as YAML")
	return cmd
}

func databaseNames(cfg types.Config) []string {
	return slices.Sorted(maps.Keys(cfg.Databases))
}
