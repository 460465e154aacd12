package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// routeReport is the --json output of route.
type routeReport struct {
	SwitchPoint string           `json:"switch_point"`
	Definition  string           `json:"definition"`
	Mode        string           `json:"mode"`
	Target      types.PhysicalID `json:"target"`
	Driver      string           `json:"driver"`
	Connected   bool             `json:"connected,omitempty"`
}

func newRouteCmd(a *app) *cobra.Command {
	var mode, name string
	var connect bool
	cmd := &cobra.Command{
		Use:   "route <switch-point>",
		Short: "Show the database a switch point routes to",
		Long: "Resolve the definition and mode of a switch point and print the\n" +
			"physical database its connections would use.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			p, err := repo.Checkout(args[0])
			if err != nil {
				return err
			}

			var report routeReport
			resolve := func(ctx context.Context) error {
				def, err := p.Definition(ctx)
				if err != nil {
					return err
				}
				m := p.Mode(ctx)
				report = routeReport{
					SwitchPoint: p.Name(),
					Definition:  def.Name,
					Mode:        m.String(),
					Target:      def.Target(m),
				}
				if db, ok := repo.Config().Database(report.Target); ok {
					report.Driver = db.Driver
				}
				if !connect {
					return nil
				}
				conn, err := p.Connection(ctx)
				if err != nil {
					return systemError(err)
				}
				report.Connected = true
				return conn.Close()
			}

			run := resolve
			if mode != "" {
				run = func(ctx context.Context) error { return p.WithMode(ctx, mode, resolve) }
			}
			if name != "" {
				inner := run
				run = func(ctx context.Context) error { return p.WithName(ctx, name, inner) }
			}
			if err := run(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonMode {
				return printJSON(out, report)
			}
			t := newTable(out, "SWITCH POINT", "DEFINITION", "MODE", "TARGET", "DRIVER")
			t.row(report.SwitchPoint, report.Definition, report.Mode, report.Target, report.Driver)
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "scope the lookup to a mode (readonly or writable)")
	cmd.Flags().StringVar(&name, "name", "", "resolve the definition registered under this name")
	cmd.Flags().BoolVar(&connect, "connect", false, "check out a connection to the target")
	return cmd
}
