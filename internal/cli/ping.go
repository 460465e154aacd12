package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/switchpoint/internal/pool"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

// pingResult is one row of ping output.
type pingResult struct {
	Database string        `json:"database"`
	Driver   string        `json:"driver"`
	OK       bool          `json:"ok"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

// pingAll pings every configured database concurrently. Results keep the
// sorted order of the database names.
func pingAll(ctx context.Context, pools *pool.Registry, cfg types.Config, timeout time.Duration) []pingResult {
	names := databaseNames(cfg)
	results := make([]pingResult, len(names))

	var g errgroup.Group
	g.SetLimit(8)
	for i, name := range names {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res := pingResult{Database: name, Driver: cfg.Databases[name].Driver}
			start := time.Now()
			p, err := pools.PoolFor(ctx, types.PhysicalID(name))
			if err == nil {
				err = p.Ping(ctx)
			}
			res.Latency = time.Since(start)
			res.OK = err == nil
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func newPingCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that every configured database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			results := pingAll(cmd.Context(), repo.Pools(), repo.Config(), timeout)

			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
					a.logger.Warn().Str("database", r.Database).Str("error", r.Error).Msg("ping failed")
				}
			}

			out := cmd.OutOrStdout()
			if a.jsonMode {
				if err := printJSON(out, results); err != nil {
					return err
				}
			} else {
				t := newTable(out, "DATABASE", "DRIVER", "STATUS", "LATENCY")
				for _, r := range results {
					status := "ok"
					if !r.OK {
						status = r.Error
					}
					t.row(r.Database, r.Driver, status, r.Latency.Round(time.Microsecond))
				}
				if err := t.flush(); err != nil {
					return err
				}
			}

			if failed > 0 {
				return systemError(fmt.Errorf("%d of %d databases unreachable", failed, len(results)))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "timeout per database")
	return cmd
}
