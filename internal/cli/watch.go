package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/internal/config"
	"github.com/mesh-intelligence/switchpoint/pkg/types"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the configuration whenever the file changes",
		Long: "Hold a repository open and reload it each time the configuration\n" +
			"file changes. Invalid files are reported and skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, path, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			w := &config.Watcher{
				Path:     path,
				Debounce: debounce,
				Logger:   a.logger,
				OnChange: func(cfg types.Config) error {
					if err := repo.Reload(cfg); err != nil {
						return err
					}
					fmt.Fprintf(out, "Reloaded %s: %d switch points\n", path, len(repo.Names()))
					return nil
				},
			}

			fmt.Fprintf(out, "Watching %s (%d switch points)\n", path, len(repo.Names()))
			if err := w.Run(ctx); err != nil {
				return systemError(err)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "quiet period before reloading")
	return cmd
}
