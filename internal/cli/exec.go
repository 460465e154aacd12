package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/switchpoint/internal/sqlclass"
	"github.com/mesh-intelligence/switchpoint/pkg/switchpoint"
)

// execResult is the --json output of exec.
type execResult struct {
	Target       string           `json:"target"`
	Mode         string           `json:"mode"`
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
}

func newExecCmd(a *app) *cobra.Command {
	var writable bool
	cmd := &cobra.Command{
		Use:   "exec <switch-point> <sql> [args...]",
		Short: "Run a statement through a switch point",
		Long: "Run a statement on the database the switch point selects. Statements\n" +
			"that write fail in readonly mode unless --writable is given or the\n" +
			"configuration sets auto_writable.",
		Args: cobra.MinimumNArgs(2),
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
			query := args[1]
			params := make([]any, 0, len(args)-2)
			for _, arg := range args[2:] {
				params = append(params, arg)
			}

			var res execResult
			run := func(ctx context.Context) error {
				var err error
				res, err = runStatement(ctx, p, query, params)
				return err
			}
			if writable {
				err = p.WithWritable(cmd.Context(), run)
			} else {
				err = run(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonMode {
				return printJSON(out, res)
			}
			if res.Columns == nil {
				fmt.Fprintf(out, "%d rows affected on %s (%s)\n", res.RowsAffected, res.Target, res.Mode)
				return nil
			}
			t := newTable(out, res.Columns...)
			for _, row := range res.Rows {
				cells := make([]any, len(res.Columns))
				for i, col := range res.Columns {
					cells[i] = row[col]
				}
				t.row(cells...)
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&writable, "writable", false, "run in writable mode")
	return cmd
}

// runStatement runs query on a connection from p. Writes go through
// ExecContext so that they are classified and invalidate the readonly cache.
func runStatement(ctx context.Context, p *switchpoint.Proxy, query string, params []any) (execResult, error) {
	conn, err := p.Connection(ctx)
	if err != nil {
		return execResult{}, err
	}
	defer conn.Close()

	res := execResult{Target: string(conn.Target()), Mode: conn.Mode().String()}
	if sqlclass.IsWrite(query) {
		r, err := conn.ExecContext(ctx, query, params...)
		if err != nil {
			return res, err
		}
		res.RowsAffected, _ = r.RowsAffected()
		return res, nil
	}

	err = conn.Query(ctx, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		res.Columns = cols
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			row := make(map[string]any, len(cols))
			for i, col := range cols {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
					continue
				}
				row[col] = values[i]
			}
			res.Rows = append(res.Rows, row)
		}
		return rows.Err()
	}, query, params...)
	return res, err
}
