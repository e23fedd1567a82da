package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	"github.com/spf13/cobra"

	// Register the executors run can connect to.
	_ "github.com/leapstack-labs/leapquery/pkg/executor/duckdb"
	_ "github.com/leapstack-labs/leapquery/pkg/executor/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/executor/sqlite"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "run <query.yaml>",
		Short: "Execute a query document against the configured target",
		Long: `Run translates a query document for the target's dialect, executes it and
prints the result.

The target comes from the target section of leapquery.yaml, or from
--target and --dsn.`,
		Example: `  leapquery run queries/top_customers.yaml
  leapquery run queries/by_name.yaml --target sqlite --dsn shop.db -p name=ann
  leapquery run queries/count.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			if c.Cfg.Target == nil || c.Cfg.Target.Type == "" {
				return fmt.Errorf("no target configured\nHint: add a target section to %s or pass --target", config.ConfigFileName)
			}
			exec, err := executor.New(*c.Cfg.Target, c.Logger)
			if err != nil {
				return err
			}
			if err := exec.Connect(cmd.Context(), *c.Cfg.Target); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", c.Cfg.Target.Type, err)
			}
			defer func() { _ = exec.Close() }()

			tr, err := c.Translator(exec.DialectName())
			if err != nil {
				return err
			}
			root, err := c.Query(args[0], params)
			if err != nil {
				return err
			}
			res, v, err := tr.Run(cmd.Context(), exec, root)
			if res != nil {
				c.Record(cmd.Context(), res, args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to run %s: %w", args[0], err)
			}
			c.Logger.Debug("query finished", slog.String("translation", res.ID.String()))
			return renderResult(c.Renderer, v)
		},
	}
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "bind a $name value (name=value)")
	return cmd
}

func renderResult(r *output.Renderer, v any) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(v)
	}
	headers, rows := tabulate(v)
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}
	r.Table(headers, rows)
	if len(rows) != 1 || len(headers) != 1 || headers[0] != "value" {
		r.Println(r.Muted(fmt.Sprintf("(%d rows)", len(rows))))
	}
	return nil
}
