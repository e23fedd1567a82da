package commands

import (
	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
	"github.com/leapstack-labs/leapquery/pkg/executor"
	"github.com/spf13/cobra"

	// Register the built-in dialects.
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/ansi"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/databricks"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/snowflake"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/sqlite"
	_ "github.com/leapstack-labs/leapquery/pkg/dialects/tsql"
)

// DialectInfo describes one registered dialect.
type DialectInfo struct {
	Name          string `json:"name"`
	Paging        string `json:"paging"`
	Placeholder   string `json:"placeholder"`
	DefaultSchema string `json:"default_schema,omitempty"`
	ArrayParams   bool   `json:"array_parameters"`
	Executor      bool   `json:"executor"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the registered SQL dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContext(cmd).Renderer
			infos := dialectInfos()
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(infos)
			}
			rows := make([][]any, len(infos))
			for i, d := range infos {
				rows[i] = []any{d.Name, d.Paging, d.Placeholder, d.DefaultSchema, yesNo(d.ArrayParams), yesNo(d.Executor)}
			}
			r.Table([]string{"Dialect", "Paging", "Placeholder", "Schema", "Array params", "Run"}, rows)
			return nil
		},
	}
}

func dialectInfos() []DialectInfo {
	names := dialect.List()
	infos := make([]DialectInfo, 0, len(names))
	for _, name := range names {
		d, ok := dialect.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, DialectInfo{
			Name:          name,
			Paging:        d.Paging.String(),
			Placeholder:   d.Placeholder.String(),
			DefaultSchema: d.DefaultSchema,
			ArrayParams:   d.SupportsArrayParameters(),
			Executor:      executor.IsRegistered(name),
		})
	}
	return infos
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
