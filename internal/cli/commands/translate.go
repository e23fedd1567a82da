package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/translate"
	"github.com/spf13/cobra"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "translate <query.yaml>",
		Short: "Print the SQL and parameters for a query document",
		Long: `Translate a query document into the SQL commands of the configured dialect.

Values written as $name in the document are bound with --param name=value.`,
		Example: `  # Translate for the configured dialect
  leapquery translate queries/recent_orders.yaml

  # Translate for SQL Server with a bound parameter
  leapquery translate queries/by_name.yaml -d tsql --param name=ann

  # Machine-readable output
  leapquery translate queries/by_name.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			tr, err := c.Translator("")
			if err != nil {
				return err
			}
			root, err := c.Query(args[0], params)
			if err != nil {
				return err
			}
			res, err := tr.Translate(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("failed to translate %s: %w", args[0], err)
			}
			c.Record(cmd.Context(), res, args[0])
			return renderTranslation(c.Renderer, res)
		},
	}
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "bind a $name value (name=value)")
	return cmd
}

// TranslationOutput is the JSON form of a translation.
type TranslationOutput struct {
	ID        string          `json:"id"`
	Dialect   string          `json:"dialect"`
	ShapeHash string          `json:"shape_hash"`
	CacheHit  bool            `json:"cache_hit"`
	Commands  []CommandOutput `json:"commands"`
}

// CommandOutput is the JSON form of one command.
type CommandOutput struct {
	Text       string            `json:"text"`
	Parameters []ParameterOutput `json:"parameters,omitempty"`
	Variables  []VariableOutput  `json:"variables,omitempty"`
}

// ParameterOutput is one bound parameter.
type ParameterOutput struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// VariableOutput is one multi-value variable.
type VariableOutput struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

func translationOutput(res *translate.Result) TranslationOutput {
	out := TranslationOutput{
		ID:        res.ID.String(),
		Dialect:   res.Dialect,
		ShapeHash: fmt.Sprintf("%016x", res.ShapeHash),
		CacheHit:  res.CacheHit,
	}
	for _, cmd := range res.Commands {
		co := CommandOutput{Text: cmd.CommandText}
		for _, p := range cmd.Parameters {
			co.Parameters = append(co.Parameters, ParameterOutput{Name: p.Name, Type: typeName(p), Value: p.Value})
		}
		for _, v := range cmd.Variables {
			co.Variables = append(co.Variables, VariableOutput{Name: v.Name, Values: v.Values})
		}
		out.Commands = append(out.Commands, co)
	}
	return out
}

func typeName(p core.QueryParameter) string {
	if p.Type == nil {
		return "any"
	}
	return p.Type.String()
}

func renderTranslation(r *output.Renderer, res *translate.Result) error {
	out := translationOutput(res)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	r.Header(1, "Translation")
	r.KeyValue("Dialect", out.Dialect)
	r.KeyValue("Shape", out.ShapeHash)
	r.KeyValue("Plan cache", cacheLabel(out.CacheHit))
	for i, cmd := range out.Commands {
		r.Println()
		if len(out.Commands) > 1 {
			r.Header(2, fmt.Sprintf("Command %d", i+1))
		}
		r.Code("sql", cmd.Text)
		if len(cmd.Parameters) > 0 {
			rows := make([][]any, len(cmd.Parameters))
			for j, p := range cmd.Parameters {
				rows[j] = []any{p.Name, p.Type, output.FormatValue(p.Value)}
			}
			r.Println()
			r.Table([]string{"Parameter", "Type", "Value"}, rows)
		}
		if len(cmd.Variables) > 0 {
			rows := make([][]any, len(cmd.Variables))
			for j, v := range cmd.Variables {
				vals := make([]string, len(v.Values))
				for k, x := range v.Values {
					vals[k] = output.FormatValue(x)
				}
				rows[j] = []any{v.Name, len(v.Values), strings.Join(vals, ", ")}
			}
			r.Println()
			r.Table([]string{"Variable", "Count", "Values"}, rows)
		}
	}
	return nil
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
