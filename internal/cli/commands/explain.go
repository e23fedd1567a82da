package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/pkg/format"
	"github.com/leapstack-labs/leapquery/pkg/translate"
	"github.com/spf13/cobra"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	var (
		params map[string]string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "explain <query.yaml>",
		Short: "Show the optimizer trace and optimized tree of a query",
		Long: `Explain runs a translation with the optimizer traced.

It prints each pass that rewrote the tree, the optimized tree and the
resulting SQL. Use --all to list passes that left the tree unchanged too.`,
		Example: `  leapquery explain queries/page.yaml -d tsql
  leapquery explain queries/page.yaml --all -o json`,
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
			ex, err := tr.Explain(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("failed to explain %s: %w", args[0], err)
			}
			return renderExplanation(c.Renderer, ex, all)
		},
	}
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "bind a $name value (name=value)")
	cmd.Flags().BoolVar(&all, "all", false, "include passes that changed nothing")
	return cmd
}

// StepOutput is one optimizer pass in JSON output.
type StepOutput struct {
	Iteration int    `json:"iteration"`
	Pass      string `json:"pass"`
	Changed   bool   `json:"changed"`
}

// ExplainOutput is the JSON form of an explanation.
type ExplainOutput struct {
	TranslationOutput
	Iterations int          `json:"iterations"`
	Steps      []StepOutput `json:"steps"`
	Evaluated  string       `json:"evaluated"`
	Optimized  string       `json:"optimized"`
}

func renderExplanation(r *output.Renderer, ex *translate.Explanation, all bool) error {
	out := ExplainOutput{
		TranslationOutput: translationOutput(ex.Result),
		Iterations:        ex.Iterations(),
		Evaluated:         format.Debug(ex.Evaluated),
		Optimized:         ex.Dump(),
	}
	for _, s := range ex.Steps {
		if all || s.Changed {
			out.Steps = append(out.Steps, StepOutput{Iteration: s.Iteration, Pass: s.Pass, Changed: s.Changed})
		}
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Optimizer")
	r.KeyValue("Iterations", fmt.Sprint(out.Iterations))
	r.KeyValue("Rewrites", fmt.Sprint(len(ex.Changed())))
	if len(out.Steps) > 0 {
		rows := make([][]any, len(out.Steps))
		for i, s := range out.Steps {
			rows[i] = []any{s.Iteration, s.Pass, s.Changed}
		}
		r.Println()
		r.Table([]string{"Iteration", "Pass", "Changed"}, rows)
	}
	r.Println()
	r.Header(2, "Optimized tree")
	r.Code("", out.Optimized)
	r.Println()
	return renderTranslation(r, ex.Result)
}
