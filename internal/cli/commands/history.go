package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
	"github.com/leapstack-labs/leapquery/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit   int
		dialect string
		shapes  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the local query history",
		Long: `History lists recorded translations, newest first.

With --shapes it groups them by dialect and query shape, showing how often
each shape was translated.`,
		Example: `  leapquery history
  leapquery history --dialect tsql --limit 10
  leapquery history --shapes -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			store, err := c.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			r := c.Renderer
			if shapes {
				list, err := store.Shapes(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return renderShapes(r, list)
			}
			entries, err := store.List(cmd.Context(), state.ListOptions{Dialect: dialect, Limit: limit})
			if err != nil {
				return err
			}
			return renderHistory(r, entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", state.DefaultListLimit, "maximum number of entries")
	cmd.Flags().StringVar(&dialect, "dialect", "", "only show this dialect")
	cmd.Flags().BoolVar(&shapes, "shapes", false, "group entries by query shape")
	return cmd
}

// HistoryEntry is the JSON form of one history row.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Dialect     string    `json:"dialect"`
	ShapeHash   string    `json:"shape_hash"`
	CommandText string    `json:"command_text"`
	Parameters  int       `json:"parameters"`
	Commands    int       `json:"commands"`
	CacheHit    bool      `json:"cache_hit"`
	Source      string    `json:"source,omitempty"`
}

func renderHistory(r *output.Renderer, entries []state.Entry) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]HistoryEntry, len(entries))
		for i, e := range entries {
			out[i] = HistoryEntry{
				ID: e.ID.String(), Time: e.Time, Dialect: e.Dialect, ShapeHash: fmt.Sprintf("%016x", e.ShapeHash),
				CommandText: e.CommandText, Parameters: e.Parameters, Commands: e.Commands, CacheHit: e.CacheHit, Source: e.Source,
			}
		}
		return r.JSON(out)
	}
	if len(entries) == 0 {
		r.Println("(no history)")
		return nil
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			e.Time.Local().Format(time.DateTime), e.Dialect, fmt.Sprintf("%016x", e.ShapeHash),
			e.Parameters, cacheLabel(e.CacheHit), e.Source, summarize(e.CommandText),
		}
	}
	r.Table([]string{"Time", "Dialect", "Shape", "Params", "Cache", "Source", "SQL"}, rows)
	return nil
}

// ShapeOutput is the JSON form of one shape summary.
type ShapeOutput struct {
	Dialect     string    `json:"dialect"`
	ShapeHash   string    `json:"shape_hash"`
	Count       int       `json:"count"`
	LastSeen    time.Time `json:"last_seen"`
	CommandText string    `json:"command_text"`
}

func renderShapes(r *output.Renderer, shapes []state.Shape) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]ShapeOutput, len(shapes))
		for i, s := range shapes {
			out[i] = ShapeOutput{Dialect: s.Dialect, ShapeHash: fmt.Sprintf("%016x", s.ShapeHash), Count: s.Count, LastSeen: s.LastSeen, CommandText: s.CommandText}
		}
		return r.JSON(out)
	}
	rows := make([][]any, len(shapes))
	for i, s := range shapes {
		rows[i] = []any{s.Dialect, fmt.Sprintf("%016x", s.ShapeHash), s.Count, summarize(s.CommandText)}
	}
	r.Table([]string{"Dialect", "Shape", "Count", "SQL"}, rows)
	return nil
}

// summarize collapses a command onto one line of at most 60 characters.
func summarize(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
