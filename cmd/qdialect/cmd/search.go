package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/blevedialect"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/merger"
)

type searchOptions struct {
	limit  int
	engine string // "native", "bleve"
	format string // "text", "json"
}

type searchHit struct {
	DocID  uint64            `json:"doc_id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields,omitempty"`
}

type searchOutput struct {
	Query     string      `json:"query"`
	Engine    string      `json:"engine"`
	TotalHits int         `json:"total_hits"`
	Hits      []searchHit `json:"hits"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index directory",
		Long: `Search compiles the query and runs it with the matcher runtime (native)
or lowers it to bleve queries over the stored fields (bleve). Scorer hooks
apply only to the native engine.`,
		Example: `  qdialect search 'title:fox' --data-dir ./data
  qdialect search '+title:brown -title:dog' --engine bleve --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.engine, "engine", "e", "native", "Engine: native, bleve")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, input string, opts searchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := root.load()
	if err != nil {
		return err
	}
	tree, err := e.parser.Parse(input)
	if err != nil {
		return err
	}
	node, err := e.compiler.Compile(tree)
	if err != nil {
		return err
	}

	engine, err := indexer.NewEngine(e.cfg.Indexer, e.registry, nil)
	if err != nil {
		return err
	}
	defer engine.Close()
	snap := engine.Readers()

	out := searchOutput{Engine: opts.engine, Hits: []searchHit{}}
	if node != nil {
		out.Query = node.String()
		var hits []merger.ScoredDoc
		switch opts.engine {
		case "native":
			hits, out.TotalHits, err = searchNative(ctx, e, engine, node, opts.limit)
		case "bleve":
			hits, out.TotalHits, err = searchBleve(ctx, e, snap, node, opts.limit)
		default:
			return fmt.Errorf("unknown engine %q (want native or bleve)", opts.engine)
		}
		if err != nil {
			return err
		}
		for _, h := range hits {
			out.Hits = append(out.Hits, searchHit{DocID: h.DocID, Score: h.Score, Fields: storedFields(snap, h.DocID)})
		}
	}

	w := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "%d hits for %s\n", out.TotalHits, out.Query)
	for _, h := range out.Hits {
		fmt.Fprintf(w, "%6d  %8.4f  %s\n", h.DocID, h.Score, formatFields(h.Fields))
	}
	return nil
}

func searchNative(ctx context.Context, e *env, engine *indexer.Engine, node query.Node, limit int) ([]merger.ScoredDoc, int, error) {
	patterns, err := matcher.NewPatternCache(e.cfg.Dialect.PatternCacheSize)
	if err != nil {
		return nil, 0, err
	}
	exec, err := executor.New(engine, e.registry, executor.Options{Patterns: patterns}, nil)
	if err != nil {
		return nil, 0, err
	}
	res, err := exec.Execute(ctx, node, limit)
	if err != nil {
		return nil, 0, err
	}
	return res.Results, res.TotalHits, nil
}

// searchBleve rebuilds an in-memory bleve index from the stored fields of
// every segment, so only stored fields are searchable this way.
func searchBleve(ctx context.Context, e *env, snap indexer.Snapshot, node query.Node, limit int) ([]merger.ScoredDoc, int, error) {
	idx, err := blevedialect.NewMemIndex(e.registry)
	if err != nil {
		return nil, 0, err
	}
	defer idx.Close()
	for _, seg := range snap {
		for _, id := range seg.DocIDs() {
			fields, err := seg.Fetch(id)
			if err != nil {
				return nil, 0, err
			}
			if len(fields) == 0 {
				continue
			}
			if err := idx.Add(id, fields); err != nil {
				return nil, 0, err
			}
		}
	}
	hits, total, err := idx.Search(ctx, node, limit)
	if err != nil {
		return nil, 0, err
	}
	return hits, int(total), nil
}

func storedFields(snap indexer.Snapshot, id uint64) map[string]string {
	for _, seg := range snap {
		if fields, err := seg.Fetch(id); err == nil && fields != nil {
			return fields
		}
	}
	return nil
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, fields[k])
	}
	return strings.Join(parts, " ")
}
