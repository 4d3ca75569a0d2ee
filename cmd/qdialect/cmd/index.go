package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file.jsonl | ->",
		Short: "Index JSON documents, one object per line",
		Long: `Index reads one flat JSON object per line, mapping field names to string
values, and writes the documents to a new segment in the index directory.`,
		Example: `  echo '{"title":"quick brown fox"}' | qdialect index - --data-dir ./data`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load()
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			engine, err := indexer.NewEngine(e.cfg.Indexer, e.registry, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			n, err := indexLines(engine, in)
			if err != nil {
				return err
			}
			if err := engine.Flush(); err != nil {
				return fmt.Errorf("flushing index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s\n", n, e.cfg.Indexer.DataDir)
			return nil
		},
	}
	return cmd
}

func indexLines(engine *indexer.Engine, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	n, line := 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc map[string]string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := engine.IndexDocument(doc); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading documents: %w", err)
	}
	return n, nil
}
