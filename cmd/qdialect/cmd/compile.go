package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
)

type compiledLeaf struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Display string   `json:"display"`
	Terms   []string `json:"terms"`
}

type compileOutput struct {
	Input    string         `json:"input"`
	Tree     string         `json:"tree"`
	Compiled string         `json:"compiled"`
	Leaves   []compiledLeaf `json:"leaves"`
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "compile <query>",
		Short: "Show what a query string compiles to",
		Example: `  qdialect compile '+title:fox -body:"lazy dog"'
  qdialect compile 'tag!:te*' --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load()
			if err != nil {
				return err
			}
			input := strings.Join(args, " ")
			tree, err := e.parser.Parse(input)
			if err != nil {
				return err
			}
			node, err := e.compiler.Compile(tree)
			if err != nil {
				return err
			}

			out := compileOutput{Input: input, Tree: tree.String(), Leaves: []compiledLeaf{}}
			if node != nil {
				out.Compiled = node.String()
				for _, leaf := range query.Leaves(node) {
					out.Leaves = append(out.Leaves, compiledLeaf{
						Kind:    leaf.Kind().String(),
						Field:   leaf.FieldName(),
						Display: leaf.String(),
						Terms:   query.Terms(leaf),
					})
				}
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			if out.Compiled == "" {
				fmt.Fprintln(w, "(empty: every clause analyzed to nothing)")
				return nil
			}
			fmt.Fprintln(w, out.Compiled)
			for _, l := range out.Leaves {
				fmt.Fprintf(w, "  %-9s %-10s %-24s %s\n", l.Kind, l.Field, l.Display, strings.Join(l.Terms, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
