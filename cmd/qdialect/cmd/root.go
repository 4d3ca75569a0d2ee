// Package cmd provides the commands of the qdialect CLI: compile a query
// string, index JSON documents, and search the index.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/dialect"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/field"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/logger"
)

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

// NewRootCmd creates the root command for the qdialect CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "qdialect",
		Short: "Compile and run search dialect queries",
		Long: `qdialect compiles query strings such as

  +title:foo -body:"bar baz"~3 date:[20100301 TO 20100331] tag!:a*

into the native query tree, indexes JSON documents into a local segment
directory, and searches that directory with the matcher runtime or bleve.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupTo(cmd.ErrOrStderr(), opts.logLevel, "text")
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config (fields, dialect, indexer)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Index directory (overrides indexer.dataDir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level: debug, info, warn, error")

	cmd.AddCommand(newCompileCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// env is what every subcommand shares: the loaded config, the field
// registry and the dialect front end.
type env struct {
	cfg      *config.Config
	registry *field.Registry
	parser   *parser.Parser
	compiler *dialect.Compiler
}

func (o *rootOptions) load() (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.Indexer.DataDir = o.dataDir
	}
	registry, err := field.FromConfig(cfg.Fields)
	if err != nil {
		return nil, err
	}
	compiler, err := dialect.New(registry, cfg.Dialect, nil)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:      cfg,
		registry: registry,
		parser:   parser.New(cfg.Dialect.DefaultField...),
		compiler: compiler,
	}, nil
}
