package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/lazcrawl/config"
)

// flags mirrors the command-line overrides of the environment config.
type flags struct {
	targets    string
	dataDir    string
	headless   bool
	engine     string
	statusAddr string
	sqlite     string
	summaryMD  bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "lazcrawl [urls|categories|category]",
		Short: "Crawl Lazada product pages into a JSON batch",
		Long: `lazcrawl drives a single browser tab through Lazada product pages and
writes the extracted records to data/lazada_products_<timestamp>.json.

Modes:
  urls        crawl the "urls" list of the targets file (default)
  categories  discover products on each "categories" listing, then crawl them

Targets are read from --targets, $LAZCRAWL_TARGETS, ./targets.yaml or
$XDG_CONFIG_HOME/lazcrawl/targets.yaml, in that order.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := config.ParseMode(firstArg(args))
			if err != nil {
				return err
			}
			cfg := config.Load()
			applyFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			initLogger(cfg.Log, cmd.ErrOrStderr())
			return run(cmd.Context(), cfg, mode, f.targets, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.targets, "targets", "", "path to the YAML targets file")
	fl.StringVar(&f.dataDir, "data-dir", "", "directory for batch files (default \"data\")")
	fl.BoolVar(&f.headless, "headless", true, "run the browser headless")
	fl.StringVar(&f.engine, "engine", "", "page engine: rod or http")
	fl.StringVar(&f.statusAddr, "status-addr", "", "serve progress and metrics on this address, e.g. :9090")
	fl.StringVar(&f.sqlite, "sqlite", "", "also store batches in this SQLite database")
	fl.BoolVar(&f.summaryMD, "summary-md", false, "also write a markdown run summary")

	cmd.AddCommand(NewVersionCmd())
	return cmd
}

// applyFlags overrides cfg with the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	fl := cmd.Flags()
	if fl.Changed("data-dir") {
		cfg.Output.DataDir = f.dataDir
	}
	if fl.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if fl.Changed("engine") {
		cfg.Browser.Engine = f.engine
	}
	if fl.Changed("status-addr") {
		cfg.Status.Addr = f.statusAddr
	}
	if fl.Changed("sqlite") {
		cfg.Output.SQLitePath = f.sqlite
	}
	if fl.Changed("summary-md") {
		cfg.Output.SummaryMarkdown = f.summaryMD
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Execute runs the root command. SIGINT and SIGTERM cancel the session,
// which aborts the run without saving.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
