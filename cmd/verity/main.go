package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dusk-indust/verity/internal/config"
	"github.com/dusk-indust/verity/internal/orchestrator"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ConfigDir    string
	Adapters     string
	Strategy     string
	Timeout      string
	JSON         bool
	Verbose      bool
	ListAdapters bool
	Version      bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("verity", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config", ".", "directory containing verity.yml")
	fs.StringVar(&flags.Adapters, "adapters", "", "comma-separated adapter names to restrict dispatch to")
	fs.StringVar(&flags.Strategy, "strategy", "", "aggregation strategy (weighted-average, majority-vote, pessimistic, optimistic)")
	fs.StringVar(&flags.Timeout, "timeout", "", "overall request timeout override (e.g. 10s)")
	fs.BoolVar(&flags.JSON, "json", false, "print the result as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.ListAdapters, "list-adapters", false, "list registered adapters and their circuit state")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	engine, err := buildEngine(flags)
	if err != nil {
		return err
	}

	if flags.ListAdapters {
		return runList(engine)
	}

	claim := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if claim == "" {
		return fmt.Errorf("usage: verity [flags] <claim>")
	}
	return runVerify(engine, flags, claim)
}

// buildEngine loads config, applies flag overrides, and wires the engine.
func buildEngine(flags cliFlags) (*orchestrator.Engine, error) {
	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, flags); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return orchestrator.NewEngine(cfg, orchestrator.WithLogger(logger))
}
