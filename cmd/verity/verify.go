package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dusk-indust/verity/internal/config"
	"github.com/dusk-indust/verity/internal/orchestrator"
	"github.com/dusk-indust/verity/internal/verify"
)

// applyOverrides folds the strategy/timeout flags into the loaded config
// before validation.
func applyOverrides(cfg *config.Config, flags cliFlags) error {
	if flags.Strategy != "" {
		cfg.Strategy = flags.Strategy
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("invalid -timeout %q: %w", flags.Timeout, err)
		}
		cfg.OverallTimeout = config.Duration(d)
	}
	return nil
}

// runVerify dispatches one claim and prints the aggregated result.
func runVerify(engine *orchestrator.Engine, flags cliFlags, claim string) error {
	var opts orchestrator.Options
	if flags.Adapters != "" {
		for _, name := range strings.Split(flags.Adapters, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Adapters = append(opts.Adapters, name)
			}
		}
	}

	result, err := engine.Verify(context.Background(), claim, opts)
	if err != nil {
		return err
	}

	if flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(result)
	return nil
}

func printResult(r *verify.Aggregated) {
	fmt.Printf("Claim:      %s\n", r.Claim)
	fmt.Printf("Verdict:    %s (confidence %.2f, %s)\n", r.Overall, r.Confidence, r.Strategy)
	if r.Partial {
		fmt.Printf("Partial:    yes, unavailable: %s\n", strings.Join(r.Unavailable, ", "))
	}
	if r.FromCache {
		fmt.Println("Cache:      hit")
	}
	fmt.Printf("Elapsed:    %s\n", r.ProcessingTime.Round(time.Millisecond))
	fmt.Println()
	for _, s := range r.Sources {
		fmt.Printf("  %-16s %-13s %.2f", s.SourceID, s.Verdict, s.Confidence)
		if s.Reasoning != "" {
			fmt.Printf("  %s", s.Reasoning)
		}
		fmt.Println()
	}
}
