package main

import (
	"fmt"
	"time"

	"github.com/dusk-indust/verity/internal/orchestrator"
)

// runList prints every registered adapter with its settings and breaker
// state.
func runList(engine *orchestrator.Engine) error {
	infos := engine.ListAdapters()
	if len(infos) == 0 {
		fmt.Println("No adapters registered.")
		return nil
	}
	status := engine.AdapterStatus()

	for _, info := range infos {
		state := "unknown"
		if s, ok := status[info.Name]; ok {
			state = string(s.State)
			if s.ConsecutiveFailures > 0 {
				state = fmt.Sprintf("%s (%d consecutive failures)", state, s.ConsecutiveFailures)
			}
		}
		enabled := "enabled"
		if !info.Enabled {
			enabled = "disabled"
		}
		timeout := "default"
		if info.Timeout > 0 {
			timeout = info.Timeout.Round(time.Millisecond).String()
		}

		fmt.Printf("%-16s %-9s weight %.1f  timeout %-8s circuit %s\n",
			info.Name, enabled, info.Weight, timeout, state)
		if info.Description != "" {
			fmt.Printf("  %s\n", info.Description)
		}
	}
	return nil
}
