// Command nika is a minimal example driver: load a workflow file, run it to
// completion, print the aggregated leaf output as JSON. This is scaffolding
// to make the engine runnable, not a full command-line front end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nika/nika/engine/config"
	"github.com/nika/nika/engine/executor"
	"github.com/nika/nika/engine/provider"
	"github.com/nika/nika/engine/scheduler"
	"github.com/nika/nika/engine/workflow"
	"github.com/nika/nika/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: nika <workflow.yaml>")
		return 1
	}

	log := logger.NewLogger(nil)
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		return 1
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Error("failed to read workflow file", "path", os.Args[1], "error", err)
		return 1
	}

	wf, err := workflow.Load(data)
	if err != nil {
		log.Error("failed to load workflow", "error", err)
		return 1
	}

	exec := executor.New(
		func(name provider.ProviderName) (provider.Provider, error) { return provider.Dispatch(provider.Mock) },
		nil,
		nil,
		cfg.DefaultProvider,
		cfg.DefaultModel,
	)

	runner, err := scheduler.New(wf, exec, scheduler.Config{
		MaxConcurrentTasks:  cfg.MaxConcurrentTasks,
		MaxWorkflowDuration: cfg.MaxWorkflowDuration,
		MaxTaskDuration:     cfg.MaxTaskDuration,
	})
	if err != nil {
		log.Error("failed to validate workflow", "error", err)
		return 1
	}

	ctx := logger.ContextWithLogger(context.Background(), log)
	if err := runner.Run(ctx); err != nil {
		log.Error("workflow run failed", "error", err)
		return 1
	}

	output, err := json.MarshalIndent(runner.Output(), "", "  ")
	if err == nil {
		fmt.Println(string(output))
	}
	return 0
}
