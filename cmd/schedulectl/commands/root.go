package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/smart-schedule/internal/app"
	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the schedulectl command tree
func NewRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Command line client for Smart Schedule",
		Long:          "Run the planner locally and manage tasks in the configured database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log planner and LLM activity to stderr")

	env := &environment{debug: &debug}
	root.AddCommand(newAskCmd(env))
	root.AddCommand(newTasksCmd(env))
	root.AddCommand(newPolicyCmd(env))
	return root
}

// environment lazily opens the configured stores for a command
type environment struct {
	debug *bool
}

func (e *environment) logger() (*zap.Logger, error) {
	return logger.NewCLILogger(e.debug != nil && *e.debug)
}

// open loads configuration and connects to the stores. The caller must call the returned close func.
func (e *environment) open(ctx context.Context) (*config.Config, *app.Deps, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := e.logger()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	closeFn := func() {
		if err := deps.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close connections: %v\n", err)
		}
		_ = logger.Sync(log)
	}
	return cfg, deps, log, closeFn, nil
}
