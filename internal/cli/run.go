package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	runtimepkg "github.com/drblury/botcore/internal/runtime"
	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/logging"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Modules are registered on the runtime in addition to Lifecycle.
	Modules []runtimepkg.Module
	// Deps overrides runtime collaborators (for testing).
	Deps runtimepkg.Dependencies
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions, modules ...runtimepkg.Module) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Modules: modules}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Long: `Start the bot runtime.

The runtime opens the state store, seeds its defaults, starts the event bus and
connects to the gateway with BOT_TOKEN. It stops on SIGINT or SIGTERM.

Example:
  BOT_TOKEN=... botcore run --config bot.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, opts)
		},
	}
	return cmd
}

func runBot(cmd *cobra.Command, opts *RunOptions) error {
	conf, err := configpkg.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log := logging.NewServiceLogger(cmd.ErrOrStderr(), opts.Verbose || conf.Logs.Debug)

	deps := opts.Deps
	deps.Modules = append([]runtimepkg.Module{runtimepkg.Lifecycle()}, append(deps.Modules, opts.Modules...)...)
	rt, err := runtimepkg.NewRuntime(conf, log, deps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rt.Start(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
