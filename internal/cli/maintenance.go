package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	runtimepkg "github.com/drblury/botcore/internal/runtime"
	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/logging"
	"github.com/drblury/botcore/internal/runtime/state"
)

// NewMaintenanceCommand creates the maintenance command group.
func NewMaintenanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Show or toggle maintenance mode",
		Long: `Show or toggle maintenance mode.

While maintenance is on, the bot ignores every event except those from the
configured bypass actors and actions. The flag lives in the state store, so a
running bot picks up the change on the next event.`,
	}

	cmd.AddCommand(
		newMaintenanceSetCommand(rootOpts, "on", true),
		newMaintenanceSetCommand(rootOpts, "off", false),
		&cobra.Command{
			Use:   "status",
			Short: "Print whether maintenance is on",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *runtimepkg.Runtime) error {
					on, err := rt.IsInMaintenance(ctx)
					if err != nil {
						return err
					}
					return printMaintenance(cmd, rootOpts, on)
				})
			},
		},
	)
	return cmd
}

func newMaintenanceSetCommand(rootOpts *RootOptions, use string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Turn maintenance %s", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *runtimepkg.Runtime) error {
				if err := rt.SetMaintenance(ctx, on); err != nil {
					return err
				}
				return printMaintenance(cmd, rootOpts, on)
			})
		},
	}
}

// withRuntime opens the configured store and binds it to a runtime that is
// never started, so the flag goes through the same path a handler would use.
func withRuntime(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *runtimepkg.Runtime) error) error {
	ctx := commandContext(cmd)
	conf, err := configpkg.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	store, err := state.Open(ctx, conf.State)
	if err != nil {
		return err
	}
	defer store.Close()

	rt, err := runtimepkg.NewRuntime(conf, logging.NopServiceLogger(), runtimepkg.Dependencies{Store: store})
	if err != nil {
		return err
	}
	return fn(ctx, rt)
}

func printMaintenance(cmd *cobra.Command, opts *RootOptions, on bool) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]bool{"maintenance": on})
	}
	status := "off"
	if on {
		status = "on"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "maintenance: %s\n", status)
	return err
}
