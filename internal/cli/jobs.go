package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"drayage-tms/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type ReevaluateOptions struct {
	*RootOptions
	AsOf string
}

// NewReevaluateCommand runs one demurrage pass, for cron deployments.
func NewReevaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReevaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reevaluate-demurrage",
		Short: "Re-evaluate demurrage status of every container still out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf := time.Now()
			if opts.AsOf != "" {
				t, err := time.Parse(time.RFC3339, opts.AsOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOf = t
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := Build(ctx, opts.Config, false)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Engine.ReevaluateDemurrage(ctx, asOf)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "evaluation time in RFC3339 (default now)")

	return cmd
}

type RelayOptions struct {
	*RootOptions
	Once bool
}

func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay-events",
		Short: "Publish pending outbox events to the configured broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := Build(ctx, opts.Config, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if opts.Once {
				n, err := app.Relay.Drain(ctx)
				logger.Info("Outbox drained", zap.Int("published", n))
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}

			app.Relay.Start(ctx, opts.Config.Events.RelayInterval)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "drain the outbox once and exit")

	return cmd
}
