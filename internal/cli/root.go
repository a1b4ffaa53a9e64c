package cli

import (
	"fmt"

	"drayage-tms/internal/config"
	"drayage-tms/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions carries state loaded once for every command.
type RootOptions struct {
	Config *config.Config
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "drayage",
		Short: "Drayage derived-state and billing automation engine",
		Long: `Keeps shipment and container state consistent with their orders and
generates charges, invoices, demurrage accruals and driver settlements
from committed mutations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			env := cfg.Server.Environment
			if env == "" {
				env = "development"
			}
			if err := logger.Init(env); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			logger.Info("Starting command",
				zap.String("command", cmd.Name()),
				zap.String("environment", env),
			)
			opts.Config = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReevaluateCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))

	return cmd
}
