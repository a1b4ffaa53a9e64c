package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"drayage-tms/internal/ingestion"
	"drayage-tms/internal/logger"
	"drayage-tms/internal/routes"
	pkgmqtt "drayage-tms/pkg/mqtt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ServeOptions struct {
	*RootOptions
	NoIngestion bool
	NoRelay     bool
	NoScheduler bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, MQTT ingestion, event relay and demurrage scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoIngestion, "no-ingestion", false, "do not subscribe to MQTT mutation topics")
	cmd.Flags().BoolVar(&opts.NoRelay, "no-relay", false, "do not relay outbox events")
	cmd.Flags().BoolVar(&opts.NoScheduler, "no-scheduler", false, "do not run the demurrage re-evaluation job")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	app, err := Build(ctx, cfg, !opts.NoRelay)
	if err != nil {
		return err
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)

	if !opts.NoIngestion && cfg.MQTT.Broker != "" {
		processor := ingestion.NewProcessor(app.Engine, cfg.Ingestion.Workers, cfg.Ingestion.BufferSize, 30*time.Second)
		client, err := ingestion.NewMQTTIngestionClient(&ingestion.MQTTIngestionConfig{
			ClientConfig: pkgmqtt.DefaultConfig(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password),
			OrderTopic:   cfg.MQTT.OrderTopic,
			TripTopic:    cfg.MQTT.TripTopic,
			GateTopic:    cfg.MQTT.GateTopic,
			QoS:          byte(cfg.MQTT.QoS),
		}, processor)
		if err != nil {
			return err
		}
		processor.Start()
		if err := client.Start(); err != nil {
			processor.Stop()
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			client.Stop()
			processor.Stop()
			return nil
		})
	} else {
		logger.Info("MQTT ingestion disabled")
	}

	if app.Relay != nil {
		g.Go(func() error {
			app.Relay.Start(gctx, cfg.Events.RelayInterval)
			return nil
		})
	}

	if !opts.NoScheduler && cfg.Demurrage.ReevaluateInterval > 0 {
		g.Go(func() error {
			app.Engine.StartDemurrageJob(gctx, cfg.Demurrage.ReevaluateInterval)
			return nil
		})
	}

	router := routes.SetupRoutes(gctx, cfg, app.DB, app.Engine, app.Queries)

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Server exited properly")
	return nil
}
