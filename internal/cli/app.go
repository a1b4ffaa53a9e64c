package cli

import (
	"context"
	"errors"
	"fmt"

	"drayage-tms/internal/config"
	"drayage-tms/internal/events"
	"drayage-tms/internal/infrastructure/database/postgres"
	"drayage-tms/internal/logger"
	"drayage-tms/internal/usecase/accrual"
	"drayage-tms/internal/usecase/automation"
	"drayage-tms/internal/usecase/billing"
	"drayage-tms/internal/usecase/propagation"
	"drayage-tms/internal/usecase/query"
	"drayage-tms/internal/usecase/settlement"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// App holds the wired components shared by the commands.
type App struct {
	Config  *config.Config
	DB      *postgres.DB
	Tx      *postgres.TxManager
	Engine  *automation.Engine
	Queries *query.Service
	Relay   *events.Relay

	publisher events.Publisher
}

// Build connects to the database and wires the engine. The event publisher
// is only created when withPublisher is set.
func Build(ctx context.Context, cfg *config.Config, withPublisher bool) (*App, error) {
	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		return nil, errors.New("database configuration is missing, set DB_HOST and DB_NAME")
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app := &App{Config: cfg, DB: db}

	if err := app.wire(ctx, withPublisher); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, withPublisher bool) error {
	cfg := a.Config
	a.Tx = postgres.NewTxManager(a.DB, cfg.Engine.LockTimeout)

	shipments := postgres.NewShipmentRepository(a.DB)
	trips := postgres.NewTripRepository(a.DB)
	freeTime := postgres.NewFreeTimeRepository(a.DB)
	billingRepo := postgres.NewBillingRepository(a.DB)
	settlements := postgres.NewSettlementRepository(a.DB)
	outbox := postgres.NewOutboxRepository(a.DB)

	graph, err := propagation.NewHierarchy(shipments)
	if err != nil {
		return fmt.Errorf("failed to build propagation graph: %w", err)
	}

	cal, err := accrual.NewCalendar(cfg.Demurrage.Location(), cfg.Demurrage.Holidays)
	if err != nil {
		return fmt.Errorf("invalid demurrage calendar: %w", err)
	}
	calc := accrual.NewCalculator(cal,
		cfg.Demurrage.DefaultFreeDays,
		decimal.NewFromFloat(cfg.Demurrage.DefaultDailyRate),
		cfg.Demurrage.PerDiemDefaultFreeDays,
		decimal.NewFromFloat(cfg.Demurrage.PerDiemDefaultDailyRate),
	)

	a.Engine = automation.NewEngine(automation.Deps{
		Tx:          a.Tx,
		Shipments:   shipments,
		Trips:       trips,
		Outbox:      outbox,
		Graph:       graph,
		Accruals:    accrual.NewService(shipments, freeTime, calc),
		Billing:     billing.NewGenerator(billingRepo, shipments, freeTime, calc, billing.NewPolicy(cfg.Billing)),
		Settlements: settlement.NewCalculator(settlements, trips, settlement.NewDefaults(cfg.Settlement)),
	}, automation.OptionsFromConfig(cfg))

	a.Queries = query.NewService(shipments, freeTime, billingRepo, settlements)

	if withPublisher {
		pub, err := events.NewPublisher(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		a.publisher = pub
		a.Relay = events.NewRelay(a.Tx, outbox, pub, cfg.Events.RelayBatch)
		logger.Info("Event publisher ready", zap.String("broker", cfg.Events.Broker))
	}
	return nil
}

func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
}
