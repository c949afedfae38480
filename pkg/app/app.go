// Package app assembles the reservation engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/hoangteo0103/ticket-reservations/pkg/availability"
	"github.com/hoangteo0103/ticket-reservations/pkg/checkin"
	"github.com/hoangteo0103/ticket-reservations/pkg/clock"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	"github.com/hoangteo0103/ticket-reservations/pkg/fulfillment"
	"github.com/hoangteo0103/ticket-reservations/pkg/handlers"
	wshandler "github.com/hoangteo0103/ticket-reservations/pkg/handlers/websockets"
	"github.com/hoangteo0103/ticket-reservations/pkg/issuance"
	"github.com/hoangteo0103/ticket-reservations/pkg/lease"
	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/reservations"
	"github.com/hoangteo0103/ticket-reservations/pkg/scheduler"
	"github.com/hoangteo0103/ticket-reservations/pkg/sink"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/dynamodb"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage/memory"
	"github.com/hoangteo0103/ticket-reservations/pkg/websockets"
)

// Store is everything the engine persists.
type Store interface {
	storage.Storage
	storage.SupplyWriter
	storage.ConnectionStore
	storage.LeaseStore
}

// Infrastructure holds the engine's long-lived components.
type Infrastructure struct {
	Config       *config.Config
	Logger       *slog.Logger
	Clock        clock.Clock
	Store        Store
	Tracker      *availability.Tracker
	Scheduler    scheduler.Scheduler
	Manager      *reservations.Manager
	Orchestrator *fulfillment.Orchestrator
	CheckIns     *checkin.Ledger
	Hub          *websockets.Hub

	// Writer is the single-writer lease gating Reserve. Nil in headless
	// processes, which only release holds.
	Writer *lease.Lease

	timers   *scheduler.LocalScheduler
	producer sink.Producer
	notifier *websockets.AvailabilityNotifier
}

// Options overrides pieces of the assembly, mainly for tests.
type Options struct {
	Clock  clock.Clock
	Store  Store
	Issuer issuance.Issuer
	// Headless skips the in-process websocket hub, for processes that serve no HTTP.
	Headless bool
}

// New builds the engine described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Infrastructure, error) {
	if logger == nil {
		logger = slog.Default()
	}
	infra := &Infrastructure{Config: cfg, Logger: logger, Clock: opts.Clock}
	if infra.Clock == nil {
		infra.Clock = clock.NewSystem()
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	infra.Store = opts.Store
	if infra.Store == nil {
		switch cfg.StoreBackend {
		case config.BackendDynamoDB:
			c, err := loadAWS()
			if err != nil {
				return nil, err
			}
			infra.Store = dynamodb.New(awsdynamodb.NewFromConfig(c), dynamodb.Tables(cfg.Tables))
		default:
			infra.Store = memory.New()
		}
	}
	if err := SeedSupply(ctx, infra.Store, cfg.SupplySeed); err != nil {
		return nil, err
	}

	infra.Tracker = availability.NewTracker(infra.Store, infra.Store, infra.Clock, logger,
		availability.WithMaxAge(cfg.AvailabilityMaxAge),
	)

	var publisher websockets.Publisher
	if cfg.WebsocketAPIEndpoint != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		publisher = websockets.NewPublisher(c, infra.Store, infra.Store, cfg.WebsocketAPIEndpoint, logger)
	} else if opts.Headless {
		publisher = &websockets.NoOpPublisher{}
	} else {
		infra.Hub = websockets.NewHub(logger)
		publisher = infra.Hub
	}
	infra.notifier = websockets.NewAvailabilityNotifier(infra.Tracker, publisher, logger)

	if cfg.SQSQueueURL != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		infra.Scheduler = scheduler.NewSQSScheduler(sqs.NewFromConfig(c), cfg.SQSQueueURL, infra.Clock)
	} else {
		infra.timers = scheduler.NewLocalScheduler(infra.Clock, logger)
		infra.Scheduler = infra.timers
	}

	managerOpts := []reservations.Option{
		reservations.WithHoldDuration(cfg.HoldDuration),
		reservations.WithMaxQuantity(cfg.MaxQuantity),
		reservations.WithLogger(logger),
		reservations.WithObserver(infra.notifier.Notify),
	}
	if !opts.Headless {
		infra.Writer = lease.New(infra.Store, lease.WriterName, uuid.NewString(), cfg.WriterLeaseTTL, infra.Clock, logger)
		managerOpts = append(managerOpts, reservations.WithWriterCheck(infra.Writer.Ensure))
	}
	infra.Manager = reservations.NewManager(infra.Store, infra.Store, infra.Tracker, infra.Scheduler, infra.Clock, managerOpts...)
	if infra.timers != nil {
		infra.timers.Bind(infra.Manager.Release)
	}

	issuer := opts.Issuer
	if issuer == nil {
		if cfg.IssuanceEndpoint != "" {
			issuer = issuance.NewHTTPIssuer(cfg.IssuanceEndpoint, &http.Client{Timeout: cfg.IssuanceTimeout})
		} else {
			issuer = issuance.LocalIssuer{}
		}
	}

	sinks := sink.Fanout{infra.Store}
	if len(cfg.KafkaBrokers) > 0 {
		infra.producer = sink.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTicketsTopic)
		sinks = append(sinks, sink.NewKafkaSink(infra.producer))
	}

	infra.Orchestrator = fulfillment.NewOrchestrator(infra.Manager, issuer, infra.Store, sinks, infra.Clock,
		fulfillment.WithLogger(logger),
	)
	infra.CheckIns = checkin.NewLedger(infra.Store, &checkin.TicketVerifier{Tickets: infra.Store}, infra.Clock, logger)

	logger.Info("engine assembled",
		"store", cfg.StoreBackend,
		"scheduler", schedulerName(cfg),
		"kafka", len(cfg.KafkaBrokers) > 0,
		"hold_duration", cfg.HoldDuration.String(),
	)
	return infra, nil
}

func schedulerName(cfg *config.Config) string {
	if cfg.SQSQueueURL != "" {
		return "sqs"
	}
	return "local"
}

// Router builds the HTTP surface over the engine.
func (i *Infrastructure) Router() http.Handler {
	api := handlers.NewApiHandler(handlers.Dependencies{
		Holds:     i.Manager,
		Completer: i.Orchestrator,
		Snapshots: i.Tracker,
		Admin:     i.Manager,
		Cache:     i.Tracker,
		CheckIns:  i.CheckIns,
		Logger:    i.Logger,
	})

	var ws *wshandler.Handler
	if i.Hub != nil {
		ws = wshandler.NewHandler(i.Store, i.Hub, i.Logger)
	}
	return handlers.NewRouter(api, ws, i.Logger)
}

// Shutdown stops in-process timers, drains availability updates, gives up the
// writer lease and flushes the ticket producer.
func (i *Infrastructure) Shutdown(ctx context.Context) error {
	var errs []error
	if i.timers != nil {
		i.timers.Stop()
	}
	if i.notifier != nil {
		i.notifier.Close()
	}
	if i.Writer != nil {
		if err := i.Writer.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka producer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SeedSupply creates ledger rows described as "eventId/ticketTypeId=total@unitPrice".
// Rows that already exist are left alone, so their sold counts survive restarts.
func SeedSupply(ctx context.Context, w storage.SupplyWriter, entries []string) error {
	for _, entry := range entries {
		supply, err := ParseSupply(entry)
		if err != nil {
			return err
		}
		err = w.CreateSupply(ctx, supply)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("failed to seed supply %s: %w", entry, err)
		}
	}
	return nil
}

// ParseSupply parses one "eventId/ticketTypeId=total@unitPrice" entry.
func ParseSupply(entry string) (*models.Supply, error) {
	key, amounts, ok := strings.Cut(strings.TrimSpace(entry), "=")
	if !ok {
		return nil, fmt.Errorf("invalid supply entry %q: missing '='", entry)
	}
	eventID, ticketTypeID, ok := strings.Cut(key, "/")
	if !ok || eventID == "" || ticketTypeID == "" {
		return nil, fmt.Errorf("invalid supply entry %q: key must be eventId/ticketTypeId", entry)
	}
	totalStr, priceStr, ok := strings.Cut(amounts, "@")
	if !ok {
		return nil, fmt.Errorf("invalid supply entry %q: missing '@'", entry)
	}
	total, err := strconv.Atoi(totalStr)
	if err != nil || total < 0 {
		return nil, fmt.Errorf("invalid supply entry %q: bad total", entry)
	}
	price, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil || price < 0 {
		return nil, fmt.Errorf("invalid supply entry %q: bad unit price", entry)
	}
	return &models.Supply{EventID: eventID, TicketTypeID: ticketTypeID, TotalSupply: total, UnitPrice: price}, nil
}
