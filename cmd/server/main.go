package main // Entry point package

import (
	"context" // Context for background task shutdown
	"log"     // Logging library
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/holidaibutler/texelmaps-booking/internal/config"   // Internal config loader
	"github.com/holidaibutler/texelmaps-booking/internal/database" // MySQL connection helper
	"github.com/holidaibutler/texelmaps-booking/internal/handler"  // HTTP handlers
	"github.com/holidaibutler/texelmaps-booking/internal/model"
	"github.com/holidaibutler/texelmaps-booking/internal/queue" // RabbitMQ publisher and consumer
	"github.com/holidaibutler/texelmaps-booking/internal/router"
	"github.com/holidaibutler/texelmaps-booking/internal/service"
	"github.com/holidaibutler/texelmaps-booking/internal/store"
)

func main() {
	// Load .env if present; real deployments set the environment
	// directly and the file is absent.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}
	cfg := config.Load() // Load environment config

	// Pick the persistence backend.  MySQL is the production path;
	// the in-memory store serves single-node demos and development
	// without a database.
	var (
		st      service.ReservationStore
		bs      service.BookingStore
		ts      service.TicketStore
		ps      service.POIStore
		poiDir  handler.POIDirectory
		opsDir  handler.OpsDirectory
		devices handler.DeviceDirectory
	)
	switch cfg.StoreBackend {
	case "mysql":
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer db.Close()
		sqlStore := store.NewSQLStore(db)
		st, bs, ts, ps = sqlStore, sqlStore, sqlStore, sqlStore
		poiDir = sqlStore
		opsDir = sqlStore
		devices = sqlStore.Devices()
	case "memory":
		mem := store.NewMemory()
		if cfg.Env == "dev" {
			seedDemoData(mem)
		}
		st, bs, ts, ps = mem, mem, mem, mem
		poiDir = mem
		opsDir = mem
		// No device directory in memory mode; device login answers 503.
	default:
		log.Fatalf("unknown STORE_BACKEND %q (want mysql or memory)", cfg.StoreBackend)
	}

	// Core services.
	manager := service.NewReservationManager(st, service.WithHoldDuration(cfg.HoldDuration))
	issuer := service.NewTicketIssuer([]byte(cfg.TicketSecret), ts)

	// Payment collaborator: the real HTTP client when a base URL is
	// configured, the auto-approving stub otherwise.
	var payment service.PaymentCollaborator = service.StubPaymentCollaborator{}
	if cfg.PaymentBaseURL != "" {
		payment = service.NewHTTPPaymentClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	} else {
		log.Println("PAYMENT_BASE_URL not set, using stub payment collaborator")
	}

	// Notifications go through RabbitMQ; the publisher reads the
	// broker URL per publish so it tolerates a late-starting broker.
	var notifier service.Notifier = queue.NewPublisher()

	orchestrator := service.NewBookingOrchestrator(manager, bs, ps, issuer, payment, notifier, cfg.ReturnURL)

	// Background tasks stop when the process receives SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expiry sweep: releases lapsed holds so their capacity returns
	// even when nobody touches the reservation again.
	sweeper := service.NewSweeper(manager, cfg.SweepInterval, 200)
	go sweeper.Run(ctx)

	// Queue consumer: drains booking.confirmed and booking.reversal
	// into logs/booking.log.  Development stand-in for the platform's
	// notification module.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true

	// Redis backs the response cache and the rate limiter.  A nil
	// client disables both; the API stays fully functional.
	rdb := config.NewRedisClient()

	router.RegisterRoutes(e) // Health check
	router.RegisterPublic(e,
		handler.NewAvailabilityHandler(manager),
		handler.NewBookingHandler(orchestrator),
		handler.NewPOIHandler(poiDir),
		rdb,
	)
	router.RegisterValidation(e,
		handler.NewDeviceAuthHandler(devices, cfg.JWTSecret, cfg.DeviceTTLMin),
		handler.NewValidateHandler(issuer, bs),
		cfg.JWTSecret,
	)
	router.RegisterOps(e, handler.NewOpsHandler(opsDir), cfg.JWTSecret)

	addr := ":" + cfg.Port                                                             // Address string with port
	log.Printf("listening on %s (env=%s store=%s)", addr, cfg.Env, cfg.StoreBackend)   // Print startup info
	if err := e.Start(addr); err != nil {                                              // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}

// seedDemoData loads a couple of POIs and slots so the memory backend
// answers something out of the box.
func seedDemoData(mem *store.Memory) {
	mem.AddPOI(model.POI{ID: 42, Name: "Ecomare", Bookable: true, BasePriceCents: 1750, Currency: "EUR"})
	mem.AddPOI(model.POI{ID: 7, Name: "Kaap Skil", Bookable: true, BasePriceCents: 1150, Currency: "EUR"})
	for _, ts := range []string{"10:00-12:00", "13:00-15:00"} {
		mem.SeedSlot(model.SlotKey{POIID: 42, Date: todayUTC(), Timeslot: ts}, 50)
	}
	mem.SeedSlot(model.SlotKey{POIID: 7, Date: todayUTC(), Timeslot: ""}, 200)
	log.Println("seeded demo POIs and availability (memory backend, dev)")
}

func todayUTC() string {
	return time.Now().UTC().Format("2006-01-02")
}
