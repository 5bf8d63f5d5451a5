package main // Entry point package

import (
	"log"     // Logging library
	"os"      // Environment access for optional wiring
	"strconv" // Parsing of the kitchen bar list
	"strings" // Splitting of the kitchen bar list
	"time"    // Durations for TTLs and the sweeper interval

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/baresync/comanda/internal/catalog"    // Product catalog provider
	"github.com/baresync/comanda/internal/config"     // Internal config loader
	"github.com/baresync/comanda/internal/database"   // MySQL connection pool
	"github.com/baresync/comanda/internal/dispatch"   // Event fan-out to participants and staff
	"github.com/baresync/comanda/internal/handler"    // HTTP handlers
	"github.com/baresync/comanda/internal/middleware" // Rate limiting and response cache
	"github.com/baresync/comanda/internal/order"      // Session registry and ticket engine
	"github.com/baresync/comanda/internal/payment"    // Payment gateway client
	"github.com/baresync/comanda/internal/queue"      // RabbitMQ kitchen feed
	"github.com/baresync/comanda/internal/repository" // SQL repositories
	"github.com/baresync/comanda/internal/router"     // Route registration
)

func main() {
	cfg := config.Load() // Load environment config

	// Open the MySQL pool.  The catalog and the order archive live here;
	// the live session state does not, so the database is on the request
	// path only for menu reads and history queries.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	productRepo := repository.NewProductRepo(db)
	archiveRepo := repository.NewArchiveRepo(db)

	// Redis backs rate limiting, the catalog response cache and invite
	// codes.  A nil client disables all three but the service still runs.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting, response cache and invites disabled")
	}

	// The dispatcher doubles as the engine's notifier: every ticket
	// transition is published through it to the submitter's inbox and
	// the bar's staff channel.
	dispatcher := dispatch.New()
	defer dispatcher.Stop()

	registry := order.NewRegistry(dispatcher, archiveRepo,
		order.WithIdleTimeout(time.Duration(cfg.SessionIdleMin)*time.Minute))
	registry.Start(time.Minute) // idle close + retention sweeper
	defer registry.Stop()

	// Bars listed in KITCHEN_BARS get their staff channel mirrored onto
	// the RabbitMQ kitchen queue, where printer bridges and KDS screens
	// consume it.  The in-process consumer is opt-in for single-box
	// deployments without a separate kitchen service.
	if bars := os.Getenv("KITCHEN_BARS"); bars != "" {
		pub := queue.NewPublisher(queue.BrokerURL())
		for _, part := range strings.Split(bars, ",") {
			barID, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil || barID == 0 {
				log.Printf("kitchen: skipping invalid bar id %q", part)
				continue
			}
			dispatcher.AttachSink(order.StaffRecipient(barID), pub)
		}
		if os.Getenv("KITCHEN_CONSUMER") == "true" {
			go func() {
				if err := queue.StartKitchenConsumer(); err != nil {
					log.Printf("kitchen consumer stopped: %v", err)
				}
			}()
		}
	}

	// The payment gateway is an external collaborator; without a URL the
	// settle endpoint answers 503 and everything else works normally.
	var charger payment.Charger
	if cfg.PaymentURL != "" {
		charger = payment.NewHTTPCharger(cfg.PaymentURL)
	}

	e := echo.New() // Create Echo instance

	// Distributed token-bucket rate limiting applies to every route.
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	// The response cache only wraps the catalog route; the router
	// receives it as an optional middleware.
	var cacheMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	menu := catalog.NewSQLProvider(productRepo)
	clientH := handler.NewClientHandler(registry, dispatcher, menu, archiveRepo)
	catalogH := handler.NewCatalogHandler(menu)
	inviteH := handler.NewInviteHandler(registry, rdb, cfg.JWTSecret,
		time.Duration(cfg.InviteTTLMin)*time.Minute, cfg.ParticipantTTLMin)
	staffH := handler.NewStaffHandler(registry, dispatcher, charger)

	router.RegisterRoutes(e)                                                  // Health check
	router.RegisterClient(e, clientH, catalogH, inviteH, cfg.JWTSecret, cacheMW) // Customer API
	router.RegisterStaff(e, staffH, cfg.JWTSecret)                            // Staff API

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
