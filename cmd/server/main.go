package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for grace window wiring

	"github.com/joho/godotenv"    // Optional .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/bus-ticketing/internal/config"     // Internal config loader
	"github.com/iliyamo/bus-ticketing/internal/database"   // MySQL pool constructor
	"github.com/iliyamo/bus-ticketing/internal/handler"    // HTTP handlers
	"github.com/iliyamo/bus-ticketing/internal/middleware" // Rate limit and cache middleware
	"github.com/iliyamo/bus-ticketing/internal/model"      // Payment method constants
	"github.com/iliyamo/bus-ticketing/internal/otp"        // Guest-lookup challenge store
	"github.com/iliyamo/bus-ticketing/internal/payment"    // Provider gateway adapters
	"github.com/iliyamo/bus-ticketing/internal/queue"      // Background event consumer
	"github.com/iliyamo/bus-ticketing/internal/repository" // Database repositories
	"github.com/iliyamo/bus-ticketing/internal/router"     // Route registration
	"github.com/iliyamo/bus-ticketing/internal/ticket"     // QR codec
)

func main() {
	// Load .env if present; in production the environment is injected
	// by the orchestrator and the file simply does not exist.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is not configured

	// Repositories share the single pool.
	tripRepo := repository.NewTripRepo(db)
	seatRepo := repository.NewTripSeatRepo(db)
	seatHoldRepo := repository.NewSeatHoldRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	paymentRepo := repository.NewPaymentTxnRepo(db)

	// Provider adapters keyed by the booking payment_method value.
	gateways := map[string]payment.Gateway{
		model.PayMethodVNPay:   payment.NewVNPay(cfg.VNPay, cfg.BookingTZ),
		model.PayMethodMoMo:    payment.NewMoMo(cfg.MoMo),
		model.PayMethodZaloPay: payment.NewZaloPay(cfg.ZaloPay),
	}

	codec := ticket.NewQRCodec(cfg.QRSecret)
	otpStore := otp.NewStore(rdb, cfg.OTPTTL, cfg.OTPMaxAttempts)
	grace := time.Duration(cfg.BoardingGraceMin) * time.Minute

	tripHandler := handler.NewTripHandler(tripRepo)
	ticketHandler := handler.NewTicketHandler(ticketRepo, bookingRepo, tripRepo, codec, cfg.BookingTZ, grace)
	verifyHandler := handler.NewVerifyHandler(ticketRepo, bookingRepo, tripRepo, paymentRepo, codec, grace)
	cancelHandler := handler.NewCancelHandler(ticketRepo, bookingRepo, tripRepo, seatRepo, paymentRepo, gateways, cfg.BookingTZ, grace)
	changeHandler := handler.NewChangeHandler(ticketRepo, bookingRepo, tripRepo, seatRepo, seatHoldRepo, gateways, cfg.BookingTZ, grace)
	lookupHandler := handler.NewLookupHandler(ticketRepo, bookingRepo, tripRepo, otpStore, codec, grace)
	paymentHandler := handler.NewPaymentHandler(bookingRepo, paymentRepo, gateways)

	e := echo.New() // Create Echo instance

	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	rateMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterPublic(e, tripHandler, lookupHandler, paymentHandler, cacheMW, rateMW)
	router.RegisterTickets(e, ticketHandler, cancelHandler, changeHandler, cfg.JWTSecret)
	router.RegisterBoarding(e, verifyHandler, cfg.JWTSecret)

	// The consumer owns its own connection and reconnect loop; it runs
	// for the lifetime of the process.
	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			log.Printf("ticket-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
