package main // Entry point package

import (
	"log" // Logging library

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/gateway"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/router"
	"github.com/iliyamo/restaurant-reservation/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config (.env in dev)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the refund guard degrades to the DB
	// state check and rate limiting is disabled.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; refund guard and rate limiting degraded")
	}

	// Background consumer that appends reconciliation events to
	// logs/reconciliation.log for the manual follow-up operator.
	go func() {
		if err := queue.StartReconciliationConsumer(); err != nil {
			log.Printf("reconciliation consumer stopped: %v", err)
		}
	}()

	gw := gateway.New(cfg.GatewayBaseURL, cfg.GatewayClientID, cfg.GatewaySecret,
		cfg.BrandName, cfg.ReturnURL, cfg.CancelURL)
	svc := service.NewPaymentService(
		gw,
		repository.NewReservationRepo(db),
		repository.NewPaymentOpRepo(db),
		queue.NewPublisher(),
		service.NewRedisLocker(rdb),
		cfg.Currency,
		"paypal",
	)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPayments(e, handler.NewPaymentHandler(svc), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
