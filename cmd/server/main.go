package main // entry point for the booking API server

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/database"
	"github.com/coldscholor/shared-room/internal/handler"
	"github.com/coldscholor/shared-room/internal/lock"
	"github.com/coldscholor/shared-room/internal/queue"
	"github.com/coldscholor/shared-room/internal/repository"
	"github.com/coldscholor/shared-room/internal/router"
	"github.com/coldscholor/shared-room/internal/scheduler"
	"github.com/coldscholor/shared-room/internal/service"
)

func main() {
	// .env is a dev convenience; in deployment the variables come from
	// the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	bookingCfg := config.LoadBookingConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Redis backs the seat lock, the status cache and the rate limiter.
	// Without it the service still runs: a process-local lock is correct
	// as long as there is a single instance.
	rdb := config.NewRedisClient()
	var seatLock lock.SeatLock
	if rdb != nil {
		seatLock = lock.NewRedisLock(rdb)
	} else {
		log.Println("redis unavailable, using process-local seat lock")
		seatLock = lock.NewLocalLock()
	}

	seats := repository.NewSeatRepo(db)
	orders := repository.NewOrderRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL)
	}

	seatSvc := service.NewSeatService(seats, seatLock, rdb, bookingCfg)
	orderSvc := service.NewOrderService(orders, seatSvc, events, bookingCfg)
	paymentSvc := service.NewPaymentService(payments, orderSvc, nil, bookingCfg)

	expiry := scheduler.New(orderSvc, bookingCfg)
	orderSvc.SetExpiryArmer(expiry)
	expiry.Start()
	defer expiry.Stop()

	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartPaymentResultConsumer(cfg.RabbitURL, paymentSvc.HandlePaymentResult, service.Retryable); err != nil {
				log.Printf("payment result consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users),
		Booking: handler.NewBookingHandler(orderSvc),
		Payment: handler.NewPaymentHandler(paymentSvc),
		Seat:    handler.NewSeatHandler(seatSvc),
	}, cfg.JWTSecret, rdb, rlCfg)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
