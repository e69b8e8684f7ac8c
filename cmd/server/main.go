package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/tickettheatre/core-service/internal/config"
    "github.com/tickettheatre/core-service/internal/database"
    "github.com/tickettheatre/core-service/internal/handler"
    "github.com/tickettheatre/core-service/internal/middleware"
    "github.com/tickettheatre/core-service/internal/payment"
    "github.com/tickettheatre/core-service/internal/queue"
    "github.com/tickettheatre/core-service/internal/router"
    "github.com/tickettheatre/core-service/internal/service"
    "github.com/tickettheatre/core-service/internal/storage"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments set the environment
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.Pool{
        MaxOpenConns: cfg.DBMaxOpenConns,
        MaxIdleConns: cfg.DBMaxIdleConns,
        ConnLifetime: time.Duration(cfg.DBConnLifetimeMin) * time.Minute,
    })
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    store := storage.NewMySQLStore(db)

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and webhook dedupe disabled")
    }

    payments := payment.NewClient(cfg.PaymentServiceURL)
    events := queue.NewPublisher()

    svc := service.NewReservationService(store, payments, events,
        time.Duration(cfg.HoldTTLMin)*time.Minute)
    rec := service.NewReconciler(svc, rdb)

    // Background expiry sweep; lazy read-time checks keep capacity
    // correct even when this lags.
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go svc.StartSweeper(ctx, time.Duration(cfg.SweepIntervalSec)*time.Second)

    // Audit-log consumer for reservation lifecycle events.
    go func() {
        if err := queue.StartReservationConsumer(); err != nil {
            log.Printf("reservation consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    rh := handler.NewReservationHandler(svc)
    wh := handler.NewWebhookHandler(rec)

    rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    router.RegisterRoutes(e, rh, wh)
    router.RegisterReservations(e, rh, cfg.JWTSecret, rl)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
