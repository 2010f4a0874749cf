package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-booking/config"
	"github.com/yeremiapane/restaurant-booking/controllers"
	"github.com/yeremiapane/restaurant-booking/database"
	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/router"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

func main() {
	utils.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Config error: %v", err)
	}
	if err := utils.SetLogLevel(cfg.LogLevel); err != nil {
		utils.ErrorLogger.Fatalf("Invalid LOG_LEVEL: %v", err)
	}
	utils.SetJWTSecret(cfg.JWTSecret)
	gin.SetMode(cfg.GinMode)

	loc, err := cfg.Location()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid RESTAURANT_TIMEZONE: %v", err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Migration failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	var broadcaster realtime.Broadcaster = hub
	if cfg.AMQPURL != "" {
		bridge := realtime.NewAMQPBridge(hub, cfg.AMQPURL, cfg.AMQPExchange)
		go bridge.Run(ctx)
		broadcaster = bridge
		utils.InfoLogger.WithField("exchange", cfg.AMQPExchange).Info("Realtime bridge enabled")
	}

	var store services.LockStore
	switch cfg.LockStore {
	case "redis":
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		store = services.NewRedisLockStore(rdb)
	case "database", "":
		store = services.NewGormLockStore(db)
	default:
		utils.ErrorLogger.Fatalf("Unknown LOCK_STORE %q", cfg.LockStore)
	}

	// redis expires locks itself
	if _, ok := store.(*services.GormLockStore); ok {
		sweeper := services.NewLockSweeper(store, broadcaster)
		sweeper.Interval = cfg.LockSweepInterval
		sweeper.Start()
		defer sweeper.Stop()
	}

	locks := services.NewLockManager(store, broadcaster)
	bookings := services.NewBookingService(db, locks, broadcaster, loc)
	orders := services.NewOrderService(db, broadcaster)
	restaurants := services.NewRestaurantService(db, broadcaster)

	r := router.SetupRouter(cfg, router.Controllers{
		Bookings: controllers.NewBookingController(bookings, locks),
		Orders:   controllers.NewOrderController(orders),
		Tables:   controllers.NewTableController(restaurants),
		Realtime: controllers.NewRealtimeController(hub),
	})

	utils.InfoLogger.WithFields(logrus.Fields{
		"port":       cfg.Port,
		"lock_store": cfg.LockStore,
		"db":         cfg.DBDriver,
	}).Info("Server running")

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(":" + cfg.Port) }()

	select {
	case err := <-errCh:
		utils.ErrorLogger.Fatalf("Server stopped: %v", err)
	case <-ctx.Done():
		utils.InfoLogger.Info("Shutting down")
	}
}
