package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mealrun/internal/auth"
	"mealrun/internal/commons"
	"mealrun/internal/config"
	"mealrun/internal/delivery"
	delivsvc "mealrun/internal/delivery/service"
	"mealrun/internal/infrastructure/logger"
	"mealrun/internal/infrastructure/mailer"
	"mealrun/internal/infrastructure/mysql"
	"mealrun/internal/infrastructure/rabbitmq"
	"mealrun/internal/infrastructure/redis"
	"mealrun/internal/notify"
	"mealrun/internal/order"
	orderrepo "mealrun/internal/order/repository"
	"mealrun/internal/otpjob"
	"mealrun/internal/server"
	"mealrun/internal/shop"
	shoprepo "mealrun/internal/shop/repository"
)

type stores struct {
	orders     order.Store
	shops      shop.Repository
	couriers   delivsvc.CourierRepository
	deliveries delivsvc.DeliveryRepository
	expired    otpjob.Store
}

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, "mealrun")
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	// Bloque 1: Persistencia
	st, closeStore := openStores(ctx, cfg, zapLogger)
	defer closeStore()

	// Bloque 2: Adaptadores opcionales
	var events notify.Publisher = notify.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ)
		if err != nil {
			zapLogger.Fatal("connecting to rabbitmq", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
		zapLogger.Info("order events published to rabbitmq", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	var notifier notify.OtpNotifier = notify.NewLogNotifier(zapLogger)
	if cfg.Mail.Enabled {
		m, err := mailer.New(cfg.Mail)
		if err != nil {
			zapLogger.Fatal("configuring mailer", zap.Error(err))
		}
		notifier = m
	}

	var locker otpjob.Locker = otpjob.NewLocalLocker()
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer client.Close()
		locker = redis.NewLocker(client, "mealrun")
		zapLogger.Info("sweep lease held in redis", zap.String("addr", cfg.Redis.Addr))
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("configuring auth", zap.Error(err))
	}

	// Bloque 3: Módulos
	deliveryModule := delivery.NewModule(st.couriers, st.deliveries, events, cfg, zapLogger)
	orderModule := order.NewModule(order.Deps{
		Orders:   st.orders,
		Shops:    st.shops,
		Offers:   deliveryModule.Matcher,
		Notifier: notifier,
		Events:   events,
	}, cfg, zapLogger)

	job := otpjob.New(st.expired, orderModule.Lifecycle, locker, otpjob.Config{
		Schedule: cfg.Sweep.Schedule,
		LockTTL:  cfg.Sweep.LockTTL,
	}, zapLogger)
	if err := job.Start(ctx); err != nil {
		zapLogger.Fatal("starting otp sweep", zap.Error(err))
	}

	router := server.NewRouter(orderModule.Controller, deliveryModule.Controller, authenticator.Middleware, zapLogger)
	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := job.Stop(shutdownCtx); err != nil {
		zapLogger.Error("otp sweep did not stop cleanly", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}

func openStores(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (stores, func()) {
	var seed *commons.Seed
	if cfg.Storage.SeedFile != "" {
		s, err := commons.LoadSeed(cfg.Storage.SeedFile)
		if err != nil {
			zapLogger.Fatal("loading seed", zap.Error(err))
		}
		seed = s
	}

	if cfg.Storage.Driver == "memory" {
		mem := orderrepo.NewMemoryStore()
		if seed != nil {
			for _, s := range seed.DomainShops() {
				mem.PutShop(s)
			}
			for _, c := range seed.DomainCouriers() {
				mem.PutCourier(c)
			}
		}
		zapLogger.Info("using in-memory store")
		return stores{orders: mem, shops: mem, couriers: mem, deliveries: mem, expired: mem}, func() {}
	}

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	zapLogger.Info("database connected")

	if cfg.Database.AutoMigrate {
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			zapLogger.Fatal("creating schema", zap.Error(err))
		}
	}

	orders := orderrepo.NewMySQLOrderRepository(db)
	couriers := orderrepo.NewMySQLCourierRepository(db)
	shops := shoprepo.NewMySQLRepository(db)
	if seed != nil {
		seedMySQL(ctx, seed, shops, couriers, zapLogger)
	}

	return stores{orders: orders, shops: shops, couriers: couriers, deliveries: orders, expired: orders}, func() { closeDB(db, zapLogger) }
}

func seedMySQL(ctx context.Context, seed *commons.Seed, shops *shoprepo.MySQLRepository, couriers *orderrepo.MySQLCourierRepository, zapLogger *zap.Logger) {
	for _, s := range seed.DomainShops() {
		if err := shops.Upsert(ctx, s); err != nil {
			zapLogger.Fatal("seeding shop", zap.String("shopId", s.ID), zap.Error(err))
		}
	}
	for _, c := range seed.DomainCouriers() {
		if err := couriers.Upsert(ctx, c); err != nil {
			zapLogger.Fatal("seeding courier", zap.String("courierId", c.ID), zap.Error(err))
		}
	}
	zapLogger.Info("seed applied", zap.Int("shops", len(seed.Shops)), zap.Int("couriers", len(seed.Couriers)))
}

func closeDB(db *sql.DB, zapLogger *zap.Logger) {
	if err := db.Close(); err != nil {
		zapLogger.Warn("closing database", zap.Error(err))
	}
}
