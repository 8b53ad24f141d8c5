package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/lxgazer/internal/api/geocoder"
	"github.com/langchou/lxgazer/internal/api/handlers"
	"github.com/langchou/lxgazer/internal/config"
	"github.com/langchou/lxgazer/internal/entity"
	"github.com/langchou/lxgazer/internal/publish"
	"github.com/langchou/lxgazer/internal/repository"
	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting LxGazer", zap.String("port", cfg.ServerPort), zap.Int("cars", len(cfg.Cars)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	deps := service.Deps{
		Logger:         logger,
		BaseURL:        cfg.LiXiangBaseURL,
		EnergyInterval: cfg.EnergyInterval,
		CarsFile:       cfg.CarsFile,
		Geocoder:       geocoder.NewClient(cfg.AmapAPIKey, logger),
		Notifier:       wsHub,
	}
	opts := handlers.Options{Hub: wsHub, Debug: cfg.Debug}

	// 数据库（可选）
	if cfg.DatabaseURL != "" {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		cars := repository.NewCarRepository(db)
		positions := repository.NewPositionRepository(db)
		commands := repository.NewCommandRepository(db)
		deps.Cars = cars
		deps.Positions = positions
		deps.Commands = commands
		opts.Cars = cars
		opts.Positions = positions
		opts.Commands = commands
	} else {
		logger.Info("DATABASE_URL not set, history disabled")
	}

	// 车辆服务
	manager := service.NewManager(cfg.Cars, deps)
	updates := manager.Subscribe()
	if err := manager.Start(ctx); err != nil {
		logger.Fatal("Failed to start vehicle manager", zap.Error(err))
	}

	// 首次刷新后车辆名称已确定，再创建实体
	registries := make(map[string]*entity.Registry, len(cfg.Cars))
	list := make([]*entity.Registry, 0, len(cfg.Cars))
	for _, v := range manager.List() {
		r := entity.Build(v)
		registries[v.VIN()] = r
		list = append(list, r)
	}

	wsHub.SetInitDataProvider(func() *ws.InitData {
		cars := make([]map[string]any, 0, len(list))
		entities := make(map[string][]entity.View, len(list))
		for _, r := range list {
			cars = append(cars, r.Vehicle().Summary())
			entities[r.VIN()] = r.Views()
		}
		return &ws.InitData{Cars: cars, Entities: entities}
	})

	// MQTT（可选）
	var publisher *publish.Publisher
	if cfg.MQTTBroker != "" {
		publisher = publish.New(publish.Config{
			Broker:          cfg.MQTTBroker,
			Username:        cfg.MQTTUsername,
			Password:        cfg.MQTTPassword,
			ClientID:        cfg.MQTTClientID,
			DiscoveryPrefix: cfg.MQTTDiscoveryPrefix,
			TopicPrefix:     cfg.MQTTTopicPrefix,
		}, list, logger)
		if err := publisher.Start(ctx); err != nil {
			logger.Error("Failed to start MQTT publisher", zap.Error(err))
			publisher = nil
		}
	}
	go func() {
		if publisher != nil {
			publisher.Run(ctx, updates)
			return
		}
		for range updates {
		}
	}()

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handlers.NewHandler(logger, manager, registries, opts).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	manager.Stop()
	if publisher != nil {
		publisher.Stop(shutdownCtx)
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
