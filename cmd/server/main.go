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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/api/handlers"
	"github.com/langchou/tripgazer/internal/config"
	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/internal/service"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/pkg/ws"
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

	logger.Info("Starting Tripgazer",
		zap.String("port", cfg.ServerPort),
		zap.String("api", cfg.APIBaseURL))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 加载会话凭证（如果存在）
	store := session.NewStore(cfg.TokenFile, logger)
	if err := store.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, session.ErrNoCredential) {
			logger.Info("No saved session, trips will not be saved until login")
		} else {
			logger.Warn("Failed to load saved session", zap.Error(err))
		}
	} else {
		logger.Info("Session restored", zap.String("user_id", store.UserID()))
	}

	// 创建碳排放后端客户端
	client := carbon.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	client.SetLegacyPaths(cfg.LegacyEmissionsPaths)

	// 连接数据库（可选，用于本地归档）
	var archive service.Archive
	if cfg.ArchiveEnabled() {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		// 执行数据库迁移
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		archive = repository.NewTripLogRepository(db)
	} else {
		logger.Info("DATABASE_URL not set, trip archive disabled")
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)

	// 创建行程服务
	tripService := service.NewTripService(cfg, logger, client, store, archive, wsHub)

	wsHub.SetInitDataProvider(func() *ws.InitData {
		return &ws.InitData{Trips: tripService.List()}
	})
	go wsHub.Run(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, tripService, store, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 销毁行程，释放传感器订阅
	tripService.Close()
	cancel()

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
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
