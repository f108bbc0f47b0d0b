package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointledger/internal/config"
	"pointledger/internal/emotion"
	"pointledger/internal/handler"
	"pointledger/internal/infrastructure/cache"
	"pointledger/internal/infrastructure/database"
	"pointledger/internal/infrastructure/lock"
	"pointledger/internal/infrastructure/logger"
	"pointledger/internal/infrastructure/mq"
	"pointledger/internal/invitecode"
	"pointledger/internal/job"
	"pointledger/internal/ledger"
	"pointledger/internal/notification"
	"pointledger/internal/repository"
	"pointledger/internal/service"
	"pointledger/pkg/idgen"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Sync()

	if err := idgen.Init(1); err != nil {
		zlog.Fatal("初始化ID生成器失败", zap.Error(err))
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ledgerStore  ledger.Store
		emotionStore emotion.Store
		locker       lock.Locker = lock.NopLocker{}
		emitter      notification.Emitter
	)

	switch cfg.Ledger.Driver {
	case "memory":
		zlog.Warn("使用内存账本，进程退出后数据丢失")
		ledgerStore = ledger.NewMemoryStore()
		emotionStore = emotion.NewMemoryStore()
		emitter = notification.NewLogEmitter(zlog)
	default:
		db, err := database.InitMySQL(ctx, &cfg.MySQL)
		if err != nil {
			zlog.Fatal("初始化 MySQL 失败", zap.Error(err))
		}
		ledgerStore = repository.NewLedgerStore(db)
		emotionStore = repository.NewEmotionStore(db)

		redisClient, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			zlog.Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient)

		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			zlog.Fatal("初始化 Kafka 失败", zap.Error(err))
		}
		defer producer.Close()

		outboxRepo := repository.NewOutboxRepository(db)
		emitter = notification.NewOutboxEmitter(outboxRepo, cfg.Kafka.Topic.Notification)

		outboxSender := job.NewOutboxSender(outboxRepo, producer, cfg.Outbox, zlog)
		go outboxSender.Start(ctx)
	}

	engine := ledger.NewEngine(ledgerStore,
		ledger.WithRetry(cfg.Ledger.MaxRetries, cfg.Ledger.RetryInterval),
		ledger.WithLogger(zlog.Named("ledger")),
	)
	pointService := service.NewPointService(engine, locker, emitter, invitecode.UUIDGenerator{}, cfg.Point, zlog)
	accountService := service.NewAccountService(engine, pointService, emotion.NewService(emotionStore, zlog), cfg.Point, zlog)

	router := handler.SetupRouter(handler.NewHandler(pointService, accountService, zlog), zlog)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zlog.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.String("ledger", cfg.Ledger.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务...")

	// 先停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("服务关闭异常", zap.Error(err))
	}

	zlog.Info("服务已关闭")
}
