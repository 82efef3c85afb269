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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/config"
	"github.com/Gopher0727/Eiga/internal/api"
	"github.com/Gopher0727/Eiga/internal/handler"
	"github.com/Gopher0727/Eiga/internal/notify"
	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/pkg/idgen"
	"github.com/Gopher0727/Eiga/internal/pkg/kafka"
	"github.com/Gopher0727/Eiga/internal/pkg/redis"
	"github.com/Gopher0727/Eiga/internal/realtime"
	"github.com/Gopher0727/Eiga/internal/repository"
	"github.com/Gopher0727/Eiga/internal/service"
	"github.com/Gopher0727/Eiga/internal/storage"
	"github.com/Gopher0727/Eiga/middleware/jwt"
	logger "github.com/Gopher0727/Eiga/middleware/log"
	"github.com/Gopher0727/Eiga/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	lg, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer lg.Close()

	if err := run(cfg, lg); err != nil {
		lg.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 PostgreSQL
	db, err := storage.InitPostgres(&cfg.Postgres, lg.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(db); err != nil {
			lg.Warn("failed to close postgres", zap.Error(err))
		}
	}()

	// 初始化 Redis
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	ids, err := idgen.New(cfg.Server.NodeID)
	if err != nil {
		return fmt.Errorf("invalid server.node_id: %w", err)
	}

	// Kafka 不可用时降级为仅记录日志
	var messenger notify.Messenger
	producer, err := kafka.NewProducer(&cfg.Kafka)
	if err != nil {
		lg.Warn("kafka unavailable, welcome messages will only be logged", zap.Error(err))
		messenger = notify.NewLogMessenger(lg)
	} else {
		defer producer.Close()
		messenger = notify.NewKafkaMessenger(producer, cfg.Kafka.WelcomeTopic, cfg.Kafka.Producer.MaxRetries, lg)
	}

	// 提交后的副作用（实时推送、欢迎邮件）交给后台协程池，退出时先排空队列再关闭 Kafka
	pool := outbox.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, cfg.WorkerPool.JobTimeout, lg)
	pool.Start()
	defer pool.Stop()

	publisher := realtime.NewRedisPublisher(redisClient, cfg.Realtime.JoinTimeout, lg)
	hub := realtime.NewHub(redisClient, cfg.Websocket, lg)
	if err := hub.Start(ctx); err != nil {
		return err
	}

	// 仓储层
	txManager := repository.NewTxManager(db)
	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)

	// 服务层
	inviteService := service.NewInviteService(txManager, inviteRepo, userRepo, pool, messenger, cfg.Invite, lg)
	discussionService := service.NewDiscussionService(commentRepo, ids, pool, publisher, cfg.Discussion, lg)
	reactionService := service.NewReactionService(commentRepo, reactionRepo, ids, pool, publisher, lg)

	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)
	limiter := ratelimit.NewWindowLimiter(redisClient.GetClient(), lg.Named("ratelimit").Logger, true)
	middleware := api.NewMiddlewareManager(tokenManager, limiter, lg, &cfg.RateLimit)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	api.RegisterRoutes(r, middleware, api.Handlers{
		Invite:   handler.NewInviteHandler(inviteService, tokenManager, lg),
		Comment:  handler.NewCommentHandler(discussionService, lg),
		Reaction: handler.NewReactionHandler(reactionService, lg),
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
