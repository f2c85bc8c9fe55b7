package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fanradar/internal/config"
	"fanradar/internal/handler"
	"fanradar/internal/middleware"
	"fanradar/internal/pkg"
	"fanradar/internal/repository/mysql"
	"fanradar/internal/repository/redis"
	"fanradar/internal/router"
	"fanradar/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := pkg.InitLogger(pkg.LogConfig{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}); err != nil {
		panic(err)
	}
	defer func() { _ = pkg.Logger.Sync() }()

	if err := run(cfg); err != nil {
		pkg.Logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.Open(cfg.MySQLDSN, cfg.LogLevel)
	if err != nil {
		return err
	}
	// 自动建表
	if err := mysql.AutoMigrate(db); err != nil {
		return err
	}

	// 连接redis
	rdb, err := redis.Init(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	tx := &mysql.Transactor{DB: db}
	users := &mysql.UserRepository{DB: db}
	categories := &mysql.CategoryRepository{DB: db}
	fandoms := &mysql.FandomRepository{DB: db}
	members := &mysql.MemberRepository{DB: db}
	outbox := &mysql.OutboxRepository{DB: db}
	posts := &mysql.PostRepository{DB: db}
	tags := &mysql.TagRepository{DB: db}
	sessions := &redis.SessionRepository{Client: rdb, TTL: cfg.AccessTTL}
	cache := &redis.FandomCache{Client: rdb, TTL: cfg.FandomCacheTTL}
	storage := pkg.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix, cfg.MaxUploadBytes)
	tokens := pkg.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	userSvc := service.NewUserService(users, sessions, tokens)
	memberSvc := service.NewMembershipService(tx, users, fandoms, members, outbox)
	fandomSvc := service.NewFandomService(tx, fandoms, members, categories, outbox, storage, cache)
	postSvc := service.NewPostService(tx, service.NewPostGate(members), posts, tags, fandoms, members, storage)
	subcategorySvc := service.NewSubcategoryService(categories, categories)

	// outbox 投递到 kafka，没有配置 broker 时不启动
	if cfg.KafkaEnabled() {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()
		relayer := service.NewOutboxRelayer(outbox, producer, cfg.OutboxBatchSize, cfg.OutboxInterval, cfg.OutboxMaxRetry)
		go relayer.Run(ctx)
	} else {
		pkg.Logger.Warn("kafka brokers not configured, membership events stay in outbox")
	}

	gin.SetMode(cfg.GinMode)
	engine := router.InitRouter(router.Deps{
		User:            handler.NewUserHandler(userSvc),
		Fandom:          handler.NewFandomHandler(fandomSvc),
		Member:          handler.NewMemberHandler(memberSvc),
		Post:            handler.NewPostHandler(postSvc),
		Subcategory:     handler.NewSubcategoryHandler(subcategorySvc),
		Verifier:        userSvc,
		Limiter:         middleware.NewRateLimiter(cfg.RateLimitPerMinute),
		AllowedOrigins:  cfg.AllowedOrigins,
		UploadDir:       cfg.UploadDir,
		UploadURLPrefix: cfg.UploadURLPrefix,
	})
	engine.MaxMultipartMemory = cfg.MaxUploadBytes

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		pkg.Logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pkg.Logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
