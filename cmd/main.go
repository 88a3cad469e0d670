package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/cache"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/handler"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/idgen"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/thumbnail"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/database"
	pkglog "github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/middleware"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/storage"
)

func main() {
	configPath := "config"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "stream-directory",
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database using GORM
	db, err := database.New(cfg.Database.Options())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.StreamModel{}, &domain.ChatMessageModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Initialize repositories
	streamRepo := repository.NewGormStreamRepository(db)

	var chatRepo repository.ChatRepository
	switch cfg.Chat.Driver {
	case config.ChatDriverCassandra:
		cassandraRepo, err := repository.NewCassandraChatRepository(repository.CassandraConfig(cfg.Cassandra))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cassandra repository")
		}
		chatRepo = cassandraRepo
	case config.ChatDriverGorm, "":
		chatRepo = repository.NewGormChatRepository(db)
	default:
		logger.Fatal().Str("driver", cfg.Chat.Driver).Msg("unsupported chat driver")
	}
	defer chatRepo.Close()

	// Initialize change feed
	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
	}
	broker := feed.NewBroker(ps, []string{domain.TableStreams, domain.TableStreamChat}, cfg.Feed.Buffer)
	if err := broker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start change feed")
	}
	defer broker.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("change feed started")

	// Initialize store backend
	streamKeys, err := idgen.NewKeyGenerator(cfg.StreamKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid stream key config")
	}
	opts := []store.Option{store.WithStreamKeys(streamKeys)}

	if cfg.Cache.Enabled {
		streamCache, err := cache.NewRedisStreamCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer streamCache.Close()
		opts = append(opts, store.WithCache(streamCache, cfg.Cache.TTL))
		logger.Info().Msg("redis cache connected")
	}

	backend := store.NewBackend(streamRepo, chatRepo, broker, broker, opts...)

	// Initialize thumbnail storage
	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create storage")
	}
	thumbnails := thumbnail.NewProcessor(objects, backend, cfg.Thumbnail)

	// Initialize handlers
	httpHandler := handler.NewHandler(backend, thumbnails, handler.Options{
		EmbedHost:          cfg.Embed.Host,
		ChatMaxLength:      cfg.Chat.MaxLength,
		MaxThumbnailUpload: cfg.Thumbnail.MaxUploadSize,
	})
	realtimeHandler := handler.NewRealtimeHandler(backend, cfg.WebSocket)

	// Setup Gin router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Wallet())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if local, ok := objects.(*storage.LocalStorage); ok {
		r.Static(cfg.Storage.Local.PublicURL, local.BasePath())
	}

	httpHandler.RegisterRoutes(r)
	realtimeHandler.RegisterRoutes(r)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("chat_driver", cfg.Chat.Driver).Msg("stream-directory starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
