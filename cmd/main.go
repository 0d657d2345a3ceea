package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/chat-backend/internal/cache"
	"github.com/weiawesome/chat-backend/internal/config"
	"github.com/weiawesome/chat-backend/internal/domain"
	"github.com/weiawesome/chat-backend/internal/handler"
	"github.com/weiawesome/chat-backend/internal/hub"
	"github.com/weiawesome/chat-backend/internal/repository"
	"github.com/weiawesome/chat-backend/internal/service"
	"github.com/weiawesome/chat-backend/pkg/database"
	pkglog "github.com/weiawesome/chat-backend/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "chat-backend",
	})
	logger := pkglog.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	err = database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.ConversationModel{},
		&domain.MemberModel{},
		&domain.MessageModel{},
		&domain.ReceiptModel{},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	chatRepo := repository.NewGormChatRepository(db)

	var userCache cache.UserCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisUserCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		userCache = redisCache
		logger.Info().Msg("redis user cache connected")
	}

	chatService := service.NewChatService(chatRepo, userCache, cfg.Cache.UserTTL)

	h := hub.NewHub()
	go h.Run()

	realtimeService := service.NewRealtimeService(chatService, chatRepo, h)

	httpHandler := handler.NewHTTPHandler(chatService, cfg.Chat.MessageLimit)
	wsHandler := handler.NewWSHandler(h, realtimeService, cfg.WebSocket)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Msg("chat-backend starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}
