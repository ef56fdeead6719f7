package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/backend/internal/api/handler"
	"pairchat/backend/internal/assistant"
	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database and optional Redis bus
	db, err := storage.OpenDB(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	rdb, err := openRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	store := storage.NewStorageService(db, rdb)

	// 3. Hub, AI responder and message service
	var bus chathub.DeliveryBus
	if rdb != nil {
		bus = store
	}
	hub := chathub.NewManagerService(bus)

	if cfg.CompletionAPIKey == "" {
		log.Warn().Msg("GROQ_API_KEY is not set, AI replies will fail")
	}
	completer := assistant.NewOpenAICompleter(cfg.CompletionAPIKey, cfg.CompletionBaseURL, cfg.CompletionModel)
	responder := assistant.NewResponder(store, completer, hub.Relay, assistant.Settings{
		SystemPrompt: cfg.AISystemPrompt,
		MaxTokens:    cfg.CompletionMaxTokens,
		Timeout:      cfg.AITimeout,
		MaxInflight:  cfg.AIMaxInflight,
	})
	messages := messaging.NewService(store, hub.Relay, responder)

	if _, err := responder.Participant(ctx); err != nil {
		log.Warn().Err(err).Msg("AI participant not materialized at startup")
	}

	// 4. HTTP server
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(hub, messages, auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// 5. Run until a signal or a failure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("address", server.Addr).Str("instance", hub.Origin()).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "HTTP server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("program stopped cleanly")
	return nil
}

// openRedis connects to Redis when addr is set. Without it the delivery bus
// is disabled and the server runs as a single instance.
func openRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		log.Info().Msg("REDIS_ADDR not set, delivery bus disabled")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "failed to connect Redis at %s", addr)
	}
	return rdb, nil
}
