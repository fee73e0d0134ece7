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

	"mindmate.io/companion/internal/api"
	"mindmate.io/companion/internal/auth"
	"mindmate.io/companion/internal/cache"
	"mindmate.io/companion/internal/completion"
	"mindmate.io/companion/internal/config"
	"mindmate.io/companion/internal/core"
	"mindmate.io/companion/internal/observability"
	"mindmate.io/companion/internal/store"
)

// appStore is what both relational backends provide.
type appStore interface {
	auth.UserStore
	core.SessionStore
	core.MessageStore
	Close() error
}

func main() {
	if err := run(); err != nil {
		observability.Logger().Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	observability.SetLevel(cfg.LogLevel)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize completion client: %w", err)
	}
	llmService := core.NewLLMService(completer)
	defer llmService.Close()

	var classifier core.Classifier = core.NewKeywordClassifier()
	if cfg.Classifier == "model" {
		classifier = core.NewModelClassifier(llmService)
	}

	var historyCache core.HistoryCache
	if cfg.CacheEnabled() {
		redisCache, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.HistoryCacheTTL)
		if err != nil {
			log.Warn("history cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			historyCache = redisCache
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(dbStore, tokens)

	historyService := core.NewHistoryService(dbStore, historyCache)
	chatService := core.NewChatService(core.NewSessionService(dbStore), dbStore, classifier, llmService, historyService)

	router := api.NewRouter(api.NewAPIHandler(authService, chatService, historyService))

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // completions can be slow
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", serverAddr, "database", cfg.DatabaseDriver,
			"llm_provider", cfg.LLMProvider, "classifier", cfg.Classifier, "history_cache", historyCache != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited gracefully")
	return nil
}

func openStore(cfg config.Config) (appStore, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return store.NewPostgresStore(cfg.DatabaseURL)
	default:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	}
}

func newCompleter(ctx context.Context, cfg config.Config) (core.Completer, error) {
	switch cfg.LLMProvider {
	case "ark":
		return completion.NewArkCompleter(ctx, completion.ArkConfig{
			APIKey:  cfg.ArkAPIKey,
			Model:   cfg.ArkModel,
			BaseURL: cfg.ArkBaseURL,
		})
	case "mock":
		observability.Logger().Warn("using the mock completion backend")
		return completion.NewMockCompleter(), nil
	default:
		return completion.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
}
