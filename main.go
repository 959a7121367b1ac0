package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"naskahsync/config"
	"naskahsync/config/database"
	"naskahsync/internal/document/repository"
	"naskahsync/internal/document/service"
	"naskahsync/internal/presence"
	"naskahsync/pkg/logger"
	"naskahsync/router"
	"naskahsync/socket"
	"naskahsync/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db   *sql.DB
		docs service.DocumentRepo
		chat service.ChatRepo
	)
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Sugar.Fatalf("Could not connect to database: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			logger.Sugar.Fatalf("Schema migration failed: %v", err)
		}
		docs = repository.NewDocumentRepository(db)
		chat = repository.NewChatRepository(db)
		logger.Sugar.Info("Using PostgreSQL document store")
	} else {
		mem := store.NewMemory()
		docs, chat = mem, mem
		logger.Sugar.Warn("DATABASE_URL not set, documents are kept in memory only")
	}
	if cfg.JWTSecret == "" {
		logger.Sugar.Warn("JWT_SECRET not set, every token will be rejected")
	}

	hub := socket.NewHub(cfg.SubscriberBuffer)
	docService := service.NewDocumentService(docs, chat, hub, presence.New(nil), service.Options{
		PresenceTTL:     cfg.PresenceTTL,
		MaxContentBytes: cfg.MaxContentBytes,
		MaxChatBody:     cfg.MaxChatBody,
		CacheSize:       cfg.DocCacheSize,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(cfg, docService, db),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docService.RunPresenceSweeper(gctx, cfg.PresenceSweepInterval)
		return nil
	})
	g.Go(func() error {
		logger.Sugar.Infof("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Sugar.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Sugar.Errorf("Server stopped: %v", err)
	}
}
