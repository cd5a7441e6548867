package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/db"
	"github.com/Shreyansh0843/rfp-system/db/migrations"
	"github.com/Shreyansh0843/rfp-system/internal/ai"
	"github.com/Shreyansh0843/rfp-system/internal/config"
	"github.com/Shreyansh0843/rfp-system/internal/handlers"
	"github.com/Shreyansh0843/rfp-system/internal/logger"
	"github.com/Shreyansh0843/rfp-system/internal/mail"
	"github.com/Shreyansh0843/rfp-system/internal/middleware"
	"github.com/Shreyansh0843/rfp-system/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// логгер ещё не создан
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	dbConn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(ctx, dbConn.DB, log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// без Redis неотправленные уведомления остаются только в логе
	var dead notify.DeadLetter = notify.LogDeadLetter{Log: log}
	redisClient, err := db.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, failed notifications go to the log", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		dead = notify.NewRedisDeadLetter(redisClient, cfg.Redis.DeadLetterKey)
	}

	dispatcher := notify.NewDispatcher(notify.Options{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   cfg.Notify.Timeout,
	}, dead, log)

	assistant := ai.NewClient(cfg.OpenAI, log)
	if cfg.OpenAI.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, AI endpoints will return 503")
	}
	mailer := mail.NewSMTPMailer(cfg.SMTP, cfg.Server.FrontendURL, log)

	store := db.NewStorage(dbConn)
	h := handlers.NewHandler(store, assistant, mailer, dispatcher, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.Server.FrontendURL))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// дожидаемся писем, поставленных в очередь до остановки
	dispatcher.Close()

	log.Info("Server exited")
}
