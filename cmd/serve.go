package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codemate/config"
	"codemate/console"
	"codemate/executor"
	"codemate/internal"
	"codemate/logger"
	"codemate/natshandler"
	"codemate/pkg"
	"codemate/routes"
	"codemate/service"
	"codemate/validator"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var withNATS bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the NATS request subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.LoadConfig(), withNATS)
		},
	}
	cmd.Flags().BoolVar(&withNATS, "nats", true, "Subscribe to the NATS request subjects")
	return cmd
}

func poolLogger(environment string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	if environment == "development" {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func serve(ctx context.Context, cfg config.Config, withNATS bool) error {
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer log.Sync()

	mode, err := validator.ParseMode(cfg.BindingMode)
	if err != nil {
		return err
	}

	workerPool, err := executor.NewWorkerPool(executor.PoolConfig{
		MaxWorkers: cfg.MaxWorkers,
		JobCount:   cfg.JobCount,
		Options:    executorOptions(cfg),
		Sink:       console.NewZapSink(log.Named("sandbox")),
		Logger:     poolLogger(cfg.Environment),
	})
	if err != nil {
		return err
	}
	defer workerPool.Shutdown()

	streamer := logger.NewBetterStackLogStreamer(cfg.BetterStackSourceToken, cfg.Environment, cfg.BetterStackUploadURL, log)
	defer streamer.Flush()

	opts := []service.Option{service.WithLogger(log), service.WithStreamer(streamer)}
	completer, err := internal.NewCompleter(ctx, cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	switch {
	case err == nil:
		opts = append(opts, service.WithAssistant(internal.NewAssistant(completer)))
	case errors.Is(err, internal.ErrNoProvider):
		log.Info("Code generation disabled, no completion provider configured")
	default:
		return err
	}
	svc := service.NewCodeService(workerPool, service.Config{MaxCodeLength: cfg.MaxCodeLength, Mode: mode}, opts...)

	if withNATS {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Error("Failed to connect to NATS", zap.String("url", cfg.NatsURL), zap.Error(err))
			return err
		}
		defer nc.Drain()

		handler := natshandler.NewHandler(svc, nc, log.Named("nats"), 4*cfg.ExecutionTimeout+time.Minute)
		if _, err := handler.Subscribe(nc); err != nil {
			return err
		}
		log.Info("Subscribed to NATS subjects", zap.String("url", cfg.NatsURL))
	}

	limiter := pkg.NewRateLimiter(cfg.Ratelimit, cfg.RatelimitBurst, log.Named("ratelimit"))
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes.NewRouter(svc, limiter, log.Named("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 4*cfg.ExecutionTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
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

	log.Info("Shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func executorOptions(cfg config.Config) executor.Options {
	return executor.Options{
		Timeout:         cfg.ExecutionTimeout,
		TimerWindow:     cfg.TimerWindow,
		SelfModulePaths: cfg.SelfModulePaths,
	}
}
