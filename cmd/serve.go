package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hr-toolkit/internal/api"
	"hr-toolkit/internal/auth"
	"hr-toolkit/internal/config"
	"hr-toolkit/internal/discovery"
	"hr-toolkit/internal/manager"
	"hr-toolkit/internal/messaging"
	"hr-toolkit/internal/metrics"
	"hr-toolkit/internal/migrations"
	"hr-toolkit/internal/seed"
	"hr-toolkit/internal/smoke"
)

const (
	queueDepthInterval = 10 * time.Second
	shutdownTimeout    = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maintenance API and job workers",
	Long: `Run the HTTP API. When a RabbitMQ URL is configured, jobs posted to
/jobs are queued and processed by a pool of workers.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	metrics.Init()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	if a.cfg.Auth.JWTSecret == "" {
		return errors.New(config.EnvJWTSecret + " is required to serve the API")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := discovery.NewProber(a.store, log)
	tester := smoke.NewTester(a.store, log)
	var (
		reports api.ReportStore
		saver   manager.ReportSaver
	)
	if a.db != nil {
		if err := migrations.Up(ctx, a.db.DB); err != nil {
			return err
		}
		prober.WithSchemaSaver(a.db)
		reports, saver = a.db, a.db
	}

	var publisher manager.Publisher
	var rabbit *messaging.RabbitClient
	if a.cfg.RabbitMQ.URL != "" {
		rabbit, err = messaging.NewRabbitClient(a.cfg.RabbitMQ.URL, log)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		if err := rabbit.DeclareQueue(a.cfg.RabbitMQ.Queue); err != nil {
			return err
		}
		publisher = rabbit
		log.Info("RabbitMQ connected", "queue", a.cfg.RabbitMQ.Queue)
	} else {
		log.Warn("RabbitMQ not configured, job queue disabled")
	}

	jobs := manager.NewJobManager(publisher, a.cfg.RabbitMQ.Queue, prober, tester, saver, log)
	if rabbit != nil {
		if err := jobs.StartWorkers(rabbit.Connection(), a.cfg.Workers); err != nil {
			return err
		}
		go watchQueueDepth(ctx, rabbit, a.cfg.RabbitMQ.Queue)
	}

	handler := api.NewAPI(a.store, reports, prober, tester, seed.NewLoader(a.store, log), jobs, auth.NewTokens(a.cfg.Auth.JWTSecret, auth.DefaultTTL), log)
	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			jobs.Shutdown()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown error", "error", err)
	}
	jobs.Shutdown()

	log.Info("graceful shutdown complete")
	return nil
}

func watchQueueDepth(ctx context.Context, rabbit *messaging.RabbitClient, queue string) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rabbit.UpdateQueueDepth(queue)
			rabbit.UpdateQueueDepth(messaging.DeadLetterQueue(queue))
		}
	}
}
