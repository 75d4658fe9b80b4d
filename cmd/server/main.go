package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/app"
	"github.com/shrimpsizemoose/labsync/internal/handlers"
)

func main() {
	var (
		configPath      = kingpin.Flag("config", "Path to config file").Short('c').Default("config.toml").Envar("LABSYNC_CONFIG").String()
		shutdownTimeout = kingpin.Flag("shutdown-timeout", "Graceful shutdown timeout").Default("10s").Envar("LABSYNC_SHUTDOWN_TIMEOUT").Duration()
		expireAt        = kingpin.Flag("expire-cron", "When to revoke expired temporary access").Default("5 0 * * *").Envar("LABSYNC_EXPIRE_CRON").String()
	)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	loc, err := service.Config.Location()
	if err != nil {
		logger.Error.Fatalf("Failed to load timezone: %v", err)
	}

	scheduler := gocron.NewScheduler(loc)
	_, err = scheduler.Cron(*expireAt).Do(func() {
		n, err := service.ExpireTemporaryAccess()
		if err != nil {
			logger.Error.Printf("Failed to expire temporary access: %v", err)
			return
		}
		logger.Info.Printf("Revoked %d expired temporary grants", n)
	})
	if err != nil {
		logger.Error.Fatalf("Failed to schedule access expiry: %v", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	mux := http.NewServeMux()
	handlers.Register(mux, service)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              service.Config.Server.Port,
		Handler:           handlers.Instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("Starting labsync server on %s", srv.Addr)
		for _, lab := range service.Config.Labs {
			logger.Debug.Printf("  lab %s: capacity %d, restricted %v", lab.Name, lab.Capacity, lab.Restricted)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		logger.Error.Fatalf("Labsync server failed: %v", err)
	case <-quit:
	}

	logger.Info.Println("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error.Printf("Server forced to shutdown: %v", err)
	}
}
