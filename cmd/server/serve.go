package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/property-engine/api"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
)

var (
	listenOverride string
	scenarioID     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled feed refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if listenOverride != "" {
			a.cfg.Listen = listenOverride
		}
		return serve(cmd.Context(), a)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenOverride, "listen", "", "HTTP listen address, overrides listen")
	serveCmd.Flags().StringVar(&scenarioID, "scenario", "", "load a demo scenario on startup (resets the database)")
}

func serve(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger

	feed := property.NewFeed(a.calendar, logger.Named("feed"))
	a.bus.Subscribe(feed.OnChange)

	handler := api.NewHandler(a.store, a.calendar, feed, logger.Named("api"))
	handler.ICS.ProductID = a.cfg.ICSProductID

	if scenarioID != "" {
		if err := handler.LoadScenarioByID(ctx, scenarioID); err != nil {
			return err
		}
	}

	if _, err := feed.Refresh(ctx, calendar.Filters{}); err != nil {
		logger.Warn("initial feed build failed", zap.Error(err))
	}

	var scheduler *api.RefreshScheduler
	if a.cfg.RefreshEnabled() {
		var err error
		scheduler, err = api.NewRefreshScheduler(feed, a.cfg.RefreshCron, logger.Named("scheduler"))
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      api.NewRouter(handler, api.RouterOptions{AllowedOrigins: a.cfg.CORSOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("listen", a.cfg.Listen),
			zap.String("db", a.cfg.DBPath),
			zap.String("timezone", a.cfg.Timezone),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
	case <-sigCtx.Done():
	}

	logger.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
