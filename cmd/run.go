package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"filecms/core"

	"emperror.dev/errors"
)

func initializeFsWatcher(ctx *core.Context) error {
	watcher, err := core.NewFileWatcher(ctx.FileManager)
	if err != nil {
		return errors.WrapIf(err, "failed to create file watcher")
	}

	ctx.FileWatcher = watcher

	// Start watching content/, layout/ and filer/
	if err := watcher.Start(ctx.Config.SiteDirectory); err != nil {
		return errors.WrapIf(err, "failed to start file watcher")
	}

	return nil
}

// NewRouter sets up the middleware chain and the routes of all processed
// files. With gtm set the tag manager may load its scripts.
func NewRouter(ctx *core.Context, gtm bool) (*core.RouterManager, *core.RateLimiter, error) {
	rm := core.NewRouterManager()
	rm.AddMiddleware(
		core.GlobalMetrics.MetricsMiddleware(),
		core.SecurityHeadersMiddleware(gtm),
	)

	var limiter *core.RateLimiter
	if ctx.Config.Server.RateLimit > 0 {
		limiter = core.NewRateLimiter(ctx.Config.Server.RateLimit)
		rm.AddMiddleware(limiter.Middleware())
	}

	if err := rm.InitializeRouter(ctx); err != nil {
		if limiter != nil {
			limiter.Stop()
		}
		return nil, nil, err
	}
	return rm, limiter, nil
}

func Run(ctx *core.Context, gtm bool) {
	// The FsWatcher applies changes below the site directory while the
	// server runs
	if err := initializeFsWatcher(ctx); err != nil {
		core.Fatal("failed to initialize file watcher: %v", err)
	}
	defer ctx.FileWatcher.Stop()

	rm, limiter, err := NewRouter(ctx, gtm)
	if err != nil {
		core.Fatal("failed to set up routes: %v", err)
	}
	if limiter != nil {
		defer limiter.Stop()
	}

	ctx.FileWatcher.SetRouter(rm)

	listener, err := core.RegisterFileWatcherListener(ctx.FileWatcher)
	if err != nil {
		core.Fatal("failed to register file watcher listener: %v", err)
	}
	defer listener.Stop()

	core.RegisterDefaultHealthChecks(ctx)

	monitoringCtx, cancelMonitoring := context.WithCancel(context.Background())
	defer cancelMonitoring()

	go core.GlobalMetrics.StartMetricsCollector(monitoringCtx)
	go core.GlobalHealthChecker.StartPeriodicChecks(monitoringCtx, 60*time.Second)

	// the router manager swaps its engine on rebuilds, so it is the handler
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(ctx.Config.Server.Port),
		Handler:      rm,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		core.Info("starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.Fatal("failed to start server: %v", err)
		}
	}()

	<-quit
	core.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		core.Error("server forced to shutdown: %v", err)
		return
	}

	core.Info("server exited")
}
