package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"

	"platecheck/lib/captcha"
	"platecheck/lib/osutil"
	"platecheck/lib/scrapers/csgt"
	"platecheck/lib/telemetry"
	"platecheck/services/lookup"
)

func fatalerr(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	config, err := loadConfig(*configPath)
	if err != nil {
		fatalerr("failed to read config", err)
	}

	lock := flock.New(config.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		fatalerr("failed to acquire instance lock", err)
	}
	if !locked {
		slog.Error("another platecheckd instance holds the lock", "path", config.LockPath)
		os.Exit(1)
	}
	defer lock.Unlock()

	ctx := osutil.SignalContext()

	tel, err := telemetry.Setup(ctx, "cmd/platecheckd", config.Telemetry)
	if err != nil {
		fatalerr("failed to set up telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()
	telemetry.InstrumentPerfStats(ctx)

	slog.Info("opening job database...", "path", config.DatabasePath)
	store, err := lookup.OpenSqlite(config.DatabasePath)
	if err != nil {
		fatalerr("failed to open job database", err)
	}
	defer store.Close()

	solver, err := captcha.NewSolverForMethod(captcha.MethodOptions{
		Method:    config.Solver.Method,
		PromptDir: config.Solver.PromptDir,
		Endpoint:  config.Solver.Endpoint,
		APIKey:    config.Solver.APIKey,
		Timeout:   config.Solver.Timeout,
	})
	if err != nil {
		fatalerr("failed to construct solver", err)
	}

	runner := lookup.NewWorkflowRunner(csgt.ClientOptions{
		BaseURL:          config.Csgt.BaseURL,
		RequestDelay:     config.Csgt.RequestDelay,
		Timeout:          config.Csgt.Timeout,
		UserAgent:        config.Csgt.UserAgent,
		CloudflareBypass: config.Csgt.CloudflareBypass,
		DebugDumpDir:     config.Csgt.DebugDumpDir,
	}, solver, config.ImageDir)

	service := lookup.NewService(lookup.ServiceOptions{
		Store:      store,
		Runner:     runner,
		JobTimeout: config.JobTimeout,
	})
	defer service.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	lookup.NewHandler(service).Register(router)

	server := &http.Server{
		Addr:    config.Listen,
		Handler: router,
	}
	go func() {
		slog.Info("listening...", "addr", config.Listen, "solver", config.Solver.Method)
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			fatalerr("failed to listen", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "err", err)
	}
}
