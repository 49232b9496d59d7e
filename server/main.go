package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shmup-server/sim"
)

func main() {
	addr := flag.String("addr", envOr("ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("DB_PATH", "shmup.db"), "SQLite database path (empty disables persistence)")
	configPath := flag.String("config", envOr("SIM_CONFIG", ""), "Simulation tuning YAML (default: built-in)")
	levelsDir := flag.String("levels", envOr("LEVELS_DIR", ""), "Directory of level YAML files")
	clientDir := flag.String("client", envOr("CLIENT_DIR", ""), "Static web client directory")
	advisorURL := flag.String("advisor", envOr("ADVISOR_URL", ""), "Boss advisory service URL")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(log)

	if err := run(*addr, *dbPath, *configPath, *levelsDir, *clientDir, *advisorURL, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(addr, dbPath, configPath, levelsDir, clientDir, advisorURL string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := sim.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(configPath); err != nil {
			return err
		}
	}
	levels, err := LoadLevels(levelsDir)
	if err != nil {
		return err
	}

	var db *DB
	if dbPath != "" {
		if db, err = OpenDB(dbPath); err != nil {
			return err
		}
		defer db.Close()
	}
	analytics := NewAnalytics(db)

	deps := SessionDeps{
		Sim:       cfg,
		Match:     DefaultMatchConfig(),
		Levels:    levels,
		DB:        db,
		Analytics: analytics,
		Log:       log,
	}
	if a := NewHTTPAdvisor(advisorURL); a != nil {
		deps.Advisor = a
		log.Info("boss advisory enabled", "url", advisorURL)
	}
	hub := NewHub(deps)

	srv := &http.Server{
		Addr:              addr,
		Handler:           SetupRoutes(hub, clientDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return analytics.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server listening", "addr", addr, "levels", len(hub.sessions.LevelNames()), "persistence", db != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
