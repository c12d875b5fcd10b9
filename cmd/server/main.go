// Package main provides the broker binary: lobby registry, WebSocket router,
// idle reaper, single-player director, and the HTTP surface around them.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/goatshell/server/internal/config"
	"github.com/goatshell/server/internal/game/director"
	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/game/params"
	"github.com/goatshell/server/internal/interpreter"
	"github.com/goatshell/server/internal/observability"
	"github.com/goatshell/server/internal/server"
	"github.com/goatshell/server/internal/session"
	"github.com/goatshell/server/internal/transport/httpapi"
	"github.com/goatshell/server/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting broker",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load the parameter catalog; fall back to the built-in set when the
	// configured file is absent.
	catalog := params.Default()
	if cfg.Interpreter.ParametersFile != "" {
		if _, statErr := os.Stat(cfg.Interpreter.ParametersFile); statErr == nil {
			catalog, err = params.LoadFile(cfg.Interpreter.ParametersFile)
			if err != nil {
				logger.Fatal("loading parameter catalog", zap.Error(err))
			}
			logger.Info("parameter catalog loaded",
				zap.String("file", cfg.Interpreter.ParametersFile),
				zap.Int("parameters", len(catalog.All())),
			)
		} else {
			logger.Warn("parameters file not found, using built-in catalog",
				zap.String("file", cfg.Interpreter.ParametersFile),
			)
		}
	}

	// Choose the interpreter: remote when an API key is configured, local
	// fallback otherwise.
	var interp interpreter.Interpreter
	if cfg.Interpreter.APIKey != "" {
		interp = interpreter.NewAnthropicClient(cfg.Interpreter, catalog, logger)
		logger.Info("command interpreter enabled",
			zap.String("model", cfg.Interpreter.Model),
		)
	} else {
		interp = interpreter.NewFallback(catalog)
		logger.Warn("no interpreter API key configured, using local fallback")
	}

	registry := lobby.NewRegistry(cfg.Lobby, logger)
	broadcaster := lobby.NewBroadcaster(registry, logger)
	reaper := lobby.NewIdleReaper(cfg.Lobby, registry, broadcaster, logger)
	minter := session.NewMinter(cfg.Session.TokenTTL)
	dir := director.NewDirector(cfg.Director, interp, broadcaster, logger)

	mux := http.NewServeMux()
	httpapi.NewAPI(registry, interp, catalog, logger).Register(mux)
	ws.NewRouter(registry, broadcaster, dir, interp, minter, logger).Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", cfg.Server.Addr()),
			)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		},
	})

	lifecycle.Add("reaper", reaper)

	lifecycle.Add("director", &server.FuncService{
		StartFn: func() error {
			// Director loops are started per connection; this service only
			// ties their shutdown into the lifecycle.
			select {}
		},
		StopFn: dir.Shutdown,
	})

	logger.Info("broker initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("broker error", zap.Error(err))
	}
}
