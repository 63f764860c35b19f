// Command oktyvd runs the oktyv integration server: it loads configuration,
// builds the tool registry and execution engine, and serves the HTTP API
// until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dwasnwk/oktyv/component"
	"github.com/dwasnwk/oktyv/config"
	"github.com/dwasnwk/oktyv/engine"
	"github.com/dwasnwk/oktyv/logger"
	"github.com/dwasnwk/oktyv/observability"
	"github.com/dwasnwk/oktyv/server"
	"github.com/dwasnwk/oktyv/tool"
	"github.com/dwasnwk/oktyv/tool/filetool"
	"github.com/dwasnwk/oktyv/tool/httptool"
	"github.com/dwasnwk/oktyv/tool/shelltool"
	"github.com/dwasnwk/oktyv/tool/vault"
	"github.com/dwasnwk/oktyv/version"
)

const serviceName = "oktyv"

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault(serviceName).Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()
	log.Info("Starting oktyv", map[string]interface{}{
		"version": version.Version,
	})

	ctx := context.Background()

	// Telemetry is optional; a disabled config leaves the no-op providers in place.
	if cfg.Telemetry.Enabled {
		tp, err := observability.InitTracer(ctx, serviceName, version.Version, cfg.Telemetry)
		if err != nil {
			log.Fatal("Failed to initialize tracer", logger.ErrorFields("init_tracer", err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	var metrics *observability.Metrics
	if cfg.Telemetry.Enabled {
		mp, err := observability.InitMeter(ctx, serviceName, version.Version, cfg.Telemetry)
		if err != nil {
			log.Fatal("Failed to initialize meter", logger.ErrorFields("init_meter", err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mp.Shutdown(shutdownCtx)
		}()

		metrics, err = observability.NewMetrics(mp.Meter(serviceName))
		if err != nil {
			log.Fatal("Failed to create metrics", logger.ErrorFields("create_metrics", err))
		}
	}

	components := component.NewRegistry()
	tools := tool.NewRegistry()

	tools.Register(httptool.New(httptool.Config{}))

	fs, err := filetool.NewFS(cfg.Files)
	if err != nil {
		log.Fatal("Failed to initialize file tools", logger.ErrorFields("init_file_tools", err))
	}
	for _, t := range fs.Tools() {
		tools.Register(t)
	}

	tools.Register(shelltool.New(cfg.Shell))

	if cfg.Vault.Key != "" {
		v, err := vault.New(cfg.Vault)
		if err != nil {
			log.Fatal("Failed to initialize vault", logger.ErrorFields("init_vault", err))
		}
		if err := components.Register(v); err != nil {
			log.Fatal("Failed to register vault", logger.ErrorFields("register_vault", err))
		}
		for _, t := range v.Tools() {
			tools.Register(t)
		}
	}

	var opts []engine.Option
	if metrics != nil {
		opts = append(opts, engine.WithMetrics(metrics))
	}
	orch := engine.New(tools, cfg.Engine, log, opts...)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(cfg.Auth)

	handler := server.NewHandler(orch, tools, components)
	handler.RegisterRoutes(srv.GinEngine())

	if err := components.Register(server.NewComponent(srv)); err != nil {
		log.Fatal("Failed to register server", logger.ErrorFields("register_server", err))
	}

	if err := components.StartAll(ctx); err != nil {
		components.StopAll(ctx)
		log.Fatal("Startup failed", logger.ErrorFields("start_components", err))
	}

	log.Info("oktyv ready", map[string]interface{}{
		"tools": tools.List(),
	})

	waitForSignal(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	components.StopAll(shutdownCtx)

	log.Info("oktyv stopped")
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal(log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	log.Info("Received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})
}
