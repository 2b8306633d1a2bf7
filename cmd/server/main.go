package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/logging"
	"github.com/meetmesh/meetmesh/internal/registry"
	"github.com/meetmesh/meetmesh/internal/registry/memory"
	"github.com/meetmesh/meetmesh/internal/registry/redis"
	"github.com/meetmesh/meetmesh/internal/server"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

// newRegistry selects the registry implementation: Redis when enabled,
// process-local memory otherwise.
func newRegistry(ctx context.Context, srvCfg config.ServerConfig) (registry.Registry, func(), error) {
	redisCfg := config.GetRedisConfig()
	if redisCfg.Enabled {
		reg, err := redis.NewRegistry(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		return reg, func() {
			if err := reg.Close(); err != nil {
				slog.Error("error closing redis connection", "error", err)
			}
		}, nil
	}

	reg := memory.NewRegistry(srvCfg.MeetingTTL)
	reg.StartReaper(ctx, srvCfg.ReapInterval)
	return reg, func() {}, nil
}

func main() {
	logging.Init()
	config.LoadDotEnv()

	srvCfg := config.GetServerConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, closeRegistry, err := newRegistry(ctx, srvCfg)
	if err != nil {
		slog.Error("failed to initialize registry", "error", err)
		os.Exit(1)
	}
	defer closeRegistry()

	hub := signaling.NewHub(reg)

	monitor := server.NewMonitor()
	hub.SetEventSink(monitor.Sink)

	// Start the hub's main event loop.
	go hub.Run()

	mux := server.SetupRoutes(hub, reg, monitor)

	srv := &http.Server{
		Addr:         ":" + srvCfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE and websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting signaling server", "port", srvCfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case <-shutdown:
		slog.Info("shutting down server")

		monitor.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			slog.Error("error shutting down server", "error", err)
			os.Exit(1)
		}

		slog.Info("server gracefully stopped")
	}
}
