package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/storesync/internal/config"
	syncerr "github.com/vango-dev/storesync/internal/errors"
	"github.com/vango-dev/storesync/pkg/bridge"
	"github.com/vango-dev/storesync/pkg/middleware"
	"github.com/vango-dev/storesync/pkg/storage"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the storage areas and the notification hub",
		Long: `Serve the configured storage areas over HTTP.

Routes:
  /ws                          WebSocket hub relaying change notifications
  /metrics                     Prometheus metrics
  GET    /items/{scope}        List keys
  GET    /items/{scope}/{key}  Read a record
  PUT    /items/{scope}/{key}  Write a record (body: JSON text)
  DELETE /items/{scope}/{key}  Remove a record

PUT and DELETE are broadcast to every hub client.

Examples:
  storesync serve
  storesync serve --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

// server is everything serve runs.
type server struct {
	handler http.Handler
	hub     *bridge.Hub
}

func newServer(areas map[storage.Scope]storage.Area, logger *slog.Logger) *server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := bridge.NewHub(bridge.HubConfig{
		Logger: logger,
		// Clients are other processes, not browsers.
		CheckOrigin: func(*http.Request) bool { return true },
	})
	api := &itemsAPI{
		areas:  areas,
		hub:    hub,
		origin: "storesync-server-" + uuid.NewString(),
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(
		chimw.Recoverer,
		middleware.OpenTelemetry(middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		})),
		middleware.Prometheus(middleware.WithRegistry(reg)),
	)
	r.Handle("/ws", hub)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	api.routes(r)

	return &server{handler: r, hub: hub}
}

func (a *app) serve(ctx context.Context) error {
	persistent, err := config.OpenArea(ctx, a.cfg.Area)
	if err != nil {
		return err
	}
	defer persistent.Close()

	session, err := config.OpenArea(ctx, a.cfg.Session)
	if err != nil {
		return err
	}
	defer session.Close()

	s := newServer(map[storage.Scope]storage.Area{
		storage.Persistent: persistent,
		storage.Session:    session,
	}, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving", "addr", srv.Addr,
			"area", a.cfg.Area.Driver, "session", a.cfg.Session.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		// Hijacked WebSocket connections are not tracked by Shutdown.
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return syncerr.New("S223").WithDetail("listen " + srv.Addr).Wrap(err)
	}
	return nil
}
