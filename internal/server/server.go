package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const readHeaderTimeout = 10 * time.Second

type RouteRegistrar interface {
	RegisterRoutes(router Router)
}

// App serves the local health, metrics and debug endpoints.
type App struct {
	router     Router
	registrars []RouteRegistrar
	server     *http.Server
}

func NewApp(addr string, router Router, registrars ...RouteRegistrar) *App {
	return &App{
		router:     router,
		registrars: registrars,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

func (a *App) SetupRoutes() {
	for _, registrar := range a.registrars {
		registrar.RegisterRoutes(a.router)
	}
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) Addr() string {
	return a.server.Addr
}

// Start listens until Shutdown is called. A clean shutdown returns nil.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ln)
}

func (a *App) Serve(ln net.Listener) error {
	if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Options select the endpoints served by New.
type Options struct {
	Addr     string
	Health   HealthSource
	Gatherer prometheus.Gatherer
	Pprof    bool
	Log      *zerolog.Logger
}

// New builds an App with /health, /metrics and optionally /debug/pprof
// routes, with request logging applied.
func New(opts Options) *App {
	router := NewDefaultRouter("")
	if opts.Log != nil {
		router.Use(LoggingMiddleware(opts.Log))
	}

	registrars := []RouteRegistrar{
		NewHealthRegistrar(opts.Health),
		&MetricsRegistrar{Gatherer: opts.Gatherer},
	}
	if opts.Pprof {
		registrars = append(registrars, &DebugRegistrar{})
	}

	app := NewApp(opts.Addr, router, registrars...)
	app.SetupRoutes()
	return app
}
