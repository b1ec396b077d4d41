package gateway

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/terminal-playground/internal/middleware"
	"github.com/alovak/terminal-playground/internal/notify"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// App is the main application, it contains all the components of the gateway
// and is responsible for starting and stopping them.
type App struct {
	srv      *http.Server
	wg       *sync.WaitGroup
	Addr     string
	logger   *slog.Logger
	config   *Config
	options  []Option
	hub      *notify.Hub
	broker   io.Closer
	stop     chan struct{}
	stopOnce sync.Once
}

// NewApp creates the gateway. Options are passed to the Service, which lets
// tests force outcomes or clocks.
func NewApp(logger *slog.Logger, config *Config, options ...Option) *App {
	logger = logger.With(slog.String("app", "gateway"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:      &sync.WaitGroup{},
		logger:  logger,
		config:  config,
		options: options,
		stop:    make(chan struct{}),
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	var sinks []notify.Sink
	if a.config.AMQPURL != "" {
		sink, conn, err := notify.DialAMQP(a.config.AMQPURL, a.config.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		a.broker = conn
		sinks = append(sinks, sink)
		a.logger.Info("publishing notifications to broker", slog.String("exchange", a.config.AMQPExchange))
	}
	a.hub = notify.NewHub(a.logger, sinks...)

	options := append([]Option{WithLogger(a.logger), WithPublisher(a.hub)}, a.options...)
	gw, err := NewService(NewRepository(), a.config, options...)
	if err != nil {
		a.closeBroker()
		return fmt.Errorf("creating service: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimiddleware.Recoverer)

	api := NewAPI(gw, a.hub)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		a.closeBroker()
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil && err != http.ErrServerClosed {
			a.logger.Error("starting http server", "err", err)
		}

		a.logger.Info("http server stopped")
	}()

	if a.config.HeartbeatInterval > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.heartbeat(gw, a.config.HeartbeatInterval)
		}()
	}

	return nil
}

// heartbeat publishes a network management echo every interval.
func (a *App) heartbeat(gw *Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			gw.Heartbeat(context.Background())
		}
	}
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.stopOnce.Do(func() { close(a.stop) })

	// streaming responses only end when the hub closes
	if a.hub != nil {
		a.hub.Close()
	}

	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "err", err)
		}
	}

	a.closeBroker()

	a.wg.Wait()

	a.logger.Info("app stopped")
}

func (a *App) closeBroker() {
	if a.broker == nil {
		return
	}
	if err := a.broker.Close(); err != nil {
		a.logger.Error("closing broker connection", "err", err)
	}
	a.broker = nil
}
