package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"BTCPulse/internal/handler/api"
	"BTCPulse/internal/service/ratelimit"
	"BTCPulse/pkg/config"
	xhttp "BTCPulse/pkg/http"
	pkgkafka "BTCPulse/pkg/kafka"
	applogger "BTCPulse/pkg/logger"
)

const limiterSweepEvery = time.Minute

// App encapsulates the HTTP service lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	stream     *api.PriceStream
	limiter    *ratelimit.Limiter
	consumer   *pkgkafka.Consumer
	events     pkgkafka.MessageHandler
}

// New creates a new App. consumer, events and limiter may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	stream *api.PriceStream,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	events pkgkafka.MessageHandler,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		stream:     stream,
		limiter:    limiter,
		consumer:   consumer,
		events:     events,
	}
}

// Run starts the application and blocks until ctx is done or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Series events invalidate the response cache and nudge websocket clients.
	if a.consumer != nil && a.events != nil {
		a.consumer.RegisterHandler(a.events)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.consumer.Run(ctx); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
	}

	if a.limiter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.sweepLimiter(ctx)
		}()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("kafka", a.consumer != nil),
		applogger.Bool("ratelimit", a.limiter != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	err := a.shutdown()
	wg.Wait()
	a.log.Info("shutdown complete")
	return err
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("clients", n))
			}
		}
	}
}

// shutdown gracefully stops the HTTP server and websocket clients.
func (a *App) shutdown() error {
	if a.stream != nil {
		a.stream.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		return err
	}
	return nil
}
