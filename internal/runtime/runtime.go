package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Najmul343/talk2write/internal/bus"
	"github.com/Najmul343/talk2write/internal/capture"
	"github.com/Najmul343/talk2write/internal/chat"
	"github.com/Najmul343/talk2write/internal/config"
	"github.com/Najmul343/talk2write/internal/language"
	"github.com/Najmul343/talk2write/internal/natsserver"
	"github.com/Najmul343/talk2write/internal/notebook"
	"github.com/Najmul343/talk2write/internal/session"
	"github.com/Najmul343/talk2write/internal/share"
)

// Runtime wires the daemon: telemetry, bus, notebook store, language client,
// capture device, recording controller, chat session, and the HTTP API.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	embedded      *natsserver.EmbeddedServer
	busClient     *bus.Client
	store         *notebook.Store
	client        language.Client
	controller    *session.Controller
	chatSession   *chat.Session
	sharer        *share.Sharer
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Embedded {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded
	}

	busCfg := r.cfg.Bus
	if r.embedded != nil {
		// Connect to the server this process just started, wherever it
		// actually bound, rather than whatever servers the config lists.
		busCfg.Servers = []string{r.embedded.ClientURL()}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		if r.cfg.Capture.Mode == "remote" {
			r.teardown(ctx)
			return fmt.Errorf("remote capture needs the bus: %w", err)
		}
		r.logger.Warn("bus unavailable, continuing without event publication",
			slog.String("error", err.Error()))
	}
	r.busClient = busClient

	store, err := notebook.Open(ctx, r.cfg.Notebook, r.logger)
	if err != nil {
		r.teardown(ctx)
		return fmt.Errorf("failed to open notebook: %w", err)
	}
	r.store = store

	client, err := language.New(r.cfg.Language)
	if err != nil {
		r.teardown(ctx)
		return fmt.Errorf("failed to build language client: %w", err)
	}
	r.client = client

	device, err := r.buildDevice()
	if err != nil {
		r.teardown(ctx)
		return err
	}

	r.controller = session.NewController(session.Options{
		Device:         device,
		Client:         client,
		Store:          store,
		Bus:            busClient,
		Logger:         r.logger,
		SettleDelay:    time.Duration(r.cfg.Capture.SettleDelayMS) * time.Millisecond,
		MaxUploadBytes: r.cfg.Upload.MaxBytes,
	})
	r.chatSession = chat.NewSession(store, client, r.logger)
	r.sharer = &share.Sharer{Command: r.cfg.Share.Command, Logger: r.logger}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("capture_mode", r.cfg.Capture.Mode),
		slog.String("language_mode", r.cfg.Language.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()
	r.teardown(shutdownCtx)

	return nil
}

func (r *Runtime) buildDevice() (capture.Device, error) {
	chunkDur := time.Duration(r.cfg.Capture.ChunkDurationMS) * time.Millisecond
	switch r.cfg.Capture.Mode {
	case "mock":
		return &capture.MockDevice{
			Preferred:     r.cfg.Capture.Formats,
			SampleRate:    r.cfg.Capture.SampleRate,
			Channels:      r.cfg.Capture.Channels,
			ChunkInterval: chunkDur,
		}, nil
	case "portaudio":
		return &capture.PortAudioDevice{
			Preferred:     r.cfg.Capture.Formats,
			SampleRate:    r.cfg.Capture.SampleRate,
			Channels:      r.cfg.Capture.Channels,
			ChunkDuration: chunkDur,
		}, nil
	case "remote":
		return &capture.RemoteDevice{
			Bus:        r.busClient,
			Preferred:  r.cfg.Capture.Formats,
			SampleRate: r.cfg.Capture.SampleRate,
			Channels:   r.cfg.Capture.Channels,
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", r.cfg.Capture.Mode)
	}
}

// teardown releases resources in reverse order of acquisition. Releasing a
// still-open capture handle here is mandatory: the hardware must not leak.
func (r *Runtime) teardown(ctx context.Context) {
	if r.controller != nil {
		r.controller.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("notebook close error", slog.String("error", err.Error()))
		}
	}
	if r.busClient != nil {
		r.busClient.Close()
	}
	r.embedded.Shutdown()
	if r.tracerClose != nil {
		if err := r.tracerClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}
