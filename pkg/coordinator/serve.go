package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stationcalyx/calyx/pkg/events"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/metrics"
)

// watchDebounce coalesces bursts of heartbeat writes into one pulse
const watchDebounce = 2 * time.Second

// Serve runs the pulse loop until ctx is canceled. A pulse fires
// immediately, then on every interval tick; with Watch enabled, writes
// to heartbeat lock files under outgoing/ trigger an extra pulse after a
// short debounce. Pulses never overlap: ticker and watcher both feed the
// same single-goroutine loop. With ListenAddr set, Prometheus metrics
// and health endpoints are served for the lifetime of the loop.
func (c *Coordinator) Serve(ctx context.Context) error {
	logger := log.WithComponent("serve")

	if c.cfg.Serve.ListenAddr != "" {
		server := c.startHTTP()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("http shutdown failed")
			}
		}()
	}

	sub := c.broker.Subscribe()
	defer c.broker.Unsubscribe(sub)
	go logEvents(sub)

	trigger := make(chan struct{}, 1)
	if c.cfg.Serve.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(c.layout.OutgoingDir()); err != nil {
			return fmt.Errorf("failed to watch %s: %w", c.layout.OutgoingDir(), err)
		}
		go c.watchHeartbeats(ctx, watcher, trigger)
		logger.Info().Str("dir", c.layout.OutgoingDir()).Msg("watching heartbeat files")
	}

	ticker := time.NewTicker(c.cfg.Serve.Interval())
	defer ticker.Stop()

	logger.Info().
		Dur("interval", c.cfg.Serve.Interval()).
		Bool("watch", c.cfg.Serve.Watch).
		Str("listen_addr", c.cfg.Serve.ListenAddr).
		Msg("pulse loop started")

	c.Pulse(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("pulse loop stopped")
			return nil
		case <-ticker.C:
			c.Pulse(ctx)
		case <-trigger:
			c.Pulse(ctx)
		}
	}
}

// logEvents mirrors broker traffic into the debug log so a daemon run
// leaves a trace of pulse lifecycle activity. Ends when the
// subscription channel closes.
func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for ev := range sub {
		line := logger.Debug().Str("type", ev.Type)
		if ev.IntentID != "" {
			line = line.Str("intent_id", ev.IntentID)
		}
		line.Msg(ev.Message)
	}
}

// watchHeartbeats forwards debounced lock-file changes to trigger. Only
// create and write events on *.lock files count; everything else under
// outgoing/ is coordinator output.
func (c *Coordinator) watchHeartbeats(ctx context.Context, watcher *fsnotify.Watcher, trigger chan<- struct{}) {
	logger := log.WithComponent("watch")

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".lock") {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			logger.Debug().Str("file", ev.Name).Msg("heartbeat changed")
			debounce.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watcher error")
		case <-debounce.C:
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}
}

// startHTTP serves /metrics, /health, /ready, and /live on the
// configured address in a background goroutine
func (c *Coordinator) startHTTP() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	server := &http.Server{
		Addr:         c.cfg.Serve.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger := log.WithComponent("serve")
		logger.Info().Str("addr", server.Addr).Msg("http endpoints listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	return server
}
