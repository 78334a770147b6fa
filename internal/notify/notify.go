// Package notify pushes run-lifecycle events to an external socket.io
// endpoint. Notification is best-effort: failures are logged by the caller
// and never affect the run outcome.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/store"
)

// Notifier emits run summaries over socket.io.
type Notifier struct {
	cfg *profile.Notify
}

// New builds a Notifier from the profile's notify block.
func New(cfg *profile.Notify) *Notifier {
	return &Notifier{cfg: cfg}
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	ack any
	err error
}

// RunFinished connects, emits the configured event with the run summary,
// and waits for the ack event until the configured timeout.
func (n *Notifier) RunFinished(ctx context.Context, run *store.Run) error {
	logger := ctxlog.FromContext(ctx).With("notifier", "socketio", "url", n.cfg.URL, "emitEvent", n.cfg.EmitEvent)
	logger.Debug("Notifier started")
	defer logger.Debug("Notifier finished")

	var isConnected atomic.Bool

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	parsedURL, err := url.Parse(n.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse notify URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if n.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(n.cfg.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	payload := map[string]any{
		"run_id":           run.ID,
		"source":           run.Source,
		"status":           run.Status,
		"counts":           run.Counts,
		"exported_sprites": run.ExportedSprites,
		"skipped_textures": run.SkippedTextures,
		"started_at":       run.StartedAt,
		"finished_at":      run.FinishedAt,
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected to notify endpoint", "namespace", n.cfg.Namespace, "sid", io.Id())
		io.Emit(n.cfg.EmitEvent, payload)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		done <- opResult{err: errs[0].(error)}
	})

	io.On(types.EventName(n.cfg.AckEvent), func(data ...any) {
		var ack any
		if len(data) > 0 {
			ack = data[0]
		}
		done <- opResult{ack: ack}
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", n.cfg.AckEvent)
		}
		return fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		logger.Info("Run notification acknowledged", "runID", run.ID)
		return nil
	}
}
