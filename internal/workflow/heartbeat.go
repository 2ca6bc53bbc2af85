package workflow

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"gradescan/internal/logging"
	"gradescan/internal/queue"
)

// heartbeatMonitor periodically refreshes the heartbeat timestamp of the
// item currently being processed so a crashed run can be told apart from a
// slow external call.
type heartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	current  atomic.Int64
}

func newHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval time.Duration) *heartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &heartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
	}
}

// track registers the item whose heartbeat should be refreshed.
func (h *heartbeatMonitor) track(id int64) {
	h.current.Store(id)
}

// clear stops refreshing the current item.
func (h *heartbeatMonitor) clear() {
	h.current.Store(0)
}

// start launches the refresh loop for the duration of a pass. The returned
// stop function must be called when the pass ends.
func (h *heartbeatMonitor) start(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				h.beat(ctx)
			}
		}
	}()
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			close(done)
		}
	}
}

func (h *heartbeatMonitor) beat(ctx context.Context) {
	id := h.current.Load()
	if id == 0 {
		return
	}
	if err := h.store.UpdateHeartbeat(ctx, id); err != nil {
		h.logger.Warn("heartbeat update failed",
			logging.Int64(logging.FieldItemID, id),
			logging.Error(err))
	}
}
