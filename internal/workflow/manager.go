// Package workflow drives the two sequential processing passes over the
// queue: identification, then analysis. Each pass is single-flight, walks a
// snapshot of matching items in queue order, and honors cancellation at item
// boundaries only; an in-flight service call is allowed to finish.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gradescan/internal/analysis"
	"gradescan/internal/config"
	"gradescan/internal/identification"
	"gradescan/internal/logging"
	"gradescan/internal/queue"
	"gradescan/internal/services"
	"gradescan/internal/stage"
)

// PassReport summarizes one processing pass. Failures are per item and never
// abort the rest of the pass.
type PassReport struct {
	Processed int
	Assigned  int
	Completed int
	Failed    int
	FailedIDs []int64
}

// RunReport combines both passes of a full run.
type RunReport struct {
	Identification PassReport
	Analysis       PassReport
}

// Manager owns pass execution and stale-item recovery.
type Manager struct {
	store      *queue.Store
	cfg        *config.Config
	logger     *slog.Logger
	identifier stage.Handler
	analyzer   stage.Handler

	heartbeat *heartbeatMonitor
}

// NewManager wires the production stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithHandlers(cfg, store, logger,
		identification.NewIdentifier(cfg, store, logger),
		analysis.NewAnalyzer(cfg, store, logger),
	)
}

// NewManagerWithHandlers allows injecting stage handlers (used in tests).
func NewManagerWithHandlers(cfg *config.Config, store *queue.Store, logger *slog.Logger, identifier, analyzer stage.Handler) *Manager {
	m := &Manager{
		store:      store,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		identifier: identifier,
		analyzer:   analyzer,
	}
	m.heartbeat = newHeartbeatMonitor(store, m.logger, cfg.Workflow.HeartbeatIntervalDuration())
	return m
}

// Run executes identification to completion, then analysis. The two passes
// never overlap.
func (m *Manager) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	ident, err := m.RunIdentification(ctx)
	report.Identification = ident
	if err != nil {
		return report, err
	}
	analysisReport, err := m.RunAnalysis(ctx)
	report.Analysis = analysisReport
	return report, err
}

// RunIdentification walks pending primary items in queue order and attempts
// automatic student matching for each. Items return to pending whatever the
// outcome; identification never completes or fails an item. Items that
// already carry an assignment are left alone so manual assignments survive a
// re-run.
func (m *Manager) RunIdentification(ctx context.Context) (PassReport, error) {
	ctx = services.WithStage(ctx, "identification")
	ctx = services.WithRequestID(ctx, uuid.NewString())
	var report PassReport

	if err := m.reclaimStale(ctx); err != nil {
		return report, err
	}
	items, err := m.store.ListPrimary(ctx, queue.StatusPending)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "workflow", "list pending items", "", err)
	}

	stop := m.heartbeat.start(ctx)
	defer stop()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if item.IsAssigned() {
			continue
		}
		report.Processed++
		if ok := m.identifyOne(ctx, item); ok {
			if item.AutoAssigned {
				report.Assigned++
			}
		} else {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, item.ID)
		}
	}
	return report, nil
}

// identifyOne runs one item through the identification handler. On service
// failure the item is returned to pending with no identification data.
func (m *Manager) identifyOne(ctx context.Context, item *queue.Item) bool {
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, m.logger)

	if err := m.claim(ctx, item, queue.StatusIdentifying); err != nil {
		logger.Error("claim failed", logging.Error(err))
		return false
	}
	defer m.heartbeat.clear()

	err := m.runHandler(ctx, m.identifier, item)
	item.Status = queue.StatusPending
	item.LastHeartbeat = nil
	if err != nil {
		logger.Error("identification failed", logging.Error(err))
		item.IdentificationJSON = ""
	}
	// The release write must land even when a stop was requested mid-item;
	// cancellation takes effect at the item boundary.
	if updateErr := m.store.Update(context.WithoutCancel(ctx), item); updateErr != nil {
		logger.Error("release failed", logging.Error(updateErr))
		return false
	}
	return err == nil
}

// RunAnalysis walks pending primary items in queue order and grades each one.
// Continuation pages are never analyzed on their own.
func (m *Manager) RunAnalysis(ctx context.Context) (PassReport, error) {
	ctx = services.WithStage(ctx, "analysis")
	ctx = services.WithRequestID(ctx, uuid.NewString())
	var report PassReport

	if err := m.reclaimStale(ctx); err != nil {
		return report, err
	}
	items, err := m.store.ListPrimary(ctx, queue.StatusPending)
	if err != nil {
		return report, services.Wrap(services.ErrTransient, "workflow", "list pending items", "", err)
	}

	stop := m.heartbeat.start(ctx)
	defer stop()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		if ok := m.analyzeOne(ctx, item); ok {
			report.Completed++
		} else {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, item.ID)
		}
	}
	return report, nil
}

// analyzeOne runs one item through the analysis handler. Handler failure
// marks the item failed with the error recorded on it; the pass continues.
func (m *Manager) analyzeOne(ctx context.Context, item *queue.Item) bool {
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, m.logger)

	if err := m.claim(ctx, item, queue.StatusAnalyzing); err != nil {
		logger.Error("claim failed", logging.Error(err))
		return false
	}
	defer m.heartbeat.clear()

	if err := m.runHandler(ctx, m.analyzer, item); err != nil {
		item.SetFailed(err.Error())
	}
	item.LastHeartbeat = nil
	if updateErr := m.store.Update(context.WithoutCancel(ctx), item); updateErr != nil {
		logger.Error("release failed", logging.Error(updateErr))
		return false
	}
	return item.Status == queue.StatusCompleted
}

func (m *Manager) runHandler(ctx context.Context, handler stage.Handler, item *queue.Item) error {
	if err := handler.Prepare(ctx, item); err != nil {
		return err
	}
	return handler.Execute(ctx, item)
}

// claim moves an item into its processing status and registers it with the
// heartbeat monitor.
func (m *Manager) claim(ctx context.Context, item *queue.Item, status queue.Status) error {
	now := time.Now().UTC()
	item.Status = status
	item.LastHeartbeat = &now
	if err := m.store.Update(ctx, item); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "claim item", "", err)
	}
	m.heartbeat.track(item.ID)
	return nil
}

// reclaimStale returns items stuck in a processing status from a crashed run
// back to pending before a new pass begins.
func (m *Manager) reclaimStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-m.cfg.Workflow.HeartbeatTimeoutDuration())
	reclaimed, err := m.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "reclaim stale items", "", err)
	}
	if reclaimed > 0 {
		m.logger.Warn("reclaimed stale processing items", logging.Int64("count", reclaimed))
	}
	return nil
}

// HealthCheck reports the health of both stage handlers.
func (m *Manager) HealthCheck(ctx context.Context) []stage.Health {
	return []stage.Health{
		m.identifier.HealthCheck(ctx),
		m.analyzer.HealthCheck(ctx),
	}
}
