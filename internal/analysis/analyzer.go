package analysis

import (
	"context"
	"encoding/json"
	"log/slog"

	"gradescan/internal/analysis/vision"
	"gradescan/internal/config"
	"gradescan/internal/logging"
	"gradescan/internal/queue"
	"gradescan/internal/services"
	"gradescan/internal/stage"
)

const stageName = "analyzer"

// Service is the analysis capability the stage depends on.
type Service interface {
	Analyze(ctx context.Context, imageRefs []string) (json.RawMessage, error)
}

// Analyzer is the stage handler that grades queued submissions.
type Analyzer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	svc    Service
}

// NewAnalyzer creates the stage handler backed by the configured vision API.
func NewAnalyzer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Analyzer {
	svc := vision.New(vision.Config{
		APIKey:         cfg.Analyzer.APIKey,
		BaseURL:        cfg.Analyzer.BaseURL,
		Model:          cfg.Analyzer.Model,
		TimeoutSeconds: cfg.Analyzer.TimeoutSeconds,
	})
	return NewAnalyzerWithService(cfg, store, logger, svc)
}

// NewAnalyzerWithService allows injecting the analysis service (used in tests).
func NewAnalyzerWithService(cfg *config.Config, store *queue.Store, logger *slog.Logger, svc Service) *Analyzer {
	return &Analyzer{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, stageName),
		svc:    svc,
	}
}

// Prepare logs the upcoming submission and clears stale error state.
func (a *Analyzer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)
	item.ErrorMessage = ""
	logger.Info("starting analysis", logging.String("image_ref", item.ImageRef))
	return nil
}

// Execute grades one submission, merging continuation pages into the call.
func (a *Analyzer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)

	if !item.IsPrimary() {
		// Continuation pages carry no independent result.
		return services.Wrap(services.ErrValidation, stageName, "execute",
			"continuation pages are graded through their primary submission", nil)
	}

	refs, err := a.submissionImages(ctx, item)
	if err != nil {
		return err
	}

	raw, err := a.svc.Analyze(ctx, refs)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, stageName, "analyze submission", "", err)
	}

	result, err := ParseResult(string(raw))
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "decode response", "", err)
	}
	if result == nil {
		return services.Wrap(services.ErrValidation, stageName, "decode response",
			"analysis service returned no content", nil)
	}
	encoded, err := result.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "encode result", "", err)
	}

	item.SetCompleted(encoded)
	logger.Info("analysis complete",
		logging.Int("pages", len(refs)),
		logging.Float64("score_percentage", result.TotalScore.Percentage),
		logging.Int("misconceptions", len(result.Misconceptions)),
	)
	return nil
}

// HealthCheck reports whether the analysis service is configured.
func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if a.svc == nil {
		return stage.Unhealthy(stageName, "analysis service not configured")
	}
	if a.cfg != nil {
		if err := a.cfg.RequireAnalyzer(); err != nil {
			return stage.Unhealthy(stageName, err.Error())
		}
	}
	return stage.Healthy(stageName)
}

// submissionImages returns the primary image followed by continuation pages
// in link order.
func (a *Analyzer) submissionImages(ctx context.Context, item *queue.Item) ([]string, error) {
	refs := []string{item.ImageRef}
	pages, err := a.store.ContinuationPages(ctx, item.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "load continuation pages", "", err)
	}
	for _, page := range pages {
		refs = append(refs, page.ImageRef)
	}
	return refs, nil
}

var _ stage.Handler = (*Analyzer)(nil)
