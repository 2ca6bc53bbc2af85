// Package identification implements the pass that matches scanned pages to
// roster students before analysis runs.
package identification

import (
	"context"
	"errors"
	"log/slog"

	"gradescan/internal/config"
	"gradescan/internal/identification/roster"
	"gradescan/internal/identification/vision"
	"gradescan/internal/logging"
	"gradescan/internal/queue"
	"gradescan/internal/services"
	"gradescan/internal/stage"
)

const stageName = "identifier"

// Service reads the student name and printed code off a page image.
type Service interface {
	Identify(ctx context.Context, imageRef string) (queue.Identification, error)
}

// RosterSource supplies the students auto-assignment may resolve to.
type RosterSource interface {
	Students(ctx context.Context) ([]roster.Student, error)
}

// Identifier is the stage handler that auto-assigns students to queue items.
type Identifier struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	svc    Service
	roster RosterSource

	// index is built once per pass; the stage runs single-flight so no
	// locking is needed.
	index *rosterIndex
}

// NewIdentifier creates the stage handler backed by the configured vision API
// and roster service.
func NewIdentifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Identifier {
	svc := vision.New(vision.Config{
		APIKey:         cfg.Analyzer.APIKey,
		BaseURL:        cfg.Analyzer.BaseURL,
		Model:          cfg.Analyzer.Model,
		TimeoutSeconds: cfg.Analyzer.TimeoutSeconds,
	})
	source := roster.New(roster.Config{
		BaseURL:        cfg.Roster.BaseURL,
		APIKey:         cfg.Roster.APIKey,
		TimeoutSeconds: cfg.Roster.TimeoutSeconds,
	})
	return NewIdentifierWithDependencies(cfg, store, logger, svc, source)
}

// NewIdentifierWithDependencies allows injecting the identification service
// and roster source (used in tests).
func NewIdentifierWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, svc Service, source RosterSource) *Identifier {
	return &Identifier{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, stageName),
		svc:    svc,
		roster: source,
	}
}

// Prepare logs the upcoming page.
func (i *Identifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	logger.Info("identifying page", logging.String("image_ref", item.ImageRef))
	return nil
}

// Execute reads one page and, when the observation resolves to an unclaimed
// roster student, assigns that student to the item. A resolved student who is
// already held by another primary item is left alone; the earlier claim wins.
func (i *Identifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)

	ident, err := i.svc.Identify(ctx, item.ImageRef)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, stageName, "identify page", "", err)
	}

	idx, err := i.loadIndex(ctx)
	if err != nil {
		return err
	}

	student := i.resolve(&ident, idx)
	if err := item.SetIdentification(ident); err != nil {
		return services.Wrap(services.ErrValidation, stageName, "record identification", "", err)
	}

	if student == nil {
		logger.Info("no automatic match",
			logging.String("raw_name", ident.RawHandwrittenName),
			logging.String("confidence", string(ident.Confidence)))
		return nil
	}

	assignErr := i.store.AssignStudent(ctx, item.ID, queue.Assignment{
		StudentID:   student.ID,
		StudentName: student.Name,
		Auto:        true,
	})
	switch {
	case errors.Is(assignErr, queue.ErrDuplicateAssignment):
		logger.Info("student already claimed by an earlier item",
			logging.String(logging.FieldStudentID, student.ID))
		return nil
	case assignErr != nil:
		return services.Wrap(services.ErrTransient, stageName, "assign student", "", assignErr)
	}

	item.StudentID = student.ID
	item.StudentName = student.Name
	item.AutoAssigned = true
	logger.Info("student assigned",
		logging.String(logging.FieldStudentID, student.ID),
		logging.Bool("matched_via_code", ident.MatchedViaCode))
	return nil
}

// HealthCheck reports whether the identification dependencies are configured.
func (i *Identifier) HealthCheck(ctx context.Context) stage.Health {
	if i.svc == nil || i.roster == nil {
		return stage.Unhealthy(stageName, "identification service not configured")
	}
	if i.cfg != nil {
		if err := i.cfg.RequireAnalyzer(); err != nil {
			return stage.Unhealthy(stageName, err.Error())
		}
		if err := i.cfg.RequireRoster(); err != nil {
			return stage.Unhealthy(stageName, err.Error())
		}
	}
	return stage.Healthy(stageName)
}

// resolve maps an observation to a roster student. A legible code wins over
// any name reading; a name reading resolves only at medium or high
// confidence. Marks the observation when the code carried the match.
func (i *Identifier) resolve(ident *queue.Identification, idx *rosterIndex) *roster.Student {
	if code := codeKey(ident.ParsedCode); code != "" {
		if student, ok := idx.byCode[code]; ok {
			ident.MatchedViaCode = true
			return student
		}
	}
	if ident.Confidence == queue.ConfidenceLow {
		return nil
	}
	if key := nameKey(ident.RawHandwrittenName); key != "" {
		if student, ok := idx.byName[key]; ok {
			return student
		}
	}
	return nil
}

type rosterIndex struct {
	byCode map[string]*roster.Student
	byName map[string]*roster.Student
}

func (i *Identifier) loadIndex(ctx context.Context) (*rosterIndex, error) {
	if i.index != nil {
		return i.index, nil
	}
	students, err := i.roster.Students(ctx)
	if err != nil {
		return nil, err
	}
	idx := &rosterIndex{
		byCode: make(map[string]*roster.Student, len(students)),
		byName: make(map[string]*roster.Student, len(students)),
	}
	for n := range students {
		student := &students[n]
		if code := codeKey(student.Code); code != "" {
			idx.byCode[code] = student
		}
		if key := nameKey(student.Name); key != "" {
			idx.byName[key] = student
		}
	}
	i.index = idx
	return idx, nil
}

var _ stage.Handler = (*Identifier)(nil)
