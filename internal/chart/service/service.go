// Package service orchestrates the chart lifecycle: version creation,
// structure edits, validation, approval, and visualization. It owns the
// translation from infrastructure sentinels to coded domain errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"orgchart/internal/audit"
	"orgchart/internal/chart/integrity"
	"orgchart/internal/chart/metrics"
	"orgchart/internal/chart/models"
	"orgchart/internal/chart/viz"
	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
	"orgchart/pkg/platform/sentinel"
	"orgchart/pkg/requestcontext"
)

type ChartStore interface {
	Create(ctx context.Context, chart *models.Chart) error
	FindByID(ctx context.Context, chartID id.ChartID) (*models.Chart, error)
	FindCurrentByOrg(ctx context.Context, orgID id.OrgID) (*models.Chart, error)
	NextVersion(ctx context.Context, orgID id.OrgID) (int, error)
	Execute(ctx context.Context, chartID id.ChartID, expectedRevision int64, validate func(*models.Chart) error, mutate func(*models.Chart)) (*models.Chart, error)
	ApproveCurrent(ctx context.Context, chartID id.ChartID, expectedRevision int64, observedCurrent *models.CurrentRef, approve func(*models.Chart) error, supersede func(*models.Chart)) (*models.Chart, error)
}

type StructureStore interface {
	GetAreas(ctx context.Context, chartID id.ChartID) ([]models.Area, error)
	GetPositions(ctx context.Context, chartID id.ChartID) ([]models.Position, error)
	ReplaceAreas(ctx context.Context, chart *models.Chart, areas []models.Area) error
	ReplacePositions(ctx context.Context, chart *models.Chart, positions []models.Position) error
}

// AssignmentDirectory answers occupancy questions; assignments themselves
// live with the HR system behind it.
type AssignmentDirectory interface {
	ActivePositions(ctx context.Context, positionIDs []id.PositionID, t time.Time) (map[id.PositionID]bool, error)
}

// TemplateProvider seeds a first draft when an organization has no chart yet.
type TemplateProvider interface {
	Bootstrap(ctx context.Context, chartID id.ChartID, sector id.Sector) ([]models.Area, []models.Position, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// VizCache caches visualization payloads by (chart, revision).
type VizCache interface {
	Get(ctx context.Context, chartID id.ChartID, revision int64) (*viz.Payload, bool)
	Put(ctx context.Context, chartID id.ChartID, revision int64, payload *viz.Payload)
}

// Service orchestrates chart versioning and validation.
type Service struct {
	charts         ChartStore
	structures     StructureStore
	directory      AssignmentDirectory
	templates      TemplateProvider
	auditPublisher AuditPublisher
	vizCache       VizCache
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	validatorCfg   integrity.Config
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithTemplateProvider(provider TemplateProvider) Option {
	return func(s *Service) { s.templates = provider }
}

func WithVizCache(cache VizCache) Option {
	return func(s *Service) { s.vizCache = cache }
}

func WithValidatorConfig(cfg integrity.Config) Option {
	return func(s *Service) { s.validatorCfg = cfg }
}

// New constructs a Service.
func New(charts ChartStore, structures StructureStore, directory AssignmentDirectory, opts ...Option) *Service {
	s := &Service{
		charts:       charts,
		structures:   structures,
		directory:    directory,
		tracer:       otel.Tracer("orgchart/chart"),
		validatorCfg: integrity.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// translateStoreErr maps infrastructure sentinels onto coded domain errors.
// Unrecognized errors become Internal.
func translateStoreErr(err error, subject string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, subject+" not found")
	case errors.Is(err, sentinel.ErrRevisionMismatch):
		return dErrors.New(dErrors.CodeConflict, subject+" was modified concurrently, re-read and retry")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, subject+" already exists")
	case errors.Is(err, sentinel.ErrImmutable):
		return dErrors.New(dErrors.CodeInvalidTransition, subject+" is no longer editable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+subject)
	}
}

// structuralDetails extracts the structured payload from a typed structural
// error so callers see the cycle path or dangling reference, not just prose.
func structuralDetails(err error) any {
	var cycle *integrity.CycleError
	if errors.As(err, &cycle) {
		return map[string]any{"relation": cycle.Relation, "cycle": cycle.Path}
	}
	var orphan *integrity.OrphanError
	if errors.As(err, &orphan) {
		return map[string]any{"relation": orphan.Relation, "from": orphan.From, "missing": orphan.Missing}
	}
	var root *integrity.RootError
	if errors.As(err, &root) {
		roots := make([]string, 0, len(root.Roots))
		for _, r := range root.Roots {
			roots = append(roots, r.String())
		}
		return map[string]any{"roots": roots}
	}
	return nil
}

func structuralError(err error) error {
	de := dErrors.New(dErrors.CodeValidation, err.Error())
	if details := structuralDetails(err); details != nil {
		return de.WithDetails(details)
	}
	return de
}

func (s *Service) emitAudit(ctx context.Context, action audit.ChartEvent, chart *models.Chart, score *int) {
	event := audit.Event{
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		OrgID:     chart.OrgID,
		ChartID:   chart.ID,
		Version:   chart.Version,
		ActorID:   requestcontext.UserID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Score:     score,
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"chart_id", chart.ID.String(),
			"organization_id", chart.OrgID.String(),
			"version", chart.Version,
			"state", chart.State.String(),
			"request_id", event.RequestID,
			"log_type", "audit")
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}
