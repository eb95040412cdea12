// Package handler exposes the chart lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"orgchart/internal/chart/models"
	"orgchart/internal/chart/viz"
	"orgchart/internal/platform/metrics"
	"orgchart/internal/platform/middleware"
	id "orgchart/pkg/domain"
	dErrors "orgchart/pkg/domain-errors"
	"orgchart/pkg/platform/httputil"
)

// Service defines the chart operations the handler exposes.
type Service interface {
	GetCurrent(ctx context.Context, orgID id.OrgID) (*models.Chart, error)
	GetChart(ctx context.Context, chartID id.ChartID) (*models.Chart, error)
	GetStructure(ctx context.Context, chartID id.ChartID) ([]models.Area, []models.Position, error)
	CreateNewVersion(ctx context.Context, orgID id.OrgID, sector id.Sector) (*models.Chart, error)
	Validate(ctx context.Context, chartID id.ChartID, expectedRevision int64) (*models.Chart, error)
	Approve(ctx context.Context, chartID id.ChartID, expectedRevision int64) (*models.Chart, error)
	ReplaceAreas(ctx context.Context, chartID id.ChartID, expectedRevision int64, areas []models.Area) (*models.Chart, error)
	ReplacePositions(ctx context.Context, chartID id.ChartID, expectedRevision int64, positions []models.Position) (*models.Chart, error)
	Visualization(ctx context.Context, chartID id.ChartID) (*viz.Payload, error)
}

// Handler handles chart endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a chart Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the chart routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	chartRouter := chi.NewRouter()
	chartRouter.Use(middleware.Recovery(h.logger))
	chartRouter.Use(middleware.RequestID)
	chartRouter.Use(middleware.RequestTime)
	chartRouter.Use(middleware.Logger(h.logger))
	chartRouter.Use(middleware.Timeout(30 * time.Second))
	chartRouter.Use(middleware.ContentTypeJSON)
	chartRouter.Use(middleware.LatencyMiddleware(h.metrics))

	chartRouter.Get("/orgs/{orgID}/chart/current", h.handleGetCurrent)
	chartRouter.Get("/charts/{chartID}", h.handleGetChart)
	chartRouter.Get("/charts/{chartID}/structure", h.handleGetStructure)
	chartRouter.Get("/charts/{chartID}/visualization", h.handleVisualization)

	authed := chartRouter.With(middleware.RequireAuth(h.jwtValidator, h.logger))
	authed.Post("/orgs/{orgID}/charts/new-version", h.handleNewVersion)
	authed.Post("/charts/{chartID}/validate", h.handleValidate)
	authed.Post("/charts/{chartID}/approve", h.handleApprove)
	authed.Put("/charts/{chartID}/areas", h.handleReplaceAreas)
	authed.Put("/charts/{chartID}/positions", h.handleReplacePositions)

	r.Mount("/api/v1", chartRouter)
}

func (h *Handler) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chart, err := h.service.GetCurrent(r.Context(), orgID)
	if err != nil {
		h.writeServiceError(w, r, "get current chart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chart)
}

func (h *Handler) handleGetChart(w http.ResponseWriter, r *http.Request) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chart, err := h.service.GetChart(r.Context(), chartID)
	if err != nil {
		h.writeServiceError(w, r, "get chart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chart)
}

func (h *Handler) handleGetStructure(w http.ResponseWriter, r *http.Request) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	areas, positions, err := h.service.GetStructure(r.Context(), chartID)
	if err != nil {
		h.writeServiceError(w, r, "get chart structure", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"areas":     areas,
		"positions": positions,
	})
}

func (h *Handler) handleNewVersion(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req newVersionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	sector := id.SectorGeneric
	if req.Sector != "" {
		sector, err = id.ParseSector(req.Sector)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	chart, err := h.service.CreateNewVersion(r.Context(), orgID, sector)
	if err != nil {
		h.writeServiceError(w, r, "create new chart version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, chart)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	chartID, req, ok := h.decodeRevision(w, r)
	if !ok {
		return
	}
	chart, err := h.service.Validate(r.Context(), chartID, req.Revision)
	if err != nil {
		h.writeServiceError(w, r, "validate chart", err)
		return
	}
	resp := validateResponse{OK: true, Issues: []models.ComplianceIssue{}, Chart: chart}
	if chart.Compliance != nil {
		resp.Score = chart.Compliance.Score
		if chart.Compliance.Issues != nil {
			resp.Issues = chart.Compliance.Issues
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	chartID, req, ok := h.decodeRevision(w, r)
	if !ok {
		return
	}
	chart, err := h.service.Approve(r.Context(), chartID, req.Revision)
	if err != nil {
		h.writeServiceError(w, r, "approve chart", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chart)
}

func (h *Handler) handleReplaceAreas(w http.ResponseWriter, r *http.Request) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req replaceAreasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	areas, err := req.toModels(chartID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chart, err := h.service.ReplaceAreas(r.Context(), chartID, req.Revision, areas)
	if err != nil {
		h.writeServiceError(w, r, "replace chart areas", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chart)
}

func (h *Handler) handleReplacePositions(w http.ResponseWriter, r *http.Request) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req replacePositionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	positions, err := req.toModels(chartID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chart, err := h.service.ReplacePositions(r.Context(), chartID, req.Revision, positions)
	if err != nil {
		h.writeServiceError(w, r, "replace chart positions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chart)
}

func (h *Handler) handleVisualization(w http.ResponseWriter, r *http.Request) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.service.Visualization(r.Context(), chartID)
	if err != nil {
		h.writeServiceError(w, r, "build chart visualization", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) decodeRevision(w http.ResponseWriter, r *http.Request) (id.ChartID, revisionRequest, bool) {
	chartID, err := id.ParseChartID(chi.URLParam(r, "chartID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ChartID{}, revisionRequest{}, false
	}
	var req revisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return id.ChartID{}, revisionRequest{}, false
	}
	return chartID, req, true
}

// writeServiceError logs internal failures at error level and everything
// else at warn; the response body always comes from the shared envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "rejected "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
