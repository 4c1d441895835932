package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"csvpulse/internal/charts"
	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/exporter"
	mw "csvpulse/internal/middleware"
	"csvpulse/internal/services"
	api "csvpulse/pkg/contracts/api/v1"
	"csvpulse/pkg/contracts/domain"
)

// multipartMemory is the part of an upload kept in memory before
// spilling to a temporary file.
const multipartMemory = 8 << 20

// Bounds on the chart size a request may ask for, in pixels
const (
	minChartSide = 64
	maxChartSide = 4096
)

// DashboardHandler serves the session and pipeline endpoints
type DashboardHandler struct {
	service        DashboardServiceInterface
	validation     *mw.ValidationMiddleware
	query          *mw.QueryParamValidator
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler. Uploads larger than
// maxUploadBytes are rejected with 413.
func NewDashboardHandler(service DashboardServiceInterface, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:        service,
		validation:     mw.NewValidationMiddleware(logger, errorHandler),
		query:          mw.NewQueryParamValidator(errorHandler),
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "dashboard_handler")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(h.validation.ValidateJSON)

	r.Get("/profiles", h.ListProfiles)

	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Put("/table", h.ReplaceTable)
		r.Post("/view", h.View)
		r.Post("/export", h.Export)
		r.Post("/charts/{section}", h.Chart)
	})

	r.Post("/pipeline/run", h.RunPipeline)
	r.Post("/pipeline/describe", h.DescribeUpload)

	return r
}

// SessionCtx rejects session IDs that are not UUIDs. Such an ID can never
// name a session, so it is reported as not found.
func (h *DashboardHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := uuid.Validate(chi.URLParam(r, "sessionID")); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrSessionNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListProfiles handles GET /api/profiles
func (h *DashboardHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.ProfilesResponse{Profiles: h.service.Profiles()})
}

// CreateSession handles POST /api/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := h.parseUpload(w, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer cleanup()

	info, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("request_id", mw.GetRequestID(r.Context())),
		slog.String("session_id", info.ID),
		slog.String("profile", info.Profile),
		slog.Int("rows", info.Rows),
	)

	w.Header().Set("Location", "/api/sessions/"+info.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// ReplaceTable handles PUT /api/sessions/{sessionID}/table
func (h *DashboardHandler) ReplaceTable(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := h.parseUpload(w, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer cleanup()

	info, err := h.service.ReplaceTable(r.Context(), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// View handles POST /api/sessions/{sessionID}/view
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	var c domain.Criteria
	if err := h.validation.DecodeJSON(r, &c); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view, err := h.service.View(r.Context(), chi.URLParam(r, "sessionID"), c)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Export handles POST /api/sessions/{sessionID}/export?format=csv|parquet&gzip=true
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format",
		[]string{string(exporter.FormatCSV), string(exporter.FormatParquet)}, string(exporter.FormatCSV))
	if !ok {
		return
	}
	req := api.ExportRequest{Format: format}
	if raw := r.URL.Query().Get("gzip"); raw != "" {
		gz, err := strconv.ParseBool(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("gzip", "gzip must be true or false"))
			return
		}
		req.Gzip = gz
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var c domain.Criteria
	if err := h.validation.DecodeJSON(r, &c); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	parsed, err := exporter.ParseFormat(req.Format)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
		return
	}
	blob, err := h.service.Export(r.Context(), chi.URLParam(r, "sessionID"), c,
		exporter.Options{Format: parsed, Gzip: req.Gzip})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeBlob(w, blob, "attachment")
}

// Chart handles POST /api/sessions/{sessionID}/charts/{section}?width=&height=
func (h *DashboardHandler) Chart(w http.ResponseWriter, r *http.Request) {
	width, ok := h.query.ValidateInt(w, r, "width", minChartSide, maxChartSide, 0)
	if !ok {
		return
	}
	height, ok := h.query.ValidateInt(w, r, "height", minChartSide, maxChartSide, 0)
	if !ok {
		return
	}

	var c domain.Criteria
	if err := h.validation.DecodeJSON(r, &c); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	blob, err := h.service.Chart(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "section"), c,
		charts.Size{Width: width, Height: height})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeBlob(w, blob, "inline")
}

// RunPipeline handles POST /api/pipeline/run. The table is uploaded with
// the request and nothing is kept afterwards.
func (h *DashboardHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	upload, cleanup, err := h.parseUpload(w, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer cleanup()

	req := api.RunRequest{UploadRequest: api.UploadRequest{FileName: upload.FileName, Profile: upload.Profile}}
	if raw := strings.TrimSpace(r.FormValue("criteria")); raw != "" {
		if err := decodeStrict([]byte(raw), &req.Criteria); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("criteria", err.Error()))
			return
		}
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Run(r.Context(), upload, req.Criteria)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.RunResponse{FileName: upload.FileName, View: res.View})
}

// DescribeUpload handles POST /api/pipeline/describe
func (h *DashboardHandler) DescribeUpload(w http.ResponseWriter, r *http.Request) {
	upload, cleanup, err := h.parseUpload(w, r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer cleanup()

	desc, err := h.service.Describe(r.Context(), upload)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, desc)
}

// parseUpload reads the multipart "file" and "profile" fields. The returned
// cleanup releases the file and any temporary storage.
func (h *DashboardHandler) parseUpload(w http.ResponseWriter, r *http.Request) (services.UploadRequest, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return services.UploadRequest{}, noop, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Uploads must be multipart/form-data",
				map[string]interface{}{"content_type": r.Header.Get("Content-Type")},
			)
		}
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return services.UploadRequest{}, noop, err
		}
		return services.UploadRequest{}, noop, apierrors.InvalidRequestWithError(err)
	}

	release := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		release()
		if errors.Is(err, http.ErrMissingFile) {
			return services.UploadRequest{}, noop, apierrors.MissingParameter("file")
		}
		return services.UploadRequest{}, noop, apierrors.InvalidRequestWithError(err)
	}

	req := api.UploadRequest{FileName: header.Filename, Profile: r.FormValue("profile")}
	if err := h.validation.ValidateStruct(&req); err != nil {
		file.Close()
		release()
		return services.UploadRequest{}, noop, err
	}

	h.logger.DebugContext(r.Context(), "upload received",
		slog.String("request_id", mw.GetRequestID(r.Context())),
		slog.String("file_name", header.Filename),
		slog.Int64("size", header.Size),
	)

	return services.UploadRequest{FileName: req.FileName, Reader: file, Profile: req.Profile},
		closer(file, release), nil
}

func closer(file multipart.File, release func()) func() {
	return func() {
		file.Close()
		release()
	}
}

func writeBlob(w http.ResponseWriter, blob *services.Blob, disposition string) {
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, blob.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
