package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"csvpulse/internal/charts"
	"csvpulse/internal/dataprocessing"
	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/exporter"
	"csvpulse/internal/infrastructure"
	"csvpulse/internal/session"
	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

const tracerName = "csvpulse/services"

// UploadRequest is a file to load, with an optional forced profile
type UploadRequest struct {
	FileName string
	Reader   io.Reader
	Profile  string
}

// Blob is a generated download
type Blob struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DashboardService runs the filter/aggregate pipeline over session tables
type DashboardService struct {
	store     *session.Store
	pipeline  *dataprocessing.Pipeline
	metrics   *infrastructure.DashboardMetrics
	tracer    trace.Tracer
	chartSize charts.Size
	logger    *slog.Logger
}

// DashboardOption configures a DashboardService
type DashboardOption func(*DashboardService)

// WithMetrics records uploads, runs, exports and charts on m.
func WithMetrics(m *infrastructure.DashboardMetrics) DashboardOption {
	return func(s *DashboardService) { s.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) DashboardOption {
	return func(s *DashboardService) { s.tracer = t }
}

// WithChartSize sets the rendered chart size.
func WithChartSize(size charts.Size) DashboardOption {
	return func(s *DashboardService) { s.chartSize = size }
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store *session.Store, pipeline *dataprocessing.Pipeline, logger *slog.Logger, opts ...DashboardOption) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DashboardService{
		store:     store,
		pipeline:  pipeline,
		tracer:    otel.Tracer(tracerName),
		chartSize: charts.DefaultSize,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("DashboardService initialized",
		slog.Int("default_top_n", pipeline.Config().DefaultTopN),
		slog.Int("chart_width", s.chartSize.Width),
		slog.Int("chart_height", s.chartSize.Height))
	return s
}

// Profiles returns the names accepted by UploadRequest.Profile.
func (s *DashboardService) Profiles() []string {
	return dataprocessing.Profiles()
}

// CreateSession loads an upload into a new session.
func (s *DashboardService) CreateSession(ctx context.Context, req UploadRequest) (*domain.SessionInfo, error) {
	ctx, span := s.tracer.Start(ctx, "DashboardService.CreateSession",
		trace.WithAttributes(attribute.String("file.name", req.FileName)))
	defer span.End()

	upload, err := s.load(ctx, req)
	if err != nil {
		return nil, spanError(span, err)
	}

	sess := s.store.Create(upload)
	span.SetAttributes(attribute.String("session.id", sess.ID))
	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", sess.ID),
		slog.String("file_name", req.FileName),
		slog.String("profile", upload.Profile.Name),
		slog.Int("rows", upload.Table.Len()))

	return s.info(sess.Snapshot()), nil
}

// GetSession describes a live session.
func (s *DashboardService) GetSession(ctx context.Context, id string) (*domain.SessionInfo, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return s.info(sess.Snapshot()), nil
}

// ReplaceTable loads a new upload into an existing session. Views computed
// afterwards see only the new table.
func (s *DashboardService) ReplaceTable(ctx context.Context, id string, req UploadRequest) (*domain.SessionInfo, error) {
	ctx, span := s.tracer.Start(ctx, "DashboardService.ReplaceTable",
		trace.WithAttributes(attribute.String("session.id", id), attribute.String("file.name", req.FileName)))
	defer span.End()

	if _, err := s.session(id); err != nil {
		return nil, spanError(span, err)
	}
	upload, err := s.load(ctx, req)
	if err != nil {
		return nil, spanError(span, err)
	}
	sess, err := s.store.Replace(id, upload)
	if err != nil {
		return nil, spanError(span, translate(err))
	}

	s.logger.InfoContext(ctx, "session table replaced",
		slog.String("session_id", id),
		slog.String("file_name", req.FileName),
		slog.String("profile", upload.Profile.Name),
		slog.Int("rows", upload.Table.Len()))

	return s.info(sess.Snapshot()), nil
}

// DeleteSession drops a session and its table.
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return translate(err)
	}
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// View narrows the session table by c and computes every section.
func (s *DashboardService) View(ctx context.Context, id string, c domain.Criteria) (*domain.View, error) {
	res, _, err := s.evaluate(ctx, id, c)
	if err != nil {
		return nil, err
	}
	return res.View, nil
}

// Export serializes the narrowed session table.
func (s *DashboardService) Export(ctx context.Context, id string, c domain.Criteria, opts exporter.Options) (*Blob, error) {
	ctx, span := s.tracer.Start(ctx, "DashboardService.Export",
		trace.WithAttributes(attribute.String("session.id", id), attribute.String("export.format", string(opts.Format))))
	defer span.End()

	res, _, err := s.evaluate(ctx, id, c)
	if err != nil {
		return nil, spanError(span, err)
	}

	var buf bytes.Buffer
	err = exporter.Export(&buf, res.Narrowed, opts)
	s.metrics.RecordExport(ctx, string(opts.Format), err)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("export failed: %w", err))
	}

	blob := &Blob{
		FileName:    exporter.FileName(res.View.DownloadName, opts),
		ContentType: exporter.ContentType(opts),
		Data:        buf.Bytes(),
	}
	s.logger.DebugContext(ctx, "export generated",
		slog.String("session_id", id),
		slog.String("file_name", blob.FileName),
		slog.Int("rows", res.Narrowed.Len()),
		slog.Int("bytes", len(blob.Data)))
	return blob, nil
}

// Chart renders one section of the view as a PNG. A zero dimension in size
// takes the configured chart size.
func (s *DashboardService) Chart(ctx context.Context, id, section string, c domain.Criteria, size charts.Size) (*Blob, error) {
	ctx, span := s.tracer.Start(ctx, "DashboardService.Chart",
		trace.WithAttributes(attribute.String("session.id", id), attribute.String("section", section)))
	defer span.End()

	res, prof, err := s.evaluate(ctx, id, c)
	if err != nil {
		return nil, spanError(span, err)
	}

	result, ok := res.View.Section(section)
	if !ok {
		err := apierrors.NewNotFoundError(fmt.Sprintf("section %q", section), ErrUnknownSection).
			WithContext("profile", prof.Name)
		s.metrics.RecordChart(ctx, section, err)
		return nil, spanError(span, err)
	}

	if size.Width <= 0 {
		size.Width = s.chartSize.Width
	}
	if size.Height <= 0 {
		size.Height = s.chartSize.Height
	}
	span.SetAttributes(attribute.Int("chart.width", size.Width), attribute.Int("chart.height", size.Height))

	var buf bytes.Buffer
	err = charts.Render(&buf, result, size)
	s.metrics.RecordChart(ctx, section, err)
	if errors.Is(err, charts.ErrNotChartable) {
		return nil, spanError(span, apierrors.NewAppError(apierrors.ErrTypeValidation, err.Error(), ErrSectionNotChartable).
			WithContext("section", section))
	}
	if err != nil {
		return nil, spanError(span, fmt.Errorf("render chart: %w", err))
	}

	return &Blob{
		FileName:    section + ".png",
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

// Describe loads a file and summarises it without creating a session.
func (s *DashboardService) Describe(ctx context.Context, req UploadRequest) (*domain.Description, error) {
	upload, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	d := s.pipeline.Describe(upload.Table, upload.Profile)
	return &d, nil
}

// Run loads a file and evaluates c against it without creating a session.
func (s *DashboardService) Run(ctx context.Context, req UploadRequest, c domain.Criteria) (*dataprocessing.Result, error) {
	ctx, span := s.tracer.Start(ctx, "DashboardService.Run",
		trace.WithAttributes(attribute.String("file.name", req.FileName)))
	defer span.End()

	upload, err := s.load(ctx, req)
	if err != nil {
		return nil, spanError(span, err)
	}
	res, err := s.run(ctx, upload.Table, upload.Profile, c)
	if err != nil {
		return nil, spanError(span, err)
	}
	return res, nil
}

// evaluate runs the pipeline under the session lock.
func (s *DashboardService) evaluate(ctx context.Context, id string, c domain.Criteria) (*dataprocessing.Result, dataprocessing.Profile, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, dataprocessing.Profile{}, err
	}

	var (
		res  *dataprocessing.Result
		prof dataprocessing.Profile
	)
	err = sess.Compute(func(snap session.Snapshot) error {
		prof = snap.Profile
		var err error
		res, err = s.run(ctx, snap.Table, snap.Profile, c)
		return err
	})
	if err != nil {
		return nil, prof, err
	}
	return res, prof, nil
}

func (s *DashboardService) run(ctx context.Context, t *table.Table, prof dataprocessing.Profile, c domain.Criteria) (*dataprocessing.Result, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.Evaluate",
		trace.WithAttributes(attribute.String("profile", prof.Name), attribute.Int("rows", t.Len())))
	defer span.End()

	start := time.Now()
	res, err := s.pipeline.Evaluate(ctx, t, prof, c)
	s.metrics.RecordPipelineRun(ctx, prof.Name, time.Since(start), err)
	if err != nil {
		s.logger.WarnContext(ctx, "pipeline evaluation failed",
			slog.String("profile", prof.Name),
			slog.String("error", err.Error()))
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("narrowed_rows", res.View.NarrowedRows))
	return res, nil
}

// load parses an upload and resolves its profile.
func (s *DashboardService) load(ctx context.Context, req UploadRequest) (session.Upload, error) {
	if req.Reader == nil {
		return session.Upload{}, apierrors.NewAppError(apierrors.ErrTypeValidation, "file is required", ErrNoFile)
	}

	format := dataprocessing.DetectFormat(req.FileName)
	cr := &countingReader{r: req.Reader}
	tbl, err := dataprocessing.Load(cr, format)
	s.metrics.RecordUpload(ctx, string(format), cr.n, err)
	if err != nil {
		s.logger.WarnContext(ctx, "upload rejected",
			slog.String("file_name", req.FileName),
			slog.String("format", string(format)),
			slog.Int64("bytes", cr.n),
			slog.String("error", err.Error()))
		return session.Upload{}, err
	}

	prof, err := s.pipeline.Resolve(tbl, req.Profile)
	if err != nil {
		return session.Upload{}, apierrors.NewAppError(apierrors.ErrTypeValidation, err.Error(), err).
			WithContext("profiles", dataprocessing.Profiles())
	}

	return session.Upload{
		FileName: req.FileName,
		Format:   format,
		Table:    s.pipeline.Prepare(tbl, prof),
		Profile:  prof,
	}, nil
}

func (s *DashboardService) session(id string) (*session.Session, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, translate(err)
	}
	return sess, nil
}

func (s *DashboardService) info(snap session.Snapshot) *domain.SessionInfo {
	return &domain.SessionInfo{
		ID:          snap.ID,
		FileName:    snap.FileName,
		Format:      string(snap.Format),
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
		ExpiresAt:   snap.ExpiresAt,
		Description: s.pipeline.Describe(snap.Table, snap.Profile),
	}
}

// translate maps store errors onto API errors.
func translate(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return apierrors.ErrSessionNotFound
	}
	return err
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
