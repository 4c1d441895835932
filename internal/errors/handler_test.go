package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvpulse/internal/infrastructure"
	"csvpulse/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("evaluate: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "upload too large",
			err:        fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 10}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "api error",
			err:        ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeSessionNotFound,
			wantCode:   "SESSION_NOT_FOUND",
		},
		{
			name:       "field validation",
			err:        ErrValidation("top_n", "top_n must be at most 1000"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "missing parameter",
			err:        MissingParameter("file"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   "MISSING_PARAMETER",
		},
		{
			name:       "rate limit",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
			wantCode:   "RATE_LIMIT_EXCEEDED",
		},
		{
			name:       "config app error hides details",
			err:        NewConfigError("failed to load configuration", fmt.Errorf("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
		{
			name:       "parsing app error",
			err:        NewParsingError("malformed csv", fmt.Errorf("row 3")).WithContext("row", 3),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeParsing,
			wantCode:   string(ErrTypeParsing),
		},
		{
			name:       "validation app error",
			err:        fmt.Errorf("narrow: %w", NewAppValidationError("bound \"x\" is not a number")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   string(ErrTypeValidation),
		},
		{
			name:       "not found app error",
			err:        NewNotFoundError("section \"weather\"", nil),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantCode:   string(ErrTypeNotFound),
		},
		{
			name:       "unsupported app error",
			err:        NewUnsupportedError("format \"ods\" is not supported"),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   TypeUnsupported,
			wantCode:   string(ErrTypeUnsupported),
		},
		{
			name:       "storage app error hides details",
			err:        NewStorageError("write failed", fmt.Errorf("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("something broke"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc/view", nil)
			req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-1"))
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/sessions/abc/view", body["instance"])
			assert.Equal(t, "trace-1", body["trace_id"])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}
			if tt.wantStatus >= 500 {
				assert.NotContains(t, body["detail"], "disk full")
			}
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_NilError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Zero(t, logs.Count())
}

func TestErrorHandler_ParsingContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	err := NewParsingError("row has too many fields", nil).WithContext("row", 4)
	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil), err)

	body := decodeProblem(t, rec)
	assert.Equal(t, map[string]any{"row": float64(4)}, body["context"])
	assert.Equal(t, "row has too many fields", body["detail"])
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{"production", false},
		{"development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			rec := httptest.NewRecorder()

			NewErrorHandler(logger, tt.includeStack).HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/x", nil), "kaboom")

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeProblem(t, rec)
			_, hasPanic := body["panic"]
			assert.Equal(t, tt.includeStack, hasPanic)
			testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
		})
	}
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/profiles", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "PATCH")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", "", "").
		WithExtension("errors", []ValidationError{{Field: "page.limit", Message: "too big"}}).
		WithExtension("status", 999)

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, float64(400), body["status"], "standard members win over extensions")
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
	assert.Len(t, body["errors"], 1)
}
