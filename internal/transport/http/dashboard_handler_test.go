package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"csvpulse/internal/charts"
	"csvpulse/internal/dataprocessing"
	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/exporter"
	"csvpulse/internal/services"
	"csvpulse/internal/shared/testutil"
	"csvpulse/pkg/contracts/domain"
)

const testSessionID = "5f0c6a1e-8c4b-4f3e-9a51-2d7e4b1c9f00"

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Profiles() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockDashboardService) CreateSession(ctx context.Context, req services.UploadRequest) (*domain.SessionInfo, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionInfo), args.Error(1)
}

func (m *MockDashboardService) GetSession(ctx context.Context, id string) (*domain.SessionInfo, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionInfo), args.Error(1)
}

func (m *MockDashboardService) ReplaceTable(ctx context.Context, id string, req services.UploadRequest) (*domain.SessionInfo, error) {
	args := m.Called(id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SessionInfo), args.Error(1)
}

func (m *MockDashboardService) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockDashboardService) View(ctx context.Context, id string, c domain.Criteria) (*domain.View, error) {
	args := m.Called(id, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.View), args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, id string, c domain.Criteria, opts exporter.Options) (*services.Blob, error) {
	args := m.Called(id, c, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Blob), args.Error(1)
}

func (m *MockDashboardService) Chart(ctx context.Context, id, section string, c domain.Criteria, size charts.Size) (*services.Blob, error) {
	args := m.Called(id, section, c, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Blob), args.Error(1)
}

func (m *MockDashboardService) Describe(ctx context.Context, req services.UploadRequest) (*domain.Description, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Description), args.Error(1)
}

func (m *MockDashboardService) Run(ctx context.Context, req services.UploadRequest, c domain.Criteria) (*dataprocessing.Result, error) {
	args := m.Called(req, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dataprocessing.Result), args.Error(1)
}

func newTestHandler(t *testing.T, svc DashboardServiceInterface) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewDashboardHandler(svc, 1<<20, logger, apierrors.NewErrorHandler(logger, false)).Routes()
}

// multipartRequest builds an upload request. An empty fileName omits the file part.
func multipartRequest(t *testing.T, method, target, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func uploadNamed(name, profile string) interface{} {
	return mock.MatchedBy(func(req services.UploadRequest) bool {
		return req.FileName == name && req.Profile == profile && req.Reader != nil
	})
}

func sampleInfo() *domain.SessionInfo {
	return &domain.SessionInfo{
		ID:          testSessionID,
		FileName:    "names.csv",
		Format:      "csv",
		Description: domain.Description{Profile: "baby_names", Rows: 5},
	}
}

func TestDashboardHandler_ListProfiles(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Profiles").Return([]string{"baby_names", "streamers", "stock", "generic"})

	rec := httptest.NewRecorder()
	newTestHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profiles":["baby_names","streamers","stock","generic"]}`, rec.Body.String())
}

func TestDashboardHandler_CreateSession(t *testing.T) {
	tests := []struct {
		name           string
		request        func(t *testing.T) *http.Request
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "created",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/sessions", "names.csv", testutil.BabyNamesCSV, nil)
			},
			setupMock: func(m *MockDashboardService) {
				m.On("CreateSession", uploadNamed("names.csv", "")).Return(sampleInfo(), nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "forced profile",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/sessions", "names.csv", testutil.BabyNamesCSV,
					map[string]string{"profile": "generic"})
			},
			setupMock: func(m *MockDashboardService) {
				m.On("CreateSession", uploadNamed("names.csv", "generic")).Return(sampleInfo(), nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unknown profile",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/sessions", "names.csv", testutil.BabyNamesCSV,
					map[string]string{"profile": "weather"})
			},
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "missing file",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/sessions", "", "", map[string]string{"profile": "stock"})
			},
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_PARAMETER",
		},
		{
			name: "not multipart",
			request: func(t *testing.T) *http.Request {
				return jsonRequest(http.MethodPost, "/sessions", `{}`)
			},
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedCode:   "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name: "unparseable file",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/sessions", "empty.csv", "", nil)
			},
			setupMock: func(m *MockDashboardService) {
				m.On("CreateSession", uploadNamed("empty.csv", "")).
					Return(nil, apierrors.NewParsingError("failed to read empty.csv", dataprocessing.ErrEmptyFile))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "PARSING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestHandler(t, svc).ServeHTTP(rec, tt.request(t))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, body["error_code"])
			} else {
				assert.Equal(t, testSessionID, body["id"])
				assert.Equal(t, "/api/sessions/"+testSessionID, rec.Header().Get("Location"))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_UploadTooLarge(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := new(MockDashboardService)
	h := NewDashboardHandler(svc, 256, logger, apierrors.NewErrorHandler(logger, false)).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, http.MethodPost, "/sessions", "big.csv", testutil.StockCSV(50), nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, float64(256), decodeBody(t, rec)["limit"])
	svc.AssertNotCalled(t, "CreateSession", mock.Anything)
}

func TestDashboardHandler_GetSession(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "found",
			id:   testSessionID,
			setupMock: func(m *MockDashboardService) {
				m.On("GetSession", testSessionID).Return(sampleInfo(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "expired",
			id:   testSessionID,
			setupMock: func(m *MockDashboardService) {
				m.On("GetSession", testSessionID).Return(nil, apierrors.ErrSessionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "SESSION_NOT_FOUND",
		},
		{
			name:           "malformed id",
			id:             "not-a-session",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "SESSION_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+tt.id, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, body["error_code"])
				assert.Equal(t, apierrors.TypeSessionNotFound, body["type"])
			} else {
				assert.Equal(t, "baby_names", body["profile"])
				assert.Equal(t, float64(5), body["rows"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_DeleteSession(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("DeleteSession", testSessionID).Return(nil).Once()
	svc.On("DeleteSession", testSessionID).Return(apierrors.ErrSessionNotFound).Once()
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+testSessionID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+testSessionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_ReplaceTable(t *testing.T) {
	svc := new(MockDashboardService)
	info := sampleInfo()
	info.FileName = "toyota.csv"
	info.Profile = "stock"
	svc.On("ReplaceTable", testSessionID, uploadNamed("toyota.csv", "")).Return(info, nil)

	rec := httptest.NewRecorder()
	newTestHandler(t, svc).ServeHTTP(rec,
		multipartRequest(t, http.MethodPut, "/sessions/"+testSessionID+"/table", "toyota.csv", testutil.StockCSV(3), nil))

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "stock", decodeBody(t, rec)["profile"])
	svc.AssertExpectations(t)
}

func TestDashboardHandler_View(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "numeric and string bounds",
			body: `{"ranges":[{"column":"year","min":1910,"max":"1911"}],"top_n":3}`,
			setupMock: func(m *MockDashboardService) {
				m.On("View", testSessionID, mock.MatchedBy(func(c domain.Criteria) bool {
					return len(c.Ranges) == 1 && c.Ranges[0].Min == "1910" && c.Ranges[0].Max == "1911" && c.TopN == 3
				})).Return(&domain.View{Profile: "baby_names", TotalRows: 5, NarrowedRows: 3}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "empty body is an unfiltered view",
			body: ``,
			setupMock: func(m *MockDashboardService) {
				m.On("View", testSessionID, domain.Criteria{}).
					Return(&domain.View{Profile: "baby_names", TotalRows: 5, NarrowedRows: 5}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown field",
			body:           `{"filters":[]}`,
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "page limit above maximum",
			body:           `{"page":{"limit":5000}}`,
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "range without column",
			body:           `{"ranges":[{"min":1}]}`,
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name: "unparseable bound",
			body: `{"ranges":[{"column":"year","min":"soon"}]}`,
			setupMock: func(m *MockDashboardService) {
				m.On("View", testSessionID, mock.Anything).
					Return(nil, apierrors.NewAppValidationError(`range "year": cannot parse "soon"`))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION",
		},
		{
			name: "cancelled",
			body: `{}`,
			setupMock: func(m *MockDashboardService) {
				m.On("View", testSessionID, mock.Anything).Return(nil, context.DeadlineExceeded)
			},
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name: "internal error",
			body: `{}`,
			setupMock: func(m *MockDashboardService) {
				m.On("View", testSessionID, mock.Anything).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestHandler(t, svc).ServeHTTP(rec, jsonRequest(http.MethodPost, "/sessions/"+testSessionID+"/view", tt.body))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, body["error_code"])
			}
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "baby_names", body["profile"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_ViewRejectsNonJSON(t *testing.T) {
	svc := new(MockDashboardService)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+testSessionID+"/view", strings.NewReader("year=1910"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	newTestHandler(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	svc.AssertNotCalled(t, "View", mock.Anything, mock.Anything)
}

func TestDashboardHandler_Export(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		wantOpts       exporter.Options
		expectedStatus int
	}{
		{"default csv", "", exporter.Options{Format: exporter.FormatCSV}, http.StatusOK},
		{"gzip parquet", "?format=parquet&gzip=true", exporter.Options{Format: exporter.FormatParquet, Gzip: true}, http.StatusOK},
		{"unknown format", "?format=xlsx", exporter.Options{}, http.StatusBadRequest},
		{"bad gzip flag", "?gzip=maybe", exporter.Options{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			blob := &services.Blob{
				FileName:    exporter.FileName("filtered_baby_names.csv", tt.wantOpts),
				ContentType: exporter.ContentType(tt.wantOpts),
				Data:        []byte("year,name\n"),
			}
			if tt.expectedStatus == http.StatusOK {
				svc.On("Export", testSessionID, mock.Anything, tt.wantOpts).Return(blob, nil)
			}

			rec := httptest.NewRecorder()
			newTestHandler(t, svc).ServeHTTP(rec,
				jsonRequest(http.MethodPost, "/sessions/"+testSessionID+"/export"+tt.query, `{}`))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, blob.ContentType, rec.Header().Get("Content-Type"))
				assert.Equal(t, `attachment; filename="`+blob.FileName+`"`, rec.Header().Get("Content-Disposition"))
				assert.Equal(t, "year,name\n", rec.Body.String())
			} else {
				assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_Chart(t *testing.T) {
	svc := new(MockDashboardService)
	png := []byte("\x89PNG\r\n\x1a\n")
	svc.On("Chart", testSessionID, "top_names", mock.Anything, charts.Size{}).
		Return(&services.Blob{FileName: "top_names.png", ContentType: "image/png", Data: png}, nil)
	svc.On("Chart", testSessionID, "kpis", mock.Anything, charts.Size{}).
		Return(nil, apierrors.NewAppError(apierrors.ErrTypeValidation, `section "kpis"`, services.ErrSectionNotChartable))
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/sessions/"+testSessionID+"/charts/top_names", `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="top_names.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/sessions/"+testSessionID+"/charts/kpis", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], services.ErrSectionNotChartable.Error())
	svc.AssertExpectations(t)
}

func TestDashboardHandler_ChartSize(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		wantSize       charts.Size
		expectedStatus int
	}{
		{"both dimensions", "?width=800&height=400", charts.Size{Width: 800, Height: 400}, http.StatusOK},
		{"width only", "?width=640", charts.Size{Width: 640}, http.StatusOK},
		{"not a number", "?width=wide", charts.Size{}, http.StatusBadRequest},
		{"too small", "?height=10", charts.Size{}, http.StatusBadRequest},
		{"too large", "?width=10000", charts.Size{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			if tt.expectedStatus == http.StatusOK {
				svc.On("Chart", testSessionID, "trend", mock.Anything, tt.wantSize).
					Return(&services.Blob{FileName: "trend.png", ContentType: "image/png", Data: []byte("png")}, nil)
			}

			rec := httptest.NewRecorder()
			newTestHandler(t, svc).ServeHTTP(rec,
				jsonRequest(http.MethodPost, "/sessions/"+testSessionID+"/charts/trend"+tt.query, `{}`))

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_RunPipeline(t *testing.T) {
	t.Run("with criteria", func(t *testing.T) {
		svc := new(MockDashboardService)
		svc.On("Run", uploadNamed("streamers.csv", ""), mock.MatchedBy(func(c domain.Criteria) bool {
			return len(c.Categories) == 1 && c.Categories[0].Column == "game_name" && c.TopN == 2
		})).Return(&dataprocessing.Result{View: &domain.View{Profile: "streamers", TotalRows: 5, NarrowedRows: 2}}, nil)

		req := multipartRequest(t, http.MethodPost, "/pipeline/run", "streamers.csv", testutil.StreamersCSV,
			map[string]string{"criteria": `{"categories":[{"column":"game_name","values":["Chess"]}],"top_n":2}`})
		rec := httptest.NewRecorder()
		newTestHandler(t, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "streamers.csv", body["file_name"])
		view := body["view"].(map[string]interface{})
		assert.Equal(t, float64(2), view["narrowed_rows"])
		svc.AssertExpectations(t)
	})

	t.Run("malformed criteria", func(t *testing.T) {
		svc := new(MockDashboardService)
		req := multipartRequest(t, http.MethodPost, "/pipeline/run", "streamers.csv", testutil.StreamersCSV,
			map[string]string{"criteria": `{"top_n":`})
		rec := httptest.NewRecorder()
		newTestHandler(t, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("criteria out of range", func(t *testing.T) {
		svc := new(MockDashboardService)
		req := multipartRequest(t, http.MethodPost, "/pipeline/run", "streamers.csv", testutil.StreamersCSV,
			map[string]string{"criteria": `{"top_n":-1}`})
		rec := httptest.NewRecorder()
		newTestHandler(t, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
	})
}

func TestDashboardHandler_DescribeUpload(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Describe", uploadNamed("toyota.csv", "stock")).Return(&domain.Description{
		Profile:  "stock",
		Rows:     3,
		Controls: []domain.FilterControl{{Type: "range", Column: "Date"}},
	}, nil)

	req := multipartRequest(t, http.MethodPost, "/pipeline/describe", "toyota.csv", testutil.StockCSV(3),
		map[string]string{"profile": "stock"})
	rec := httptest.NewRecorder()
	newTestHandler(t, svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "stock", body["profile"])
	assert.Len(t, body["controls"], 1)
	svc.AssertExpectations(t)
}
