package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/teelog/internal/session"
	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) Status() session.Status {
	return m.Called().Get(0).(session.Status)
}

func (m *MockController) Mode() (uint32, error) {
	args := m.Called()
	return args.Get(0).(uint32), args.Error(1)
}

func (m *MockController) SetMode(mode uint32) error {
	return m.Called(mode).Error(0)
}

func (m *MockController) DrainNow(ctx context.Context) (shmlog.Stats, error) {
	args := m.Called(mock.Anything)
	return args.Get(0).(shmlog.Stats), args.Error(1)
}

func setupRouter(t *testing.T, ctrl Controller) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandlers(logging.NewNop(), monitoring.NewMetrics())
	if ctrl != nil {
		h.SetSession(ctrl)
	}
	router := gin.New()
	h.Register(router, nil)
	return router, h
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRoot(t *testing.T) {
	router, _ := setupRouter(t, nil)

	w := do(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teelog", decode(t, w)["service"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     *session.Status
		wantStatus string
	}{
		{"not attached", nil, "degraded"},
		{"attached but stopped", &session.Status{Running: false}, "degraded"},
		{"draining", &session.Status{Running: true}, "healthy"},
		{"detached", &session.Status{Detached: true}, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctrl Controller
			if tt.status != nil {
				m := new(MockController)
				m.On("Status").Return(*tt.status)
				ctrl = m
			}
			router, _ := setupRouter(t, ctrl)

			w := do(router, http.MethodGet, "/health", "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantStatus, decode(t, w)["status"])
		})
	}
}

func TestSessionEndpointsWithoutSession(t *testing.T) {
	router, _ := setupRouter(t, nil)

	for _, route := range []struct{ method, path, body string }{
		{http.MethodGet, "/status", ""},
		{http.MethodGet, "/mode", ""},
		{http.MethodPut, "/mode", `{"mode":1}`},
		{http.MethodPost, "/drain", ""},
	} {
		w := do(router, route.method, route.path, route.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, route.path)
	}
}

func TestStatus(t *testing.T) {
	m := new(MockController)
	m.On("Status").Return(session.Status{ID: "sess_x", Reader: 12, Writer: 40, Available: 28, Running: true})
	router, _ := setupRouter(t, m)

	w := do(router, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	sess := body["session"].(map[string]interface{})
	assert.Equal(t, "sess_x", sess["id"])
	assert.EqualValues(t, 28, sess["available"])
	assert.Contains(t, body, "drain")
}

func TestSetMode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMode *uint32
	}{
		{"explicit mode", `{"mode":0}`, http.StatusOK, ptr(uint32(0))},
		{"enable flag", `{"enabled":true}`, http.StatusOK, ptr(shmlog.ModeEnabled)},
		{"disable flag", `{"enabled":false}`, http.StatusOK, ptr(shmlog.ModeDisabled)},
		{"mode wins", `{"mode":1,"enabled":false}`, http.StatusOK, ptr(uint32(1))},
		{"empty body", `{}`, http.StatusBadRequest, nil},
		{"malformed", `{"mode":`, http.StatusBadRequest, nil},
		{"negative", `{"mode":-1}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockController)
			if tt.wantMode != nil {
				m.On("SetMode", *tt.wantMode).Return(nil).Once()
			}
			router, _ := setupRouter(t, m)

			w := do(router, http.MethodPut, "/mode", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			m.AssertExpectations(t)
		})
	}
}

func TestSetModeDetached(t *testing.T) {
	m := new(MockController)
	m.On("SetMode", uint32(1)).Return(session.ErrDetached)
	router, _ := setupRouter(t, m)

	w := do(router, http.MethodPut, "/mode", `{"mode":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetMode(t *testing.T) {
	m := new(MockController)
	m.On("Mode").Return(uint32(0), nil)
	router, _ := setupRouter(t, m)

	w := do(router, http.MethodGet, "/mode", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["enabled"])
}

func TestDrain(t *testing.T) {
	m := new(MockController)
	m.On("DrainNow", mock.Anything).Return(shmlog.Stats{Bytes: 12, Lines: 2}, nil)
	router, _ := setupRouter(t, m)

	w := do(router, http.MethodPost, "/drain", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["lines"])
	assert.Equal(t, true, body["success"])
}

func TestDrainReassemblyErrorStillReports(t *testing.T) {
	m := new(MockController)
	m.On("DrainNow", mock.Anything).Return(shmlog.Stats{Bytes: 3}, shmlog.ErrReassembly)
	router, _ := setupRouter(t, m)

	w := do(router, http.MethodPost, "/drain", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestLogLevel(t *testing.T) {
	router, h := setupRouter(t, nil)

	w := do(router, http.MethodPut, "/log-level", `{"level":"debug"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debug", h.logger.Level())

	w = do(router, http.MethodGet, "/log-level", "")
	assert.Equal(t, "debug", decode(t, w)["level"])

	w = do(router, http.MethodPut, "/log-level", `{"level":"loud"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPut, "/log-level", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	router, h := setupRouter(t, nil)
	h.metrics.ObserveDrain(shmlog.Stats{Bytes: 10, Lines: 2}, nil)

	w := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "teelog_")

	w = do(router, http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["lines"])
}

func ptr[T any](v T) *T { return &v }
