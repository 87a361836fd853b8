package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/config"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit.RequestsPerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, testLogger())
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorResponse {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.Success)
	return body.Error
}

func TestCalculateJSON(t *testing.T) {
	s := newTestServer(t, nil)
	rec := postJSON(t, s.Handler(), `{"function":"x**2 + y**2","a":-1,"b":1,"c":-1,"d":1,"num_points":20}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp calculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.InDelta(t, 8.0/3, resp.Volume, 1e-6)
	assert.Less(t, resp.Error, 1e-6)
	assert.Positive(t, resp.Evaluations)
	assert.Equal(t, "x**2 + y**2", resp.Canonical)
	assert.Equal(t, domain.Domain{XMin: -1, XMax: 1, YMin: -1, YMax: 1}, resp.Domain)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)

	require.NotNil(t, resp.Grid)
	assert.Equal(t, 20, resp.Grid.N)
	require.Len(t, resp.Grid.Z, 20)
	assert.Equal(t, -1.0, resp.Grid.X[0][0])
	assert.Equal(t, 1.0, resp.Grid.X[19][19])
	assert.InDelta(t, 2.0, resp.Grid.Z[0][0], 1e-12)
}

func TestCalculateDefaultsAndSkipGrid(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postJSON(t, s.Handler(), `{"function":"1","a":0,"b":1,"c":0,"d":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp calculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Grid)
	assert.Equal(t, domain.DefaultResolution, resp.Grid.N)

	rec = postJSON(t, s.Handler(), `{"function":"1","a":0,"b":1,"c":0,"d":1,"skip_grid":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = calculateResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Grid)
	assert.InDelta(t, 1.0, resp.Volume, 1e-12)
}

func TestCalculateForm(t *testing.T) {
	s := newTestServer(t, nil)
	form := url.Values{
		"function":   {"sin(x) * cos(y)"},
		"a":          {"0"},
		"b":          {"3.141592653589793"},
		"c":          {"0"},
		"d":          {"1.5707963267948966"},
		"num_points": {"10"},
	}
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	var resp calculateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 2.0, resp.Volume, 1e-6)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		mutate func(*config.Config)
		status int
		code   string
	}{
		{name: "parse", body: `{"function":"x +","a":0,"b":1,"c":0,"d":1}`, status: http.StatusBadRequest, code: domain.CodeParse},
		{name: "unknown symbol", body: `{"function":"__import__(x)","a":0,"b":1,"c":0,"d":1}`, status: http.StatusBadRequest, code: domain.CodeParse},
		{name: "inverted domain", body: `{"function":"x","a":1,"b":0,"c":0,"d":1}`, status: http.StatusBadRequest, code: domain.CodeDomain},
		{name: "resolution out of range", body: `{"function":"x","a":0,"b":1,"c":0,"d":1,"num_points":5}`, status: http.StatusBadRequest, code: domain.CodeDomain},
		{name: "probe non-finite", body: `{"function":"1/(x**2 + y**2)","a":-1,"b":1,"c":-1,"d":1}`, status: http.StatusUnprocessableEntity, code: domain.CodeNonFinite},
		{name: "integrand non-finite", body: `{"function":"log(x)","a":-1,"b":2,"c":0,"d":1,"skip_grid":true}`, status: http.StatusUnprocessableEntity, code: domain.CodeIntegration},
		{
			name:   "no convergence",
			body:   `{"function":"1/abs(x - 0.3)","a":0,"b":1,"c":0,"d":1,"skip_grid":true}`,
			mutate: func(cfg *config.Config) { cfg.Integration.MaxDepth = 8 },
			status: http.StatusUnprocessableEntity,
			code:   domain.CodeConvergence,
		},
		{
			name:   "timeout",
			body:   `{"function":"exp(-(x**2 + y**2))","a":-2,"b":2,"c":-2,"d":2}`,
			mutate: func(cfg *config.Config) { cfg.Integration.Timeout = time.Nanosecond },
			status: http.StatusGatewayTimeout,
			code:   domain.CodeTimeout,
		},
		{name: "missing function", body: `{"a":0,"b":1,"c":0,"d":1}`, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{name: "missing bound", body: `{"function":"x","a":0,"b":1,"c":0}`, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{name: "bound not a number", body: `{"function":"x","a":"zero","b":1,"c":0,"d":1}`, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{name: "unknown field", body: `{"function":"x","a":0,"b":1,"c":0,"d":1,"code":"import os"}`, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{name: "malformed", body: `{"function":`, status: http.StatusBadRequest, code: domain.CodeBadRequest},
		{
			name:   "body too large",
			body:   `{"function":"` + strings.Repeat("x+", 100) + `x","a":0,"b":1,"c":0,"d":1}`,
			mutate: func(cfg *config.Config) { cfg.Server.MaxBodyBytes = 64 },
			status: http.StatusBadRequest,
			code:   domain.CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.mutate)
			rec := postJSON(t, s.Handler(), tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)
		})
	}
}

func TestCalculateRateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})
	h := s.Handler()
	body := `{"function":"x","a":0,"b":1,"c":0,"d":1,"skip_grid":true}`

	rec := postJSON(t, h, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// One token at 0.001/s takes 1000 seconds to come back.
	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(1000*time.Second).Unix(), reset, 5)

	rec = postJSON(t, h, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.CodeRateLimited, decodeError(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestExamplesAndHealth(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/examples", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Examples []struct {
			Name     string  `json:"name"`
			Function string  `json:"function"`
			Expected float64 `json:"expected"`
		} `json:"examples"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Examples, 4)
	assert.Equal(t, "paraboloid", body.Examples[0].Name)
	assert.InDelta(t, 128.0/3, body.Examples[0].Expected, 1e-12)
	assert.False(t, math.IsNaN(body.Examples[1].Expected))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calculate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	postJSON(t, h, `{"function":"x","a":0,"b":1,"c":0,"d":1,"skip_grid":true}`)
	postJSON(t, h, `{"function":"x +","a":0,"b":1,"c":0,"d":1}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.Contains(t, out, `volcalc_calculations_total{code="OK"} 1`)
	assert.Contains(t, out, `volcalc_calculations_total{code="PARSE_ERROR"} 1`)
	assert.Contains(t, out, `volcalc_http_requests_total{endpoint="calculate",method="POST",status_code="200"} 1`)
	assert.Contains(t, out, `volcalc_http_requests_total{endpoint="calculate",method="POST",status_code="400"} 1`)
	assert.Contains(t, out, "volcalc_integrand_evaluations_count 1")
}

func TestRecoverMiddleware(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/calculate", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.CodeInternal, decodeError(t, rec).Code)
}

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForCode(domain.CodeParse))
	assert.Equal(t, http.StatusBadRequest, StatusForCode(domain.CodeDomain))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForCode(domain.CodeNonFinite))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForCode(domain.CodeIntegration))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForCode(domain.CodeConvergence))
	assert.Equal(t, http.StatusGatewayTimeout, StatusForCode(domain.CodeTimeout))
	assert.Equal(t, http.StatusTooManyRequests, StatusForCode(domain.CodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, StatusForCode(domain.CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, StatusForCode("SOMETHING_ELSE"))
}

func TestWatchConfigAppliesReloads(t *testing.T) {
	s := newTestServer(t, nil)
	updates := make(chan *config.Config, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WatchConfig(ctx, updates)
		close(done)
	}()

	bad := config.Default()
	bad.Integration.MaxDepth = 0
	updates <- bad

	good := config.Default()
	good.Integration.MaxDepth = 12
	good.Integration.Workers = 4
	good.RateLimit.RequestsPerSecond = 5
	good.RateLimit.Burst = 7
	updates <- good

	assert.Eventually(t, func() bool {
		return s.Calculator().Options().MaxDepth == 12
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, s.Calculator().Options().Workers)
	assert.Equal(t, 7, s.limiter.Limit().BurstSize)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchConfig did not return after cancel")
	}
}

func TestApplyConfigRejectsInvalid(t *testing.T) {
	s := newTestServer(t, nil)
	before := s.Calculator().Options()

	bad := config.Default()
	bad.Integration.AbsTol = -1
	assert.Error(t, s.ApplyConfig(bad))
	assert.Error(t, s.ApplyConfig(nil))
	assert.Equal(t, before, s.Calculator().Options())
}

func TestEndpointName(t *testing.T) {
	assert.Equal(t, "calculate", endpointName("/calculate"))
	assert.Equal(t, "health", endpointName("/healthz"))
	assert.Equal(t, "unknown", endpointName("/calculate/extra"))
}
