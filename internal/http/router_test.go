package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	rlmodels "paydesk/internal/ratelimit/models"
)

type passLimiter struct {
	presets []rlmodels.Preset
}

func (p *passLimiter) RateLimit(preset rlmodels.Preset) func(http.Handler) http.Handler {
	p.presets = append(p.presets, preset)
	return func(next http.Handler) http.Handler { return next }
}

type stubRegistrar struct {
	path string
}

func (s stubRegistrar) Register(r chi.Router) {
	r.Post(s.path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type RouterSuite struct {
	suite.Suite
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) TestRoutesBehindTheirPresets() {
	limiter := &passLimiter{}
	router := NewRouter(Deps{
		RateLimit: limiter,
		Webhook:   stubRegistrar{path: "/webhooks/payments"},
		Intake:    stubRegistrar{path: "/intake"},
	})

	s.Equal([]rlmodels.Preset{rlmodels.PresetAPI, rlmodels.PresetIntake}, limiter.presets)

	for _, path := range []string{"/webhooks/payments", "/intake"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		s.Equal(http.StatusOK, rec.Code, path)
	}
}

func (s *RouterSuite) TestHealthzReportsDependencies() {
	router := NewRouter(Deps{
		RateLimit: &passLimiter{},
		HealthChecks: map[string]func(ctx context.Context) error{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("degraded", body["status"])
	s.Equal("ok", body["postgres"])
	s.Contains(body["redis"], "connection refused")
}

func (s *RouterSuite) TestHealthzOK() {
	router := NewRouter(Deps{RateLimit: &passLimiter{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestMetricsExposed() {
	router := NewRouter(Deps{RateLimit: &passLimiter{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}
