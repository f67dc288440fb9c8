package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/service/ratelimit"
	"RoomArb/internal/services/pricing"
	"RoomArb/internal/usecase"
)

type stubAnalyzer struct {
	got usecase.AnalyzeParams
	res *models.AnalysisResult
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error) {
	s.got = p
	return s.res, s.err
}

type stubPredictor struct {
	got pricing.PredictRequest
	err error
}

func (s *stubPredictor) PredictPrice(_ context.Context, req pricing.PredictRequest) (models.PricePrediction, error) {
	s.got = req
	if s.err != nil {
		return models.PricePrediction{}, s.err
	}
	return models.PricePrediction{HotelID: req.HotelID, OptimalPrice: 150, Risk: models.RiskLow}, nil
}

type stubElasticity struct {
	timeframe, minPoints int
	objective            string
	err                  error
}

func (s *stubElasticity) CalculateElasticity(_ context.Context, hotelID string, timeframeDays, minDataPoints int) (models.ElasticityProfile, error) {
	s.timeframe, s.minPoints = timeframeDays, minDataPoints
	return models.ElasticityProfile{Success: true, HotelID: hotelID, Elasticity: -1.2}, s.err
}

func (s *stubElasticity) RecommendPrice(_ context.Context, hotelID string, currentPrice float64, objective string) (models.PriceRecommendation, error) {
	s.objective = objective
	return models.PriceRecommendation{Success: true, HotelID: hotelID, CurrentPrice: currentPrice}, s.err
}

type stubScanner struct {
	got    usecase.FindParams
	cities []string
	err    error
}

func (s *stubScanner) FindOpportunities(_ context.Context, p usecase.FindParams) (*models.ScanResult, error) {
	s.got = p
	if s.err != nil {
		return nil, s.err
	}
	return &models.ScanResult{City: p.City}, nil
}

func (s *stubScanner) ScanAllCities(_ context.Context, cities []string, p usecase.FindParams) (*models.ScanResult, error) {
	s.cities, s.got = cities, p
	return &models.ScanResult{Cities: cities}, s.err
}

type stubPortfolio struct {
	got usecase.Constraints
	n   int
}

func (s *stubPortfolio) Optimize(opps []models.Opportunity, c usecase.Constraints) (*models.Portfolio, error) {
	s.got, s.n = c, len(opps)
	return &models.Portfolio{Considered: len(opps)}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEcho(svc Services, lim *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewPipelineEchoHandler(nil, svc, lim).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestPredictParsesDates(t *testing.T) {
	p := &stubPredictor{}
	e := newTestEcho(Services{Predictor: p}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/price/predict",
		`{"hotel_id":"h1","check_in":"2025-03-20","check_out":"2025-03-22","buy_price":120,"demand_level":"high"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var pred models.PricePrediction
	require.NoError(t, json.Unmarshal(env.Data, &pred))
	assert.Equal(t, 150.0, pred.OptimalPrice)
	assert.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), p.got.CheckIn)
	assert.Equal(t, "high", p.got.DemandLevel)
}

func TestPredictValidation(t *testing.T) {
	e := newTestEcho(Services{Predictor: &stubPredictor{}}, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/price/predict", `{"check_in":"2025-03-20","check_out":"2025-03-22","buy_price":120}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"hotel_id"`)

	rec, _ = do(t, e, http.MethodPost, "/api/price/predict", `{"hotel_id":"h1","check_in":"20/03/2025","check_out":"2025-03-22","buy_price":120}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_DATETIME")
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"constraint", models.InvalidConstraint("check_out", "must be after check_in"), http.StatusBadRequest, `"field":"check_out"`},
		{"insufficient", fmt.Errorf("elasticity: %w", models.ErrInsufficientData), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{"upstream", models.Upstream("fetch history", errors.New("dial tcp")), http.StatusServiceUnavailable, "ERR_UPSTREAM_UNAVAILABLE"},
		{"internal", errors.New("pq: relation does not exist"), http.StatusInternalServerError, "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(Services{Predictor: &stubPredictor{err: tt.err}}, nil)
			rec, _ := do(t, e, http.MethodPost, "/api/price/predict",
				`{"hotel_id":"h1","check_in":"2025-03-20","check_out":"2025-03-22","buy_price":120}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.NotContains(t, rec.Body.String(), "dial tcp")
			assert.NotContains(t, rec.Body.String(), "relation")
		})
	}
}

func TestElasticityQueryDefaults(t *testing.T) {
	s := &stubElasticity{}
	e := newTestEcho(Services{Elasticity: s}, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/elasticity?hotel_id=h1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 180, s.timeframe)
	assert.Equal(t, 10, s.minPoints)
	assert.Equal(t, "private, max-age=300", rec.Header().Get(echo.HeaderCacheControl))

	rec, _ = do(t, e, http.MethodGet, "/api/price/recommend?hotel_id=h1&current_price=99.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revenue", s.objective)

	rec, _ = do(t, e, http.MethodGet, "/api/price/recommend?hotel_id=h1&current_price=99.5&objective=volume", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpportunitiesQuery(t *testing.T) {
	s := &stubScanner{}
	e := newTestEcho(Services{Finder: s}, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/opportunities?city=Lisbon&check_in=2025-03-20&min_margin_pct=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", s.got.City)
	assert.Equal(t, 2, s.got.Adults)
	assert.Equal(t, 20, s.got.Limit)
	assert.Equal(t, 10.0, s.got.MinMarginPct)
	assert.True(t, s.got.CheckOut.IsZero())

	rec, _ = do(t, e, http.MethodGet, "/api/opportunities?city=Lisbon&check_in=2025-03-20&limit=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.err = models.Upstream("top hotels", errors.New("timeout"))
	rec, _ = do(t, e, http.MethodGet, "/api/opportunities?city=Lisbon&check_in=2025-03-20", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanAndPortfolio(t *testing.T) {
	s := &stubScanner{}
	pf := &stubPortfolio{}
	e := newTestEcho(Services{Finder: s, Portfolio: pf}, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/opportunities/scan", `{"cities":["Lisbon","Porto"],"check_in":"2025-03-20","limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Lisbon", "Porto"}, s.cities)
	assert.Equal(t, 5, s.got.Limit)

	rec, _ = do(t, e, http.MethodPost, "/api/opportunities/scan", `{"cities":[],"check_in":"2025-03-20"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, e, http.MethodPost, "/api/portfolio/optimize",
		`{"opportunities":[{"id":"a","buy_price":100},{"id":"b","buy_price":200}],"max_investment":500,"max_risk_level":"MEDIUM"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, pf.n)
	assert.Equal(t, 500.0, pf.got.MaxInvestment)
	assert.Equal(t, models.RiskMedium, pf.got.MaxRiskLevel)
	var port models.Portfolio
	require.NoError(t, json.Unmarshal(env.Data, &port))
	assert.Equal(t, 2, port.Considered)

	rec, _ = do(t, e, http.MethodPost, "/api/portfolio/optimize", `{"opportunities":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisPassesFilter(t *testing.T) {
	a := &stubAnalyzer{res: &models.AnalysisResult{RequestID: "r1"}}
	e := newTestEcho(Services{Analysis: a}, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/analysis",
		`{"city":"Lisbon","risk_tolerance":"low","instruction":"weekend deals","filter":{"min_profit":20}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lisbon", a.got.City)
	require.NotNil(t, a.got.Filter)
	assert.Equal(t, 20.0, a.got.Filter.MinProfit)

	rec, _ = do(t, e, http.MethodPost, "/api/analysis", `{"risk_tolerance":"reckless"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnconfiguredServiceNotRouted(t *testing.T) {
	e := newTestEcho(Services{Predictor: &stubPredictor{}}, nil)
	rec, _ := do(t, e, http.MethodPost, "/api/analysis", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestEcho(Services{Elasticity: &stubElasticity{}}, ratelimit.New(0.001, 1))

	rec, _ := do(t, e, http.MethodGet, "/api/elasticity?hotel_id=h1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/elasticity?hotel_id=h1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	e := newTestEcho(Services{Health: []HealthCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "clickhouse", Check: func(context.Context) error { return errors.New("connection refused") }},
	}}, nil)

	rec, env := do(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var checks map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &checks))
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["clickhouse"])
}
