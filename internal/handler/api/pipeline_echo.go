package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"RoomArb/internal/domain/models"
	apimetrics "RoomArb/internal/service/metrics"
	"RoomArb/internal/service/ratelimit"
	"RoomArb/internal/services/pricing"
	"RoomArb/internal/usecase"
	xhttp "RoomArb/pkg/http"
	xlogger "RoomArb/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error)
}

type PricePredictor interface {
	PredictPrice(ctx context.Context, req pricing.PredictRequest) (models.PricePrediction, error)
}

type ElasticityService interface {
	CalculateElasticity(ctx context.Context, hotelID string, timeframeDays, minDataPoints int) (models.ElasticityProfile, error)
	RecommendPrice(ctx context.Context, hotelID string, currentPrice float64, objective string) (models.PriceRecommendation, error)
}

type OpportunityScanner interface {
	FindOpportunities(ctx context.Context, p usecase.FindParams) (*models.ScanResult, error)
	ScanAllCities(ctx context.Context, cities []string, p usecase.FindParams) (*models.ScanResult, error)
}

type PortfolioBuilder interface {
	Optimize(opps []models.Opportunity, c usecase.Constraints) (*models.Portfolio, error)
}

// HealthCheck is one named dependency check for /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services are the use cases behind the API. Nil services are not routed.
type Services struct {
	Analysis   Analyzer
	Predictor  PricePredictor
	Elasticity ElasticityService
	Finder     OpportunityScanner
	Portfolio  PortfolioBuilder
	Health     []HealthCheck
}

// PipelineEchoHandler exposes analysis, pricing and opportunity endpoints.
type PipelineEchoHandler struct {
	logger  *xlogger.Logger
	svc     Services
	limiter *ratelimit.Limiter
}

func NewPipelineEchoHandler(logger *xlogger.Logger, svc Services, limiter *ratelimit.Limiter) *PipelineEchoHandler {
	return &PipelineEchoHandler{logger: logger, svc: svc, limiter: limiter}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(RateLimit(h.limiter))
	}
	if h.svc.Analysis != nil {
		g.POST("/analysis", h.Analysis)
	}
	if h.svc.Predictor != nil {
		g.POST("/price/predict", h.Predict)
	}
	if h.svc.Elasticity != nil {
		g.GET("/elasticity", h.Elasticity)
		g.GET("/price/recommend", h.Recommend)
	}
	if h.svc.Finder != nil {
		g.GET("/opportunities", h.Opportunities)
		g.POST("/opportunities/scan", h.Scan)
	}
	if h.svc.Portfolio != nil {
		g.POST("/portfolio/optimize", h.Portfolio)
	}
}

// RateLimit rejects clients over their per-IP budget with 429.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}

func (h *PipelineEchoHandler) Analysis(c echo.Context) error {
	start := time.Now()
	req := &AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Analysis.Analyze(c.Request().Context(), req.params())
	return h.respond(c, "analysis", start, res, err)
}

func (h *PipelineEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	req := &PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	in, aerr := parseDate("check_in", req.CheckIn)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	out, aerr := parseDate("check_out", req.CheckOut)
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	pred, err := h.svc.Predictor.PredictPrice(c.Request().Context(), pricing.PredictRequest{
		HotelID:      req.HotelID,
		CheckIn:      in,
		CheckOut:     out,
		BuyPrice:     req.BuyPrice,
		RoomType:     req.RoomType,
		LeadTimeDays: req.LeadTimeDays,
		DemandLevel:  req.DemandLevel,
	})
	return h.respond(c, "predict", start, pred, err)
}

func (h *PipelineEchoHandler) Elasticity(c echo.Context) error {
	start := time.Now()
	req := &ElasticityQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.svc.Elasticity.CalculateElasticity(c.Request().Context(), req.HotelID, req.TimeframeDays, req.MinDataPoints)
	if err == nil {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	}
	return h.respond(c, "elasticity", start, p, err)
}

func (h *PipelineEchoHandler) Recommend(c echo.Context) error {
	start := time.Now()
	req := &RecommendQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.svc.Elasticity.RecommendPrice(c.Request().Context(), req.HotelID, req.CurrentPrice, req.Objective)
	return h.respond(c, "recommend", start, rec, err)
}

func (h *PipelineEchoHandler) Opportunities(c echo.Context) error {
	start := time.Now()
	req := &OpportunitiesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, aerr := req.params()
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	res, err := h.svc.Finder.FindOpportunities(c.Request().Context(), p)
	return h.respond(c, "opportunities", start, res, err)
}

func (h *PipelineEchoHandler) Scan(c echo.Context) error {
	start := time.Now()
	req := &ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, aerr := req.params()
	if aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}
	res, err := h.svc.Finder.ScanAllCities(c.Request().Context(), req.Cities, p)
	return h.respond(c, "scan", start, res, err)
}

func (h *PipelineEchoHandler) Portfolio(c echo.Context) error {
	start := time.Now()
	req := &PortfolioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Portfolio.Optimize(req.Opportunities, req.constraints())
	return h.respond(c, "portfolio", start, res, err)
}

func (h *PipelineEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.svc.Health))
	status := http.StatusOK
	for _, hc := range h.svc.Health {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			h.logger.Warn("health check failed", xlogger.String("dependency", hc.Name), xlogger.Error(err))
			continue
		}
		checks[hc.Name] = "ok"
	}
	return xhttp.DataResponse(c, status, checks)
}

func (h *PipelineEchoHandler) respond(c echo.Context, endpoint string, start time.Time, data interface{}, err error) error {
	apimetrics.Observe(endpoint, time.Since(start).Seconds(), err != nil)
	if err == nil {
		return xhttp.SuccessResponse(c, data)
	}
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Warn(endpoint+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
