package api

import (
	"net/http"
	"time"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/agents"
	"RoomArb/internal/usecase"
	xhttp "RoomArb/pkg/http"
	"RoomArb/pkg/util"
)

type AnalysisRequest struct {
	HotelID       string         `json:"hotel_id"`
	City          string         `json:"city"`
	LookbackDays  int            `json:"lookback_days" validate:"gte=0,lte=730"`
	RiskTolerance string         `json:"risk_tolerance" validate:"omitempty,oneof=low medium high"`
	Instruction   string         `json:"instruction" validate:"max=500"`
	Filter        *agents.Filter `json:"filter"`
	Publish       bool           `json:"publish"`
}

func (r AnalysisRequest) params() usecase.AnalyzeParams {
	return usecase.AnalyzeParams{
		HotelID:       r.HotelID,
		City:          r.City,
		LookbackDays:  r.LookbackDays,
		RiskTolerance: r.RiskTolerance,
		Instruction:   r.Instruction,
		Filter:        r.Filter,
		Publish:       r.Publish,
	}
}

type PredictRequest struct {
	HotelID      string  `json:"hotel_id" validate:"required"`
	CheckIn      string  `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut     string  `json:"check_out" validate:"required,datetime=2006-01-02"`
	BuyPrice     float64 `json:"buy_price" validate:"required,finite,gt=0"`
	RoomType     string  `json:"room_type"`
	LeadTimeDays int     `json:"lead_time_days" validate:"gte=0"`
	DemandLevel  string  `json:"demand_level" validate:"omitempty,oneof=low medium high very_high"`
}

type ElasticityQuery struct {
	HotelID       string `query:"hotel_id" validate:"required"`
	TimeframeDays int    `query:"timeframe_days" default:"180" validate:"gt=0,lte=730"`
	MinDataPoints int    `query:"min_data_points" default:"10" validate:"gte=0"`
}

type RecommendQuery struct {
	HotelID      string  `query:"hotel_id" validate:"required"`
	CurrentPrice float64 `query:"current_price" validate:"required,finite,gt=0"`
	Objective    string  `query:"objective" default:"revenue" validate:"oneof=revenue profit conversion"`
}

type OpportunitiesQuery struct {
	City           string  `query:"city" validate:"required"`
	CheckIn        string  `query:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut       string  `query:"check_out" validate:"omitempty,datetime=2006-01-02"`
	Adults         int     `query:"adults" default:"2" validate:"gt=0,lte=10"`
	MinMarginPct   float64 `query:"min_margin_pct" validate:"finite,gte=0,lte=100"`
	MaxRiskScore   float64 `query:"max_risk_score" validate:"finite,gte=0,lte=100"`
	Limit          int     `query:"limit" default:"20" validate:"gt=0,lte=100"`
	HistoryMonths  int     `query:"history_months" validate:"gte=0,lte=24"`
	WithPrediction bool    `query:"with_prediction"`
}

func (q OpportunitiesQuery) params() (usecase.FindParams, *xhttp.AppError) {
	return findParams(q.City, q.CheckIn, q.CheckOut, q.Adults, q.MinMarginPct, q.MaxRiskScore, q.Limit, q.HistoryMonths, q.WithPrediction)
}

type ScanRequest struct {
	Cities         []string `json:"cities" validate:"required,min=1,max=50,dive,required"`
	CheckIn        string   `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut       string   `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	Adults         int      `json:"adults" default:"2" validate:"gt=0,lte=10"`
	MinMarginPct   float64  `json:"min_margin_pct" validate:"gte=0,lte=100"`
	MaxRiskScore   float64  `json:"max_risk_score" validate:"gte=0,lte=100"`
	Limit          int      `json:"limit" default:"20" validate:"gt=0,lte=100"`
	HistoryMonths  int      `json:"history_months" validate:"gte=0,lte=24"`
	WithPrediction bool     `json:"with_prediction"`
}

func (r ScanRequest) params() (usecase.FindParams, *xhttp.AppError) {
	return findParams("", r.CheckIn, r.CheckOut, r.Adults, r.MinMarginPct, r.MaxRiskScore, r.Limit, r.HistoryMonths, r.WithPrediction)
}

type PortfolioRequest struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	MaxInvestment float64              `json:"max_investment" validate:"required,finite,gt=0"`
	MinMarginPct  float64              `json:"min_margin_pct" validate:"gte=0,lte=100"`
	MaxRiskLevel  string               `json:"max_risk_level" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	TargetRevenue float64              `json:"target_revenue" validate:"finite,gte=0"`
	MaxPositions  int                  `json:"max_positions" validate:"gte=0"`
}

func (r PortfolioRequest) constraints() usecase.Constraints {
	return usecase.Constraints{
		MaxInvestment: r.MaxInvestment,
		MinMarginPct:  r.MinMarginPct,
		MaxRiskLevel:  r.MaxRiskLevel,
		TargetRevenue: r.TargetRevenue,
		MaxPositions:  r.MaxPositions,
	}
}

func findParams(city, checkIn, checkOut string, adults int, minMargin, maxRisk float64, limit, months int, predict bool) (usecase.FindParams, *xhttp.AppError) {
	in, aerr := parseDate("check_in", checkIn)
	if aerr != nil {
		return usecase.FindParams{}, aerr
	}
	var out time.Time
	if checkOut != "" {
		if out, aerr = parseDate("check_out", checkOut); aerr != nil {
			return usecase.FindParams{}, aerr
		}
	}
	return usecase.FindParams{
		City:           city,
		CheckIn:        in,
		CheckOut:       out,
		Adults:         adults,
		MinMarginPct:   minMargin,
		MaxRiskScore:   maxRisk,
		Limit:          limit,
		HistoryMonths:  months,
		WithPrediction: predict,
	}, nil
}

func parseDate(field, s string) (time.Time, *xhttp.AppError) {
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, xhttp.NewAppError("ERR_DATETIME", field, field+" must be a date", http.StatusBadRequest)
	}
	return t, nil
}
