package models

import "time"

// AgentID identifies one analysis agent.
type AgentID string

const (
	AgentMarket      AgentID = "market_analysis"
	AgentDemand      AgentID = "demand_prediction"
	AgentCompetition AgentID = "competition_monitor"
	AgentDetector    AgentID = "opportunity_detector"
)

// Urgency of a recommendation.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Recommendation actions emitted by agents.
const (
	ActionBuy     = "BUY"
	ActionSell    = "SELL"
	ActionHold    = "HOLD"
	ActionWait    = "WAIT"
	ActionCaution = "CAUTION"
	ActionMonitor = "MONITOR"
)

// Recommendation is a single action suggested by an agent.
type Recommendation struct {
	Action  string  `json:"action"`
	Reason  string  `json:"reason"`
	Urgency Urgency `json:"urgency"`
}

// AgentReport is produced by exactly one agent per request.
// Only the analysis field matching Agent is populated.
type AgentReport struct {
	Agent           AgentID          `json:"agent"`
	Success         bool             `json:"success"`
	Confidence      float64          `json:"confidence"`
	Reason          string           `json:"reason,omitempty"`
	SampleSize      int              `json:"sample_size"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Duration        time.Duration    `json:"duration_ns"`

	Market        *MarketAnalysis      `json:"market,omitempty"`
	Demand        *DemandAnalysis      `json:"demand,omitempty"`
	Competition   *CompetitionAnalysis `json:"competition,omitempty"`
	Opportunities *OpportunityScan     `json:"opportunities,omitempty"`
}

// FailedReport builds the non-throwing insufficient-data result.
func FailedReport(agent AgentID, reason string, samples int) AgentReport {
	return AgentReport{Agent: agent, Success: false, Confidence: 0, Reason: reason, SampleSize: samples}
}

// PriceStats summarises a price series.
type PriceStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Trend labels.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// SeasonBucket aggregates bookings for one weekday or one month.
type SeasonBucket struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
}

// MarketIndicators are the derived market signals.
type MarketIndicators struct {
	PricePositionPct float64 `json:"price_position_pct"` // latest price vs mean
	VolatilityPct    float64 `json:"volatility_pct"`     // coefficient of variation
	MomentumPct      float64 `json:"momentum_pct"`
}

// MarketAnalysis is the payload of the market analysis agent.
type MarketAnalysis struct {
	Prices         PriceStats       `json:"prices"`
	Trend          string           `json:"trend"`
	TrendChangePct float64          `json:"trend_change_pct"`
	DayOfWeek      []SeasonBucket   `json:"day_of_week"`
	Months         []SeasonBucket   `json:"months"`
	Indicators     MarketIndicators `json:"indicators"`
}

// LeadTimeBucket counts bookings by days between purchase and check-in.
type LeadTimeBucket struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// DemandForecastDay is the expected demand for one future day.
type DemandForecastDay struct {
	Date       time.Time `json:"date"`
	Expected   float64   `json:"expected"`
	Multiplier float64   `json:"multiplier"`
	Level      string    `json:"level"`
}

// SearchIntent summarises search velocity.
type SearchIntent struct {
	Searches       int     `json:"searches"`
	PerDay         float64 `json:"per_day"`
	Trend          string  `json:"trend"`
	TrendChangePct float64 `json:"trend_change_pct"`
}

// DemandAnalysis is the payload of the demand prediction agent.
type DemandAnalysis struct {
	VelocityPerDay        float64             `json:"velocity_per_day"`
	RecentVelocityPerDay  float64             `json:"recent_velocity_per_day"`
	Acceleration          float64             `json:"acceleration"`
	LeadTime              []LeadTimeBucket    `json:"lead_time"`
	Forecast              []DemandForecastDay `json:"forecast"`
	Search                SearchIntent        `json:"search"`
	SearchRecommendations []Recommendation    `json:"search_recommendations,omitempty"`
}

// CompetitorStats describes one hotel within the competitive set.
type CompetitorStats struct {
	HotelID         string  `json:"hotel_id"`
	HotelName       string  `json:"hotel_name"`
	Volume          int     `json:"volume"`
	AvgPrice        float64 `json:"avg_price"`
	VolatilityPct   float64 `json:"volatility_pct"`
	ConversionRate  float64 `json:"conversion_rate"`
	ActiveInventory int     `json:"active_inventory"`
	Score           float64 `json:"score"`
	Rank            int     `json:"rank"`
}

// PriceGap is a jump between two adjacent hotels ordered by average price.
type PriceGap struct {
	LowerHotelID string  `json:"lower_hotel_id"`
	UpperHotelID string  `json:"upper_hotel_id"`
	LowerPrice   float64 `json:"lower_price"`
	UpperPrice   float64 `json:"upper_price"`
	GapPct       float64 `json:"gap_pct"`
}

// CompetitionAnalysis is the payload of the competition monitor agent.
type CompetitionAnalysis struct {
	HotelCount      int               `json:"hotel_count"`
	Ranking         []CompetitorStats `json:"ranking"`
	PriceGaps       []PriceGap        `json:"price_gaps"`
	Leaders         []string          `json:"leaders"`
	Underperformers []string          `json:"underperformers"`
}

// DetectedKind classifies an opportunity found in the booking batch.
type DetectedKind string

const (
	KindBuy       DetectedKind = "BUY"
	KindSell      DetectedKind = "SELL"
	KindArbitrage DetectedKind = "ARBITRAGE"
	KindTiming    DetectedKind = "TIMING"
)

// Priority of a detected opportunity.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DetectedOpportunity is one actionable booking-level finding.
type DetectedOpportunity struct {
	Kind               DetectedKind `json:"kind"`
	BookingID          string       `json:"booking_id"`
	HotelID            string       `json:"hotel_id"`
	HotelName          string       `json:"hotel_name"`
	Price              float64      `json:"price"`
	ReferencePrice     float64      `json:"reference_price"`
	DiscountPct        float64      `json:"discount_pct,omitempty"`
	PremiumPct         float64      `json:"premium_pct,omitempty"`
	SpreadPct          float64      `json:"spread_pct,omitempty"`
	DaysToCheckIn      int          `json:"days_to_check_in"`
	ExpectedProfit     float64      `json:"expected_profit"`
	MarginPct          float64      `json:"margin_pct"`
	ROIPct             float64      `json:"roi_pct"`
	CheckIn            time.Time    `json:"check_in"`
	Sold               bool         `json:"sold"`
	Pushed             bool         `json:"pushed"`
	CancellationPolicy string       `json:"cancellation_policy,omitempty"`
	Priority           Priority     `json:"priority"`
	Score              float64      `json:"score"`
	FinalScore         float64      `json:"final_score"`
	Reason             string       `json:"reason"`
}

// PriceAnomaly is a booking priced more than two standard deviations from its hotel mean.
type PriceAnomaly struct {
	BookingID string  `json:"booking_id"`
	HotelID   string  `json:"hotel_id"`
	Price     float64 `json:"price"`
	HotelMean float64 `json:"hotel_mean"`
	ZScore    float64 `json:"z_score"`
}

// OpportunityScan is the payload of the opportunity detector agent.
type OpportunityScan struct {
	Anomalies     []PriceAnomaly        `json:"anomalies"`
	Opportunities []DetectedOpportunity `json:"opportunities"`
	Counts        map[DetectedKind]int  `json:"counts"`
	Filtered      int                   `json:"filtered"`
}
