package models

import "time"

// Recommendation labels for market opportunities.
const (
	RecommendStrongBuy = "STRONG BUY"
	RecommendBuy       = "BUY"
	RecommendConsider  = "CONSIDER"
	RecommendPass      = "PASS"
)

// HotelPerformance is the historical track record of one hotel.
type HotelPerformance struct {
	HotelID          string  `json:"hotel_id" db:"hotel_id"`
	HotelName        string  `json:"hotel_name" db:"hotel_name"`
	City             string  `json:"city" db:"city"`
	BookingCount     int     `json:"booking_count" db:"booking_count"`
	SoldCount        int     `json:"sold_count" db:"sold_count"`
	SuccessRate      float64 `json:"success_rate" db:"success_rate"`
	AvgPrice         float64 `json:"avg_price" db:"avg_price"`
	PriceStdDev      float64 `json:"price_std_dev" db:"price_std_dev"`
	AvgMarginPct     float64 `json:"avg_margin_pct" db:"avg_margin_pct"`
	CancellationRate float64 `json:"cancellation_rate" db:"cancellation_rate"`
}

// CompetitorSnapshot aggregates competitor prices over a recent window.
type CompetitorSnapshot struct {
	Avg             float64 `json:"avg" ch:"avg_price"`
	Min             float64 `json:"min" ch:"min_price"`
	Max             float64 `json:"max" ch:"max_price"`
	CompetitorCount int     `json:"competitor_count" ch:"competitors"`
}

// LivePrice is one live quote from the supplier search service.
type LivePrice struct {
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	RoomType string  `json:"room_type"`
}

// Opportunity is a candidate trade produced by an opportunity scan.
type Opportunity struct {
	ID                 string           `json:"id"`
	HotelID            string           `json:"hotel_id"`
	HotelName          string           `json:"hotel_name"`
	City               string           `json:"city"`
	CheckIn            time.Time        `json:"check_in"`
	CheckOut           time.Time        `json:"check_out"`
	RoomType           string           `json:"room_type,omitempty"`
	Currency           string           `json:"currency,omitempty"`
	BuyPrice           float64          `json:"buy_price"`
	HistoricalAvgPrice float64          `json:"historical_avg_price"`
	PriceDiffPct       float64          `json:"price_diff_pct"`
	SuccessRate        float64          `json:"success_rate"`
	SuggestedSellPrice float64          `json:"suggested_sell_price"`
	ExpectedMargin     float64          `json:"expected_margin"`
	ExpectedMarginPct  float64          `json:"expected_margin_pct"`
	SuccessProbability float64          `json:"success_probability"`
	Confidence         float64          `json:"confidence"`
	SearchDemand       int              `json:"search_demand"`
	RiskScore          float64          `json:"risk_score"`
	RiskLevel          string           `json:"risk_level"`
	Recommendation     string           `json:"recommendation"`
	Reasons            []string         `json:"reasons"`
	Prediction         *PricePrediction `json:"prediction,omitempty"`
	DetectedAt         time.Time        `json:"detected_at"`
}

// ScanResult is the output of an opportunity scan.
type ScanResult struct {
	City          string            `json:"city,omitempty"`
	Cities        []string          `json:"cities,omitempty"`
	Candidates    int               `json:"candidates"`
	Priced        int               `json:"priced"`
	Opportunities []Opportunity     `json:"opportunities"`
	Failures      map[string]string `json:"failures,omitempty"`
	ScannedAt     time.Time         `json:"scanned_at"`
}

// Portfolio is a selected subset of opportunities under a budget.
type Portfolio struct {
	Selected        []Opportunity `json:"selected"`
	Considered      int           `json:"considered"`
	Eligible        int           `json:"eligible"`
	Skipped         int           `json:"skipped"`
	TotalInvestment float64       `json:"total_investment"`
	ExpectedRevenue float64       `json:"expected_revenue"`
	ExpectedProfit  float64       `json:"expected_profit"`
	AvgROIPct       float64       `json:"avg_roi_pct"`
	AvgMarginPct    float64       `json:"avg_margin_pct"`
	RiskLevel       string        `json:"risk_level"`
	BudgetRemaining float64       `json:"budget_remaining"`
	TargetReached   bool          `json:"target_reached"`
}
