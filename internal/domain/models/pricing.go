package models

import "time"

// Demand levels accepted by the price predictor.
const (
	DemandLow      = "low"
	DemandMedium   = "medium"
	DemandHigh     = "high"
	DemandVeryHigh = "very_high"
)

// PriceBounds is the confidence interval around a recommended price.
type PriceBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceComponents are the sub-model outputs kept for auditability.
type PriceComponents struct {
	Base           float64 `json:"base"`
	ElasticityAdj  float64 `json:"elasticity_adj"`
	CompetitorAdj  float64 `json:"competitor_adj"`
	SeasonalFactor float64 `json:"seasonal_factor"`
	Elasticity     float64 `json:"elasticity"`
}

// PriceFeatures are the joined inputs of one prediction. Fallback flags record
// which values are documented defaults rather than observed data.
type PriceFeatures struct {
	BuyPrice             float64 `json:"buy_price"`
	HistoricalAvg        float64 `json:"historical_avg"`
	HistoricalConversion float64 `json:"historical_conversion"`
	HistoricalSamples    int     `json:"historical_samples"`
	CompetitorAvg        float64 `json:"competitor_avg"`
	CompetitorMin        float64 `json:"competitor_min"`
	CompetitorMax        float64 `json:"competitor_max"`
	CompetitorCount      int     `json:"competitor_count"`
	SearchVolume         int     `json:"search_volume"`
	Occupancy            float64 `json:"occupancy"`
	LeadTimeDays         int     `json:"lead_time_days"`
	DemandLevel          string  `json:"demand_level"`
	Month                int     `json:"month"`
	Weekend              bool    `json:"weekend"`
	HighSeason           bool    `json:"high_season"`

	HistoryFallback    bool `json:"history_fallback"`
	CompetitorFallback bool `json:"competitor_fallback"`
	OccupancyFallback  bool `json:"occupancy_fallback"`
}

// PricePrediction is the ensemble price recommendation.
type PricePrediction struct {
	HotelID            string          `json:"hotel_id"`
	RoomType           string          `json:"room_type,omitempty"`
	OptimalPrice       float64         `json:"optimal_price"`
	Confidence         float64         `json:"confidence"`
	Bounds             PriceBounds     `json:"bounds"`
	ExpectedConversion float64         `json:"expected_conversion"`
	ExpectedProfit     float64         `json:"expected_profit"`
	MarginPct          float64         `json:"margin_pct"`
	Risk               string          `json:"risk"`
	Components         PriceComponents `json:"components"`
	Features           PriceFeatures   `json:"features"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// Demand type classifications.
const (
	DemandHighlyInelastic = "HIGHLY_INELASTIC"
	DemandInelastic       = "INELASTIC"
	DemandUnitary         = "UNITARY"
	DemandElastic         = "ELASTIC"
	DemandHighlyElastic   = "HIGHLY_ELASTIC"
)

// PriceBucket is one fixed-width price bin.
type PriceBucket struct {
	Lower          float64 `json:"lower"`
	Price          float64 `json:"price"`
	ConversionRate float64 `json:"conversion_rate"`
	SampleSize     int     `json:"sample_size"`
}

// ElasticityProfile is the per-hotel price/conversion profile.
type ElasticityProfile struct {
	Success       bool          `json:"success"`
	Reason        string        `json:"reason,omitempty"`
	HotelID       string        `json:"hotel_id"`
	TimeframeDays int           `json:"timeframe_days"`
	DataPoints    int           `json:"data_points"`
	Buckets       []PriceBucket `json:"buckets"`
	PairCount     int           `json:"pair_count"`
	Elasticity    float64       `json:"elasticity"`
	DemandType    string        `json:"demand_type"`
}

// Pricing objectives.
const (
	ObjectiveRevenue    = "revenue"
	ObjectiveProfit     = "profit"
	ObjectiveConversion = "conversion"
)

// PriceRecommendation is the elasticity optimizer's price suggestion.
type PriceRecommendation struct {
	Success              bool        `json:"success"`
	Reason               string      `json:"reason,omitempty"`
	HotelID              string      `json:"hotel_id"`
	Objective            string      `json:"objective"`
	CurrentPrice         float64     `json:"current_price"`
	RecommendedPrice     float64     `json:"recommended_price"`
	AssumedCost          float64     `json:"assumed_cost"`
	CurrentBucket        PriceBucket `json:"current_bucket"`
	RecommendedBucket    PriceBucket `json:"recommended_bucket"`
	ExpectedRevenueDelta float64     `json:"expected_revenue_delta"`
	RevenueChangePct     float64     `json:"revenue_change_pct"`
	ConversionDelta      float64     `json:"conversion_delta"`
	Elasticity           float64     `json:"elasticity"`
	DemandType           string      `json:"demand_type"`
}

// PriceOutcome is one historical (price, sold) pair.
type PriceOutcome struct {
	Price float64 `db:"price"`
	Sold  bool    `db:"sold"`
}
