package models

import "time"

// Signal is a consensus bucket.
type Signal string

const (
	SignalBuy     Signal = "buy"
	SignalSell    Signal = "sell"
	SignalHold    Signal = "hold"
	SignalCaution Signal = "caution"
)

// AllSignals lists buckets in tie-break order.
var AllSignals = []Signal{SignalBuy, SignalSell, SignalHold, SignalCaution}

// Consensus strength labels.
const (
	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
	StrengthMixed    = "mixed"
)

// Risk levels shared by decisions, predictions, opportunities and portfolios.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// SignalBucket accumulates the votes for one signal.
type SignalBucket struct {
	Votes    int       `json:"votes"`
	Strength float64   `json:"strength"`
	Agents   []AgentID `json:"agents"`
}

// ConsensusResult is the weighted vote across agent reports.
type ConsensusResult struct {
	Signals       map[Signal]*SignalBucket `json:"signals"`
	Primary       Signal                   `json:"primary"`
	Secondary     Signal                   `json:"secondary,omitempty"`
	Strength      string                   `json:"strength"`
	PrimaryShare  float64                  `json:"primary_share"`
	TotalStrength float64                  `json:"total_strength"`
}

// PlannedAction is one step of the action plan.
type PlannedAction struct {
	Type     string  `json:"type"`
	Priority int     `json:"priority"`
	Urgency  Urgency `json:"urgency"`
	HotelID  string  `json:"hotel_id,omitempty"`
	Reason   string  `json:"reason"`
	Score    float64 `json:"score,omitempty"`
}

// RiskAssessment is the portfolio-level risk of acting on a decision.
type RiskAssessment struct {
	Points  int      `json:"points"`
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
}

// Decision is the output of the decision synthesizer.
type Decision struct {
	Success      bool            `json:"success"`
	Reason       string          `json:"reason,omitempty"`
	AgentsUsed   int             `json:"agents_used"`
	Confidence   float64         `json:"confidence"`
	Consensus    ConsensusResult `json:"consensus"`
	ActionPlan   []PlannedAction `json:"action_plan"`
	Risk         RiskAssessment  `json:"risk"`
	GeneratedAt  time.Time       `json:"generated_at"`
	RiskAccepted bool            `json:"risk_accepted"`
}
