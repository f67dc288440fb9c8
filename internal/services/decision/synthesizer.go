// Package decision turns agent reports into a consensus signal, an action
// plan and a risk assessment.
package decision

import (
	"fmt"
	"strings"
	"time"

	"RoomArb/internal/domain/models"
	"RoomArb/internal/services/stats"
)

// Risk tolerance levels accepted by Synthesize.
const (
	ToleranceLow    = "low"
	ToleranceMedium = "medium"
	ToleranceHigh   = "high"
)

// Action plan entry types.
const (
	PlanExecuteBuy  = "EXECUTE_BUY"
	PlanExecuteSell = "EXECUTE_SELL"
	PlanOpportunity = "OPPORTUNITY"
	PlanMonitor     = "MONITOR"
)

// Config holds the tunable synthesizer heuristics.
type Config struct {
	Weights             map[models.AgentID]float64
	UrgencyWeights      map[models.Urgency]float64
	MinReports          int
	TopOpportunities    int
	VolatilityRiskPct   float64
	CrowdedMarketHotels int
}

// DefaultConfig returns the documented default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: map[models.AgentID]float64{
			models.AgentMarket:      0.25,
			models.AgentDemand:      0.25,
			models.AgentCompetition: 0.20,
			models.AgentDetector:    0.30,
		},
		UrgencyWeights: map[models.Urgency]float64{
			models.UrgencyHigh:   1.0,
			models.UrgencyMedium: 0.6,
			models.UrgencyLow:    0.3,
		},
		MinReports:          2,
		TopOpportunities:    5,
		VolatilityRiskPct:   20,
		CrowdedMarketHotels: 50,
	}
}

// Synthesizer is stateless; one instance can serve concurrent requests.
type Synthesizer struct {
	cfg Config
	now func() time.Time
}

// New fills missing config values from DefaultConfig.
func New(cfg Config) *Synthesizer {
	def := DefaultConfig()
	if len(cfg.Weights) == 0 {
		cfg.Weights = def.Weights
	}
	if len(cfg.UrgencyWeights) == 0 {
		cfg.UrgencyWeights = def.UrgencyWeights
	}
	if cfg.MinReports <= 0 {
		cfg.MinReports = def.MinReports
	}
	if cfg.TopOpportunities <= 0 {
		cfg.TopOpportunities = def.TopOpportunities
	}
	if cfg.VolatilityRiskPct <= 0 {
		cfg.VolatilityRiskPct = def.VolatilityRiskPct
	}
	if cfg.CrowdedMarketHotels <= 0 {
		cfg.CrowdedMarketHotels = def.CrowdedMarketHotels
	}
	return &Synthesizer{cfg: cfg, now: time.Now}
}

// Synthesize votes across the successful reports. Fewer than MinReports
// successful reports fail closed with Success=false.
func (s *Synthesizer) Synthesize(reports []models.AgentReport, tolerance string) models.Decision {
	ok := make([]models.AgentReport, 0, len(reports))
	for _, r := range reports {
		if r.Success {
			ok = append(ok, r)
		}
	}
	d := models.Decision{AgentsUsed: len(ok), GeneratedAt: s.now().UTC()}
	if len(ok) < s.cfg.MinReports {
		d.Reason = fmt.Sprintf("insufficient successful agent reports: have %d, need %d", len(ok), s.cfg.MinReports)
		return d
	}

	d.Success = true
	d.Consensus = s.consensus(ok)
	d.Confidence = s.confidence(ok)
	d.Risk = s.assessRisk(ok, d.Consensus)
	d.RiskAccepted = accepts(normalizeTolerance(tolerance), d.Risk.Level)
	d.ActionPlan = s.plan(ok, d.Consensus, d.RiskAccepted)
	return d
}

func (s *Synthesizer) consensus(reports []models.AgentReport) models.ConsensusResult {
	c := models.ConsensusResult{Signals: make(map[models.Signal]*models.SignalBucket, len(models.AllSignals))}
	for _, sig := range models.AllSignals {
		c.Signals[sig] = &models.SignalBucket{}
	}
	for _, r := range reports {
		w := s.cfg.Weights[r.Agent]
		for _, rec := range recommendationsOf(r) {
			sig, ok := SignalFor(rec.Action)
			if !ok {
				continue
			}
			b := c.Signals[sig]
			b.Votes++
			b.Strength += s.cfg.UrgencyWeights[rec.Urgency] * w
			if !containsAgent(b.Agents, r.Agent) {
				b.Agents = append(b.Agents, r.Agent)
			}
		}
	}

	var first, second models.Signal
	for _, sig := range models.AllSignals {
		b := c.Signals[sig]
		b.Strength = stats.Round2(b.Strength)
		c.TotalStrength += b.Strength
		switch {
		case first == "" || b.Strength > c.Signals[first].Strength:
			second = first
			first = sig
		case second == "" || b.Strength > c.Signals[second].Strength:
			second = sig
		}
	}
	c.TotalStrength = stats.Round2(c.TotalStrength)
	c.Primary = first
	if second != "" && c.Signals[second].Strength > 0 {
		c.Secondary = second
	}
	if c.TotalStrength > 0 {
		c.PrimaryShare = stats.Round2(c.Signals[first].Strength / c.TotalStrength)
	}
	c.Strength = StrengthLabel(c.PrimaryShare)
	if c.TotalStrength == 0 {
		c.Primary = models.SignalHold
	}
	return c
}

// StrengthLabel maps the primary signal's share of total strength to a label.
func StrengthLabel(share float64) string {
	switch {
	case share > 0.7:
		return models.StrengthStrong
	case share > 0.5:
		return models.StrengthModerate
	case share > 0.3:
		return models.StrengthWeak
	default:
		return models.StrengthMixed
	}
}

// SignalFor maps a recommendation action to its consensus bucket.
func SignalFor(action string) (models.Signal, bool) {
	switch strings.ToUpper(action) {
	case models.ActionBuy:
		return models.SignalBuy, true
	case models.ActionSell:
		return models.SignalSell, true
	case models.ActionHold, models.ActionWait, models.ActionMonitor:
		return models.SignalHold, true
	case models.ActionCaution:
		return models.SignalCaution, true
	default:
		return "", false
	}
}

func (s *Synthesizer) confidence(reports []models.AgentReport) float64 {
	sum, weights := 0.0, 0.0
	for _, r := range reports {
		w := s.cfg.Weights[r.Agent]
		sum += stats.Clamp01(r.Confidence) * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return stats.Round2(stats.Clamp01(sum / weights))
}

func (s *Synthesizer) assessRisk(reports []models.AgentReport, c models.ConsensusResult) models.RiskAssessment {
	var ra models.RiskAssessment
	for _, r := range reports {
		if r.Market != nil && r.Market.Indicators.VolatilityPct > s.cfg.VolatilityRiskPct {
			ra.Points += 3
			ra.Factors = append(ra.Factors, fmt.Sprintf("volatile market (%.1f%%)", r.Market.Indicators.VolatilityPct))
		}
		if r.Competition != nil && r.Competition.HotelCount > s.cfg.CrowdedMarketHotels {
			ra.Points++
			ra.Factors = append(ra.Factors, fmt.Sprintf("crowded market (%d hotels)", r.Competition.HotelCount))
		}
	}
	if c.Strength == models.StrengthMixed {
		ra.Points += 2
		ra.Factors = append(ra.Factors, "mixed signals")
	}
	ra.Level = RiskLevel(ra.Points)
	return ra
}

// RiskLevel maps accumulated risk points to LOW/MEDIUM/HIGH.
func RiskLevel(points int) string {
	switch {
	case points >= 4:
		return models.RiskHigh
	case points >= 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func (s *Synthesizer) plan(reports []models.AgentReport, c models.ConsensusResult, riskAccepted bool) []models.PlannedAction {
	var plan []models.PlannedAction
	priority := 1
	add := func(a models.PlannedAction) {
		a.Priority = priority
		priority++
		plan = append(plan, a)
	}

	decisive := c.Strength == models.StrengthStrong || c.Strength == models.StrengthModerate
	if decisive && (c.Primary == models.SignalBuy || c.Primary == models.SignalSell) {
		urgency := models.UrgencyMedium
		if c.Strength == models.StrengthStrong {
			urgency = models.UrgencyHigh
		}
		action := models.PlannedAction{
			Type:    PlanExecuteBuy,
			Urgency: urgency,
			Reason:  fmt.Sprintf("%s consensus on %s (%.0f%% of signal strength)", c.Strength, c.Primary, c.PrimaryShare*100),
		}
		if c.Primary == models.SignalSell {
			action.Type = PlanExecuteSell
		}
		if !riskAccepted {
			action.Type = PlanMonitor
			action.Urgency = models.UrgencyLow
			action.Reason += "; held back by risk tolerance"
		}
		add(action)
	}

	for _, r := range reports {
		if r.Opportunities == nil {
			continue
		}
		opps := r.Opportunities.Opportunities
		if len(opps) > s.cfg.TopOpportunities {
			opps = opps[:s.cfg.TopOpportunities]
		}
		for _, o := range opps {
			add(models.PlannedAction{
				Type:    PlanOpportunity + "_" + string(o.Kind),
				Urgency: urgencyFor(o.Priority),
				HotelID: o.HotelID,
				Reason:  o.Reason,
				Score:   o.FinalScore,
			})
		}
	}

	if !decisive {
		add(models.PlannedAction{
			Type:    PlanMonitor,
			Urgency: models.UrgencyLow,
			Reason:  fmt.Sprintf("%s consensus; monitor before acting", c.Strength),
		})
	}
	return plan
}

func recommendationsOf(r models.AgentReport) []models.Recommendation {
	if r.Demand == nil || len(r.Demand.SearchRecommendations) == 0 {
		return r.Recommendations
	}
	out := make([]models.Recommendation, 0, len(r.Recommendations)+len(r.Demand.SearchRecommendations))
	out = append(out, r.Recommendations...)
	return append(out, r.Demand.SearchRecommendations...)
}

func urgencyFor(p models.Priority) models.Urgency {
	switch p {
	case models.PriorityHigh:
		return models.UrgencyHigh
	case models.PriorityMedium:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

func containsAgent(ids []models.AgentID, id models.AgentID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func normalizeTolerance(t string) string {
	switch strings.ToLower(t) {
	case ToleranceLow:
		return ToleranceLow
	case ToleranceHigh:
		return ToleranceHigh
	default:
		return ToleranceMedium
	}
}

// accepts reports whether a risk level is within the tolerance.
func accepts(tolerance, level string) bool {
	switch tolerance {
	case ToleranceLow:
		return level == models.RiskLow
	case ToleranceHigh:
		return true
	default:
		return level != models.RiskHigh
	}
}
