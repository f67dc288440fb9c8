package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/internal/services/stats"
	"RoomArb/pkg/logger"
	"RoomArb/pkg/metrics"
)

// Constraints bound a portfolio selection. An empty MaxRiskLevel admits every
// level; TargetRevenue and MaxPositions of 0 disable those limits.
type Constraints struct {
	MaxInvestment float64
	MinMarginPct  float64
	MaxRiskLevel  string
	TargetRevenue float64
	MaxPositions  int
}

var riskRank = map[string]int{
	models.RiskLow:    1,
	models.RiskMedium: 2,
	models.RiskHigh:   3,
}

type PortfolioOptimizer struct {
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewPortfolioOptimizer(m domrepo.Metrics, l *logger.Logger) *PortfolioOptimizer {
	if m == nil {
		m = metrics.Nop{}
	}
	return &PortfolioOptimizer{metrics: m, log: l}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (c *Constraints) validate() error {
	switch {
	case !finite(c.MaxInvestment):
		return models.InvalidConstraint("max_investment", "must be a finite number")
	case !finite(c.MinMarginPct):
		return models.InvalidConstraint("min_margin_pct", "must be a finite number")
	case !finite(c.TargetRevenue):
		return models.InvalidConstraint("target_revenue", "must be a finite number")
	}
	if c.MaxInvestment <= 0 {
		return models.InvalidConstraint("max_investment", "must be positive, got %.2f", c.MaxInvestment)
	}
	if c.MinMarginPct < 0 || c.MinMarginPct > 100 {
		return models.InvalidConstraint("min_margin_pct", "must be within [0,100], got %.2f", c.MinMarginPct)
	}
	if c.TargetRevenue < 0 {
		return models.InvalidConstraint("target_revenue", "must not be negative")
	}
	if c.MaxPositions < 0 {
		return models.InvalidConstraint("max_positions", "must not be negative")
	}
	c.MaxRiskLevel = strings.ToUpper(strings.TrimSpace(c.MaxRiskLevel))
	if c.MaxRiskLevel == "" {
		c.MaxRiskLevel = models.RiskHigh
	}
	if _, ok := riskRank[c.MaxRiskLevel]; !ok {
		return models.InvalidConstraint("max_risk_level", "unknown level %q", c.MaxRiskLevel)
	}
	return nil
}

// PortfolioScore ranks an opportunity for greedy selection.
func PortfolioScore(o models.Opportunity) float64 {
	return 0.4*expectedRevenue(o)/1000 +
		0.3*o.ExpectedMarginPct +
		0.2*stats.Clamp01(o.Confidence)*100 -
		0.1*o.RiskScore
}

func expectedRevenue(o models.Opportunity) float64 {
	return o.SuggestedSellPrice * stats.Clamp01(o.SuccessProbability)
}

func expectedProfit(o models.Opportunity) float64 {
	return o.ExpectedMargin * stats.Clamp01(o.SuccessProbability)
}

// Optimize selects opportunities greedily by score while the cumulative buy
// price stays within MaxInvestment. The result depends only on the input set,
// not its order.
func (p *PortfolioOptimizer) Optimize(opps []models.Opportunity, c Constraints) (*models.Portfolio, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	maxRank := riskRank[c.MaxRiskLevel]

	type scored struct {
		opp   models.Opportunity
		score float64
	}
	eligible := make([]scored, 0, len(opps))
	for _, o := range opps {
		// Non-finite figures would poison the cap check and the score order.
		if !finite(o.BuyPrice, o.ExpectedMargin, o.ExpectedMarginPct, o.SuggestedSellPrice,
			o.SuccessProbability, o.Confidence, o.RiskScore) {
			continue
		}
		if o.BuyPrice <= 0 || o.ExpectedMarginPct < c.MinMarginPct {
			continue
		}
		rank, ok := riskRank[o.RiskLevel]
		if !ok {
			rank = riskRank[RiskScoreLevel(o.RiskScore)]
		}
		if rank > maxRank {
			continue
		}
		eligible = append(eligible, scored{o, PortfolioScore(o)})
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.opp.HotelID != b.opp.HotelID {
			return a.opp.HotelID < b.opp.HotelID
		}
		if a.opp.BuyPrice != b.opp.BuyPrice {
			return a.opp.BuyPrice < b.opp.BuyPrice
		}
		return a.opp.ID < b.opp.ID
	})

	pf := &models.Portfolio{
		Selected:   []models.Opportunity{},
		Considered: len(opps),
		Eligible:   len(eligible),
	}
	var roiSum, marginSum float64
	var riskSum int
	for _, s := range eligible {
		if c.TargetRevenue > 0 && pf.ExpectedRevenue >= c.TargetRevenue {
			pf.TargetReached = true
			break
		}
		if c.MaxPositions > 0 && len(pf.Selected) >= c.MaxPositions {
			break
		}
		if pf.TotalInvestment+s.opp.BuyPrice > c.MaxInvestment {
			pf.Skipped++
			continue
		}
		pf.Selected = append(pf.Selected, s.opp)
		pf.TotalInvestment += s.opp.BuyPrice
		pf.ExpectedRevenue += expectedRevenue(s.opp)
		pf.ExpectedProfit += expectedProfit(s.opp)
		roiSum += s.opp.ExpectedMargin / s.opp.BuyPrice * 100
		marginSum += s.opp.ExpectedMarginPct
		rank, ok := riskRank[s.opp.RiskLevel]
		if !ok {
			rank = riskRank[RiskScoreLevel(s.opp.RiskScore)]
		}
		riskSum += rank
	}
	if c.TargetRevenue > 0 && pf.ExpectedRevenue >= c.TargetRevenue {
		pf.TargetReached = true
	}

	if n := len(pf.Selected); n > 0 {
		pf.AvgROIPct = stats.Round2(roiSum / float64(n))
		pf.AvgMarginPct = stats.Round2(marginSum / float64(n))
		pf.RiskLevel = categoricalRisk(float64(riskSum) / float64(n))
	}
	pf.TotalInvestment = stats.Round2(pf.TotalInvestment)
	pf.ExpectedRevenue = stats.Round2(pf.ExpectedRevenue)
	pf.ExpectedProfit = stats.Round2(pf.ExpectedProfit)
	pf.BudgetRemaining = stats.Round2(c.MaxInvestment - pf.TotalInvestment)

	p.metrics.RecordLatency("optimize_portfolio", time.Since(start).Seconds())
	p.log.Info("portfolio optimized",
		logger.Int("considered", pf.Considered),
		logger.Int("eligible", pf.Eligible),
		logger.Int("selected", len(pf.Selected)),
		logger.Float64("investment", pf.TotalInvestment),
		logger.String("risk", pf.RiskLevel),
	)
	return pf, nil
}

func categoricalRisk(mean float64) string {
	switch {
	case mean < 1.5:
		return models.RiskLow
	case mean < 2.5:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
