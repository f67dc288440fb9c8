package usecase

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
)

func opp(id string, buy, marginPct, risk float64, level string) models.Opportunity {
	sell := buy * (1 + marginPct/100)
	return models.Opportunity{
		ID:                 id,
		HotelID:            id,
		BuyPrice:           buy,
		SuggestedSellPrice: sell,
		ExpectedMargin:     sell - buy,
		ExpectedMarginPct:  marginPct,
		SuccessProbability: 1,
		Confidence:         0.8,
		RiskScore:          risk,
		RiskLevel:          level,
	}
}

func portfolioFixture() []models.Opportunity {
	return []models.Opportunity{
		opp("a", 400, 25, 20, models.RiskLow),
		opp("b", 300, 20, 40, models.RiskMedium),
		opp("c", 500, 10, 70, models.RiskHigh),
		opp("d", 200, 15, 25, models.RiskLow),
		opp("e", 250, 5, 10, models.RiskLow),
	}
}

func TestOptimizeGreedyUnderCap(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)

	pf, err := p.Optimize(portfolioFixture(), Constraints{MaxInvestment: 800})
	require.NoError(t, err)

	var ids []string
	for _, o := range pf.Selected {
		ids = append(ids, o.ID)
	}
	// a and b take 700 of the budget; d, e and c no longer fit.
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 3, pf.Skipped)
	assert.LessOrEqual(t, pf.TotalInvestment, 800.0)
	assert.Equal(t, 5, pf.Considered)
	assert.Equal(t, 5, pf.Eligible)
	assert.InDelta(t, 800-pf.TotalInvestment, pf.BudgetRemaining, 0.001)
	assert.NotEmpty(t, pf.RiskLevel)
}

func TestOptimizeNeverExceedsCapForAnyOrder(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)
	base := portfolioFixture()
	want, err := p.Optimize(base, Constraints{MaxInvestment: 950})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]models.Opportunity(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		pf, err := p.Optimize(shuffled, Constraints{MaxInvestment: 950})
		require.NoError(t, err)
		assert.LessOrEqual(t, pf.TotalInvestment, 950.0)
		assert.Equal(t, want.Selected, pf.Selected)
	}
}

func TestOptimizeSkipsNonFiniteOpportunities(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)
	bad := opp("nan", 100, 20, 10, models.RiskLow)
	bad.BuyPrice = math.NaN()
	inf := opp("inf", 100, 20, 10, models.RiskLow)
	inf.ExpectedMarginPct = math.Inf(1)
	opps := []models.Opportunity{
		bad, inf,
		opp("p1", 600, 20, 10, models.RiskLow),
		opp("p2", 600, 20, 10, models.RiskLow),
		opp("p3", 600, 20, 10, models.RiskLow),
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(opps), func(a, b int) { opps[a], opps[b] = opps[b], opps[a] })
		pf, err := p.Optimize(opps, Constraints{MaxInvestment: 1000})
		require.NoError(t, err)

		assert.Equal(t, 3, pf.Eligible)
		require.Len(t, pf.Selected, 1)
		assert.Equal(t, "p1", pf.Selected[0].ID)
		sum := 0.0
		for _, o := range pf.Selected {
			sum += o.BuyPrice
		}
		assert.LessOrEqual(t, sum, 1000.0)
		assert.InDelta(t, 600.0, pf.TotalInvestment, 0.001)
	}
}

func TestOptimizeFiltersMarginAndRisk(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)

	pf, err := p.Optimize(portfolioFixture(), Constraints{
		MaxInvestment: 10000,
		MinMarginPct:  12,
		MaxRiskLevel:  "medium",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, pf.Eligible)
	for _, o := range pf.Selected {
		assert.GreaterOrEqual(t, o.ExpectedMarginPct, 12.0)
		assert.NotEqual(t, models.RiskHigh, o.RiskLevel)
	}
	assert.InDelta(t, 900.0, pf.TotalInvestment, 0.001)
}

func TestOptimizeStopsAtTargetRevenue(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)

	pf, err := p.Optimize(portfolioFixture(), Constraints{MaxInvestment: 10000, TargetRevenue: 400})
	require.NoError(t, err)

	assert.True(t, pf.TargetReached)
	require.Len(t, pf.Selected, 1)
	assert.Equal(t, "a", pf.Selected[0].ID)
	assert.InDelta(t, 500.0, pf.ExpectedRevenue, 0.001)
}

func TestOptimizeRiskIsCategoricalMean(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)

	pf, err := p.Optimize([]models.Opportunity{
		opp("x", 100, 20, 10, models.RiskLow),
		opp("y", 100, 20, 80, models.RiskHigh),
	}, Constraints{MaxInvestment: 1000})
	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, pf.RiskLevel)
	assert.InDelta(t, 20.0, pf.AvgMarginPct, 0.001)
	assert.InDelta(t, 20.0, pf.AvgROIPct, 0.001)
}

func TestOptimizeRejectsInvalidConstraints(t *testing.T) {
	p := NewPortfolioOptimizer(nil, nil)
	for name, c := range map[string]Constraints{
		"zero budget":     {},
		"negative budget": {MaxInvestment: -10},
		"bad margin":      {MaxInvestment: 100, MinMarginPct: -1},
		"unknown risk":    {MaxInvestment: 100, MaxRiskLevel: "EXTREME"},
		"negative target": {MaxInvestment: 100, TargetRevenue: -5},
		"NaN budget":      {MaxInvestment: math.NaN()},
		"infinite budget": {MaxInvestment: math.Inf(1)},
		"NaN margin":      {MaxInvestment: 100, MinMarginPct: math.NaN()},
		"infinite target": {MaxInvestment: 100, TargetRevenue: math.Inf(1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Optimize(portfolioFixture(), c)
			assert.ErrorIs(t, err, models.ErrInvalidConstraint)
		})
	}
}

func TestOptimizeEmptyInput(t *testing.T) {
	pf, err := NewPortfolioOptimizer(nil, nil).Optimize(nil, Constraints{MaxInvestment: 100})
	require.NoError(t, err)
	assert.Empty(t, pf.Selected)
	assert.Equal(t, 100.0, pf.BudgetRemaining)
}
