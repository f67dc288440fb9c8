// Package agents implements the analysis agents. Each agent is a pure
// function over a read-only SignalBatch; Run fans them out concurrently and
// collects one report per agent.
package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"RoomArb/internal/domain/models"
)

// Agent analyses a batch and never panics on empty or short input: it returns
// a failed report with confidence 0 instead.
type Agent func(batch models.SignalBatch, p Params) models.AgentReport

// Params are the per-request knobs shared by every agent.
type Params struct {
	Scope        models.Scope
	ForecastDays int

	// Detector narrowing. Both are applied; neither can widen the result.
	Filter      *Filter
	Instruction string
}

// Named pairs an agent with its identifier.
type Named struct {
	ID models.AgentID
	Fn Agent
}

// Default returns the four analysis agents in report order.
func Default() []Named {
	return []Named{
		{ID: models.AgentMarket, Fn: Market},
		{ID: models.AgentDemand, Fn: Demand},
		{ID: models.AgentCompetition, Fn: Competition},
		{ID: models.AgentDetector, Fn: Detector},
	}
}

// Run executes agents concurrently and returns their reports in input order.
// A panicking agent yields a failed report; agents still running when ctx is
// done are reported as failed with the context error.
func Run(ctx context.Context, batch models.SignalBatch, p Params, agents []Named) []models.AgentReport {
	type item struct {
		idx    int
		report models.AgentReport
	}
	ch := make(chan item, len(agents))
	var wg sync.WaitGroup

	for i, a := range agents {
		wg.Add(1)
		go func(idx int, a Named) {
			defer wg.Done()
			ch <- item{idx, runOne(batch, p, a)}
		}(i, a)
	}
	go func() { wg.Wait(); close(ch) }()

	out := make([]models.AgentReport, len(agents))
	done := make([]bool, len(agents))
	remaining := len(agents)
	for remaining > 0 {
		select {
		case it, ok := <-ch:
			if !ok {
				remaining = 0
				continue
			}
			out[it.idx] = it.report
			done[it.idx] = true
			remaining--
		case <-ctx.Done():
			for i, a := range agents {
				if !done[i] {
					out[i] = models.FailedReport(a.ID, ctx.Err().Error(), 0)
				}
			}
			return out
		}
	}
	return out
}

func runOne(batch models.SignalBatch, p Params, a Named) (r models.AgentReport) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r = models.FailedReport(a.ID, fmt.Sprintf("agent panic: %v", rec), 0)
		}
		r.Agent = a.ID
		r.Duration = time.Since(start)
		if !r.Success {
			r.Confidence = 0
		}
	}()
	return a.Fn(batch, p)
}

// Successful filters out failed reports.
func Successful(reports []models.AgentReport) []models.AgentReport {
	out := make([]models.AgentReport, 0, len(reports))
	for _, r := range reports {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func insufficient(agent models.AgentID, what string, have, need int) models.AgentReport {
	return models.FailedReport(agent, fmt.Sprintf("insufficient %s: have %d, need %d", what, have, need), have)
}

// asOf is the reference instant of a batch: AsOf when set, else the newest booking insert.
func asOf(batch models.SignalBatch) time.Time {
	if !batch.AsOf.IsZero() {
		return batch.AsOf
	}
	var latest time.Time
	for _, b := range batch.Bookings {
		if b.InsertedAt.After(latest) {
			latest = b.InsertedAt
		}
	}
	return latest
}

func prices(bookings []models.BookingRecord) []float64 {
	out := make([]float64, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.Price)
	}
	return out
}

func groupByHotel(bookings []models.BookingRecord) (map[string][]models.BookingRecord, []string) {
	groups := make(map[string][]models.BookingRecord)
	for _, b := range bookings {
		groups[b.HotelID] = append(groups[b.HotelID], b)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return groups, ids
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}
