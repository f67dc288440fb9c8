package agents

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"RoomArb/internal/domain/models"
)

// Filter narrows detected opportunities. Zero values are ignored.
type Filter struct {
	MinProfit          float64      `json:"min_profit,omitempty"`
	MinMarginPct       float64      `json:"min_margin_pct,omitempty"`
	MinROIPct          float64      `json:"min_roi_pct,omitempty"`
	CheckInFrom        time.Time    `json:"check_in_from,omitempty"`
	CheckInTo          time.Time    `json:"check_in_to,omitempty"`
	Months             []time.Month `json:"months,omitempty"`
	WeekendOnly        bool         `json:"weekend_only,omitempty"`
	CancellationPolicy string       `json:"cancellation_policy,omitempty"`
	Sold               *bool        `json:"sold,omitempty"`
	Pushed             *bool        `json:"pushed,omitempty"`
}

// IsZero reports whether the filter would keep everything.
func (f Filter) IsZero() bool {
	return f.MinProfit == 0 && f.MinMarginPct == 0 && f.MinROIPct == 0 &&
		f.CheckInFrom.IsZero() && f.CheckInTo.IsZero() && len(f.Months) == 0 &&
		!f.WeekendOnly && f.CancellationPolicy == "" && f.Sold == nil && f.Pushed == nil
}

// Match reports whether o passes every set criterion.
func (f Filter) Match(o models.DetectedOpportunity) bool {
	if f.MinProfit > 0 && o.ExpectedProfit < f.MinProfit {
		return false
	}
	if f.MinMarginPct > 0 && o.MarginPct < f.MinMarginPct {
		return false
	}
	if f.MinROIPct > 0 && o.ROIPct < f.MinROIPct {
		return false
	}
	if !f.CheckInFrom.IsZero() && o.CheckIn.Before(f.CheckInFrom) {
		return false
	}
	if !f.CheckInTo.IsZero() && o.CheckIn.After(f.CheckInTo) {
		return false
	}
	if len(f.Months) > 0 && !containsMonth(f.Months, o.CheckIn.Month()) {
		return false
	}
	if f.WeekendOnly && !IsWeekend(o.CheckIn) {
		return false
	}
	if f.CancellationPolicy != "" && !strings.EqualFold(f.CancellationPolicy, o.CancellationPolicy) {
		return false
	}
	if f.Sold != nil && *f.Sold != o.Sold {
		return false
	}
	if f.Pushed != nil && *f.Pushed != o.Pushed {
		return false
	}
	return true
}

// Apply returns the matching opportunities, preserving order.
func (f Filter) Apply(opps []models.DetectedOpportunity) []models.DetectedOpportunity {
	if f.IsZero() {
		return opps
	}
	out := make([]models.DetectedOpportunity, 0, len(opps))
	for _, o := range opps {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// IsWeekend is true for Friday and Saturday check-ins.
func IsWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Friday || d == time.Saturday
}

func containsMonth(ms []time.Month, m time.Month) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

var (
	reMinProfit = regexp.MustCompile(`(?:min(?:imum)?\s+)?profit\s+(?:of\s+|above\s+|over\s+|at least\s+)?\$?(\d+(?:\.\d+)?)`)
	reMargin    = regexp.MustCompile(`margin\s+(?:of\s+|above\s+|over\s+|at least\s+)?(\d+(?:\.\d+)?)\s*%`)
	reROI       = regexp.MustCompile(`roi\s+(?:of\s+|above\s+|over\s+|at least\s+)?(\d+(?:\.\d+)?)\s*%`)
	reNextDays  = regexp.MustCompile(`next\s+(\d+)\s+days`)
	reWeekend   = regexp.MustCompile(`\bweekends?\b`)
	reUnsold    = regexp.MustCompile(`\b(?:unsold|not sold)\b`)
	reUnpushed  = regexp.MustCompile(`\b(?:unpushed|not pushed)\b`)
	rePushed    = regexp.MustCompile(`\bpushed\b`)
	reNonRefund = regexp.MustCompile(`\bnon[- ]?refundable\b`)
	reFreeCxl   = regexp.MustCompile(`\b(?:free cancellation|refundable)\b`)
)

var seasons = map[string][]time.Month{
	"summer": {time.June, time.July, time.August},
	"winter": {time.December, time.January, time.February},
	"spring": {time.March, time.April, time.May},
	"autumn": {time.September, time.October, time.November},
	"fall":   {time.September, time.October, time.November},
}

// periodWords maps month and season names to months. "may", "march" and
// "fall" read as ordinary words too, so they only count after a period
// preposition such as "in may" or "during the fall".
var (
	periodWords = func() map[string][]time.Month {
		out := make(map[string][]time.Month, 12+len(seasons))
		for m := time.January; m <= time.December; m++ {
			out[strings.ToLower(m.String())] = []time.Month{m}
		}
		for name, ms := range seasons {
			out[name] = ms
		}
		return out
	}()
	ambiguousPeriods = map[string]bool{"may": true, "march": true, "fall": true}

	rePeriodWord = regexp.MustCompile(`\b(` + periodAlternation() + `)\b`)
	rePeriodList = regexp.MustCompile(`\b(?:in|during|for|through|until|by|this|next)\s+(?:the\s+)?` +
		`((?:` + periodAlternation() + `)(?:\s*(?:,|&|\band\b|\bor\b)\s*(?:the\s+)?(?:` + periodAlternation() + `))*)\b`)
)

func periodAlternation() string {
	names := []string{"summer", "winter", "spring", "autumn", "fall"}
	for m := time.January; m <= time.December; m++ {
		names = append(names, strings.ToLower(m.String()))
	}
	return strings.Join(names, "|")
}

// periodMonths returns the months named in s, in order of first mention.
func periodMonths(s string) []time.Month {
	introduced := make(map[string]bool)
	for _, m := range rePeriodList.FindAllStringSubmatch(s, -1) {
		for _, w := range rePeriodWord.FindAllString(m[1], -1) {
			introduced[w] = true
		}
	}
	var out []time.Month
	for _, w := range rePeriodWord.FindAllString(s, -1) {
		if ambiguousPeriods[w] && !introduced[w] {
			continue
		}
		out = appendMonths(out, periodWords[w]...)
	}
	return out
}

// ParseInstruction extracts a best-effort Filter from free text such as
// "weekend rooms in summer with margin above 20%". Unrecognised text yields a
// zero filter. The result is applied on top of any structured filter, so it
// can only narrow.
func ParseInstruction(text string, now time.Time) Filter {
	var f Filter
	s := strings.ToLower(text)
	if s == "" {
		return f
	}
	if m := reMinProfit.FindStringSubmatch(s); m != nil {
		f.MinProfit, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reMargin.FindStringSubmatch(s); m != nil {
		f.MinMarginPct, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reROI.FindStringSubmatch(s); m != nil {
		f.MinROIPct, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := reNextDays.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.CheckInFrom = now
			f.CheckInTo = now.AddDate(0, 0, n)
		}
	}
	f.WeekendOnly = reWeekend.MatchString(s)
	f.Months = periodMonths(s)

	switch {
	case reNonRefund.MatchString(s):
		f.CancellationPolicy = "non_refundable"
	case reFreeCxl.MatchString(s):
		f.CancellationPolicy = "free"
	}

	if reUnsold.MatchString(s) {
		v := false
		f.Sold = &v
	}
	switch {
	case reUnpushed.MatchString(s):
		v := false
		f.Pushed = &v
	case rePushed.MatchString(s):
		v := true
		f.Pushed = &v
	}
	return f
}

func appendMonths(dst []time.Month, ms ...time.Month) []time.Month {
	for _, m := range ms {
		if !containsMonth(dst, m) {
			dst = append(dst, m)
		}
	}
	return dst
}
