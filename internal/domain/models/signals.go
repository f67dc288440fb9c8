package models

import "time"

// BookingRecord is one historical inventory purchase and its outcome.
type BookingRecord struct {
	ID                 string
	HotelID            string
	HotelName          string
	City               string
	Source             string // supplier the room was bought from
	Price              float64
	ListPrice          float64
	Sold               bool
	Active             bool
	Pushed             bool
	CancellationPolicy string
	InsertedAt         time.Time
	CheckIn            time.Time
	CheckOut           time.Time
}

// SearchRecord is one search-intent observation for a hotel and stay.
type SearchRecord struct {
	HotelID   string
	HotelName string
	City      string
	StayFrom  time.Time
	StayTo    time.Time
	Price     float64
	UpdatedAt time.Time
}

// Scope narrows an analysis to one hotel or one city. Empty means everything.
type Scope struct {
	HotelID string `json:"hotel_id,omitempty"`
	City    string `json:"city,omitempty"`
}

// Matches reports whether a booking falls inside the scope.
func (s Scope) Matches(b BookingRecord) bool {
	if s.HotelID != "" && b.HotelID != s.HotelID {
		return false
	}
	if s.City != "" && b.City != s.City {
		return false
	}
	return true
}

// MatchesSearch reports whether a search record falls inside the scope.
func (s Scope) MatchesSearch(r SearchRecord) bool {
	if s.HotelID != "" && r.HotelID != s.HotelID {
		return false
	}
	if s.City != "" && r.City != s.City {
		return false
	}
	return true
}

// SignalBatch is the read-only snapshot every agent consumes in one analysis cycle.
// It is built once per request and must not be mutated after construction.
type SignalBatch struct {
	Scope        Scope
	AsOf         time.Time
	LookbackDays int
	Bookings     []BookingRecord // ordered by InsertedAt ascending
	Searches     []SearchRecord  // ordered by UpdatedAt ascending
}

// FilterBookings returns the bookings matching scope, preserving order.
func (b SignalBatch) FilterBookings(scope Scope) []BookingRecord {
	out := make([]BookingRecord, 0, len(b.Bookings))
	for _, r := range b.Bookings {
		if scope.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// FilterSearches returns the searches matching scope, preserving order.
func (b SignalBatch) FilterSearches(scope Scope) []SearchRecord {
	out := make([]SearchRecord, 0, len(b.Searches))
	for _, r := range b.Searches {
		if scope.MatchesSearch(r) {
			out = append(out, r)
		}
	}
	return out
}
