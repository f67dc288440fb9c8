package models

import "time"

// AnalysisResult is the outcome of one analysis cycle over a signal batch.
type AnalysisResult struct {
	RequestID    string            `json:"request_id"`
	Scope        Scope             `json:"scope"`
	LookbackDays int               `json:"lookback_days"`
	Bookings     int               `json:"bookings"`
	Searches     int               `json:"searches"`
	Reports      []AgentReport     `json:"reports"`
	Decision     Decision          `json:"decision"`
	Errors       map[string]string `json:"errors,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
