package util

import (
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2025-03-20")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeRejectsFreeText(t *testing.T) {
	if _, ok := ParseTime("next tuesday"); ok {
		t.Fatalf("expected free text to be rejected")
	}
	if _, ok := ParseTime(""); ok {
		t.Fatalf("expected empty string to be rejected")
	}
}

func TestNights(t *testing.T) {
	in := time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)
	out := time.Date(2025, 3, 23, 11, 0, 0, 0, time.UTC)
	if n := Nights(in, out); n != 3 {
		t.Fatalf("expected 3 nights, got %d", n)
	}
	if n := Nights(out, in); n != 0 {
		t.Fatalf("expected 0 for inverted stay, got %d", n)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" Lisbon, Porto,,Faro ")
	want := []string{"Lisbon", "Porto", "Faro"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if SplitCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
