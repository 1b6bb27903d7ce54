package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestFareObservationValidate(t *testing.T) {
	dep := mustDate(t, "2026-12-01")
	ret := mustDate(t, "2026-12-10")
	same := dep
	base := FareObservation{
		Origin:        "GRU",
		Destination:   "CDG",
		DepartureDate: dep,
		Price:         decimal.NewFromInt(4200),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid observation, got %v", err)
	}

	withReturn := base
	withReturn.ReturnDate = &ret
	if err := withReturn.Validate(); err != nil {
		t.Fatalf("expected valid round trip, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*FareObservation)
	}{
		{"negative price", func(o *FareObservation) { o.Price = decimal.NewFromInt(-1) }},
		{"same airports", func(o *FareObservation) { o.Destination = "GRU" }},
		{"return not after departure", func(o *FareObservation) { o.ReturnDate = &same }},
		{"bad origin", func(o *FareObservation) { o.Origin = "gr" }},
	}
	for _, tt := range tests {
		obs := base
		tt.mutate(&obs)
		if err := obs.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestNormalizeIATA(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"cdg", "CDG", true},
		{"CDG (Paris)", "CDG", true},
		{" jfk ", "JFK", true},
		{"PARIS", "", false},
		{"C1G", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeIATA(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("NormalizeIATA(%q) err=%v, want ok=%v", tt.in, err, tt.ok)
		}
		if got != tt.want {
			t.Fatalf("NormalizeIATA(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCabinClass(t *testing.T) {
	for in, want := range map[string]CabinClass{
		"economy":   CabinEconomy,
		"Executiva": CabinBusiness,
		"ambas":     CabinAny,
	} {
		got, err := ParseCabinClass(in)
		if err != nil || got != want {
			t.Fatalf("ParseCabinClass(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseCabinClass("first"); err == nil {
		t.Fatal("expected error for unsupported cabin")
	}
}

func TestParseLabelDefaultsToAverage(t *testing.T) {
	if got := ParseLabel(""); got != LabelAverage {
		t.Fatalf("ParseLabel(\"\") = %q", got)
	}
	if got := ParseLabel("cheap"); got != LabelCheap {
		t.Fatalf("ParseLabel(cheap) = %q", got)
	}
}

func TestSearchRequestQueriesShiftReturnDate(t *testing.T) {
	req := SearchRequest{
		Origin:        "GRU",
		Destinations:  []string{"CDG"},
		Trip:          RoundTripDates{Departure: mustDate(t, "2026-12-01"), Return: mustDate(t, "2026-12-08")},
		CabinClass:    CabinEconomy,
		DepartureDays: 3,
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	queries := req.Queries("CDG")
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(queries))
	}
	last := queries[2]
	if last.DepartureDate.Format(DateLayout) != "2026-12-03" {
		t.Fatalf("unexpected last departure %s", last.DepartureDate.Format(DateLayout))
	}
	if last.ReturnDate == nil || last.ReturnDate.Format(DateLayout) != "2026-12-10" {
		t.Fatalf("unexpected last return %v", last.ReturnDate)
	}
}

func TestSearchRequestQueriesOneWayBackSwapsRoute(t *testing.T) {
	req := SearchRequest{
		Origin:       "GRU",
		Destinations: []string{"LIS"},
		Trip:         OneWayBackDate{Departure: mustDate(t, "2026-12-01")},
	}
	queries := req.Queries("LIS")
	if len(queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(queries))
	}
	if queries[0].Origin != "LIS" || queries[0].Destination != "GRU" || queries[0].ReturnDate != nil {
		t.Fatalf("unexpected query %+v", queries[0])
	}
}

func TestSearchRequestValidateRejectsReturnBeforeDeparture(t *testing.T) {
	req := SearchRequest{
		Origin:       "GRU",
		Destinations: []string{"CDG"},
		Trip:         RoundTripDates{Departure: mustDate(t, "2026-12-08"), Return: mustDate(t, "2026-12-01")},
	}
	if err := req.Validate(); err == nil {
		t.Fatal("expected validation error for return before departure")
	}
}

func TestBestCombinationRequestValidate(t *testing.T) {
	req := BestCombinationRequest{
		Origin:        "GRU",
		Destination:   "CDG",
		OutboundDates: []time.Time{mustDate(t, "2026-12-01")},
		MinStay:       7,
		MaxStay:       5,
	}
	if err := req.Validate(); err == nil {
		t.Fatal("expected error when max stay is below min stay")
	}
	req.MaxStay = 7
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
