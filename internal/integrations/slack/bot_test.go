package slackbot

import (
	"strings"
	"testing"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/fares"
	"flyshark/internal/report"

	"github.com/shopspring/decimal"
)

func TestTripLabel(t *testing.T) {
	cases := []struct {
		trip domain.Trip
		want string
	}{
		{domain.RoundTripDates{Departure: day("2026-12-01"), Return: day("2026-12-15")}, "round trip 2026-12-01 / 2026-12-15"},
		{domain.OneWayOutDate{Departure: day("2026-12-01")}, "one way 2026-12-01"},
		{domain.OneWayBackDate{Departure: day("2026-12-15")}, "return only 2026-12-15"},
	}
	for _, tc := range cases {
		if got := tripLabel(tc.trip); got != tc.want {
			t.Fatalf("tripLabel(%T) = %q, want %q", tc.trip, got, tc.want)
		}
	}
}

func TestFaresMessage(t *testing.T) {
	req := domain.SearchRequest{MaxPrice: decimal.NewFromInt(5000)}
	res := fares.SearchResult{
		Rows: []domain.ClassifiedOffer{{
			NormalizedOffer: domain.NormalizedOffer{
				Origin: "GRU", Destination: "CDG", DepartureDate: day("2026-12-01"),
				Carrier: "Air France", CabinClass: domain.CabinEconomy, Price: decimal.RequireFromString("4200.50"),
				Duration: "11h30min",
			},
			Label: domain.LabelCheap,
		}},
		Queries:  2,
		Filtered: 3,
		Warnings: []string{"Search failed for GRU-LIS"},
	}

	msg := faresMessage("GRU → CDG", req, res, "BRL")
	for _, want := range []string{"FlyShark results", "1 fare(s) from 2 search(es)", "3 over the filters (max 5,000.00)", "4,200.50", ":warning: Search failed for GRU-LIS"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestWriteWarningsTruncates(t *testing.T) {
	var b strings.Builder
	writeWarnings(&b, []string{"a", "b", "c", "d", "e", "f", "g"})
	out := b.String()
	if strings.Count(out, ":warning:") != 6 {
		t.Fatalf("expected 5 warnings plus a summary line, got:\n%s", out)
	}
	if !strings.Contains(out, "2 more warning(s)") {
		t.Fatalf("missing overflow count:\n%s", out)
	}
}

func TestTrendSummary(t *testing.T) {
	start := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	points := []report.PricePoint{
		{Date: start, Price: 4000},
		{Date: start.AddDate(0, 0, 10), Price: 4100},
		{Date: start.AddDate(0, 0, 20), Price: 4200},
	}
	args := TrendArgs{Origin: "GRU", Destination: "CDG", CabinClass: domain.CabinEconomy, AheadDays: 10}
	projection := report.ProjectTrend(points, args.AheadDays)

	msg := trendSummary(args, points, projection, "BRL")
	if !strings.Contains(msg, "rising (+10.00 BRL/day)") {
		t.Fatalf("unexpected trend text: %s", msg)
	}
	if !strings.Contains(msg, "Projected 4300.00 on 2026-10-01") {
		t.Fatalf("unexpected projection text: %s", msg)
	}

	flat := trendSummary(args, points[:1], nil, "BRL")
	if !strings.Contains(flat, "Not enough spread") {
		t.Fatalf("expected no-trend text, got %s", flat)
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	cfg := config.Config{DefaultOrigin: "GRU", DefaultMaxPrice: 6500, DefaultCabinClass: "economy", MaxDepartureDays: 14, CurrencyCode: "BRL"}
	help := helpText(cfg)
	for _, want := range []string{"/fares", "/shark", "/fare-trend", "/fare-help", "origin GRU", "6,500.00 BRL"} {
		if !strings.Contains(help, want) {
			t.Fatalf("help missing %q", want)
		}
	}
}
