package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/fares"

	"github.com/shopspring/decimal"
)

type fakeSearcher struct {
	result fares.SearchResult
	err    error
	got    []domain.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req domain.SearchRequest) (fares.SearchResult, error) {
	f.got = append(f.got, req)
	return f.result, f.err
}

type fakeNotifier struct {
	alerts []Alert
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, alert Alert) error {
	f.alerts = append(f.alerts, alert)
	return f.err
}

func row(dest string, price int64, label domain.Label) domain.ClassifiedOffer {
	return domain.ClassifiedOffer{
		NormalizedOffer: domain.NormalizedOffer{
			Origin:        "GRU",
			Destination:   dest,
			DepartureDate: time.Date(2026, 12, 13, 0, 0, 0, 0, time.UTC),
			Carrier:       "Air France",
			CabinClass:    domain.CabinEconomy,
			Price:         decimal.NewFromInt(price),
			Duration:      "11h30min",
		},
		Label: label,
	}
}

var testNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{DefaultOrigin: "GRU", CurrencyCode: "BRL"}
}

func TestBuildRequestOneWayWindow(t *testing.T) {
	maxConn := 1
	req, err := BuildRequest(config.WatchConfig{
		Name:           "paris",
		Destinations:   []string{"cdg", "FCO (Roma)"},
		DaysAhead:      60,
		WindowDays:     3,
		MaxPrice:       5000,
		MaxConnections: &maxConn,
		Schedule:       "0 8 * * *",
	}, "GRU", testNow)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.Origin != "GRU" || len(req.Destinations) != 2 || req.Destinations[1] != "FCO" {
		t.Fatalf("unexpected route %+v", req)
	}
	if req.CabinClass != domain.CabinEconomy {
		t.Fatalf("expected economy default, got %s", req.CabinClass)
	}
	if _, ok := req.Trip.(domain.OneWayOutDate); !ok {
		t.Fatalf("expected one-way trip, got %T", req.Trip)
	}
	want := time.Date(2026, 12, 13, 0, 0, 0, 0, time.UTC)
	if !req.Trip.FirstDeparture().Equal(want) {
		t.Fatalf("first departure = %s, want %s", req.Trip.FirstDeparture(), want)
	}
	if req.DepartureDays != 3 || !req.MaxPrice.Equal(decimal.NewFromInt(5000)) || *req.MaxConnections != 1 {
		t.Fatalf("unexpected filters %+v", req)
	}
}

func TestBuildRequestRoundTrip(t *testing.T) {
	req, err := BuildRequest(config.WatchConfig{
		Name: "ny", Origin: "GIG", Destinations: []string{"JFK"}, DaysAhead: 30, StayDays: 10, CabinClass: "business",
	}, "GRU", testNow)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	rt, ok := req.Trip.(domain.RoundTripDates)
	if !ok {
		t.Fatalf("expected round trip, got %T", req.Trip)
	}
	if domain.DaysBetween(rt.Departure, rt.Return) != 10 || req.Origin != "GIG" || req.CabinClass != domain.CabinBusiness {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.DepartureDays != 1 {
		t.Fatalf("expected single departure date, got %d", req.DepartureDays)
	}
}

func TestBuildRequestRejectsBadInput(t *testing.T) {
	if _, err := BuildRequest(config.WatchConfig{Name: "x", Destinations: []string{"PARIS"}}, "GRU", testNow); err == nil {
		t.Fatal("expected invalid destination error")
	}
	if _, err := BuildRequest(config.WatchConfig{Name: "x", Destinations: []string{"CDG"}, CabinClass: "first"}, "GRU", testNow); err == nil {
		t.Fatal("expected invalid cabin error")
	}
	if _, err := BuildRequest(config.WatchConfig{Name: "x", Destinations: []string{"GRU"}}, "GRU", testNow); err == nil {
		t.Fatal("expected destination equals origin error")
	}
}

func TestRunWatchNotifiesOnBargains(t *testing.T) {
	searcher := &fakeSearcher{result: fares.SearchResult{
		BatchID: "batch-1",
		Rows: []domain.ClassifiedOffer{
			row("CDG", 5200, domain.LabelAverage),
			row("CDG", 4300, domain.LabelCheap),
			row("FCO", 3100, domain.LabelOpportunity),
		},
		Warnings: []string{"No fares for GRU→FCO 2026-12-14: provider error"},
	}}
	notifier := &fakeNotifier{}
	w := config.WatchConfig{Name: "europe", Destinations: []string{"CDG", "FCO"}, DaysAhead: 60, WindowDays: 2}

	res, err := RunWatch(context.Background(), searcher, notifier, w, testConfig(), testNow)
	if err != nil {
		t.Fatalf("RunWatch: %v", err)
	}
	if !res.Notified || len(notifier.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.alerts))
	}
	if len(res.Bargains) != 2 || res.Bargains[0].Destination != "FCO" {
		t.Fatalf("expected bargains sorted cheapest first, got %+v", res.Bargains)
	}
	alert := notifier.alerts[0]
	for _, want := range []string{"Watch europe", "2 bargain fare(s)", "GRU → CDG, FCO", "2026-12-13 to 2026-12-14", "🔥 Opportunity", ":warning: No fares"} {
		if !strings.Contains(alert.Text, want) {
			t.Fatalf("alert missing %q:\n%s", want, alert.Text)
		}
	}
	if strings.Contains(alert.Text, "5,200.00") {
		t.Fatalf("average fare should not be in the alert:\n%s", alert.Text)
	}
}

func TestRunWatchQuietWithoutBargains(t *testing.T) {
	searcher := &fakeSearcher{result: fares.SearchResult{Rows: []domain.ClassifiedOffer{row("CDG", 5200, domain.LabelAverage)}}}
	notifier := &fakeNotifier{}
	res, err := RunWatch(context.Background(), searcher, notifier, config.WatchConfig{Name: "q", Destinations: []string{"CDG"}}, testConfig(), testNow)
	if err != nil {
		t.Fatalf("RunWatch: %v", err)
	}
	if res.Notified || len(notifier.alerts) != 0 {
		t.Fatal("expected no alert")
	}
}

func TestRunWatchPropagatesErrors(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("invalid request")}
	if _, err := RunWatch(context.Background(), searcher, nil, config.WatchConfig{Name: "e", Destinations: []string{"CDG"}}, testConfig(), testNow); err == nil {
		t.Fatal("expected search error")
	}

	searcher = &fakeSearcher{result: fares.SearchResult{Rows: []domain.ClassifiedOffer{row("CDG", 3000, domain.LabelCheap)}}}
	notifier := &fakeNotifier{err: errors.New("slack down")}
	res, err := RunWatch(context.Background(), searcher, notifier, config.WatchConfig{Name: "n", Destinations: []string{"CDG"}}, testConfig(), testNow)
	if err == nil || res.Notified {
		t.Fatalf("expected notify error, got err=%v notified=%v", err, res.Notified)
	}
}

func TestParseSchedules(t *testing.T) {
	scheduled, errs := parseSchedules([]config.WatchConfig{
		{Name: "ok", Schedule: "0 8 * * 1-5"},
		{Name: "bad", Schedule: "every morning"},
	})
	if len(scheduled) != 1 || len(errs) != 1 {
		t.Fatalf("expected 1 schedule and 1 error, got %d/%d", len(scheduled), len(errs))
	}
	next := scheduled[0].sched.Next(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)) // Friday after 8am
	if want := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}
	if !strings.Contains(errs[0].Error(), "bad") {
		t.Fatalf("error should name the watch: %v", errs[0])
	}
}
