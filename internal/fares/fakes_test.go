package fares

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"flyshark/internal/domain"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      []domain.FareObservation
	reads     int
	insertErr error
}

func (f *fakeStore) FaresByRoute(_ context.Context, origin, destination string, cabin domain.CabinClass) ([]domain.FareObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	var out []domain.FareObservation
	for _, r := range f.rows {
		if r.Origin == origin && r.Destination == destination && r.CabinClass == cabin {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertFares(_ context.Context, rows []domain.FareObservation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: f.insertErr}
	}
	f.rows = append(f.rows, rows...)
	return len(rows), nil
}

func (f *fakeStore) seed(origin, destination string, cabin domain.CabinClass, prices ...int64) {
	for _, p := range prices {
		f.rows = append(f.rows, domain.FareObservation{
			Origin:      origin,
			Destination: destination,
			CabinClass:  cabin,
			Price:       decimal.NewFromInt(p),
		})
	}
}

type fakeFlights struct {
	mu      sync.Mutex
	offers  map[string][]domain.RawOffer
	errs    map[string]error
	queries []domain.FlightQuery
}

func newFakeFlights() *fakeFlights {
	return &fakeFlights{
		offers: make(map[string][]domain.RawOffer),
		errs:   make(map[string]error),
	}
}

func flightKey(origin, destination string, date time.Time) string {
	return fmt.Sprintf("%s-%s-%s", origin, destination, date.Format(domain.DateLayout))
}

func (f *fakeFlights) on(origin, destination, date string, offers ...domain.RawOffer) {
	d, _ := domain.ParseDate(date)
	f.offers[flightKey(origin, destination, d)] = offers
}

func (f *fakeFlights) fail(origin, destination, date, msg string) {
	d, _ := domain.ParseDate(date)
	f.errs[flightKey(origin, destination, d)] = &domain.SearchError{Provider: "fake", Message: msg}
}

func (f *fakeFlights) Search(_ context.Context, q domain.FlightQuery) ([]domain.RawOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	key := flightKey(q.Origin, q.Destination, q.DepartureDate)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.offers[key], nil
}

func (f *fakeFlights) countQueries(origin, destination, date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.Origin == origin && q.Destination == destination && q.DepartureDate.Format(domain.DateLayout) == date {
			n++
		}
	}
	return n
}

// directOffer builds a one-segment offer departing at 10:00 on date.
func directOffer(carrier, origin, destination, date, price string) domain.RawOffer {
	return domain.RawOffer{
		ID:    fmt.Sprintf("%s-%s-%s-%s", carrier, origin, destination, price),
		Price: domain.RawPrice{Currency: "BRL", Total: price},
		Itineraries: []domain.RawItinerary{{
			Segments: []domain.RawSegment{{
				Departure:   domain.RawEndpoint{IATACode: origin, At: date + "T10:00:00"},
				Arrival:     domain.RawEndpoint{IATACode: destination, At: date + "T22:30:00"},
				CarrierCode: carrier,
			}},
		}},
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

var errBoom = errors.New("boom")
