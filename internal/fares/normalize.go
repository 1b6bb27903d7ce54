package fares

import (
	"fmt"
	"strings"
	"time"

	"flyshark/internal/domain"

	"github.com/shopspring/decimal"
)

const ItinerarySeparator = " → "

// Provider timestamps carry no zone; both layouts are accepted.
var timestampLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339}

// NormalizeOffer maps a raw provider offer into the domain. The outbound
// itinerary may have any number of segments; origin and destination are the
// first departure and the last arrival.
func NormalizeOffer(raw domain.RawOffer, trip domain.TripType, cabin domain.CabinClass, carriers CarrierNames) (domain.NormalizedOffer, error) {
	malformed := func(field, format string, args ...any) error {
		return &domain.MalformedOfferError{OfferID: raw.ID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	total := strings.TrimSpace(raw.Price.Total)
	if total == "" {
		return domain.NormalizedOffer{}, malformed("price.total", "is missing")
	}
	price, err := decimal.NewFromString(total)
	if err != nil {
		return domain.NormalizedOffer{}, malformed("price.total", "%q is not a number", total)
	}
	if price.IsNegative() {
		return domain.NormalizedOffer{}, malformed("price.total", "%q is negative", total)
	}

	if len(raw.Itineraries) == 0 || len(raw.Itineraries[0].Segments) == 0 {
		return domain.NormalizedOffer{}, malformed("itineraries[0].segments", "is missing")
	}
	segments := raw.Itineraries[0].Segments
	first := segments[0]
	last := segments[len(segments)-1]

	departAt, err := parseTimestamp(first.Departure.At)
	if err != nil {
		return domain.NormalizedOffer{}, malformed("departure.at", "%v", err)
	}
	arriveAt, err := parseTimestamp(last.Arrival.At)
	if err != nil {
		return domain.NormalizedOffer{}, malformed("arrival.at", "%v", err)
	}
	if first.Departure.IATACode == "" || last.Arrival.IATACode == "" {
		return domain.NormalizedOffer{}, malformed("iataCode", "is missing")
	}

	offer := domain.NormalizedOffer{
		OfferID:       raw.ID,
		Origin:        first.Departure.IATACode,
		Destination:   last.Arrival.IATACode,
		DepartureDate: domain.DateOf(departAt),
		Carrier:       carriers.Resolve(first.CarrierCode),
		CabinClass:    cabin,
		Price:         price,
		Connections:   len(segments) - 1,
		Duration:      FormatDuration(arriveAt.Sub(departAt)),
		Itinerary:     BuildItinerary(segments),
	}

	if trip == domain.RoundTrip && len(raw.Itineraries) > 1 {
		back := raw.Itineraries[1].Segments
		if len(back) > 0 {
			returnAt, err := parseTimestamp(back[len(back)-1].Arrival.At)
			if err != nil {
				return domain.NormalizedOffer{}, malformed("itineraries[1].arrival.at", "%v", err)
			}
			d := domain.DateOf(returnAt)
			offer.ReturnDate = &d
		}
	}
	return offer, nil
}

// FormatDuration renders d as "<hours>h<minutes>min" with whole days folded
// into the hour count, e.g. 25h05min. Negative spans render as 0h00min.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh%02dmin", hours, minutes)
}

// BuildItinerary lists every segment's departure airport followed by the
// final arrival airport.
func BuildItinerary(segments []domain.RawSegment) string {
	if len(segments) == 0 {
		return ""
	}
	codes := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		codes = append(codes, seg.Departure.IATACode)
	}
	codes = append(codes, segments[len(segments)-1].Arrival.IATACode)
	return strings.Join(codes, ItinerarySeparator)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("is missing")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a timestamp", s)
}
