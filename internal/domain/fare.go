package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type CabinClass string

const (
	CabinEconomy  CabinClass = "ECONOMY"
	CabinBusiness CabinClass = "BUSINESS"
	// CabinAny sends no travel class to the provider.
	CabinAny CabinClass = "ANY"
)

func ParseCabinClass(s string) (CabinClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "econ", "econômica", "economica", "eco":
		return CabinEconomy, nil
	case "business", "biz", "executiva", "exec":
		return CabinBusiness, nil
	case "any", "both", "ambas", "all":
		return CabinAny, nil
	}
	return "", fmt.Errorf("unknown cabin class %q (use economy, business or any)", s)
}

func (c CabinClass) Display() string {
	switch c {
	case CabinEconomy:
		return "Economy"
	case CabinBusiness:
		return "Business"
	case CabinAny:
		return "Any"
	}
	return string(c)
}

type TripType int

const (
	RoundTrip TripType = iota
	OneWayOut
	OneWayBack
)

func (t TripType) String() string {
	switch t {
	case RoundTrip:
		return "round-trip"
	case OneWayOut:
		return "one-way-out"
	case OneWayBack:
		return "one-way-back"
	}
	return fmt.Sprintf("trip(%d)", int(t))
}

// Label is the fare thermometer reading. It is recomputed from history on
// every search and only stored as a snapshot alongside each observation.
type Label string

const (
	LabelOpportunity Label = "OPPORTUNITY"
	LabelCheap       Label = "CHEAP"
	LabelAverage     Label = "AVERAGE"
	LabelExpensive   Label = "EXPENSIVE"
)

func (l Label) Display() string {
	switch l {
	case LabelOpportunity:
		return "🔥 Opportunity"
	case LabelCheap:
		return "🟢 Cheap"
	case LabelExpensive:
		return "🔴 Expensive"
	}
	return "🟡 Average"
}

// Plain is the label without emoji, for CSV and PDF output.
func (l Label) Plain() string {
	switch l {
	case LabelOpportunity:
		return "Opportunity"
	case LabelCheap:
		return "Cheap"
	case LabelExpensive:
		return "Expensive"
	}
	return "Average"
}

func (l Label) IsBargain() bool {
	return l == LabelCheap || l == LabelOpportunity
}

// ParseLabel maps a stored status back to a Label. Unknown or empty strings
// read as Average, which is also the insufficient-data default.
func ParseLabel(s string) Label {
	switch Label(strings.ToUpper(strings.TrimSpace(s))) {
	case LabelOpportunity:
		return LabelOpportunity
	case LabelCheap:
		return LabelCheap
	case LabelExpensive:
		return LabelExpensive
	}
	return LabelAverage
}

// FareObservation is one persisted row of the fare history.
type FareObservation struct {
	ID            int64
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Carrier       string
	CabinClass    CabinClass
	Price         decimal.Decimal
	ObservedAt    time.Time
	Status        Label
	Connections   int
	Duration      string
	Itinerary     string
}

func (o FareObservation) Validate() error {
	if !IsIATACode(o.Origin) {
		return fmt.Errorf("invalid origin %q", o.Origin)
	}
	if !IsIATACode(o.Destination) {
		return fmt.Errorf("invalid destination %q", o.Destination)
	}
	if o.Origin == o.Destination {
		return errors.New("origin and destination are the same")
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("negative price %s", o.Price)
	}
	if o.DepartureDate.IsZero() {
		return errors.New("missing departure date")
	}
	if o.ReturnDate != nil && !o.ReturnDate.After(o.DepartureDate) {
		return fmt.Errorf("return date %s is not after departure date %s",
			o.ReturnDate.Format(DateLayout), o.DepartureDate.Format(DateLayout))
	}
	if o.Connections < 0 {
		return fmt.Errorf("negative connections %d", o.Connections)
	}
	return nil
}

// NormalizedOffer is a provider offer mapped into the domain, before
// classification.
type NormalizedOffer struct {
	OfferID       string
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Carrier       string
	CabinClass    CabinClass
	Price         decimal.Decimal
	Connections   int
	Duration      string
	Itinerary     string
}

type ClassifiedOffer struct {
	NormalizedOffer
	Label Label
}

func (o ClassifiedOffer) Observation(observedAt time.Time) FareObservation {
	return FareObservation{
		Origin:        o.Origin,
		Destination:   o.Destination,
		DepartureDate: o.DepartureDate,
		ReturnDate:    o.ReturnDate,
		Carrier:       o.Carrier,
		CabinClass:    o.CabinClass,
		Price:         o.Price,
		ObservedAt:    observedAt,
		Status:        o.Label,
		Connections:   o.Connections,
		Duration:      o.Duration,
		Itinerary:     o.Itinerary,
	}
}

// CombinedOffer pairs an outbound one-way fare with a return one-way fare.
type CombinedOffer struct {
	Outbound   ClassifiedOffer
	Return     ClassifiedOffer
	TotalPrice decimal.Decimal
}

func Combine(outbound, ret ClassifiedOffer) CombinedOffer {
	return CombinedOffer{
		Outbound:   outbound,
		Return:     ret,
		TotalPrice: outbound.Price.Add(ret.Price),
	}
}

func (c CombinedOffer) StayDays() int {
	return DaysBetween(c.Outbound.DepartureDate, c.Return.DepartureDate)
}

func IsIATACode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeIATA accepts inputs like "cdg" or "CDG (Paris)".
func NormalizeIATA(s string) (string, error) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, " ("); idx > 0 {
		s = s[:idx]
	}
	code := strings.ToUpper(s)
	if !IsIATACode(code) {
		return "", fmt.Errorf("invalid airport code %q", s)
	}
	return code, nil
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// DateOf drops the clock part, keeping the calendar date in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// DateRange returns days consecutive calendar dates starting at start.
func DateRange(start time.Time, days int) []time.Time {
	if days < 1 {
		days = 1
	}
	start = DateOf(start)
	out := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}
