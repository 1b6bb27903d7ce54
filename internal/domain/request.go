package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trip is one of RoundTripDates, OneWayOutDate or OneWayBackDate. The set is
// closed; the unexported method keeps other packages from adding variants.
type Trip interface {
	Type() TripType
	FirstDeparture() time.Time
	isTrip()
}

type RoundTripDates struct {
	Departure time.Time
	Return    time.Time
}

func (RoundTripDates) Type() TripType               { return RoundTrip }
func (r RoundTripDates) FirstDeparture() time.Time { return r.Departure }
func (RoundTripDates) isTrip()                      {}

// OneWayOutDate flies origin to destination.
type OneWayOutDate struct {
	Departure time.Time
}

func (OneWayOutDate) Type() TripType               { return OneWayOut }
func (o OneWayOutDate) FirstDeparture() time.Time { return o.Departure }
func (OneWayOutDate) isTrip()                      {}

// OneWayBackDate flies destination back to origin.
type OneWayBackDate struct {
	Departure time.Time
}

func (OneWayBackDate) Type() TripType               { return OneWayBack }
func (o OneWayBackDate) FirstDeparture() time.Time { return o.Departure }
func (OneWayBackDate) isTrip()                      {}

type SearchRequest struct {
	Origin       string
	Destinations []string
	Trip         Trip
	CabinClass   CabinClass
	// DepartureDays is the number of consecutive departure dates searched,
	// starting at the trip's departure. Values below 1 mean a single date.
	DepartureDays int
	// MaxPrice of zero disables the price filter.
	MaxPrice decimal.Decimal
	// MaxConnections of nil disables the connection filter.
	MaxConnections *int
}

func (r SearchRequest) Validate() error {
	if !IsIATACode(r.Origin) {
		return fmt.Errorf("invalid origin %q", r.Origin)
	}
	if len(r.Destinations) == 0 {
		return errors.New("at least one destination is required")
	}
	for _, d := range r.Destinations {
		if !IsIATACode(d) {
			return fmt.Errorf("invalid destination %q", d)
		}
		if d == r.Origin {
			return fmt.Errorf("destination %s equals origin", d)
		}
	}
	if r.Trip == nil {
		return errors.New("missing trip dates")
	}
	if r.Trip.FirstDeparture().IsZero() {
		return errors.New("missing departure date")
	}
	if rt, ok := r.Trip.(RoundTripDates); ok && !rt.Return.After(rt.Departure) {
		return fmt.Errorf("return date %s must be after departure date %s",
			rt.Return.Format(DateLayout), rt.Departure.Format(DateLayout))
	}
	if r.MaxPrice.IsNegative() {
		return errors.New("max price must not be negative")
	}
	if r.MaxConnections != nil && *r.MaxConnections < 0 {
		return errors.New("max connections must not be negative")
	}
	return nil
}

// Queries expands the request for one destination into provider queries,
// one per departure date. Round trips keep the same stay length on every
// shifted date.
func (r SearchRequest) Queries(destination string) []FlightQuery {
	var out []FlightQuery
	for i, day := range DateRange(r.Trip.FirstDeparture(), r.DepartureDays) {
		q := FlightQuery{
			Origin:        r.Origin,
			Destination:   destination,
			DepartureDate: day,
			CabinClass:    r.CabinClass,
		}
		switch trip := r.Trip.(type) {
		case RoundTripDates:
			ret := DateOf(trip.Return).AddDate(0, 0, i)
			q.ReturnDate = &ret
		case OneWayBackDate:
			q.Origin, q.Destination = destination, r.Origin
		}
		out = append(out, q)
	}
	return out
}

// BestCombinationRequest drives the outbound x return date search.
type BestCombinationRequest struct {
	Origin        string
	Destination   string
	OutboundDates []time.Time
	CabinClass    CabinClass
	MaxPrice      decimal.Decimal
	MinStay       int
	MaxStay       int
}

func (r BestCombinationRequest) Validate() error {
	if !IsIATACode(r.Origin) || !IsIATACode(r.Destination) {
		return fmt.Errorf("invalid route %q → %q", r.Origin, r.Destination)
	}
	if r.Origin == r.Destination {
		return errors.New("origin and destination are the same")
	}
	if len(r.OutboundDates) == 0 {
		return errors.New("at least one outbound date is required")
	}
	if r.MinStay < 1 {
		return fmt.Errorf("min stay must be at least 1 day, got %d", r.MinStay)
	}
	if r.MaxStay < r.MinStay {
		return fmt.Errorf("max stay %d is below min stay %d", r.MaxStay, r.MinStay)
	}
	return nil
}

// FlightQuery is a single provider call.
type FlightQuery struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	CabinClass    CabinClass
}

func (q FlightQuery) TripType() TripType {
	if q.ReturnDate != nil {
		return RoundTrip
	}
	return OneWayOut
}

func (q FlightQuery) String() string {
	s := fmt.Sprintf("%s→%s %s", q.Origin, q.Destination, q.DepartureDate.Format(DateLayout))
	if q.ReturnDate != nil {
		s += "/" + q.ReturnDate.Format(DateLayout)
	}
	return s
}
