package fares

import (
	"context"
	"log"
	"sync"

	"flyshark/internal/domain"

	"github.com/shopspring/decimal"
)

// MinHistorySamples is the number of prior observations a route needs
// before a fare can be called cheap or expensive.
const MinHistorySamples = 5

var (
	expensiveRatio   = decimal.RequireFromString("1.15")
	opportunityRatio = decimal.RequireFromString("0.75")
	cheapRatio       = decimal.RequireFromString("0.90")
)

// HistoryReader returns observations for one route and cabin class.
type HistoryReader interface {
	FaresByRoute(ctx context.Context, origin, destination string, cabin domain.CabinClass) ([]domain.FareObservation, error)
}

// Classify labels price against the observations in history that match
// origin, destination and cabin exactly.
func Classify(history []domain.FareObservation, origin, destination string, cabin domain.CabinClass, price decimal.Decimal) domain.Label {
	var matching []domain.FareObservation
	for _, h := range history {
		if h.Origin == origin && h.Destination == destination && h.CabinClass == cabin {
			matching = append(matching, h)
		}
	}
	return ClassifyPrice(matching, price)
}

// ClassifyPrice labels price against history, which is assumed to be
// pre-filtered to a single route and cabin. Bands are checked in order:
// expensive, opportunity, cheap.
func ClassifyPrice(history []domain.FareObservation, price decimal.Decimal) domain.Label {
	if len(history) < MinHistorySamples {
		return domain.LabelAverage
	}
	mean := MeanPrice(history)
	switch {
	case price.GreaterThanOrEqual(mean.Mul(expensiveRatio)):
		return domain.LabelExpensive
	case price.LessThanOrEqual(mean.Mul(opportunityRatio)):
		return domain.LabelOpportunity
	case price.LessThanOrEqual(mean.Mul(cheapRatio)):
		return domain.LabelCheap
	}
	return domain.LabelAverage
}

func MeanPrice(history []domain.FareObservation) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, h := range history {
		sum = sum.Add(h.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(history))))
}

type routeKey struct {
	origin      string
	destination string
	cabin       domain.CabinClass
}

// Classifier reads each route's history once and reuses it for the rest of
// its lifetime, so one search batch is classified against the store as it
// was when the batch started. Create a new Classifier per batch.
type Classifier struct {
	history HistoryReader

	mu        sync.Mutex
	snapshots map[routeKey][]domain.FareObservation
}

func NewClassifier(history HistoryReader) *Classifier {
	return &Classifier{
		history:   history,
		snapshots: make(map[routeKey][]domain.FareObservation),
	}
}

// Classify never fails. A store read error is logged and the fare is
// labelled Average, same as a route without enough history.
func (c *Classifier) Classify(ctx context.Context, origin, destination string, cabin domain.CabinClass, price decimal.Decimal) domain.Label {
	history, err := c.snapshot(ctx, routeKey{origin: origin, destination: destination, cabin: cabin})
	if err != nil {
		log.Printf("classify history error route=%s-%s cabin=%s: %v", origin, destination, cabin, err)
		return domain.LabelAverage
	}
	return Classify(history, origin, destination, cabin, price)
}

func (c *Classifier) snapshot(ctx context.Context, key routeKey) ([]domain.FareObservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rows, ok := c.snapshots[key]; ok {
		return rows, nil
	}
	if c.history == nil {
		c.snapshots[key] = nil
		return nil, nil
	}
	rows, err := c.history.FaresByRoute(ctx, key.origin, key.destination, key.cabin)
	if err != nil {
		return nil, err
	}
	c.snapshots[key] = rows
	return rows, nil
}
