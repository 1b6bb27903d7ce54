package fares

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"flyshark/internal/domain"

	"github.com/google/uuid"
)

// FlightSearcher is the fare provider boundary.
type FlightSearcher interface {
	Search(ctx context.Context, q domain.FlightQuery) ([]domain.RawOffer, error)
}

// Store is the historical fare store. Rows are only ever appended.
type Store interface {
	HistoryReader
	InsertFares(ctx context.Context, rows []domain.FareObservation) (int, error)
}

type Searcher struct {
	flights  FlightSearcher
	store    Store
	carriers CarrierNames

	// Concurrency bounds how many destinations are searched at once.
	// Values below 2 search sequentially.
	Concurrency int

	now func() time.Time
}

func NewSearcher(flights FlightSearcher, store Store, carriers CarrierNames) *Searcher {
	if carriers == nil {
		carriers = DefaultCarrierNames()
	}
	return &Searcher{
		flights:  flights,
		store:    store,
		carriers: carriers,
		now:      time.Now,
	}
}

type SearchResult struct {
	BatchID string
	// Rows holds the offers that passed the price and connection filters,
	// grouped by destination in request order.
	Rows []domain.ClassifiedOffer
	// Warnings are user-facing messages for provider and store failures.
	Warnings  []string
	Queries   int
	Malformed int
	Filtered  int
	Persisted int
}

func (r *SearchResult) merge(other SearchResult) {
	r.Rows = append(r.Rows, other.Rows...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Queries += other.Queries
	r.Malformed += other.Malformed
	r.Filtered += other.Filtered
	r.Persisted += other.Persisted
}

// Search runs every destination and departure date in req, classifies each
// offer against the fare history as of the start of the call, appends all
// normalized offers to the store and returns the filtered rows. Provider and
// store failures never abort the batch.
func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) (SearchResult, error) {
	if err := req.Validate(); err != nil {
		return SearchResult{}, err
	}
	batchID := uuid.NewString()
	log.Printf("fares search start batch=%s origin=%s destinations=%v trip=%s cabin=%s days=%d",
		batchID, req.Origin, req.Destinations, req.Trip.Type(), req.CabinClass, req.DepartureDays)

	classifier := NewClassifier(s.store)
	perDest := make([]SearchResult, len(req.Destinations))

	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}
	if limit > len(req.Destinations) {
		limit = len(req.Destinations)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, dest := range req.Destinations {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, dest string) {
			defer wg.Done()
			defer func() { <-sem }()
			perDest[idx] = s.searchDestination(ctx, classifier, req, dest)
		}(i, dest)
	}
	wg.Wait()

	result := SearchResult{BatchID: batchID}
	for _, r := range perDest {
		result.merge(r)
	}
	log.Printf("fares search done batch=%s queries=%d rows=%d filtered=%d malformed=%d persisted=%d warnings=%d",
		batchID, result.Queries, len(result.Rows), result.Filtered, result.Malformed, result.Persisted, len(result.Warnings))
	return result, nil
}

func (s *Searcher) searchDestination(ctx context.Context, classifier *Classifier, req domain.SearchRequest, dest string) SearchResult {
	var result SearchResult
	var observations []domain.FareObservation
	observedAt := s.now()

	for _, q := range req.Queries(dest) {
		offers, warning, malformed := s.query(ctx, classifier, q, req.Trip.Type(), req.CabinClass)
		result.Queries++
		result.Malformed += malformed
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
			continue
		}
		for _, offer := range offers {
			observations = append(observations, offer.Observation(observedAt))
			if !passesFilters(offer, req) {
				result.Filtered++
				continue
			}
			result.Rows = append(result.Rows, offer)
		}
	}

	persisted, warning := s.persist(ctx, observations)
	result.Persisted = persisted
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	return result
}

// query performs one provider call and returns the classified offers. A
// provider failure is returned as a warning string; malformed offers are
// dropped and counted.
func (s *Searcher) query(ctx context.Context, classifier *Classifier, q domain.FlightQuery, trip domain.TripType, cabin domain.CabinClass) ([]domain.ClassifiedOffer, string, int) {
	log.Printf("fares query %s cabin=%s", q, cabin)
	raws, err := s.flights.Search(ctx, q)
	if err != nil {
		log.Printf("fares query error %s: %v", q, err)
		return nil, fmt.Sprintf("%s: %s", q, searchMessage(err)), 0
	}

	var out []domain.ClassifiedOffer
	malformed := 0
	for _, raw := range raws {
		n, err := NormalizeOffer(raw, trip, cabin, s.carriers)
		if err != nil {
			log.Printf("fares query dropped offer %s: %v", q, err)
			malformed++
			continue
		}
		label := classifier.Classify(ctx, n.Origin, n.Destination, cabin, n.Price)
		out = append(out, domain.ClassifiedOffer{NormalizedOffer: n, Label: label})
	}
	log.Printf("fares query done %s offers=%d malformed=%d", q, len(out), malformed)
	return out, "", malformed
}

func (s *Searcher) persist(ctx context.Context, observations []domain.FareObservation) (int, string) {
	if len(observations) == 0 || s.store == nil {
		return 0, ""
	}
	valid := observations[:0:0]
	for _, obs := range observations {
		if err := obs.Validate(); err != nil {
			log.Printf("fares persist skipped %s-%s %s: %v", obs.Origin, obs.Destination, obs.DepartureDate.Format(domain.DateLayout), err)
			continue
		}
		valid = append(valid, obs)
	}
	if len(valid) == 0 {
		return 0, ""
	}
	n, err := s.store.InsertFares(ctx, valid)
	if err != nil {
		log.Printf("fares persist error inserted=%d of %d: %v", n, len(valid), err)
		return n, fmt.Sprintf("could not save fare history: %v", err)
	}
	return n, ""
}

func passesFilters(offer domain.ClassifiedOffer, req domain.SearchRequest) bool {
	if !req.MaxPrice.IsZero() && offer.Price.GreaterThan(req.MaxPrice) {
		return false
	}
	if req.MaxConnections != nil && offer.Connections > *req.MaxConnections {
		return false
	}
	return true
}

func searchMessage(err error) string {
	var se *domain.SearchError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
