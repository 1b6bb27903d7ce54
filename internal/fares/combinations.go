package fares

import (
	"context"
	"log"
	"sort"

	"flyshark/internal/domain"

	"github.com/google/uuid"
)

type CombinationResult struct {
	BatchID      string
	Combinations []domain.CombinedOffer
	Warnings     []string
	Queries      int
	Persisted    int
}

// SearchBestCombinations searches one-way outbound fares for every date in
// req.OutboundDates. Each outbound offer priced at or under req.MaxPrice, or
// labelled Cheap or Opportunity, triggers a one-way return search for every
// day of the stay window, and every return offer found is paired with it.
// There is no memoization: two qualifying outbound offers on the same date
// search the same return dates twice.
func (s *Searcher) SearchBestCombinations(ctx context.Context, req domain.BestCombinationRequest) (CombinationResult, error) {
	if err := req.Validate(); err != nil {
		return CombinationResult{}, err
	}
	res := CombinationResult{BatchID: uuid.NewString()}
	log.Printf("shark search start batch=%s route=%s-%s dates=%d stay=%d-%d max_price=%s",
		res.BatchID, req.Origin, req.Destination, len(req.OutboundDates), req.MinStay, req.MaxStay, req.MaxPrice)

	classifier := NewClassifier(s.store)
	for _, outDate := range req.OutboundDates {
		outDate = domain.DateOf(outDate)
		outbound := s.oneWay(ctx, classifier, &res, domain.FlightQuery{
			Origin:        req.Origin,
			Destination:   req.Destination,
			DepartureDate: outDate,
			CabinClass:    req.CabinClass,
		})
		for _, out := range outbound {
			if !qualifiesForReturn(out, req) {
				continue
			}
			for stay := req.MinStay; stay <= req.MaxStay; stay++ {
				returns := s.oneWay(ctx, classifier, &res, domain.FlightQuery{
					Origin:        req.Destination,
					Destination:   req.Origin,
					DepartureDate: outDate.AddDate(0, 0, stay),
					CabinClass:    req.CabinClass,
				})
				for _, ret := range returns {
					res.Combinations = append(res.Combinations, domain.Combine(out, ret))
				}
			}
		}
	}

	log.Printf("shark search done batch=%s queries=%d combinations=%d persisted=%d warnings=%d",
		res.BatchID, res.Queries, len(res.Combinations), res.Persisted, len(res.Warnings))
	return res, nil
}

// qualifiesForReturn is an inclusive or: under the price cap, or a bargain.
func qualifiesForReturn(offer domain.ClassifiedOffer, req domain.BestCombinationRequest) bool {
	return offer.Price.LessThanOrEqual(req.MaxPrice) || offer.Label.IsBargain()
}

func (s *Searcher) oneWay(ctx context.Context, classifier *Classifier, res *CombinationResult, q domain.FlightQuery) []domain.ClassifiedOffer {
	offers, warning, _ := s.query(ctx, classifier, q, domain.OneWayOut, q.CabinClass)
	res.Queries++
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
		return nil
	}
	observedAt := s.now()
	observations := make([]domain.FareObservation, 0, len(offers))
	for _, o := range offers {
		observations = append(observations, o.Observation(observedAt))
	}
	n, warning := s.persist(ctx, observations)
	res.Persisted += n
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}
	return offers
}

// SortCombinations orders by total price, then outbound date.
func SortCombinations(combos []domain.CombinedOffer) {
	sort.SliceStable(combos, func(i, j int) bool {
		if c := combos[i].TotalPrice.Cmp(combos[j].TotalPrice); c != 0 {
			return c < 0
		}
		return combos[i].Outbound.DepartureDate.Before(combos[j].Outbound.DepartureDate)
	})
}

// SortRows orders by price, then departure date.
func SortRows(rows []domain.ClassifiedOffer) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Price.Cmp(rows[j].Price); c != 0 {
			return c < 0
		}
		return rows[i].DepartureDate.Before(rows[j].DepartureDate)
	})
}
