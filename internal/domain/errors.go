package domain

import "fmt"

// SearchError is a transport or API-level failure reported by a fare provider.
type SearchError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s search failed (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s search failed: %s", e.Provider, e.Message)
}

func (e *SearchError) Unwrap() error { return e.Err }

// MalformedOfferError means a raw offer is missing a required field or the
// field does not parse. The offer is dropped.
type MalformedOfferError struct {
	OfferID string
	Field   string
	Reason  string
}

func (e *MalformedOfferError) Error() string {
	if e.OfferID != "" {
		return fmt.Sprintf("malformed offer %s: %s %s", e.OfferID, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed offer: %s %s", e.Field, e.Reason)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("fare store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
