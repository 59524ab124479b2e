package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedListing signals a listing missing required fields.
	// Such listings are skipped, never retried.
	ErrMalformedListing = errors.New("malformed listing")
	// ErrCriteriaApply signals an entity that failed eligibility checks
	// during index application.
	ErrCriteriaApply = errors.New("criteria apply failed")
	// ErrCriteriaStoreUnavailable signals a transient criteria store outage.
	ErrCriteriaStoreUnavailable = errors.New("criteria store unavailable")
	// ErrListingSourceUnavailable signals a transient listing source outage.
	ErrListingSourceUnavailable = errors.New("listing source unavailable")
	// ErrQueueFull signals the evaluation queue is at capacity; the
	// ingestion source should throttle and retry.
	ErrQueueFull = errors.New("listing queue full")
	// ErrSearchNotFound signals a missing saved search.
	ErrSearchNotFound = errors.New("search not found")
	// ErrBlockNotFound signals a missing blocklist entry.
	ErrBlockNotFound = errors.New("blocklist entry not found")
)

// CriteriaApplyError wraps ErrCriteriaApply with the failing entity.
type CriteriaApplyError struct {
	EntityType string
	EntityID   string
	Reason     string
}

func (e *CriteriaApplyError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrCriteriaApply.Error(), e.EntityType, e.EntityID, e.Reason)
}

func (e *CriteriaApplyError) Unwrap() error { return ErrCriteriaApply }

// NewCriteriaApply creates a criteria apply error for one entity.
func NewCriteriaApply(entityType, entityID, reason string) error {
	return &CriteriaApplyError{EntityType: entityType, EntityID: entityID, Reason: reason}
}
