package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure and determines how far it propagates.
type Kind string

const (
	// KindSourceUnavailable covers network, auth and rate-limit failures from
	// the message source. Aborts the current channel only.
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"
	// KindStoreUnavailable covers durable store write failures. Fatal to the
	// whole pass: ingestion cannot continue without durability.
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
	// KindMalformedRecord covers page entries missing required fields. The
	// single record is skipped; the rest of the page is still processed.
	KindMalformedRecord Kind = "MALFORMED_RECORD"
)

// SyncError is an application error carrying its classification and the
// operation that produced it.
type SyncError struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSourceUnavailable wraps a source-side failure
func NewSourceUnavailable(op string, err error) *SyncError {
	return &SyncError{Kind: KindSourceUnavailable, Op: op, Err: err}
}

// NewStoreUnavailable wraps a durable store failure
func NewStoreUnavailable(op string, err error) *SyncError {
	return &SyncError{Kind: KindStoreUnavailable, Op: op, Err: err}
}

// NewMalformedRecord wraps a record validation failure
func NewMalformedRecord(op string, err error) *SyncError {
	return &SyncError{Kind: KindMalformedRecord, Op: op, Err: err}
}

// IsKind reports whether err is (or wraps) a SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		return false
	}
	return syncErr.Kind == kind
}

// IsSourceUnavailable reports whether err classifies as a source failure.
func IsSourceUnavailable(err error) bool {
	return IsKind(err, KindSourceUnavailable)
}

// IsStoreUnavailable reports whether err classifies as a store failure.
func IsStoreUnavailable(err error) bool {
	return IsKind(err, KindStoreUnavailable)
}

// IsMalformedRecord reports whether err classifies as a bad record.
func IsMalformedRecord(err error) bool {
	return IsKind(err, KindMalformedRecord)
}
