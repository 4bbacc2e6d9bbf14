/*
errors.go - Centralized error kinds for the fact store (section 7)

PURPOSE:
  All error kinds in one place for consistency and discoverability, mirroring
  the sentinel-plus-structured shape the rest of this codebase's ancestry
  uses: a package-level sentinel error for errors.Is() branching, and where
  useful a structured type carrying diagnostic context with Unwrap() back to
  the sentinel.

USAGE:
  if errors.Is(err, fact.ErrConflictingUpserts) {
      // inspect err.(*fact.ConflictingUpsertsError) for detail
  }
*/
package fact

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	ErrBadSchemaAssertion       = errors.New("bad schema assertion")
	ErrNotUniqueAttribute       = errors.New("lookup-ref attribute is not unique")
	ErrConflictingUpserts       = errors.New("conflicting upserts")
	ErrCardinalityConflict      = errors.New("cardinality conflict")
	ErrUniquenessViolation      = errors.New("uniqueness violation")
	ErrTxInstantNotMonotonic    = errors.New("tx instant is not monotonically increasing")
	ErrTimelinesNotOnTail       = errors.New("transactions are not a tail block of the main timeline")
	ErrTimelinesMixed           = errors.New("transactions span more than one timeline")
	ErrTimelinesNotOnMain       = errors.New("transactions are not on the main timeline")
	ErrTimelinesNoneSupplied    = errors.New("no transactions supplied to rewind")
	ErrTimelinesTargetIsMain    = errors.New("cannot rewind onto the main timeline")
	ErrUnrecognizedEntid        = errors.New("reference to a never-allocated entid")
	ErrStorePathMismatch        = errors.New("store path mismatch for already-open handle")
	ErrStoreNotFound            = errors.New("store not found")
	ErrStoreConnectionStillActive = errors.New("store connection still active")
	ErrStorageError             = errors.New("storage error")
)

// =============================================================================
// STRUCTURED ERRORS - carry additional context
// =============================================================================

// BadSchemaAssertionError explains which entid/attribute/value triple the
// metadata mutator rejected and why.
type BadSchemaAssertionError struct {
	Entid   Entid
	Attr    Entid
	Reason  string
}

func (e *BadSchemaAssertionError) Error() string {
	return fmt.Sprintf("bad schema assertion for entid %d attribute %d: %s", e.Entid, e.Attr, e.Reason)
}
func (e *BadSchemaAssertionError) Unwrap() error { return ErrBadSchemaAssertion }

// ConflictingUpsertsError reports two tempids (or one tempid resolving two
// ways) that the upsert engine could not reconcile (section 4.6).
type ConflictingUpsertsError struct {
	TempID      string
	OtherTempID string
	FirstEntid  Entid
	SecondEntid Entid
}

func (e *ConflictingUpsertsError) Error() string {
	if e.OtherTempID != "" {
		return fmt.Sprintf("tempids %q and %q both resolve to entid %d", e.TempID, e.OtherTempID, e.FirstEntid)
	}
	return fmt.Sprintf("tempid %q resolves to both entid %d and entid %d", e.TempID, e.FirstEntid, e.SecondEntid)
}
func (e *ConflictingUpsertsError) Unwrap() error { return ErrConflictingUpserts }

// CardinalityConflictError reports two distinct values asserted on a
// cardinality-one (e,a) within one transaction (section 4.7).
type CardinalityConflictError struct {
	E, A   Entid
	First  TypedValue
	Second TypedValue
}

func (e *CardinalityConflictError) Error() string {
	return fmt.Sprintf("cardinality-one conflict on entity %d attribute %d: %s vs %s", e.E, e.A, e.First, e.Second)
}
func (e *CardinalityConflictError) Unwrap() error { return ErrCardinalityConflict }

// UniquenessViolationError reports an add that would collide with an
// existing distinct entity on a unique attribute (section 4.7).
type UniquenessViolationError struct {
	A            Entid
	V            TypedValue
	NewEntity    Entid
	ExistingEntity Entid
}

func (e *UniquenessViolationError) Error() string {
	return fmt.Sprintf("uniqueness violation: attribute %d value %s already held by entity %d, cannot also assert for entity %d",
		e.A, e.V, e.ExistingEntity, e.NewEntity)
}
func (e *UniquenessViolationError) Unwrap() error { return ErrUniquenessViolation }

// TxInstantNotMonotonicError reports an explicit :db/txInstant assertion
// that did not strictly increase over the previous transaction's instant
// (section 4.10 step 8).
type TxInstantNotMonotonicError struct {
	Requested int64 // unix nanos
	Previous  int64 // unix nanos
}

func (e *TxInstantNotMonotonicError) Error() string {
	return fmt.Sprintf("tx instant %d is not after previous tx instant %d", e.Requested, e.Previous)
}
func (e *TxInstantNotMonotonicError) Unwrap() error { return ErrTxInstantNotMonotonic }

// StorageError wraps an error returned by the index provider. Per section 7
// policy, all index-provider errors are fatal for the transaction.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorageError }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err is due to invalid client input — the
// caller should not retry without changing the transaction.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadSchemaAssertion) ||
		errors.Is(err, ErrNotUniqueAttribute) ||
		errors.Is(err, ErrConflictingUpserts) ||
		errors.Is(err, ErrCardinalityConflict) ||
		errors.Is(err, ErrUniquenessViolation) ||
		errors.Is(err, ErrTxInstantNotMonotonic) ||
		errors.Is(err, ErrUnrecognizedEntid)
}

// IsTimelineError reports whether err came from a rewind precondition
// failure (section 4.11, section 7).
func IsTimelineError(err error) bool {
	return errors.Is(err, ErrTimelinesNotOnTail) ||
		errors.Is(err, ErrTimelinesMixed) ||
		errors.Is(err, ErrTimelinesNotOnMain) ||
		errors.Is(err, ErrTimelinesNoneSupplied) ||
		errors.Is(err, ErrTimelinesTargetIsMain)
}

// IsRetryable reports whether err might succeed if the caller retries the
// same transaction unchanged. Nothing in this core is retryable without
// caller changes except storage-layer transients, which the index provider
// itself is responsible for retrying (section 5).
func IsRetryable(err error) bool {
	return false
}
