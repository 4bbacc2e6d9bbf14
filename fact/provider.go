/*
provider.go - The storage collaborator contract (section 6)

PURPOSE:
  IndexProvider is the seam between this package's pure in-memory algorithms
  (entity resolution, cardinality enforcement, metadata mutation, timeline
  rewind) and whatever concrete row store backs a given process. This core
  ships two implementations (fact/store/memory and storesql), but callers
  may supply their own as long as it honors the contract below.

  Every method here is a pure I/O boundary: no business logic, no validation
  beyond what is needed to execute the operation. All semantic checks
  (cardinality, uniqueness, schema shape) happen in fact/tx before an
  IndexProvider method is ever called.
*/
package fact

import "context"

// IndexProvider is the storage collaborator every transactor and timeline
// operation is written against (section 6).
type IndexProvider interface {
	// LookupUnique resolves a (a,v) pair on a unique or unique-identity
	// attribute to the entity currently asserting it, if any. Returns
	// (0, false, nil) when no entity currently holds that value.
	LookupUnique(ctx context.Context, a Entid, v TypedValue) (Entid, bool, error)

	// ScanEAV returns the current-state datoms for entity e, or for
	// (e,a) when a != 0, in CompareEAVT order. Used by RetractEntity
	// expansion and component-cycle detection (section 4.8).
	ScanEAV(ctx context.Context, e Entid, a Entid) ([]Datom, error)

	// ScanTx returns every datom stamped with the given tx entid, in
	// CompareTxOrder order. Used by timeline rewind to build the inverse
	// batch (section 4.11).
	ScanTx(ctx context.Context, tx Entid) ([]Datom, error)

	// Append durably records datoms as a new transaction on the current
	// tip of the named timeline. The datoms must already be in
	// CompareTxOrder order; Append does not re-sort or re-validate them.
	Append(ctx context.Context, timeline string, datoms []Datom) error

	// TimelineUpdate moves a contiguous tail block of transactions (by tx
	// entid, inclusive bounds) from one timeline to another and applies the
	// supplied inverse datoms to current state in the same atomic step
	// (section 4.11). The inverse datoms are not recorded as a transaction.
	TimelineUpdate(ctx context.Context, from, to string, fromTx, toTx Entid, inverse []Datom) error

	// DeleteTx permanently removes a transaction's datoms from a timeline
	// without recording an inverse. Reserved for callers that intend to
	// discard history outright rather than move it; the rewind operation
	// in fact/timeline never calls this — it always moves data via
	// TimelineUpdate so the discarded block remains recoverable.
	DeleteTx(ctx context.Context, timeline string, tx Entid) error
}
