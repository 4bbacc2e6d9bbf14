/*
driver.go - The transactor driver state machine (section 4.10)

PURPOSE:
  Runs one transaction end to end: Begin, Allocate-tx, Resolve, Expand,
  Check, Schema, Stamp, Write, Commit/Rollback. Every step before Write
  operates on cloned schema/partition state (section 3 Ownership); nothing
  becomes visible to other readers until Commit calls provider.Append.

  There is no in-process rollback to perform beyond discarding the local
  clones — the index provider is never touched before Write, so "Rollback"
  is simply returning the error without calling Append.
*/
package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/factdb/fact"
)

// TxReport is the outcome of a successful transaction (section 4.10).
type TxReport struct {
	TxID      fact.Entid
	TxInstant time.Time
	TempIDs   map[string]fact.Entid
	Report    *MetadataReport // always set; its fields are empty if no schema attribute was touched
}

// Driver runs transactions against one store's schema/partition state and
// index provider. It does not itself guarand single-writer exclusion — the
// caller (the store/registry layer) holds the writer lock for the
// driver's full duration (section 5 "Scheduling model").
type Driver struct {
	Provider   fact.IndexProvider
	Timeline   string // usually "main"
	Partition  string // default partition for fresh allocation, usually :db.part/user
}

// NewDriver constructs a Driver for the given timeline (usually "main") and
// default allocation partition (usually :db.part/user).
func NewDriver(provider fact.IndexProvider, timeline, defaultPartition string) *Driver {
	return &Driver{Provider: provider, Timeline: timeline, Partition: defaultPartition}
}

// Transact runs the full section 4.10 state machine. schema and partitions
// are the store's current committed state; Transact clones them internally
// and only returns the mutated clones (for the caller to commit into the
// store) alongside the TxReport, on success. On any failure, the returned
// schema/partitions are nil and the store's committed state is untouched.
func (d *Driver) Transact(ctx context.Context, schema *fact.Schema, partitions fact.PartitionMap, previousTxInstant time.Time, terms []RawTerm, explicitTxInstant *time.Time) (*TxReport, *fact.Schema, fact.PartitionMap, error) {
	// Begin: snapshot schema and partition map (clone, section 3 Ownership).
	workingSchema := schema.Clone()
	workingPartitions := partitions.Clone()

	// Allocate-tx: reserve one entid from the tx partition.
	txPart, ok := workingPartitions.Get(fact.PartitionTx)
	if !ok {
		return nil, nil, nil, fmt.Errorf("fact/tx: partition %q not found", fact.PartitionTx)
	}
	txID, _ := txPart.Allocate(1)

	// Resolve: lookup-ref resolution (4.5) then upsert fixed point (4.6).
	// (transaction-tx) placeholders are bound to txID before resolution so
	// they flow through the pipeline as ordinary entid places.
	boundTerms := bindTransactionTx(terms, txID)

	pending, err := ResolveLookupRefs(ctx, d.Provider, workingSchema, boundTerms)
	if err != nil {
		return nil, nil, nil, err
	}
	resolved, tempIDs, err := ResolveUpserts(ctx, d.Provider, workingSchema, workingPartitions, d.Partition, pending)
	if err != nil {
		return nil, nil, nil, err
	}

	// Expand (4.8) happens inside EnforceCardinality, which also runs the
	// Check step (4.7); both read against the pre-transaction index only.
	adds, retracts, err := EnforceCardinality(ctx, d.Provider, workingSchema, resolved)
	if err != nil {
		return nil, nil, nil, err
	}

	// Schema (4.9): retracting :db/ident is not supported.
	for _, t := range retracts {
		if ident, ok := workingSchema.IdentFor(t.A); ok && ident == IdentDBIdent {
			return nil, nil, nil, &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "retracting :db/ident is not supported"}
		}
	}

	// Apply any reserved-vocabulary assertions to the working schema clone.
	metaReport, err := ApplyMetadata(workingSchema, adds)
	if err != nil {
		return nil, nil, nil, err
	}

	// Stamp (4.10 step 8): strictly monotonic txInstant.
	clock := NewClock(previousTxInstant)
	var instant time.Time
	if explicitTxInstant != nil {
		if err := clock.Advance(*explicitTxInstant); err != nil {
			return nil, nil, nil, err
		}
		instant = *explicitTxInstant
	} else {
		instant = clock.Next()
	}

	datoms := make([]fact.Datom, 0, len(adds)+len(retracts)+1)
	for _, t := range adds {
		datoms = append(datoms, fact.Datom{E: t.E, A: t.A, V: t.V, Tx: txID, Added: true})
	}
	for _, t := range retracts {
		datoms = append(datoms, fact.Datom{E: t.E, A: t.A, V: t.V, Tx: txID, Added: false})
	}
	datoms = append(datoms, fact.Datom{E: txID, A: fact.TxInstantEntid, V: fact.InstantValue(instant), Tx: txID, Added: true})
	fact.SortTxOrder(datoms)

	// Write + Commit: a single atomic append. If this fails, nothing above
	// has touched the store, so there is nothing to roll back beyond
	// discarding workingSchema/workingPartitions.
	if err := d.Provider.Append(ctx, d.Timeline, datoms); err != nil {
		return nil, nil, nil, &fact.StorageError{Op: "append", Err: err}
	}

	return &TxReport{
		TxID:      txID,
		TxInstant: instant,
		TempIDs:   tempIDs,
		Report:    metaReport,
	}, workingSchema, workingPartitions, nil
}

// bindTransactionTx replaces every (transaction-tx) placeholder entity or
// value position with the concrete tx entid allocated this transaction
// (section 6 "Input format", section 4.10 step 3). Placeholders are spelled
// as the reserved tempid "db/current-tx" by the term builder layer.
const TransactionTxPlaceholder = "db/current-tx"

func bindTransactionTx(terms []RawTerm, txID fact.Entid) []RawTerm {
	out := make([]RawTerm, len(terms))
	for i, t := range terms {
		if t.E.Kind == PlaceTempID && t.E.TempID == TransactionTxPlaceholder {
			t.E = EntidPlace(txID)
		}
		if t.Shape == ShapeAddOrRetract && t.V.Kind == PlaceTempID && t.V.TempID == TransactionTxPlaceholder {
			t.V = ValuePlaceOf(fact.RefValue(txID))
		}
		out[i] = t
	}
	return out
}
