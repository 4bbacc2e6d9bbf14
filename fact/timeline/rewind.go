/*
rewind.go - Timeline rewind: move_from_main (section 4.11)

PURPOSE:
  Moves a tail block of main-timeline transactions onto an alternate
  timeline, normalizing current state back to what it was before those
  transactions. The inverse batch and the block's tx range go to the
  provider's TimelineUpdate in one call, which applies the inverse to
  current state and relabels the original block; the inverse is never
  recorded as a transaction of its own, so nothing is deleted afterwards.

  Ported from move_from_main_timeline: validate the block is exactly the
  tail of main, compute the inverse, apply it and relabel the originals
  through TimelineUpdate, then reset the user and tx partition cursors.
*/
package timeline

import (
	"context"
	"sort"

	"github.com/warp/factdb/fact"
)

// MainTimeline is the reserved name of the default timeline.
const MainTimeline = "main"

// MoveFromMain rewinds tx_ids (a tail block of the main timeline) onto
// targetTimeline, returning the partition map with cursors reset to their
// pre-rewind extent (section 4.11). schema/partitions are the store's
// current committed state; a clone is mutated and returned, mirroring the
// ownership discipline in fact/tx.Driver.Transact.
func MoveFromMain(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, partitions fact.PartitionMap, txIDs []fact.Entid, targetTimeline string) (fact.PartitionMap, error) {
	if targetTimeline == MainTimeline {
		return nil, fact.ErrTimelinesTargetIsMain
	}
	if len(txIDs) == 0 {
		return nil, fact.ErrTimelinesNoneSupplied
	}

	smallestTx := txIDs[0]
	txSet := make(map[fact.Entid]bool, len(txIDs))
	for _, tx := range txIDs {
		txSet[tx] = true
		if tx < smallestTx {
			smallestTx = tx
		}
	}

	if err := verifyTailBlock(ctx, provider, smallestTx, txSet); err != nil {
		return nil, err
	}

	inverse, lowestE, err := computeInverseBatch(ctx, provider, smallestTx)
	if err != nil {
		return nil, err
	}

	workingPartitions := partitions.Clone()

	if err := provider.TimelineUpdate(ctx, MainTimeline, targetTimeline, smallestTx, greatestOf(txIDs), inverse); err != nil {
		return nil, &fact.StorageError{Op: "timeline-update", Err: err}
	}

	userPart, ok := workingPartitions.Get(fact.PartitionUser)
	if !ok {
		return nil, fact.ErrUnrecognizedEntid
	}
	if err := userPart.SetIndex(lowestE); err != nil {
		return nil, err
	}

	txPart, ok := workingPartitions.Get(fact.PartitionTx)
	if !ok {
		return nil, fact.ErrUnrecognizedEntid
	}
	if err := txPart.SetIndex(smallestTx); err != nil {
		return nil, err
	}

	return workingPartitions, nil
}

// verifyTailBlock confirms that every transaction at or after smallestTx on
// the main timeline is present in txSet (so txIDs is exactly the tail, not
// a scattered subset) (section 4.11 precondition). Timeline labels are not
// checked: ScanTx does not report a transaction's timeline, so a block that
// was already moved off main is not rejected with ErrTimelinesNotOnMain or
// ErrTimelinesMixed.
func verifyTailBlock(ctx context.Context, provider fact.IndexProvider, smallestTx fact.Entid, txSet map[fact.Entid]bool) error {
	// The provider contract (section 6) has no "list tx ids at or after X"
	// method, so the tail is derived here by scanning tx ids from smallestTx
	// upward with ScanTx until one returns no datoms.
	for tx := smallestTx; ; tx++ {
		datoms, err := provider.ScanTx(ctx, tx)
		if err != nil {
			return &fact.StorageError{Op: "scan-tx", Err: err}
		}
		if len(datoms) == 0 {
			break
		}
		if !txSet[tx] {
			return fact.ErrTimelinesNotOnTail
		}
	}
	return nil
}

// computeInverseBatch reads every datom for tx >= smallestTx on the main
// timeline in descending tx order and emits the same datom with Added
// flipped, excluding :db/txInstant (section 4.11). Also returns the lowest
// entity entid observed, used to reset the user partition cursor.
func computeInverseBatch(ctx context.Context, provider fact.IndexProvider, smallestTx fact.Entid) ([]fact.Datom, fact.Entid, error) {
	var all []fact.Datom
	for tx := smallestTx; ; tx++ {
		datoms, err := provider.ScanTx(ctx, tx)
		if err != nil {
			return nil, 0, &fact.StorageError{Op: "scan-tx", Err: err}
		}
		if len(datoms) == 0 {
			break
		}
		all = append(all, datoms...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Tx > all[j].Tx })

	var inverse []fact.Datom
	var lowestE fact.Entid
	haveLowest := false
	for _, d := range all {
		if d.A == fact.TxInstantEntid {
			continue
		}
		inverse = append(inverse, fact.Datom{E: d.E, A: d.A, V: d.V, Tx: d.Tx, Added: !d.Added})
		if !haveLowest || d.E < lowestE {
			lowestE = d.E
			haveLowest = true
		}
	}
	return inverse, lowestE, nil
}

func greatestOf(txIDs []fact.Entid) fact.Entid {
	max := txIDs[0]
	for _, tx := range txIDs {
		if tx > max {
			max = tx
		}
	}
	return max
}
