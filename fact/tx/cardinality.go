/*
cardinality.go - Cardinality and uniqueness enforcement (section 4.7)

PURPOSE:
  Runs after every tempid has been lowered to a concrete entid. Operates on
  the candidate add/retract set for one transaction and the current-state
  index, producing the final datom batch (including synthetic retracts for
  cardinality-one replacement) or failing the whole transaction.
*/
package tx

import (
	"context"

	"github.com/warp/factdb/fact"
)

// EnforceCardinality applies section 4.7 to resolved terms, returning the
// final (e,a,v) adds and retracts to stamp into datoms. The caller fills
// Datom.Tx; this pass does not see the transaction's entid.
func EnforceCardinality(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, terms []ResolvedTerm) (adds []ResolvedTerm, retracts []ResolvedTerm, err error) {
	expanded, err := expandRetracts(ctx, provider, schema, terms)
	if err != nil {
		return nil, nil, err
	}

	adds, retracts = cancelSameDatom(expanded)

	retracts, err = dropNonExistentRetracts(ctx, provider, retracts)
	if err != nil {
		return nil, nil, err
	}

	if err := checkIntraBatchCardinality(schema, adds); err != nil {
		return nil, nil, err
	}

	synthetic, err := checkUniquenessAndReplacement(ctx, provider, schema, adds)
	if err != nil {
		return nil, nil, err
	}
	retracts = append(retracts, synthetic...)

	return adds, retracts, nil
}

// cancelSameDatom drops a retract for exactly the (e,a,v) an add in the same
// batch also asserts — the net effect is the add, a reassertion (section
// 4.7 "Same-datom add+retract").
func cancelSameDatom(terms []ResolvedTerm) (adds []ResolvedTerm, retracts []ResolvedTerm) {
	addSet := make(map[addKey]bool)
	for _, t := range terms {
		if t.Shape == ShapeAddOrRetract && t.Op == OpAdd {
			adds = append(adds, t)
			addSet[addKeyOf(t)] = true
		}
	}
	for _, t := range terms {
		if t.Shape == ShapeAddOrRetract && t.Op == OpRetract {
			if addSet[addKeyOf(t)] {
				continue
			}
			retracts = append(retracts, t)
		}
	}
	return adds, retracts
}

// dropNonExistentRetracts filters explicit retracts against the
// current-state index, keeping only those whose (e,a,v) is presently
// asserted. A retract of a datom that was never asserted (or already
// retracted) appends nothing — invariant 8 — rather than writing a
// dangling (e,a,v,tx,false) row no prior add matches.
func dropNonExistentRetracts(ctx context.Context, provider fact.IndexProvider, retracts []ResolvedTerm) ([]ResolvedTerm, error) {
	var present []ResolvedTerm
	for _, t := range retracts {
		current, err := provider.ScanEAV(ctx, t.E, t.A)
		if err != nil {
			return nil, &fact.StorageError{Op: "retract-check", Err: err}
		}
		for _, d := range current {
			if d.Added && d.V.Equal(t.V) {
				present = append(present, t)
				break
			}
		}
	}
	return present, nil
}

type addKey struct {
	e, a fact.Entid
	v    string
}

func addKeyOf(t ResolvedTerm) addKey {
	return addKey{e: t.E, a: t.A, v: t.V.String()}
}

// checkIntraBatchCardinality fails with CardinalityConflict when two
// additions for the same (e,a) with cardinality one disagree on v (section
// 4.7 "Intra-batch cardinality-one conflict").
func checkIntraBatchCardinality(schema *fact.Schema, adds []ResolvedTerm) error {
	seen := make(map[[2]fact.Entid]fact.TypedValue)
	for _, t := range adds {
		attr, ok := schema.AttributeFor(t.A)
		if !ok || attr.Cardinality != fact.CardinalityOne {
			continue
		}
		key := [2]fact.Entid{t.E, t.A}
		if prev, ok := seen[key]; ok {
			if !prev.Equal(t.V) {
				return &fact.CardinalityConflictError{E: t.E, A: t.A, First: prev, Second: t.V}
			}
			continue
		}
		seen[key] = t.V
	}
	return nil
}

// checkUniquenessAndReplacement cross-checks every add on a unique
// attribute against the current-state index, failing with
// UniquenessViolation on a collision with a different entity, and emitting
// a synthetic retract when a cardinality-one add replaces a different
// existing value (section 4.7 "Uniqueness cross-check", "Cardinality-one
// replacement").
func checkUniquenessAndReplacement(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, adds []ResolvedTerm) ([]ResolvedTerm, error) {
	var synthetic []ResolvedTerm
	for _, t := range adds {
		attr, ok := schema.AttributeFor(t.A)
		if !ok {
			continue
		}
		if attr.Unique != fact.UniqueNone {
			existingE, found, err := provider.LookupUnique(ctx, t.A, t.V)
			if err != nil {
				return nil, &fact.StorageError{Op: "uniqueness-check", Err: err}
			}
			if found && existingE != t.E {
				return nil, &fact.UniquenessViolationError{A: t.A, V: t.V, NewEntity: t.E, ExistingEntity: existingE}
			}
		}
		if attr.Cardinality == fact.CardinalityOne {
			current, err := provider.ScanEAV(ctx, t.E, t.A)
			if err != nil {
				return nil, &fact.StorageError{Op: "cardinality-scan", Err: err}
			}
			for _, d := range current {
				if !d.Added {
					continue
				}
				if !d.V.Equal(t.V) {
					synthetic = append(synthetic, ResolvedTerm{
						Shape: ShapeAddOrRetract, Op: OpRetract,
						E: t.E, A: t.A, V: d.V,
					})
				}
			}
		}
	}
	return synthetic, nil
}
