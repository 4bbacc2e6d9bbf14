/*
resolver.go - Lookup-ref resolution (section 4.5)

PURPOSE:
  A lookup-ref [:attr value] names an entity indirectly by a unique
  attribute/value pair. Resolution happens once, before upsert fixed-point
  iteration begins, and is a pure read against the index: either the pair
  already identifies an existing entity, or it does not exist yet and the
  caller must supply a tempid or entid alongside it for allocation.

  This pass never allocates and never consults pending in-transaction
  assertions — only what is already durable. A lookup-ref to a pair that
  will only exist because of this same transaction's upserts must be
  spelled with a tempid instead (section 4.5 note).
*/
package tx

import (
	"context"
	"fmt"

	"github.com/warp/factdb/fact"
)

// ResolveLookupRefs validates and resolves every LookupRef place in terms
// against the current index, turning each RawTerm into a PendingTerm.
func ResolveLookupRefs(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, terms []RawTerm) ([]PendingTerm, error) {
	out := make([]PendingTerm, 0, len(terms))
	for _, t := range terms {
		e, err := resolveEntityPlace(ctx, provider, schema, t.E)
		if err != nil {
			return nil, err
		}
		pt := PendingTerm{Shape: t.Shape, Op: t.Op, E: e, A: t.A}
		if t.Shape == ShapeAddOrRetract {
			v, err := resolveValuePlace(ctx, provider, schema, t.V)
			if err != nil {
				return nil, err
			}
			pt.V = v
		}
		out = append(out, pt)
	}
	return out, nil
}

func resolveEntityPlace(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, p Place) (EntidOrTempID, error) {
	switch p.Kind {
	case PlaceEntid:
		return ResolvedE(p.Entid), nil
	case PlaceTempID:
		return OpenE(p.TempID), nil
	case PlaceLookupRef:
		e, err := resolveLookupRef(ctx, provider, schema, p.LookupRef)
		if err != nil {
			return EntidOrTempID{}, err
		}
		return ResolvedE(e), nil
	default:
		return EntidOrTempID{}, fmt.Errorf("fact/tx: unknown place kind %d", p.Kind)
	}
}

func resolveValuePlace(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, p ValuePlace) (ValueOrTempID, error) {
	switch p.Kind {
	case PlaceEntid:
		return ResolvedV(p.Value), nil
	case PlaceTempID:
		return OpenV(p.TempID), nil
	case PlaceLookupRef:
		e, err := resolveLookupRef(ctx, provider, schema, p.LookupRef)
		if err != nil {
			return ValueOrTempID{}, err
		}
		return ResolvedV(fact.RefValue(e)), nil
	default:
		return ValueOrTempID{}, fmt.Errorf("fact/tx: unknown value place kind %d", p.Kind)
	}
}

func resolveLookupRef(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, ref LookupRef) (fact.Entid, error) {
	attr, ok := schema.AttributeFor(ref.A)
	if !ok || attr.Unique == fact.UniqueNone {
		return 0, &NotUniqueAttributeError{Attr: ref.A}
	}
	e, found, err := provider.LookupUnique(ctx, ref.A, ref.V)
	if err != nil {
		return 0, &fact.StorageError{Op: "lookup-ref", Err: err}
	}
	if !found {
		return 0, &UnresolvedLookupRefError{Attr: ref.A, Value: ref.V}
	}
	return e, nil
}
