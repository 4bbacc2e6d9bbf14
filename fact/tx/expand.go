/*
expand.go - RetractEntity / RetractAttribute expansion (section 4.8)

PURPOSE:
  RetractEntity and RetractAttribute are conveniences over the primitive
  add/retract vocabulary: they must be expanded into a concrete set of
  [retract e a v] terms against the current-state index before cardinality
  enforcement runs. RetractEntity additionally cascades into component
  children reachable via an is_component outbound ref attribute, bounded by
  cycle detection on visited entids.
*/
package tx

import (
	"context"

	"github.com/warp/factdb/fact"
)

// expandRetracts lowers every RetractEntity/RetractAttribute term in terms
// into concrete ShapeAddOrRetract/OpRetract terms, leaving ShapeAddOrRetract
// terms untouched.
func expandRetracts(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, terms []ResolvedTerm) ([]ResolvedTerm, error) {
	out := make([]ResolvedTerm, 0, len(terms))
	visited := make(map[fact.Entid]bool)

	for _, t := range terms {
		switch t.Shape {
		case ShapeAddOrRetract:
			out = append(out, t)
		case ShapeRetractAttribute:
			datoms, err := provider.ScanEAV(ctx, t.E, t.A)
			if err != nil {
				return nil, &fact.StorageError{Op: "retract-attribute-scan", Err: err}
			}
			for _, d := range datoms {
				if d.Added {
					out = append(out, ResolvedTerm{Shape: ShapeAddOrRetract, Op: OpRetract, E: d.E, A: d.A, V: d.V})
				}
			}
		case ShapeRetractEntity:
			expanded, err := expandEntity(ctx, provider, schema, t.E, visited)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	return out, nil
}

// expandEntity retracts every current-state datom for e, then recurses into
// component children: entities reachable via an is_component ref attribute
// asserted by e. visited guards against a component cycle producing
// unbounded recursion (section 4.8).
func expandEntity(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, e fact.Entid, visited map[fact.Entid]bool) ([]ResolvedTerm, error) {
	if visited[e] {
		return nil, nil
	}
	visited[e] = true

	datoms, err := provider.ScanEAV(ctx, e, 0)
	if err != nil {
		return nil, &fact.StorageError{Op: "retract-entity-scan", Err: err}
	}

	var out []ResolvedTerm
	var children []fact.Entid
	for _, d := range datoms {
		if !d.Added {
			continue
		}
		out = append(out, ResolvedTerm{Shape: ShapeAddOrRetract, Op: OpRetract, E: d.E, A: d.A, V: d.V})
		if attr, ok := schema.AttributeFor(d.A); ok && attr.IsComponent && d.V.Type == fact.ValueTypeRef {
			children = append(children, d.V.Ref)
		}
	}

	for _, child := range children {
		childTerms, err := expandEntity(ctx, provider, schema, child, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, childTerms...)
	}
	return out, nil
}
