/*
upsert.go - The fixed-point upsert resolution engine (section 4.6)

PURPOSE:
  Classifies every pending term with an open tempid into one of four
  populations and iterates until no UpsertE remains, at which point every
  surviving tempid is allocated fresh. Mirrors the Generation::evolve_one_step
  shape, specialized to this package's Term representation since Go has no
  parameterized enum to reuse directly.

ALGORITHM (ported faithfully from upstream's evolve_one_step, extended with
the conflict validation upstream left as a TODO and section 4.6 mandates):
  1. Collect UpsertE candidates: {(tempid, a, v)}.
  2. Probe the index for each (a,v) -> candidate entid.
  3. Validate no tempid resolves two ways and no two tempids collide.
  4. Promote resolved UpsertE to upserted; demote the rest to allocations.
  5. Re-home UpsertEV whose endpoints now resolve.
  6. Repeat until the UpsertE population is empty.
  7. Allocate fresh entids for every tempid still unresolved.
  8. Lower every term to a ResolvedTerm.
*/
package tx

import (
	"context"
	"fmt"

	"github.com/warp/factdb/fact"
)

type upsertE struct {
	tempID string
	a      fact.Entid
	v      fact.TypedValue
}

type upsertEV struct {
	tempID1 string
	a       fact.Entid
	tempID2 string
}

// generation is the fixed-point working set, mirroring upstream's Generation.
type generation struct {
	upsertsE  []upsertE
	upsertsEV []upsertEV
	allocations []PendingTerm // still has open tempids, not UpsertE/UpsertEV shaped
	resolved    []PendingTerm // tempids resolved via cascade, not yet looked up in store
	inert       []PendingTerm // no tempids at all
}

func (g *generation) canEvolve() bool { return len(g.upsertsE) > 0 }

// ResolveUpserts runs the full fixed-point algorithm over terms (already
// past lookup-ref resolution) and a caller-supplied default partition name
// for fresh allocation, returning fully-resolved terms and the final
// tempid -> entid map (the transaction report's :tempids, section 4.10 step
// 9).
func ResolveUpserts(ctx context.Context, provider fact.IndexProvider, schema *fact.Schema, partitions fact.PartitionMap, defaultPartition string, terms []PendingTerm) ([]ResolvedTerm, map[string]fact.Entid, error) {
	tempIDMap := make(map[string]fact.Entid)
	g := classify(schema, terms)

	for g.canEvolve() {
		candidates, err := probe(ctx, provider, g.upsertsE)
		if err != nil {
			return nil, nil, err
		}
		if err := validateNoConflicts(g.upsertsE, candidates, tempIDMap); err != nil {
			return nil, nil, err
		}
		for tid, e := range candidates {
			tempIDMap[tid] = e
		}
		g = evolveOneStep(g, candidates)
	}

	if err := allocateRemaining(partitions, defaultPartition, g, tempIDMap); err != nil {
		return nil, nil, err
	}

	out := make([]ResolvedTerm, 0, len(g.allocations)+len(g.resolved)+len(g.inert))
	for _, t := range g.inert {
		rt, err := lower(t, tempIDMap)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, rt)
	}
	for _, t := range g.resolved {
		rt, err := lower(t, tempIDMap)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, rt)
	}
	for _, t := range g.allocations {
		rt, err := lower(t, tempIDMap)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, rt)
	}
	return out, tempIDMap, nil
}

// classify sorts every term into one of the four populations (section 4.6
// table): UpsertE, UpsertEV, Allocation, Inert.
func classify(schema *fact.Schema, terms []PendingTerm) *generation {
	g := &generation{}
	for _, t := range terms {
		if t.Shape != ShapeAddOrRetract {
			// RetractAttribute/RetractEntity may still carry an open tempid
			// entity position; treat uniformly as an allocation candidate
			// unless fully resolved.
			if !t.E.IsTempID {
				g.inert = append(g.inert, t)
			} else {
				g.allocations = append(g.allocations, t)
			}
			continue
		}
		attr, isUnique := schema.AttributeFor(t.A)
		eIsTemp := t.E.IsTempID
		vIsTemp := t.V.IsTempID

		if !eIsTemp && !vIsTemp {
			g.inert = append(g.inert, t)
			continue
		}
		if eIsTemp && isUnique && attr.Unique == fact.UniqueIdentity && !vIsTemp {
			g.upsertsE = append(g.upsertsE, upsertE{tempID: t.E.TempID, a: t.A, v: t.V.Value})
			continue
		}
		if eIsTemp && isUnique && attr.Unique == fact.UniqueIdentity && vIsTemp {
			g.upsertsEV = append(g.upsertsEV, upsertEV{tempID1: t.E.TempID, a: t.A, tempID2: t.V.TempID})
			continue
		}
		g.allocations = append(g.allocations, t)
	}
	return g
}

// probe issues one LookupUnique per pending UpsertE and returns the tempid
// -> entid candidate map for every pair that already exists in the index
// (section 4.6 step 2).
func probe(ctx context.Context, provider fact.IndexProvider, upserts []upsertE) (map[string]fact.Entid, error) {
	candidates := make(map[string]fact.Entid, len(upserts))
	for _, u := range upserts {
		e, found, err := provider.LookupUnique(ctx, u.a, u.v)
		if err != nil {
			return nil, &fact.StorageError{Op: "upsert-probe", Err: err}
		}
		if found {
			if prev, ok := candidates[u.tempID]; ok && prev != e {
				return nil, &fact.ConflictingUpsertsError{TempID: u.tempID, FirstEntid: prev, SecondEntid: e}
			}
			candidates[u.tempID] = e
		}
	}
	return candidates, nil
}

// validateNoConflicts enforces section 4.6 step 3: no tempid resolves two
// incompatible ways, and no two distinct tempids resolve to the same entid
// (the latter is a conflict only for tempids that are not simply repeated
// references to one real-world entity, so we key by the tempid string — two
// occurrences of the identical tempid agreeing is not a conflict, checked
// by candidates being a map).
func validateNoConflicts(upserts []upsertE, candidates map[string]fact.Entid, prior map[string]fact.Entid) error {
	byEntid := make(map[fact.Entid]string, len(candidates))
	for tid, e := range candidates {
		if prevTid, ok := byEntid[e]; ok && prevTid != tid {
			return &fact.ConflictingUpsertsError{TempID: tid, OtherTempID: prevTid, FirstEntid: e}
		}
		byEntid[e] = tid
		if priorE, ok := prior[tid]; ok && priorE != e {
			return &fact.ConflictingUpsertsError{TempID: tid, FirstEntid: priorE, SecondEntid: e}
		}
	}
	return nil
}

// evolveOneStep rewrites the generation given newly-resolved tempids,
// mirroring Generation::evolve_one_step.
func evolveOneStep(g *generation, candidates map[string]fact.Entid) *generation {
	next := &generation{
		allocations: g.allocations,
		resolved:    g.resolved,
		inert:       g.inert,
	}

	for _, u := range g.upsertsE {
		if e, ok := candidates[u.tempID]; ok {
			next.resolved = append(next.resolved, PendingTerm{
				Shape: ShapeAddOrRetract, Op: OpAdd,
				E: ResolvedE(e), A: u.a, V: ResolvedV(u.v),
			})
		} else {
			next.allocations = append(next.allocations, PendingTerm{
				Shape: ShapeAddOrRetract, Op: OpAdd,
				E: OpenE(u.tempID), A: u.a, V: ResolvedV(u.v),
			})
		}
	}

	for _, uv := range g.upsertsEV {
		e1, ok1 := candidates[uv.tempID1]
		e2, ok2 := candidates[uv.tempID2]
		switch {
		case ok1 && ok2:
			next.resolved = append(next.resolved, PendingTerm{
				Shape: ShapeAddOrRetract, Op: OpAdd,
				E: ResolvedE(e1), A: uv.a, V: ResolvedV(fact.RefValue(e2)),
			})
		case !ok1 && ok2:
			next.upsertsE = append(next.upsertsE, upsertE{tempID: uv.tempID1, a: uv.a, v: fact.RefValue(e2)})
		case ok1 && !ok2:
			next.allocations = append(next.allocations, PendingTerm{
				Shape: ShapeAddOrRetract, Op: OpAdd,
				E: ResolvedE(e1), A: uv.a, V: OpenV(uv.tempID2),
			})
		default:
			next.allocations = append(next.allocations, PendingTerm{
				Shape: ShapeAddOrRetract, Op: OpAdd,
				E: OpenE(uv.tempID1), A: uv.a, V: OpenV(uv.tempID2),
			})
		}
	}

	return next
}

// allocateRemaining hands a fresh entid to every tempid still open in the
// allocations (section 4.6 step 7). Every such tempid is allocated from the
// single defaultPartition; tempids carry no partition of their own, so an
// attribute installed through a tempid draws from that partition too.
func allocateRemaining(partitions fact.PartitionMap, defaultPartition string, g *generation, tempIDMap map[string]fact.Entid) error {
	part, ok := partitions.Get(defaultPartition)
	if !ok {
		return fmt.Errorf("fact/tx: unknown partition %q", defaultPartition)
	}
	assign := func(tid string) {
		if _, done := tempIDMap[tid]; done {
			return
		}
		e, _ := part.Allocate(1)
		tempIDMap[tid] = e
	}
	for _, t := range g.allocations {
		if t.E.IsTempID {
			assign(t.E.TempID)
		}
		if t.Shape == ShapeAddOrRetract && t.V.IsTempID {
			assign(t.V.TempID)
		}
	}
	return nil
}

func lower(t PendingTerm, tempIDMap map[string]fact.Entid) (ResolvedTerm, error) {
	e, err := resolveEOrTemp(t.E, tempIDMap)
	if err != nil {
		return ResolvedTerm{}, err
	}
	rt := ResolvedTerm{Shape: t.Shape, Op: t.Op, E: e, A: t.A}
	if t.Shape == ShapeAddOrRetract {
		v, err := resolveVOrTemp(t.V, tempIDMap)
		if err != nil {
			return ResolvedTerm{}, err
		}
		rt.V = v
	}
	return rt, nil
}

func resolveEOrTemp(e EntidOrTempID, tempIDMap map[string]fact.Entid) (fact.Entid, error) {
	if !e.IsTempID {
		return e.Entid, nil
	}
	resolved, ok := tempIDMap[e.TempID]
	if !ok {
		return 0, fmt.Errorf("fact/tx: tempid %q left unresolved after allocation pass", e.TempID)
	}
	return resolved, nil
}

func resolveVOrTemp(v ValueOrTempID, tempIDMap map[string]fact.Entid) (fact.TypedValue, error) {
	if !v.IsTempID {
		return v.Value, nil
	}
	resolved, ok := tempIDMap[v.TempID]
	if !ok {
		return fact.TypedValue{}, fmt.Errorf("fact/tx: tempid %q left unresolved after allocation pass", v.TempID)
	}
	return fact.RefValue(resolved), nil
}
