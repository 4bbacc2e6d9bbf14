/*
term.go - The entity-position representations a raw transaction datum can hold

PURPOSE:
  A transaction entry arrives in one of three shapes at the place an entid
  would otherwise go (entid, tempid, lookup-ref), and one of three shapes at
  the place a value would otherwise go (typed value, tempid, lookup-ref). Rather than a single sum type per language idiom, each
  "place" is a small tagged struct: exactly one discriminant is ever
  non-zero, enforced by construction helpers rather than by the zero value
  alone.

  Place progresses through three term families as resolution proceeds
  (mirrors the upstream Term<E,V> generic, specialized per stage instead of
  parameterized, since Go has no algebraic sum types to spare):

    RawTerm          - fresh off the wire: entid | lookup-ref | tempid
    PendingTerm      - lookup-refs resolved, tempids still open
    ResolvedTerm     - fully resolved entids and values, ready to commit

SEE ALSO:
  - resolver.go: turns RawTerm into PendingTerm (lookup-ref resolution)
  - upsert.go:   turns PendingTerm into ResolvedTerm (tempid resolution)
*/
package tx

import "github.com/warp/factdb/fact"

// OpKind distinguishes an assertion from a retraction.
type OpKind int

const (
	OpAdd OpKind = iota
	OpRetract
)

// LookupRef names an entity by an existing (unique attribute, value) pair
// rather than by entid or tempid, resolved to a concrete entid before
// upsert resolution begins (section 4.5).
type LookupRef struct {
	A fact.Entid
	V fact.TypedValue
}

// Place is an entity position that may be a concrete entid, a tempid string,
// or a lookup-ref, in a raw, just-parsed transaction term. Exactly one of
// Entid/TempID/LookupRef is populated, indicated by Kind.
type Place struct {
	Kind      PlaceKind
	Entid     fact.Entid
	TempID    string
	LookupRef LookupRef
}

type PlaceKind int

const (
	PlaceEntid PlaceKind = iota
	PlaceTempID
	PlaceLookupRef
)

func EntidPlace(e fact.Entid) Place        { return Place{Kind: PlaceEntid, Entid: e} }
func TempIDPlace(t string) Place           { return Place{Kind: PlaceTempID, TempID: t} }
func LookupRefPlace(a fact.Entid, v fact.TypedValue) Place {
	return Place{Kind: PlaceLookupRef, LookupRef: LookupRef{A: a, V: v}}
}

// ValuePlace is a value position that may be a typed value, a tempid, or a
// lookup-ref (only typed values and tempids are legal in practice, since
// lookup-refs only appear in the value position of a ref-typed attribute,
// but the shape is the same as Place so reuse it with an unused LookupRef
// field left zero outside that case).
type ValuePlace struct {
	Kind      PlaceKind
	Value     fact.TypedValue
	TempID    string
	LookupRef LookupRef
}

func ValuePlaceOf(v fact.TypedValue) ValuePlace        { return ValuePlace{Kind: PlaceEntid, Value: v} }
func ValuePlaceTempID(t string) ValuePlace             { return ValuePlace{Kind: PlaceTempID, TempID: t} }
func ValuePlaceLookupRef(a fact.Entid, v fact.TypedValue) ValuePlace {
	return ValuePlace{Kind: PlaceLookupRef, LookupRef: LookupRef{A: a, V: v}}
}

// RawTerm is a transaction entry as parsed, before lookup-ref resolution.
// Exactly one of the three constructors below describes the term's shape,
// mirroring upstream's Term<E,V> enum (AddOrRetract / RetractAttribute /
// RetractEntity).
type RawTerm struct {
	Shape TermShape
	Op    OpKind
	E     Place
	A     fact.Entid // 0 for RetractEntity
	V     ValuePlace // zero value for RetractAttribute/RetractEntity
}

type TermShape int

const (
	ShapeAddOrRetract TermShape = iota
	ShapeRetractAttribute
	ShapeRetractEntity
)

func AddOrRetract(op OpKind, e Place, a fact.Entid, v ValuePlace) RawTerm {
	return RawTerm{Shape: ShapeAddOrRetract, Op: op, E: e, A: a, V: v}
}

func RetractAttribute(e Place, a fact.Entid) RawTerm {
	return RawTerm{Shape: ShapeRetractAttribute, E: e, A: a}
}

func RetractEntity(e Place) RawTerm {
	return RawTerm{Shape: ShapeRetractEntity, E: e}
}

// PendingTerm is a term after lookup-ref resolution: every LookupRef place
// has become either a concrete Entid or a still-open TempID. Shape is
// preserved from RawTerm.
type PendingTerm struct {
	Shape TermShape
	Op    OpKind
	E     EntidOrTempID
	A     fact.Entid
	V     ValueOrTempID
}

// EntidOrTempID is the internal EntidOr<TempId> sum: populated XOR.
type EntidOrTempID struct {
	IsTempID bool
	Entid    fact.Entid
	TempID   string
}

func ResolvedE(e fact.Entid) EntidOrTempID { return EntidOrTempID{Entid: e} }
func OpenE(t string) EntidOrTempID         { return EntidOrTempID{IsTempID: true, TempID: t} }

// ValueOrTempID is the internal TypedValueOr<TempId> sum: populated XOR.
type ValueOrTempID struct {
	IsTempID bool
	Value    fact.TypedValue
	TempID   string
}

func ResolvedV(v fact.TypedValue) ValueOrTempID { return ValueOrTempID{Value: v} }
func OpenV(t string) ValueOrTempID              { return ValueOrTempID{IsTempID: true, TempID: t} }

// ResolvedTerm is a term with every tempid replaced by an allocated or
// upserted entid: the form the cardinality/uniqueness pass and the storage
// layer operate on.
type ResolvedTerm struct {
	Shape TermShape
	Op    OpKind
	E     fact.Entid
	A     fact.Entid
	V     fact.TypedValue
}
