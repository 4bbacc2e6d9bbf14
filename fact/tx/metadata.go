/*
metadata.go - The metadata mutator (section 4.9)

PURPOSE:
  Recognizes the reserved schema attribute vocabulary and applies it to the
  in-flight Schema clone, producing a MetadataReport the driver commits
  alongside the datom write. Ported from update_schema_map_from_entid_triples:
  mutations are grouped per impacted entid into an AttributeBuilder, then
  applied as either an install (entid had no prior attribute; value_type
  required) or an alter (entid had a prior attribute; value_type forbidden).
*/
package tx

import (
	"fmt"
	"sort"

	"github.com/warp/factdb/fact"
)

// Reserved schema attribute idents (section 4.9).
const (
	IdentDBIdent       = ":db/ident"
	IdentDBValueType   = ":db/valueType"
	IdentDBCardinality = ":db/cardinality"
	IdentDBUnique      = ":db/unique"
	IdentDBIndex       = ":db/index"
	IdentDBFulltext    = ":db/fulltext"
	IdentDBIsComponent = ":db/isComponent"
	IdentDBDoc         = ":db/doc"
	IdentDBNoHistory   = ":db/noHistory"
)

// AttributeAlteration names one kind of change a metadata alter applied to
// an already-installed attribute, mirroring upstream's AttributeAlteration
// enum so a MetadataReport can tell a caller precisely what changed.
type AttributeAlteration int

const (
	AlterationIndex AttributeAlteration = iota
	AlterationUniqueValue
	AlterationUniqueIdentity
	AlterationCardinality
	AlterationNoHistory
	AlterationIsComponent
)

func (a AttributeAlteration) String() string {
	switch a {
	case AlterationIndex:
		return "index"
	case AlterationUniqueValue:
		return "unique/value"
	case AlterationUniqueIdentity:
		return "unique/identity"
	case AlterationCardinality:
		return "cardinality"
	case AlterationNoHistory:
		return "no-history"
	case AlterationIsComponent:
		return "is-component"
	default:
		return "unknown"
	}
}

// MetadataReport summarizes the mutations update_schema_map_from_entid_triples
// applied to the schema (section 4.9).
type MetadataReport struct {
	AttributesInstalled []fact.Entid
	AttributesAltered   map[fact.Entid][]AttributeAlteration
	IdentsAltered       map[fact.Entid]string
}

// attributeBuilder accumulates proposed changes to one attribute entid
// before they're validated and applied, mirroring upstream's
// AttributeBuilder.
type attributeBuilder struct {
	valueType   *fact.ValueType
	cardinality *fact.Cardinality
	uniqueValue *bool
	uniqueIdentity *bool
	index       *bool
	fulltext    *bool
	component   *bool
	noHistory   *bool
	doc         *string
}

func (b *attributeBuilder) isValidInstall() bool { return b.valueType != nil }
func (b *attributeBuilder) isValidAlter() bool   { return b.valueType == nil }

func (b *attributeBuilder) build() fact.Attribute {
	a := fact.Attribute{ValueType: fact.ValueTypeRef}
	if b.valueType != nil {
		a.ValueType = *b.valueType
	}
	if b.cardinality != nil {
		a.Cardinality = *b.cardinality
	}
	if b.uniqueIdentity != nil && *b.uniqueIdentity {
		a.Unique = fact.UniqueIdentity
	} else if b.uniqueValue != nil && *b.uniqueValue {
		a.Unique = fact.UniqueValue
	}
	if b.index != nil {
		a.Index = *b.index
	}
	if b.fulltext != nil {
		a.Fulltext = *b.fulltext
	}
	if b.component != nil {
		a.IsComponent = *b.component
	}
	if b.noHistory != nil {
		a.NoHistory = *b.noHistory
	}
	if b.doc != nil {
		a.Doc = *b.doc
	}
	return a
}

// mutate applies the builder's set fields onto an existing Attribute,
// returning the list of AttributeAlteration kinds actually changed.
func (b *attributeBuilder) mutate(existing *fact.Attribute) []AttributeAlteration {
	var alterations []AttributeAlteration
	if b.index != nil && *b.index != existing.Index {
		existing.Index = *b.index
		alterations = append(alterations, AlterationIndex)
	}
	if b.uniqueValue != nil && *b.uniqueValue && existing.Unique != fact.UniqueValue {
		existing.Unique = fact.UniqueValue
		alterations = append(alterations, AlterationUniqueValue)
	}
	if b.uniqueIdentity != nil && *b.uniqueIdentity && existing.Unique != fact.UniqueIdentity {
		existing.Unique = fact.UniqueIdentity
		alterations = append(alterations, AlterationUniqueIdentity)
	}
	if b.cardinality != nil && *b.cardinality != existing.Cardinality {
		existing.Cardinality = *b.cardinality
		alterations = append(alterations, AlterationCardinality)
	}
	if b.noHistory != nil && *b.noHistory != existing.NoHistory {
		existing.NoHistory = *b.noHistory
		alterations = append(alterations, AlterationNoHistory)
	}
	if b.component != nil && *b.component != existing.IsComponent {
		existing.IsComponent = *b.component
		alterations = append(alterations, AlterationIsComponent)
	}
	if b.doc != nil {
		existing.Doc = *b.doc
	}
	return alterations
}

// ApplyMetadata updates schema in place from the (e, a, v) triples whose
// attribute a is in the reserved schema vocabulary, plus records :db/ident
// bindings separately since idents live in the Schema's ident map rather
// than its attribute map (section 4.9, section 4.2).
func ApplyMetadata(schema *fact.Schema, triples []ResolvedTerm) (*MetadataReport, error) {
	builders := make(map[fact.Entid]*attributeBuilder)
	order := make([]fact.Entid, 0)
	identsAltered := make(map[fact.Entid]string)

	identOf := func(a fact.Entid) (string, bool) { return schema.IdentFor(a) }

	for _, t := range triples {
		if t.Shape != ShapeAddOrRetract || t.Op != OpAdd {
			continue
		}
		ident, ok := identOf(t.A)
		if !ok {
			continue // not schema vocabulary; a plain user assertion
		}
		switch ident {
		case IdentDBIdent, IdentDBValueType, IdentDBCardinality, IdentDBUnique, IdentDBIndex,
			IdentDBFulltext, IdentDBIsComponent, IdentDBDoc, IdentDBNoHistory:
		default:
			continue // a user attribute with an ident, not schema vocabulary
		}

		if ident == IdentDBIdent {
			name, ok := stringOf(t.V)
			if !ok {
				return nil, &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected [... :db/ident \"kw\"] with a string value"}
			}
			if err := schema.BindIdent(t.E, name); err != nil {
				return nil, &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: err.Error()}
			}
			identsAltered[t.E] = name
			continue
		}

		b, ok := builders[t.E]
		if !ok {
			b = &attributeBuilder{}
			builders[t.E] = b
			order = append(order, t.E)
		}

		if err := applyVocabTerm(b, ident, t); err != nil {
			return nil, err
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	report := &MetadataReport{
		AttributesAltered: make(map[fact.Entid][]AttributeAlteration),
		IdentsAltered:      identsAltered,
	}

	for _, e := range order {
		b := builders[e]
		if _, existed := schema.AttributeFor(e); !existed {
			if !b.isValidInstall() {
				return nil, &fact.BadSchemaAssertionError{Entid: e, Reason: "install requires :db/valueType"}
			}
			attr := b.build()
			if err := attr.Validate(); err != nil {
				return nil, &fact.BadSchemaAssertionError{Entid: e, Reason: err.Error()}
			}
			schema.SchemaMap[e] = attr
			report.AttributesInstalled = append(report.AttributesInstalled, e)
		} else {
			if !b.isValidAlter() {
				return nil, &fact.BadSchemaAssertionError{Entid: e, Reason: "alter must not set :db/valueType"}
			}
			existing := schema.SchemaMap[e]
			alterations := b.mutate(&existing)
			if err := existing.Validate(); err != nil {
				return nil, &fact.BadSchemaAssertionError{Entid: e, Reason: err.Error()}
			}
			schema.SchemaMap[e] = existing
			report.AttributesAltered[e] = alterations
		}
	}

	return report, nil
}

func applyVocabTerm(b *attributeBuilder, ident string, t ResolvedTerm) error {
	switch ident {
	case IdentDBDoc:
		s, ok := stringOf(t.V)
		if !ok {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a string value for :db/doc"}
		}
		b.doc = &s
	case IdentDBValueType:
		vt, ok := valueTypeRefOf(t.V)
		if !ok {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a :db.type/* ref for :db/valueType"}
		}
		b.valueType = &vt
	case IdentDBCardinality:
		card, ok := cardinalityRefOf(t.V)
		if !ok {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a :db.cardinality/* ref for :db/cardinality"}
		}
		b.cardinality = &card
	case IdentDBUnique:
		switch {
		case t.V.Type == fact.ValueTypeKeyword && t.V.Str == ":db.unique/value":
			x := true
			b.uniqueValue = &x
		case t.V.Type == fact.ValueTypeKeyword && t.V.Str == ":db.unique/identity":
			x := true
			b.uniqueIdentity = &x
		default:
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected :db.unique/value or :db.unique/identity"}
		}
	case IdentDBIndex:
		if t.V.Type != fact.ValueTypeBoolean {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a boolean value for :db/index"}
		}
		x := t.V.Boolean
		b.index = &x
	case IdentDBFulltext:
		if t.V.Type != fact.ValueTypeBoolean {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a boolean value for :db/fulltext"}
		}
		x := t.V.Boolean
		b.fulltext = &x
	case IdentDBIsComponent:
		if t.V.Type != fact.ValueTypeBoolean {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a boolean value for :db/isComponent"}
		}
		x := t.V.Boolean
		b.component = &x
	case IdentDBNoHistory:
		if t.V.Type != fact.ValueTypeBoolean {
			return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: "expected a boolean value for :db/noHistory"}
		}
		x := t.V.Boolean
		b.noHistory = &x
	default:
		return &fact.BadSchemaAssertionError{Entid: t.E, Attr: t.A, Reason: fmt.Sprintf("does not recognize attribute ident %q", ident)}
	}
	return nil
}

func stringOf(v fact.TypedValue) (string, bool) {
	if v.Type != fact.ValueTypeString {
		return "", false
	}
	return v.Str, true
}

// valueTypeRefOf maps a :db.type/* keyword value to a ValueType. The
// metadata vocabulary spells value types as keywords rather than bootstrap
// entid refs, since this core's bootstrap partition has no durable
// :db.type/* entities to point at (section 6).
func valueTypeRefOf(v fact.TypedValue) (fact.ValueType, bool) {
	if v.Type != fact.ValueTypeKeyword {
		return 0, false
	}
	switch v.Str {
	case ":db.type/ref":
		return fact.ValueTypeRef, true
	case ":db.type/boolean":
		return fact.ValueTypeBoolean, true
	case ":db.type/long":
		return fact.ValueTypeLong, true
	case ":db.type/double":
		return fact.ValueTypeDouble, true
	case ":db.type/string":
		return fact.ValueTypeString, true
	case ":db.type/keyword":
		return fact.ValueTypeKeyword, true
	case ":db.type/instant":
		return fact.ValueTypeInstant, true
	case ":db.type/uuid":
		return fact.ValueTypeUuid, true
	default:
		return 0, false
	}
}

func cardinalityRefOf(v fact.TypedValue) (fact.Cardinality, bool) {
	if v.Type != fact.ValueTypeKeyword {
		return 0, false
	}
	switch v.Str {
	case ":db.cardinality/one":
		return fact.CardinalityOne, true
	case ":db.cardinality/many":
		return fact.CardinalityMany, true
	default:
		return 0, false
	}
}
