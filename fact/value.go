/*
Package fact provides the domain-agnostic data model for the fact store:
typed values, datoms, schema, and partitions. It has no knowledge of any
particular application's entities — it is the same kind of layer the
resource-engine's "generic" package is to time-off and rewards, except the
"resource" here is an attribute and the "ledger" is a datom log.

VALUE TYPES:
  A TypedValue carries a ValueType tag alongside its scalar payload so the
  storage layer can disambiguate same-shape encodings (e.g. a Ref and a Long
  both ride in an integer column). The tag is stable across releases — it is
  persisted, so renumbering it would corrupt existing stores.

SEE ALSO:
  - datom.go:     the (e,a,v,tx,added) tuple and its orderings
  - schema.go:    Attribute flags and the ident<->entid bijection
  - partition.go: entid space allocation
*/
package fact

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entid is a 64-bit signed identifier drawn from a partition. It is never
// reused once allocated.
type Entid int64

// ValueType is the closed set of value shapes a TypedValue can carry.
type ValueType int

const (
	ValueTypeRef ValueType = iota
	ValueTypeBoolean
	ValueTypeLong
	ValueTypeDouble
	ValueTypeString
	ValueTypeKeyword
	ValueTypeInstant
	ValueTypeUuid
)

// Tag returns the stable integer value_type_tag for this value type. Tags
// are persisted in the storage layer to disambiguate same-shape encodings
// (e.g. Ref and Long both ride in an integer column); never renumber them.
func (t ValueType) Tag() int {
	switch t {
	case ValueTypeRef:
		return 0
	case ValueTypeBoolean:
		return 1
	case ValueTypeLong:
		return 5
	case ValueTypeDouble:
		return 7
	case ValueTypeString:
		return 10
	case ValueTypeKeyword:
		return 13
	case ValueTypeInstant:
		return 20
	case ValueTypeUuid:
		return 21
	default:
		return -1
	}
}

// ValueTypeForTag inverts Tag. Returns false if the tag is unrecognized.
func ValueTypeForTag(tag int) (ValueType, bool) {
	switch tag {
	case 0:
		return ValueTypeRef, true
	case 1:
		return ValueTypeBoolean, true
	case 5:
		return ValueTypeLong, true
	case 7:
		return ValueTypeDouble, true
	case 10:
		return ValueTypeString, true
	case 13:
		return ValueTypeKeyword, true
	case 20:
		return ValueTypeInstant, true
	case 21:
		return ValueTypeUuid, true
	default:
		return 0, false
	}
}

func (t ValueType) String() string {
	switch t {
	case ValueTypeRef:
		return "db.type/ref"
	case ValueTypeBoolean:
		return "db.type/boolean"
	case ValueTypeLong:
		return "db.type/long"
	case ValueTypeDouble:
		return "db.type/double"
	case ValueTypeString:
		return "db.type/string"
	case ValueTypeKeyword:
		return "db.type/keyword"
	case ValueTypeInstant:
		return "db.type/instant"
	case ValueTypeUuid:
		return "db.type/uuid"
	default:
		return fmt.Sprintf("db.type/unknown(%d)", int(t))
	}
}

// TypedValue is a tagged union carrying a value together with its type.
// Exactly one of the scalar fields is meaningful, selected by Type. Ref
// values are entids; an ident reference is representable as a Ref iff the
// target has an ident (see Schema.IdentFor).
type TypedValue struct {
	Type    ValueType
	Ref     Entid
	Boolean bool
	Long    int64
	Double  float64
	Str     string // also holds Keyword payloads
	Instant time.Time
	Uuid    uuid.UUID
}

func RefValue(e Entid) TypedValue            { return TypedValue{Type: ValueTypeRef, Ref: e} }
func BooleanValue(b bool) TypedValue         { return TypedValue{Type: ValueTypeBoolean, Boolean: b} }
func LongValue(v int64) TypedValue           { return TypedValue{Type: ValueTypeLong, Long: v} }
func DoubleValue(v float64) TypedValue       { return TypedValue{Type: ValueTypeDouble, Double: v} }
func StringValue(s string) TypedValue        { return TypedValue{Type: ValueTypeString, Str: s} }
func KeywordValue(s string) TypedValue       { return TypedValue{Type: ValueTypeKeyword, Str: s} }
func InstantValue(t time.Time) TypedValue    { return TypedValue{Type: ValueTypeInstant, Instant: t.UTC()} }
func UuidValue(u uuid.UUID) TypedValue       { return TypedValue{Type: ValueTypeUuid, Uuid: u} }

// Equal reports whether two typed values carry the same type and payload.
func (v TypedValue) Equal(other TypedValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueTypeRef:
		return v.Ref == other.Ref
	case ValueTypeBoolean:
		return v.Boolean == other.Boolean
	case ValueTypeLong:
		return v.Long == other.Long
	case ValueTypeDouble:
		return v.Double == other.Double
	case ValueTypeString, ValueTypeKeyword:
		return v.Str == other.Str
	case ValueTypeInstant:
		return v.Instant.Equal(other.Instant)
	case ValueTypeUuid:
		return v.Uuid == other.Uuid
	default:
		return false
	}
}

// Less defines a total order over TypedValue for a fixed type, used as the
// tiebreaker in datom ordering once (e, a, value_type_tag) are equal.
func (v TypedValue) Less(other TypedValue) bool {
	if v.Type != other.Type {
		return v.Type.Tag() < other.Type.Tag()
	}
	switch v.Type {
	case ValueTypeRef:
		return v.Ref < other.Ref
	case ValueTypeBoolean:
		return !v.Boolean && other.Boolean
	case ValueTypeLong:
		return v.Long < other.Long
	case ValueTypeDouble:
		return v.Double < other.Double
	case ValueTypeString, ValueTypeKeyword:
		return v.Str < other.Str
	case ValueTypeInstant:
		return v.Instant.Before(other.Instant)
	case ValueTypeUuid:
		return v.Uuid.String() < other.Uuid.String()
	default:
		return false
	}
}

func (v TypedValue) String() string {
	switch v.Type {
	case ValueTypeRef:
		return fmt.Sprintf("#ref %d", v.Ref)
	case ValueTypeBoolean:
		return fmt.Sprintf("%v", v.Boolean)
	case ValueTypeLong:
		return fmt.Sprintf("%d", v.Long)
	case ValueTypeDouble:
		return fmt.Sprintf("%g", v.Double)
	case ValueTypeString:
		return v.Str
	case ValueTypeKeyword:
		return ":" + v.Str
	case ValueTypeInstant:
		return v.Instant.Format(time.RFC3339Nano)
	case ValueTypeUuid:
		return v.Uuid.String()
	default:
		return "<invalid>"
	}
}


// EncodeValue converts a TypedValue into the (sqlValue, tag) pair an index
// provider persists.
func EncodeValue(v TypedValue) (sqlValue any, tag int) {
	switch v.Type {
	case ValueTypeRef:
		return int64(v.Ref), v.Type.Tag()
	case ValueTypeBoolean:
		if v.Boolean {
			return int64(1), v.Type.Tag()
		}
		return int64(0), v.Type.Tag()
	case ValueTypeLong:
		return v.Long, v.Type.Tag()
	case ValueTypeDouble:
		return v.Double, v.Type.Tag()
	case ValueTypeString, ValueTypeKeyword:
		return v.Str, v.Type.Tag()
	case ValueTypeInstant:
		return v.Instant.UnixNano(), v.Type.Tag()
	case ValueTypeUuid:
		return v.Uuid.String(), v.Type.Tag()
	default:
		return nil, -1
	}
}

// DecodeValue inverts EncodeValue given the declared value_type of the
// owning attribute.
func DecodeValue(sqlValue any, tag int, declared ValueType) (TypedValue, error) {
	switch declared {
	case ValueTypeRef:
		i, ok := asInt64(sqlValue)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected integer for ref, got %v", sqlValue)
		}
		return RefValue(Entid(i)), nil
	case ValueTypeBoolean:
		i, ok := asInt64(sqlValue)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected integer for boolean, got %v", sqlValue)
		}
		return BooleanValue(i != 0), nil
	case ValueTypeLong:
		i, ok := asInt64(sqlValue)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected integer for long, got %v", sqlValue)
		}
		return LongValue(i), nil
	case ValueTypeDouble:
		switch x := sqlValue.(type) {
		case float64:
			return DoubleValue(x), nil
		case int64:
			return DoubleValue(float64(x)), nil
		default:
			return TypedValue{}, fmt.Errorf("fact: expected float for double, got %v", sqlValue)
		}
	case ValueTypeString:
		s, ok := sqlValue.(string)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected string, got %v", sqlValue)
		}
		return StringValue(s), nil
	case ValueTypeKeyword:
		s, ok := sqlValue.(string)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected string for keyword, got %v", sqlValue)
		}
		return KeywordValue(s), nil
	case ValueTypeInstant:
		i, ok := asInt64(sqlValue)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected integer nanos for instant, got %v", sqlValue)
		}
		return InstantValue(time.Unix(0, i).UTC()), nil
	case ValueTypeUuid:
		s, ok := sqlValue.(string)
		if !ok {
			return TypedValue{}, fmt.Errorf("fact: expected string for uuid, got %v", sqlValue)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return TypedValue{}, fmt.Errorf("fact: invalid uuid %q: %w", s, err)
		}
		return UuidValue(u), nil
	default:
		return TypedValue{}, fmt.Errorf("fact: unrecognized declared value type %v", declared)
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
