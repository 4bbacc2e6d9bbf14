package tx

import (
	"fmt"

	"github.com/warp/factdb/fact"
)

// NotUniqueAttributeError reports a lookup-ref naming an attribute that is
// not declared unique or unique-identity (section 4.5).
type NotUniqueAttributeError struct {
	Attr fact.Entid
}

func (e *NotUniqueAttributeError) Error() string {
	return fmt.Sprintf("fact/tx: attribute %d used in a lookup-ref is not unique", e.Attr)
}
func (e *NotUniqueAttributeError) Unwrap() error { return fact.ErrNotUniqueAttribute }

// UnresolvedLookupRefError reports a lookup-ref naming a pair that does not
// currently exist in the index. Unlike a tempid, a lookup-ref never
// allocates — this is always a hard error (section 4.5).
type UnresolvedLookupRefError struct {
	Attr  fact.Entid
	Value fact.TypedValue
}

func (e *UnresolvedLookupRefError) Error() string {
	return fmt.Sprintf("fact/tx: lookup-ref [%d %s] does not resolve to an existing entity", e.Attr, e.Value)
}
func (e *UnresolvedLookupRefError) Unwrap() error { return fact.ErrUnrecognizedEntid }
