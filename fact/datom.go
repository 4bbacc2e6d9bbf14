/*
datom.go - The (e,a,v,tx,added) tuple and its total orders

PURPOSE:
  A Datom is an immutable assertion. It is never mutated once appended; a
  logical "retract" appends a new datom with Added=false. Two orderings are
  defined (section 3):

    Current-state order: (e, a, value_type_tag, v, tx) ascending.
    Transaction order:    (tx, e, a, value_type_tag, v, added) ascending,
                           with added=false sorting before added=true at an
                           otherwise-equal key, so replay is deterministic.
*/
package fact

import "sort"

// Datom is one immutable assertion (e,a,v,tx,added).
type Datom struct {
	E     Entid
	A     Entid
	V     TypedValue
	Tx    Entid
	Added bool
}

// CompareEAVT orders datoms by current-state order: (e, a, value_type_tag,
// v, tx) ascending.
func CompareEAVT(a, b Datom) int {
	if a.E != b.E {
		return cmpEntid(a.E, b.E)
	}
	if a.A != b.A {
		return cmpEntid(a.A, b.A)
	}
	if ta, tb := a.V.Type.Tag(), b.V.Type.Tag(); ta != tb {
		return cmpInt(ta, tb)
	}
	if !a.V.Equal(b.V) {
		if a.V.Less(b.V) {
			return -1
		}
		return 1
	}
	return cmpEntid(a.Tx, b.Tx)
}

// CompareTxOrder orders datoms by transaction order: (tx, e, a,
// value_type_tag, v, added) ascending, with added=false before added=true.
func CompareTxOrder(a, b Datom) int {
	if a.Tx != b.Tx {
		return cmpEntid(a.Tx, b.Tx)
	}
	if a.E != b.E {
		return cmpEntid(a.E, b.E)
	}
	if a.A != b.A {
		return cmpEntid(a.A, b.A)
	}
	if ta, tb := a.V.Type.Tag(), b.V.Type.Tag(); ta != tb {
		return cmpInt(ta, tb)
	}
	if !a.V.Equal(b.V) {
		if a.V.Less(b.V) {
			return -1
		}
		return 1
	}
	if a.Added != b.Added {
		if !a.Added {
			return -1
		}
		return 1
	}
	return 0
}

func cmpEntid(a, b Entid) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortEAVT sorts datoms in place by current-state order.
func SortEAVT(datoms []Datom) {
	sort.SliceStable(datoms, func(i, j int) bool { return CompareEAVT(datoms[i], datoms[j]) < 0 })
}

// SortTxOrder sorts datoms in place by transaction order.
func SortTxOrder(datoms []Datom) {
	sort.SliceStable(datoms, func(i, j int) bool { return CompareTxOrder(datoms[i], datoms[j]) < 0 })
}

// Same reports whether two datoms share identity (e,a,v) — the identity
// used to decide whether an add and a retract in the same transaction
// cancel out (section 4.7).
func (d Datom) Same(other Datom) bool {
	return d.E == other.E && d.A == other.A && d.V.Equal(other.V)
}
