package fact_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/factdb/fact"
)

func TestCompareEAVT_OrdersByEntityThenAttributeThenValueThenTx(t *testing.T) {
	a := fact.Datom{E: 1, A: 10, V: fact.LongValue(5), Tx: 100}
	b := fact.Datom{E: 1, A: 10, V: fact.LongValue(7), Tx: 99}
	assert.Negative(t, fact.CompareEAVT(a, b))
	assert.Positive(t, fact.CompareEAVT(b, a))
}

func TestCompareTxOrder_RetractSortsBeforeAddAtEqualKey(t *testing.T) {
	retract := fact.Datom{E: 1, A: 10, V: fact.LongValue(5), Tx: 100, Added: false}
	add := fact.Datom{E: 1, A: 10, V: fact.LongValue(5), Tx: 100, Added: true}
	assert.Negative(t, fact.CompareTxOrder(retract, add))
}

// TestCanonicalOrderIsDeterministic checks invariant 7: sorting any
// permutation of a committed transaction by the canonical order yields the
// same sequence.
func TestCanonicalOrderIsDeterministic(t *testing.T) {
	base := []fact.Datom{
		{E: 100, A: 1, V: fact.LongValue(1), Tx: 1000},
		{E: 100, A: 2, V: fact.StringValue("a"), Tx: 1000},
		{E: 101, A: 1, V: fact.LongValue(2), Tx: 1000},
		{E: 101, A: 2, V: fact.StringValue("b"), Tx: 1000, Added: false},
		{E: 99, A: 3, V: fact.BooleanValue(true), Tx: 1000},
	}

	want := append([]fact.Datom(nil), base...)
	fact.SortEAVT(want)

	for i := 0; i < 20; i++ {
		shuffled := append([]fact.Datom(nil), base...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		fact.SortEAVT(shuffled)
		assert.Equal(t, want, shuffled)
	}
}

func TestDatom_Same_IgnoresTxAndAdded(t *testing.T) {
	a := fact.Datom{E: 1, A: 2, V: fact.LongValue(3), Tx: 10, Added: true}
	b := fact.Datom{E: 1, A: 2, V: fact.LongValue(3), Tx: 20, Added: false}
	assert.True(t, a.Same(b))

	c := fact.Datom{E: 1, A: 2, V: fact.LongValue(4), Tx: 10, Added: true}
	assert.False(t, a.Same(c))
}
