package timeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/fact/store/memory"
	"github.com/warp/factdb/fact/timeline"
	"github.com/warp/factdb/fact/tx"
)

const (
	dbIdentEntid       fact.Entid = 10
	dbValueTypeEntid   fact.Entid = 11
	dbCardinalityEntid fact.Entid = 12
)

func bootstrapSchema(t *testing.T) *fact.Schema {
	t.Helper()
	s := fact.NewSchema()
	require.NoError(t, s.BindIdent(dbIdentEntid, tx.IdentDBIdent))
	require.NoError(t, s.BindIdent(dbValueTypeEntid, tx.IdentDBValueType))
	require.NoError(t, s.BindIdent(dbCardinalityEntid, tx.IdentDBCardinality))
	return s
}

func installStringAttr(ctx context.Context, t *testing.T, d *tx.Driver, schema *fact.Schema, partitions fact.PartitionMap, ident string) (fact.Entid, *fact.Schema, fact.PartitionMap) {
	t.Helper()
	report, newSchema, newPartitions, err := d.Transact(ctx, schema, partitions, time.Time{}, []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbIdentEntid, tx.ValuePlaceOf(fact.StringValue(ident))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbValueTypeEntid, tx.ValuePlaceOf(fact.KeywordValue(":db.type/string"))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbCardinalityEntid, tx.ValuePlaceOf(fact.KeywordValue(":db.cardinality/one"))),
	}, nil)
	require.NoError(t, err)
	return report.TempIDs["attr"], newSchema, newPartitions
}

func TestMoveFromMain_RewindsTailBlockAndRestoresPriorState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := tx.NewDriver(store, timeline.MainTimeline, fact.PartitionUser)

	schema := bootstrapSchema(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installStringAttr(ctx, t, d, schema, partitions, ":person/name")

	report1, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice")))}, nil)
	require.NoError(t, err)
	person := report1.TempIDs["p"]

	report2, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.EntidPlace(person), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice Cooper")))}, nil)
	require.NoError(t, err)

	before, err := store.ScanEAV(ctx, person, nameAttr)
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.Equal(t, "Alice Cooper", before[0].V.Str)

	newPartitions, err := timeline.MoveFromMain(ctx, store, schema, partitions, []fact.Entid{report2.TxID}, "audit-2026")
	require.NoError(t, err)

	after, err := store.ScanEAV(ctx, person, nameAttr)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Alice", after[0].V.Str) // current state reverted to before the rewound tx

	txPart, ok := newPartitions.Get(fact.PartitionTx)
	require.True(t, ok)
	assert.Equal(t, report2.TxID, txPart.Index)
}

func TestMoveFromMain_RejectsMainAsTarget(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := fact.NewSchema()
	partitions := fact.NewBootstrapPartitionMap()

	_, err := timeline.MoveFromMain(ctx, store, schema, partitions, []fact.Entid{1}, timeline.MainTimeline)
	assert.ErrorIs(t, err, fact.ErrTimelinesTargetIsMain)
}

func TestMoveFromMain_RejectsEmptyTxList(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	schema := fact.NewSchema()
	partitions := fact.NewBootstrapPartitionMap()

	_, err := timeline.MoveFromMain(ctx, store, schema, partitions, nil, "other")
	assert.ErrorIs(t, err, fact.ErrTimelinesNoneSupplied)
}

func TestMoveFromMain_RejectsNonTailBlock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := tx.NewDriver(store, timeline.MainTimeline, fact.PartitionUser)

	schema := bootstrapSchema(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installStringAttr(ctx, t, d, schema, partitions, ":person/name")

	report1, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p1"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice")))}, nil)
	require.NoError(t, err)

	_, _, _, err = d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p2"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Bob")))}, nil)
	require.NoError(t, err)

	// report1's tx is not the tail of main -- a later transaction exists.
	_, err = timeline.MoveFromMain(ctx, store, schema, partitions, []fact.Entid{report1.TxID}, "audit")
	assert.ErrorIs(t, err, fact.ErrTimelinesNotOnTail)
}
