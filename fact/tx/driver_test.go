package tx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/fact/store/memory"
	"github.com/warp/factdb/fact/tx"
)

func newTestDriver() (*tx.Driver, *memory.Store) {
	store := memory.New()
	return tx.NewDriver(store, "main", fact.PartitionUser), store
}

func installAttr(ctx context.Context, t *testing.T, d *tx.Driver, schema *fact.Schema, partitions fact.PartitionMap, ident string, vt fact.ValueType, card fact.Cardinality, unique fact.Uniqueness) (fact.Entid, *fact.Schema, fact.PartitionMap) {
	t.Helper()

	terms := []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbIdentEntid, tx.ValuePlaceOf(fact.StringValue(ident))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbValueTypeEntid, tx.ValuePlaceOf(fact.KeywordValue(valueTypeKeyword(vt)))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbCardinalityEntid, tx.ValuePlaceOf(fact.KeywordValue(cardinalityKeyword(card)))),
	}
	if unique == fact.UniqueValue {
		terms = append(terms, tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbUniqueEntid, tx.ValuePlaceOf(fact.KeywordValue(":db.unique/value"))))
	} else if unique == fact.UniqueIdentity {
		terms = append(terms,
			tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbUniqueEntid, tx.ValuePlaceOf(fact.KeywordValue(":db.unique/identity"))),
			tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), dbIndexEntid, tx.ValuePlaceOf(fact.BooleanValue(true))),
		)
	}

	report, newSchema, newPartitions, err := d.Transact(ctx, schema, partitions, time.Time{}, terms, nil)
	require.NoError(t, err)
	return report.TempIDs["attr"], newSchema, newPartitions
}

func valueTypeKeyword(vt fact.ValueType) string {
	switch vt {
	case fact.ValueTypeString:
		return ":db.type/string"
	case fact.ValueTypeLong:
		return ":db.type/long"
	case fact.ValueTypeRef:
		return ":db.type/ref"
	default:
		panic("unsupported value type in test helper")
	}
}

func cardinalityKeyword(c fact.Cardinality) string {
	if c == fact.CardinalityMany {
		return ":db.cardinality/many"
	}
	return ":db.cardinality/one"
}

// These reserved attribute entids stand in for a bootstrap partition
// this core's tests don't otherwise need to construct; schema bootstrapping
// itself is exercised through bootstrapSchemaEntids below.
const (
	dbIdentEntid        fact.Entid = 10
	dbValueTypeEntid    fact.Entid = 11
	dbCardinalityEntid  fact.Entid = 12
	dbUniqueEntid       fact.Entid = 13
	dbIndexEntid        fact.Entid = 14
)

// bootstrapSchemaEntids binds the reserved vocabulary idents the metadata
// mutator recognizes by ident string (section 4.9), so test transactions can
// use :db/ident etc. as ordinary attribute entids.
func bootstrapSchemaEntids(t *testing.T) *fact.Schema {
	t.Helper()
	s := fact.NewSchema()
	require.NoError(t, s.BindIdent(dbIdentEntid, tx.IdentDBIdent))
	require.NoError(t, s.BindIdent(dbValueTypeEntid, tx.IdentDBValueType))
	require.NoError(t, s.BindIdent(dbCardinalityEntid, tx.IdentDBCardinality))
	require.NoError(t, s.BindIdent(dbUniqueEntid, tx.IdentDBUnique))
	require.NoError(t, s.BindIdent(dbIndexEntid, tx.IdentDBIndex))
	return s
}

func TestTransact_InstallsAttributeAndAssertsValue(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/name", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	attr, ok := schema.AttributeFor(nameAttr)
	require.True(t, ok)
	assert.Equal(t, fact.ValueTypeString, attr.ValueType)

	terms := []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("alice"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice"))),
	}
	report, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{}, terms, nil)
	require.NoError(t, err)
	assert.NotZero(t, report.TempIDs["alice"])

	// The report carries a positive tx entid. Ordering against the earlier
	// attribute-install tx (invariant 1) is not checked here.
	assert.Greater(t, report.TxID, fact.Entid(0))

	_ = schema
	_ = partitions
}

func TestTransact_UpsertResolvesSameTempIDAcrossTerms(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	emailAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/email", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueIdentity)
	nameAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/name", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	terms := []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p"), emailAttr, tx.ValuePlaceOf(fact.StringValue("a@example.com"))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice"))),
	}
	report, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{}, terms, nil)
	require.NoError(t, err)
	first := report.TempIDs["p"]
	require.NotZero(t, first)

	// A second transaction referencing the same identity via a fresh tempid
	// must resolve to the same entid (the upsert fixed point, section 4.6).
	terms2 := []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p2"), emailAttr, tx.ValuePlaceOf(fact.StringValue("a@example.com"))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p2"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice Cooper"))),
	}
	report2, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{}, terms2, nil)
	require.NoError(t, err)
	assert.Equal(t, first, report2.TempIDs["p2"])

	_ = schema
	_ = partitions
}

func TestTransact_CardinalityOneReplacesPriorValue(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	statusAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":task/status", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	report, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("t"), statusAttr, tx.ValuePlaceOf(fact.StringValue("open")))}, nil)
	require.NoError(t, err)
	taskEntid := report.TempIDs["t"]

	_, schema, partitions, err = d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.EntidPlace(taskEntid), statusAttr, tx.ValuePlaceOf(fact.StringValue("closed")))}, nil)
	require.NoError(t, err)

	datoms, err := store.ScanEAV(ctx, taskEntid, statusAttr)
	require.NoError(t, err)
	require.Len(t, datoms, 1) // invariant 5: at most one current-state value
	assert.Equal(t, "closed", datoms[0].V.Str)

	_ = schema
	_ = partitions
}

func TestTransact_CardinalityConflictWithinBatchFails(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	statusAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":task/status", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	_, _, _, err := d.Transact(ctx, schema, partitions, time.Time{}, []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("t"), statusAttr, tx.ValuePlaceOf(fact.StringValue("open"))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("t"), statusAttr, tx.ValuePlaceOf(fact.StringValue("closed"))),
	}, nil)
	assert.ErrorIs(t, err, fact.ErrCardinalityConflict)
}

func TestTransact_UniquenessViolationFails(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/name", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)
	emailAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/email", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueIdentity)

	report, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{}, []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p1"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Alice"))),
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p2"), nameAttr, tx.ValuePlaceOf(fact.StringValue("Bob"))),
	}, nil)
	require.NoError(t, err)
	p1, p2 := report.TempIDs["p1"], report.TempIDs["p2"]

	_, schema, partitions, err = d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.EntidPlace(p1), emailAttr, tx.ValuePlaceOf(fact.StringValue("dup@example.com")))}, nil)
	require.NoError(t, err)

	// p2 is a distinct, already-resolved entity (not an upsert tempid), so
	// asserting the same unique/identity value for it must fail rather than
	// silently moving ownership (section 4.7 "Check").
	_, _, _, err = d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.EntidPlace(p2), emailAttr, tx.ValuePlaceOf(fact.StringValue("dup@example.com")))}, nil)
	assert.ErrorIs(t, err, fact.ErrUniquenessViolation)
}

func TestTransact_RetractNonExistentDatomIsNoOp(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/name", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	before, err := store.ScanEAV(ctx, 12345, nameAttr)
	require.NoError(t, err)
	require.Empty(t, before)

	report, _, _, err := d.Transact(ctx, schema, partitions, time.Time{}, []tx.RawTerm{
		tx.AddOrRetract(tx.OpRetract, tx.EntidPlace(12345), nameAttr, tx.ValuePlaceOf(fact.StringValue("nobody"))),
	}, nil)
	require.NoError(t, err)

	after, err := store.ScanEAV(ctx, 12345, nameAttr)
	require.NoError(t, err)
	assert.Empty(t, after) // invariant 8

	// The no-op retract must not have appended a dangling log entry either —
	// only the :db/txInstant datom for this tx should exist.
	logged, err := store.ScanTx(ctx, report.TxID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, fact.TxInstantEntid, logged[0].A)
}

func TestTransact_ExplicitTxInstantMustBeMonotonic(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDriver()
	schema := bootstrapSchemaEntids(t)
	partitions := fact.NewBootstrapPartitionMap()

	nameAttr, schema, partitions := installAttr(ctx, t, d, schema, partitions, ":person/name", fact.ValueTypeString, fact.CardinalityOne, fact.UniqueNone)

	early := time.Now().Add(-time.Hour)
	_, schema, partitions, err := d.Transact(ctx, schema, partitions, time.Time{},
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("p"), nameAttr, tx.ValuePlaceOf(fact.StringValue("a")))}, &early)
	require.NoError(t, err)

	evenEarlier := early.Add(-time.Minute)
	_, _, _, err = d.Transact(ctx, schema, partitions, early,
		[]tx.RawTerm{tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("q"), nameAttr, tx.ValuePlaceOf(fact.StringValue("b")))}, &evenEarlier)
	assert.ErrorIs(t, err, fact.ErrTxInstantNotMonotonic)
}
