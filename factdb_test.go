package factdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/factdb"
	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/fact/tx"
	"github.com/warp/factdb/registry"
)

func TestConnection_OpenTransactAndClose(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()

	conn, err := factdb.Open(reg, ":memory:")
	require.NoError(t, err)

	report, err := conn.Transact(ctx, []tx.RawTerm{
		tx.AddOrRetract(tx.OpAdd, tx.TempIDPlace("attr"), fact.TxInstantEntid+1000, tx.ValuePlaceOf(fact.StringValue(":scratch/ident"))),
	})
	require.NoError(t, err)
	assert.NotZero(t, report.TxID)

	require.NoError(t, conn.Close(ctx))
}

func TestConnection_SameMemoryPathSharesOneStoreWithinProcess(t *testing.T) {
	reg := registry.New()

	c1, err := factdb.Open(reg, ":memory:")
	require.NoError(t, err)
	defer c1.Close(context.Background())

	c2, err := factdb.Open(reg, ":memory:")
	require.NoError(t, err)
	defer c2.Close(context.Background())

	assert.Same(t, c1.Provider(), c2.Provider())
}
