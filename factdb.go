/*
factdb.go - Top-level embeddable store handle

PURPOSE:
  Connection is what an embedding application holds: one open store (an
  index provider reached through the process-wide registry), its current
  schema and partition map, and the single-writer mutex that serializes
  calls to Transact (section 5 "Scheduling model" — "at most one writer
  transaction may be in flight against a given store at a time").

  This is the glue between fact/tx.Driver (stateless, one call per
  transaction) and a long-lived process: Connection owns the schema and
  partition state a Driver call needs, and commits the driver's returned
  clones back into itself only once Append has succeeded.
*/
package factdb

import (
	"context"
	"sync"
	"time"

	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/fact/store/memory"
	"github.com/warp/factdb/fact/timeline"
	"github.com/warp/factdb/fact/tx"
	"github.com/warp/factdb/registry"
	"github.com/warp/factdb/storesql"
)

// Connection is one open, embeddable store.
type Connection struct {
	mu sync.Mutex

	handle *registry.Handle
	driver *tx.Driver

	schema            *fact.Schema
	partitions        fact.PartitionMap
	previousTxInstant time.Time

	path string
}

// Open opens (or joins, if already open in this process) the store at
// path through reg, choosing a SQLite-backed provider for any path other
// than ":memory:". Always starts from an empty schema and the three
// reserved bootstrap partitions (section 6); schema and partition state
// from transactions already in the store is not loaded.
func Open(reg *registry.Registry, path string) (*Connection, error) {
	handle, err := reg.Open(path, func(canonical string) (fact.IndexProvider, error) {
		if canonical == ":memory:" {
			return memory.New(), nil
		}
		return storesql.Open(canonical)
	})
	if err != nil {
		return nil, err
	}

	return &Connection{
		handle:     handle,
		driver:     tx.NewDriver(handle.Provider, timeline.MainTimeline, fact.PartitionUser),
		schema:     fact.NewSchema(),
		partitions: fact.NewBootstrapPartitionMap(),
		path:       handle.Path(),
	}, nil
}

// Close releases the underlying registry handle.
func (c *Connection) Close(ctx context.Context) error {
	return c.handle.Close(ctx)
}

// Schema returns the store's current schema. Safe to call concurrently
// with Transact; returns the most recently committed schema, never a
// working-copy in flight.
func (c *Connection) Schema() *fact.Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schema
}

// Partitions returns the store's current partition map.
func (c *Connection) Partitions() fact.PartitionMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partitions
}

// Provider exposes the underlying index provider, for read-only callers
// (the diagnostics HTTP surface) that need direct scans.
func (c *Connection) Provider() fact.IndexProvider {
	return c.handle.Provider
}

// Path returns the canonical path this connection was opened against.
func (c *Connection) Path() string {
	return c.path
}

// Transact runs one transaction against the current committed state,
// holding the connection's mutex for the duration (the single-writer
// discipline of section 5). On success, the returned schema/partitions
// become the new committed state.
func (c *Connection) Transact(ctx context.Context, terms []tx.RawTerm) (*tx.TxReport, error) {
	return c.transact(ctx, terms, nil)
}

// TransactAt runs one transaction with an explicit txInstant (section 4.10
// step 8), failing with fact.ErrTxInstantNotMonotonic if instant does not
// strictly exceed the previous transaction's instant.
func (c *Connection) TransactAt(ctx context.Context, terms []tx.RawTerm, instant time.Time) (*tx.TxReport, error) {
	return c.transact(ctx, terms, &instant)
}

func (c *Connection) transact(ctx context.Context, terms []tx.RawTerm, explicitInstant *time.Time) (*tx.TxReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report, newSchema, newPartitions, err := c.driver.Transact(ctx, c.schema, c.partitions, c.previousTxInstant, terms, explicitInstant)
	if err != nil {
		return nil, err
	}

	c.schema = newSchema
	c.partitions = newPartitions
	c.previousTxInstant = report.TxInstant
	return report, nil
}

// Rewind moves txIDs (a tail block of the main timeline) onto
// targetTimeline (section 4.11), resetting the user and tx partition
// cursors to their pre-rewind extent.
func (c *Connection) Rewind(ctx context.Context, txIDs []fact.Entid, targetTimeline string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newPartitions, err := timeline.MoveFromMain(ctx, c.handle.Provider, c.schema, c.partitions, txIDs, targetTimeline)
	if err != nil {
		return err
	}
	c.partitions = newPartitions
	return nil
}
