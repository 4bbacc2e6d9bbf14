/*
partition.go - Named ranges of the entid space

PURPOSE:
  A partition carves out a monotonic range of entids. Allocation is a single
  cursor bump: allocate(n) hands out [index, index+n) and advances index by
  n. The cursor never moves backward except through timeline rewind, which
  is the one caller allowed to call SetIndex directly (section 4.3, 4.11).

SEE ALSO:
  - entid.go:    the reserved partition names
  - timeline/rewind.go: the only caller of SetIndex outside allocation
*/
package fact

import "fmt"

// Partition represents one contiguous, monotonically-growing range of the
// entid space: {start, index}, start <= index. Allocation returns index
// then advances it.
type Partition struct {
	Start Entid
	Index Entid
}

// NewPartition constructs a Partition, panicking if start > index — a
// partition can never be constructed already violated, the same invariant
// mentat's Partition::new asserts.
func NewPartition(start, index Entid) Partition {
	if start > index {
		panic(fmt.Sprintf("fact: partition start %d is after index %d", start, index))
	}
	return Partition{Start: start, Index: index}
}

// Allocate returns [index, index+n) and advances index by n.
func (p *Partition) Allocate(n int) (Entid, Entid) {
	lo := p.Index
	hi := lo + Entid(n)
	p.Index = hi
	return lo, hi
}

// SetIndex is reserved for rewind (section 4.3). value must be >= Start.
func (p *Partition) SetIndex(value Entid) error {
	if value < p.Start {
		return fmt.Errorf("fact: cannot set partition index to %d, below start %d", value, p.Start)
	}
	p.Index = value
	return nil
}

// PartitionMap maps partition names to Partition instances. The transactor
// clones it for the duration of a transaction (section 3 Ownership) and
// only commits the mutated clone back to the store on success.
type PartitionMap map[string]*Partition

// NewBootstrapPartitionMap returns the default three reserved partitions
// (section 6), with the :db.part/db cursor seeded at the bootstrap boundary.
// The transactor allocates every tempid, including those of newly installed
// attributes, from its single default partition (:db.part/user for every
// caller in this module), not from :db.part/db.
func NewBootstrapPartitionMap() PartitionMap {
	return PartitionMap{
		PartitionDB:   {Start: 0, Index: BootstrapBoundary},
		PartitionTx:   {Start: BootstrapBoundary, Index: BootstrapBoundary + 1},
		PartitionUser: {Start: 2 * BootstrapBoundary, Index: 2 * BootstrapBoundary},
	}
}

// Clone returns a deep copy so the transactor can mutate it without
// affecting the store's committed state until Commit.
func (pm PartitionMap) Clone() PartitionMap {
	out := make(PartitionMap, len(pm))
	for name, p := range pm {
		cp := *p
		out[name] = &cp
	}
	return out
}

// Get returns the named partition, or nil if it doesn't exist.
func (pm PartitionMap) Get(name string) (*Partition, bool) {
	p, ok := pm[name]
	return p, ok
}
