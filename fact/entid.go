package fact

// Reserved partition names (spec section 6 "Reserved entid space").
const (
	PartitionDB   = ":db.part/db"   // idents and schema attributes
	PartitionTx   = ":db.part/tx"   // transaction entids
	PartitionUser = ":db.part/user" // user entities
)

// TxInstantEntid is the reserved attribute entid for :db/txInstant. Timeline
// rewind excludes datoms on this attribute from the inverse batch (spec
// section 4.11): the instant is resynthesized by whichever transaction next
// touches that tx, not inverted.
const TxInstantEntid Entid = 1

// RootTxSentinel is entid 0, reserved for the root tx sentinel (spec
// section 6).
const RootTxSentinel Entid = 0

// BootstrapBoundary is the first entid not reserved for bootstrap content
// (spec section 6: "Entids < 2^20 are reserved for bootstrap").
const BootstrapBoundary Entid = 1 << 20
