/*
clock.go - The driver's monotonic txInstant clock (section 5)

PURPOSE:
  txInstant must be strictly monotonic even if the wall clock regresses
  (NTP step, VM migration) or two transactions land in the same
  nanosecond. Clock advances to previous+epsilon in that case rather than
  failing the transaction outright — failing is reserved for the case where
  the caller explicitly supplied a txInstant that does not exceed the
  previous one (section 4.10 step 8).
*/
package tx

import (
	"time"

	"github.com/warp/factdb/fact"
)

// Clock produces strictly increasing instants for successive transactions.
type Clock struct {
	last time.Time
}

// NewClock seeds a Clock with the instant of the most recent prior
// transaction (zero time if this is the first transaction in the store).
func NewClock(previous time.Time) *Clock {
	return &Clock{last: previous}
}

// Next returns an instant strictly after the previous one, using the wall
// clock when it has advanced and previous+1ns otherwise (section 5
// "Ordering guarantees").
func (c *Clock) Next() time.Time {
	now := time.Now().UTC()
	if now.After(c.last) {
		c.last = now
		return now
	}
	c.last = c.last.Add(time.Nanosecond)
	return c.last
}

// Advance records an externally-supplied instant as the new high-water
// mark, failing if it does not strictly exceed the previous one (section
// 4.10 step 8, explicit :db/txInstant assertion path).
func (c *Clock) Advance(instant time.Time) error {
	if !instant.After(c.last) {
		return &fact.TxInstantNotMonotonicError{Requested: instant.UnixNano(), Previous: c.last.UnixNano()}
	}
	c.last = instant
	return nil
}
