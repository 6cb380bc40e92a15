// Package rippletime converts between wall-clock instants and ledger time,
// which counts whole seconds since 2000-01-01T00:00:00Z.
package rippletime

import (
	"errors"
	"math"
	"time"
)

// EpochOffset is the number of Unix seconds at the ledger epoch.
const EpochOffset int64 = 946684800

var ErrOutOfRange = errors.New("rippletime: instant outside ledger time range")

// Epoch is the ledger epoch as a time.Time.
var Epoch = time.Unix(EpochOffset, 0).UTC()

// FromTime truncates t to whole seconds and returns the ledger time.
// Instants before the epoch yield negative values.
func FromTime(t time.Time) int64 {
	return t.Unix() - EpochOffset
}

// ToTime returns the UTC instant for ledger time s.
func ToTime(s int64) time.Time {
	return time.Unix(s+EpochOffset, 0).UTC()
}

// ToLedger converts t into the unsigned 32-bit field used by ledger
// transactions such as FinishAfter and CancelAfter.
func ToLedger(t time.Time) (uint32, error) {
	s := FromTime(t)
	if s < 0 || s > math.MaxUint32 {
		return 0, ErrOutOfRange
	}
	return uint32(s), nil
}

// Now returns the current ledger time according to clock.
func Now(clock func() time.Time) int64 {
	if clock == nil {
		clock = time.Now
	}
	return FromTime(clock())
}
