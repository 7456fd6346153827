// Package timeconv converts between wall-clock timestamps and the integer
// second offsets the routing engine works in.
//
// The engine keeps cumulative values in 32-bit range, so absolute epoch seconds
// are shifted by a base aligned to a 10^9 millisecond block. The base is
// computed once per solve session from a reference timestamp and carried as an
// immutable Offset value.
package timeconv

import (
	"math"
	"time"

	"vrpadapter/internal/errs"
)

const blockMillis int64 = 1_000_000_000

// MaxSeconds is the largest second offset an Offset converts.
const MaxSeconds int64 = math.MaxInt32

type Offset struct {
	baseMillis int64
}

// NewOffset aligns the base to the block that contains ref.
func NewOffset(ref time.Time) Offset {
	ms := ref.UnixMilli()
	q := ms / blockMillis
	if ms < 0 && ms%blockMillis != 0 {
		q--
	}
	return Offset{baseMillis: q * blockMillis}
}

// Base is the wall-clock instant of second 0.
func (o Offset) Base() time.Time { return time.UnixMilli(o.baseMillis).UTC() }

// Seconds converts t to whole seconds since the base. Valid results are in
// [0, MaxSeconds].
func (o Offset) Seconds(t time.Time) (int64, error) {
	s := (t.UnixMilli() - o.baseMillis) / 1000
	if s < 0 || s > MaxSeconds {
		return 0, errs.NewValueIsOutOfRangeError("seconds", s, 0, MaxSeconds)
	}
	return s, nil
}

// Time converts seconds since the base back to wall-clock time in loc
// (UTC when loc is nil).
func (o Offset) Time(seconds int64, loc *time.Location) time.Time {
	t := time.UnixMilli(o.baseMillis + seconds*1000)
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}
