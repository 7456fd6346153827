package timeconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/errs"
)

func TestNewOffsetAlignsToBlock(t *testing.T) {
	ref := time.Date(2024, 11, 5, 20, 15, 49, 0, time.UTC)
	off := NewOffset(ref)

	assert.Equal(t, int64(1_730_000_000_000), off.Base().UnixMilli())

	s, err := off.Seconds(ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Unix()-1_730_000_000, s)
}

func TestRoundTrip(t *testing.T) {
	ref := time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)
	off := NewOffset(ref)

	for _, d := range []time.Duration{0, time.Minute, 90 * time.Second, 36 * time.Hour} {
		in := ref.Add(d)
		s, err := off.Seconds(in)
		require.NoError(t, err)
		assert.True(t, in.Equal(off.Time(s, time.UTC)), "round trip of %v", in)
	}
}

func TestOffsetIsFrozenAcrossBlockBoundary(t *testing.T) {
	// The session spans the block boundary; seconds keep growing past 10^6
	// instead of wrapping to a new base.
	base := time.UnixMilli(1_730_000_000_000).UTC()
	off := NewOffset(base.Add(-time.Hour))
	after := base.Add(time.Hour)

	s, err := off.Seconds(after)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000+3600), s)
	assert.True(t, after.Equal(off.Time(s, nil)))
}

func TestSecondsOutOfRange(t *testing.T) {
	ref := time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)
	off := NewOffset(ref)

	_, err := off.Seconds(off.Base().Add(-time.Second))
	assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)

	_, err = off.Seconds(off.Base().Add(time.Duration(MaxSeconds+1) * time.Second))
	assert.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
}

func TestTimeHonoursLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	off := NewOffset(time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC))

	got := off.Time(100, loc)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, off.Base().Add(100*time.Second).Unix(), got.Unix())
}
