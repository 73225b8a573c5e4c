package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassify checks that each of the historically persisted shapes is recognized.
func TestClassify(t *testing.T) {
	now := time.Date(2024, time.January, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  any
		want Kind
	}{
		{"native", now, Native},
		{"native pointer", &now, Native},
		{"seconds and nanoseconds", map[string]any{"seconds": float64(1704067200), "nanoseconds": float64(0)}, SecondsNanos},
		{"underscore pair", map[string]any{"_seconds": int64(1704067200), "_nanoseconds": int64(5)}, SecondsNanos},
		{"iso string", "2024-01-01T00:00:00Z", ISOString},
		{"nil", nil, Unknown},
		{"nil pointer", (*time.Time)(nil), Unknown},
		{"number", 42.0, Unknown},
		{"object without nanoseconds", map[string]any{"seconds": 1.0}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.raw).Kind)
		})
	}
}

// TestTimeAllShapesSameDay expects that every shape of the same instant converts to the
// same date.
func TestTimeAllShapesSameDay(t *testing.T) {
	want := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	raws := []any{
		want,
		map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(0)},
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00.000Z",
		"2024-01-01",
		"2024-01-01T00:00:00",
	}
	for _, raw := range raws {
		got, err := Classify(raw).Time()
		require.NoError(t, err, "raw: %v", raw)
		assert.Equal(t, want, got, "raw: %v", raw)
	}
}

// TestTimeFailures expects errors for values that cannot be converted.
func TestTimeFailures(t *testing.T) {
	raws := []any{
		"yesterday",
		"",
		map[string]any{"seconds": 1.0, "nanoseconds": float64(2 * time.Second)},
		true,
	}
	for _, raw := range raws {
		_, err := Classify(raw).Time()
		assert.Error(t, err, "raw: %v", raw)
	}
	_, err := Classify(struct{}{}).Time()
	assert.ErrorIs(t, err, ErrUnknownShape)
}

// TestCoerceFallback expects that a failed conversion returns the fallback and the error.
func TestCoerceFallback(t *testing.T) {
	fallback := time.Date(2030, time.May, 5, 0, 0, 0, 0, time.UTC)
	got, kind, err := Coerce("not a date", fallback)
	assert.Error(t, err)
	assert.Equal(t, ISOString, kind)
	assert.Equal(t, fallback, got)

	got, kind, err = Coerce("1999-12-31", fallback)
	require.NoError(t, err)
	assert.Equal(t, ISOString, kind)
	assert.Equal(t, time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC), got)
}

// TestEncodeDecode expects the native persisted form to survive a round trip, and the
// historical pair to be left alone by Decode.
func TestEncodeDecode(t *testing.T) {
	in := time.Date(1969, time.March, 2, 10, 11, 12, 13, time.FixedZone("CET", 3600))
	encoded := Encode(in)
	// JSON decoding turns numbers into float64
	asJSON := map[string]any{
		NativeSecondsKey: float64(encoded[NativeSecondsKey].(int64)),
		NativeNanosKey:   float64(encoded[NativeNanosKey].(int64)),
	}
	out, ok := Decode(asJSON)
	require.True(t, ok)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())

	_, ok = Decode(map[string]any{"seconds": 1.0, "nanoseconds": 0.0})
	assert.False(t, ok)
	_, ok = Decode(map[string]any{NativeSecondsKey: 1.0, NativeNanosKey: 0.0, "extra": 1})
	assert.False(t, ok)
}
