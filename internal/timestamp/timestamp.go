// Package timestamp converts the timestamp-like values found in stored documents into
// time.Time.
//
// Documents written by different versions of the application carry the same logical
// field in different shapes: a native timestamp, an object with a seconds/nanoseconds
// pair, or an ISO-8601 string. Classify tags a raw value with its shape and Time converts
// every shape in one place.
package timestamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the persisted shape of a timestamp-like value.
type Kind int

const (
	// Unknown is any value that is not recognized as a timestamp.
	Unknown Kind = iota
	// Native is a time.Time as produced by the document store itself.
	Native
	// SecondsNanos is an object of the form {"seconds": S, "nanoseconds": N}.
	SecondsNanos
	// ISOString is an ISO-8601 / RFC 3339 string, with or without a time part.
	ISOString
)

// String returns a readable name of the kind, used in log messages.
func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case SecondsNanos:
		return "seconds/nanoseconds"
	case ISOString:
		return "iso-string"
	default:
		return "unknown"
	}
}

// ErrUnknownShape is returned by Value.Time when the raw value has no recognized shape.
var ErrUnknownShape = errors.New("value is not timestamp-shaped")

// layouts are tried in order when parsing ISOString values.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Value is a timestamp-like value tagged with its shape.
type Value struct {
	Kind    Kind
	native  time.Time
	seconds int64
	nanos   int64
	text    string
	raw     any
}

// Classify inspects a raw document field and tags it with its shape.
func Classify(raw any) Value {
	switch v := raw.(type) {
	case time.Time:
		return Value{Kind: Native, native: v, raw: raw}
	case *time.Time:
		if v != nil {
			return Value{Kind: Native, native: *v, raw: raw}
		}
	case string:
		return Value{Kind: ISOString, text: strings.TrimSpace(v), raw: raw}
	case map[string]any:
		seconds, okSeconds := pairField(v, "seconds", "_seconds")
		nanos, okNanos := pairField(v, "nanoseconds", "_nanoseconds")
		if okSeconds && okNanos {
			return Value{Kind: SecondsNanos, seconds: seconds, nanos: nanos, raw: raw}
		}
	}
	return Value{Kind: Unknown, raw: raw}
}

// Time converts the value to a UTC time. It fails for Unknown values and for strings that
// match none of the accepted layouts.
func (v Value) Time() (time.Time, error) {
	switch v.Kind {
	case Native:
		return v.native.UTC(), nil
	case SecondsNanos:
		if v.nanos < 0 || v.nanos >= int64(time.Second) {
			return time.Time{}, fmt.Errorf("nanoseconds out of range: %d", v.nanos)
		}
		return time.Unix(v.seconds, v.nanos).UTC(), nil
	case ISOString:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v.text); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp string %q", v.text)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrUnknownShape, v.raw)
	}
}

// Coerce converts raw to a time. On failure it returns fallback together with the
// conversion error, so the caller can log and carry on with partial data.
func Coerce(raw any, fallback time.Time) (time.Time, Kind, error) {
	v := Classify(raw)
	t, err := v.Time()
	if err != nil {
		return fallback, v.Kind, err
	}
	return t, v.Kind, nil
}

// Encode returns the native persisted form of t: the seconds/nanoseconds pair under the
// keys reserved for native timestamps. Document stores that cannot hold time.Time values
// use it on write and Decode on read.
func Encode(t time.Time) map[string]any {
	t = t.UTC()
	return map[string]any{
		NativeSecondsKey: t.Unix(),
		NativeNanosKey:   int64(t.Nanosecond()),
	}
}

// Keys of the native persisted form.
const (
	NativeSecondsKey = "_seconds"
	NativeNanosKey   = "_nanoseconds"
)

// Decode recognizes the native persisted form produced by Encode. Objects using the
// historical "seconds"/"nanoseconds" keys are left alone so their shape stays visible.
func Decode(m map[string]any) (time.Time, bool) {
	if len(m) != 2 {
		return time.Time{}, false
	}
	seconds, okSeconds := number(m[NativeSecondsKey])
	nanos, okNanos := number(m[NativeNanosKey])
	if !okSeconds || !okNanos {
		return time.Time{}, false
	}
	return time.Unix(seconds, nanos).UTC(), true
}

// pairField looks up the first of the given keys holding a number.
func pairField(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		if n, ok := number(m[k]); ok {
			return n, true
		}
	}
	return 0, false
}

func number(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
