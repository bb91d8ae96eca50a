package corestore

import (
	"math"

	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/kv"
)

// Infinity is the largest index. As a range end it means "no end".
const Infinity = math.MaxUint64

type indexBound struct {
	value     uint64
	inclusive bool
	set       bool
}

type stringBound struct {
	value     string
	inclusive bool
	set       bool
}

type rangeOptions struct {
	lower, upper       indexBound
	keyLower, keyUpper stringBound
	reverse            bool
	limit              int
}

// RangeOption bounds a stream.
type RangeOption func(*rangeOptions)

// Gt yields indices greater than i.
func Gt(i uint64) RangeOption {
	return func(o *rangeOptions) { o.lower = indexBound{value: i, set: true} }
}

// Gte yields indices greater than or equal to i.
func Gte(i uint64) RangeOption {
	return func(o *rangeOptions) { o.lower = indexBound{value: i, inclusive: true, set: true} }
}

// Lt yields indices less than i.
func Lt(i uint64) RangeOption {
	return func(o *rangeOptions) { o.upper = indexBound{value: i, set: true} }
}

// Lte yields indices less than or equal to i.
func Lte(i uint64) RangeOption {
	return func(o *rangeOptions) { o.upper = indexBound{value: i, inclusive: true, set: true} }
}

// KeyGt yields user data keys greater than k.
func KeyGt(k string) RangeOption {
	return func(o *rangeOptions) { o.keyLower = stringBound{value: k, set: true} }
}

// KeyGte yields user data keys greater than or equal to k.
func KeyGte(k string) RangeOption {
	return func(o *rangeOptions) { o.keyLower = stringBound{value: k, inclusive: true, set: true} }
}

// KeyLt yields user data keys less than k.
func KeyLt(k string) RangeOption {
	return func(o *rangeOptions) { o.keyUpper = stringBound{value: k, set: true} }
}

// KeyLte yields user data keys less than or equal to k.
func KeyLte(k string) RangeOption {
	return func(o *rangeOptions) { o.keyUpper = stringBound{value: k, inclusive: true, set: true} }
}

// Reverse yields records in descending order.
func Reverse() RangeOption {
	return func(o *rangeOptions) { o.reverse = true }
}

// Limit caps the number of records yielded.
func Limit(n int) RangeOption {
	return func(o *rangeOptions) { o.limit = n }
}

func newRangeOptions(optFns []RangeOption) rangeOptions {
	var o rangeOptions
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// bound turns a value bound into a key bound below prefix.
//
// Index and string keys end with their encoded value, so appending 0x00 gives
// the smallest key after it. That makes Gt and Lte inclusive/exclusive bounds
// on the following byte string.
func bound(prefix, encoded []byte, lower, inclusive bool) []byte {
	out := make([]byte, 0, len(prefix)+len(encoded)+1)
	out = append(out, prefix...)
	out = append(out, encoded...)
	if lower != inclusive {
		out = append(out, 0x00)
	}
	return out
}

// indexRange maps index bounds to a key range below prefix.
func (o rangeOptions) indexRange(prefix []byte) kv.Range {
	r := kv.Range{Reverse: o.reverse, Limit: o.limit}

	if o.lower.set {
		r.Lower = bound(prefix, keys.AppendUint(nil, o.lower.value), true, o.lower.inclusive)
	} else {
		r.Lower = prefix
	}

	if o.upper.set && !(o.upper.value == Infinity && o.upper.inclusive) {
		r.Upper = bound(prefix, keys.AppendUint(nil, o.upper.value), false, o.upper.inclusive)
	} else {
		r.Upper = append(append([]byte(nil), prefix...), keys.End)
	}

	return r
}

// stringRange maps user data key bounds to a key range below prefix.
func (o rangeOptions) stringRange(prefix []byte) kv.Range {
	r := kv.Range{Reverse: o.reverse, Limit: o.limit}

	if o.keyLower.set {
		r.Lower = bound(prefix, keys.AppendString(nil, o.keyLower.value), true, o.keyLower.inclusive)
	} else {
		r.Lower = prefix
	}

	if o.keyUpper.set {
		r.Upper = bound(prefix, keys.AppendString(nil, o.keyUpper.value), false, o.keyUpper.inclusive)
	} else {
		r.Upper = append(append([]byte(nil), prefix...), keys.End)
	}

	return r
}
