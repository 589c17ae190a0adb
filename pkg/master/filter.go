package master

import (
	"strconv"
	"strings"
)

// Value is a filter value: Bool, Int, String or List. Nested groups are
// only built by Nor and Nand.
type Value interface {
	appendValue(dst []byte) []byte
}

// Bool renders as 1 or 0.
type Bool bool

// Int renders in decimal.
type Int int

// String renders verbatim.
type String string

// List renders comma-joined, as used by gametype and gamedata.
type List []string

func (v Bool) appendValue(dst []byte) []byte {
	if v {
		return append(dst, '1')
	}
	return append(dst, '0')
}

func (v Int) appendValue(dst []byte) []byte {
	return strconv.AppendInt(dst, int64(v), 10)
}

func (v String) appendValue(dst []byte) []byte {
	return append(dst, v...)
}

func (v List) appendValue(dst []byte) []byte {
	return append(dst, strings.Join(v, ",")...)
}

// group is the value of a nor or nand key.
type group struct {
	sub *Filter
}

// appendValue renders a group as its entry count followed by its flattened pairs.
func (g group) appendValue(dst []byte) []byte {
	dst = strconv.AppendInt(dst, int64(g.sub.Len()), 10)
	return g.sub.appendPairs(dst)
}

type filterEntry struct {
	value Value
	key   string
}

// Filter is an insertion-ordered set of master server filter keys.
// The zero value is an empty filter.
type Filter struct {
	entries []filterEntry
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Set stores key=value. Replacing a key keeps its original position.
func (f *Filter) Set(key string, value Value) *Filter {
	for i := range f.entries {
		if f.entries[i].key == key {
			f.entries[i].value = value
			return f
		}
	}
	f.entries = append(f.entries, filterEntry{key: key, value: value})
	return f
}

// Nor adds a group matching servers that satisfy none of sub's conditions.
func (f *Filter) Nor(sub *Filter) *Filter {
	return f.Set("nor", group{sub: sub})
}

// Nand adds a group matching servers that do not satisfy all of sub's conditions.
func (f *Filter) Nand(sub *Filter) *Filter {
	return f.Set("nand", group{sub: sub})
}

// Len returns the number of keys.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

// Keys returns the keys in insertion order.
func (f *Filter) Keys() []string {
	if f == nil {
		return nil
	}
	keys := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		keys = append(keys, e.key)
	}
	return keys
}

func (f *Filter) appendPairs(dst []byte) []byte {
	if f == nil {
		return dst
	}
	for _, e := range f.entries {
		dst = append(dst, '\\')
		dst = append(dst, e.key...)
		dst = append(dst, '\\')
		dst = e.value.appendValue(dst)
	}
	return dst
}

// AppendWire appends the wire filter string, NUL terminator included.
// A nil or empty filter renders as the terminator alone. Values are not escaped.
func (f *Filter) AppendWire(dst []byte) []byte {
	dst = f.appendPairs(dst)
	return append(dst, 0x00)
}

// String returns the wire form without the terminator.
func (f *Filter) String() string {
	return string(f.appendPairs(nil))
}
