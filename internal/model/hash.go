package model

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"sort"
)

// =============================================================================
// Hash Builder
// =============================================================================

// HashBuilder provides a fluent API for building deterministic content
// hashes. Same inputs always produce the same output; order of operations
// matters.
type HashBuilder struct {
	h hash.Hash64
}

// NewHashBuilder creates a new hash builder.
func NewHashBuilder() *HashBuilder {
	return &HashBuilder{h: fnv.New64a()}
}

// String adds a string value to the hash.
func (b *HashBuilder) String(s string) *HashBuilder {
	b.h.Write([]byte(s))
	b.h.Write([]byte{0}) // Separator to avoid collisions
	return b
}

// StringMap adds a map of strings to the hash.
// Keys are sorted for deterministic ordering.
func (b *HashBuilder) StringMap(m map[string]string) *HashBuilder {
	if len(m) == 0 {
		b.Int(0)
		return b
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.Int(len(keys))
	for _, k := range keys {
		b.String(k)
		b.String(m[k])
	}
	return b
}

// Int adds an integer to the hash.
func (b *HashBuilder) Int(i int) *HashBuilder {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(i))
	b.h.Write(buf)
	return b
}

// Build returns the final hash value.
func (b *HashBuilder) Build() uint64 {
	return b.h.Sum64()
}
