package core

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"slices"

	"github.com/minio/highwayhash"
)

// IdentitySize is the width of an Identity in bytes.
const IdentitySize = 32

// identityKey is the fixed HighwayHash key. Changing it changes every identity.
var identityKey = []byte("ssccs-structural-identity-key-01")

// Identity is a 256-bit content hash used as the equality and lookup key of
// coordinates, segments and whole schemes.
type Identity [IdentitySize]byte

// IdentityOf hashes the little-endian encoding of each component of c in order.
func IdentityOf(c Coordinate) Identity {
	h := NewHasher()
	h.write(c.Bytes())
	return h.Sum()
}

// String returns the full lowercase hex form
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for logs.
func (id Identity) Short() string {
	return hex.EncodeToString(id[:4])
}

// IsZero reports whether id is the zero value
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Compare orders identities bytewise.
func (id Identity) Compare(other Identity) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other
func (id Identity) Less(other Identity) bool {
	return id.Compare(other) < 0
}

// ParseIdentity decodes the String form.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, &ParseError{Type: "identity", Value: s, Err: err}
	}
	if len(raw) != IdentitySize {
		return id, &ParseError{Type: "identity", Value: s, Err: ErrInvalidIdentity}
	}
	copy(id[:], raw)
	return id, nil
}

// SortIdentities sorts ids in place and returns them.
func SortIdentities(ids []Identity) []Identity {
	slices.SortFunc(ids, Identity.Compare)
	return ids
}

// Hasher accumulates a canonical byte stream for aggregate identities.
// Every write is length- or tag-delimited so that distinct structures never
// share an encoding.
type Hasher struct {
	h   hash.Hash
	buf [8]byte
}

// NewHasher returns a HighwayHash-256 backed Hasher.
func NewHasher() *Hasher {
	h, err := highwayhash.New(identityKey)
	if err != nil {
		// the key is a constant of the right length
		panic(fmt.Sprintf("core: highwayhash init: %v", err))
	}
	return &Hasher{h: h}
}

func (h *Hasher) write(p []byte) {
	_, _ = h.h.Write(p)
}

// Tag writes a single discriminant byte.
func (h *Hasher) Tag(t uint8) *Hasher {
	h.buf[0] = t
	h.write(h.buf[:1])
	return h
}

// Uint64 writes v little-endian
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	h.write(h.buf[:])
	return h
}

// Int64 writes v little-endian
func (h *Hasher) Int64(v int64) *Hasher {
	return h.Uint64(uint64(v))
}

// Float64 writes the IEEE-754 bits of v
func (h *Hasher) Float64(v float64) *Hasher {
	return h.Uint64(math.Float64bits(v))
}

// String writes a length-prefixed string
func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	h.write([]byte(s))
	return h
}

// Coordinate writes an arity-prefixed coordinate
func (h *Hasher) Coordinate(c Coordinate) *Hasher {
	h.Uint64(uint64(len(c)))
	h.write(c.Bytes())
	return h
}

// Identity writes a nested identity
func (h *Hasher) Identity(id Identity) *Hasher {
	h.write(id[:])
	return h
}

// Identities writes a count-prefixed, sorted copy of ids. The caller's slice
// is left untouched.
func (h *Hasher) Identities(ids []Identity) *Hasher {
	sorted := SortIdentities(slices.Clone(ids))
	h.Uint64(uint64(len(sorted)))
	for _, id := range sorted {
		h.Identity(id)
	}
	return h
}

// StringMap writes a map with its keys sorted
func (h *Hasher) StringMap(m map[string]string) *Hasher {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h.Uint64(uint64(len(keys)))
	for _, k := range keys {
		h.String(k).String(m[k])
	}
	return h
}

// Sum returns the identity of everything written so far.
func (h *Hasher) Sum() Identity {
	var id Identity
	copy(id[:], h.h.Sum(nil))
	return id
}
