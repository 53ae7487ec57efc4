package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"
)

// Hash is a hex encoded SHA-256 digest.
type Hash string

func (h Hash) String() string { return string(h) }

// ComputePointsHash fingerprints an ordered coefficient layout and point set.
// Identical grids hash identically regardless of how they were generated.
func ComputePointsHash(names []string, points [][]complex128) Hash {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, p := range points {
		for _, c := range p {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(real(c)))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(imag(c)))
			h.Write(buf[:])
		}
		h.Write([]byte{0xff})
	}
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// DeriveSeed maps a base seed and stream keys onto a non-negative seed.
// The same inputs always produce the same seed.
func DeriveSeed(base int64, keys ...string) int64 {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(base, 10)))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
	}
	sum := h.Sum(nil)
	return int64(binary.LittleEndian.Uint64(sum[:8]) &^ (1 << 63))
}
