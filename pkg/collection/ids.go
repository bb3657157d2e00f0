package collection

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
)

// maxIDAttempts bounds collision retries in [IDGenerator.Generate].
const maxIDAttempts = 100

// ErrIdentityExhausted is returned when no free identity was found within
// the retry bound.
var ErrIdentityExhausted = errors.New("identity exhausted")

// IDGenerator draws collision-checked 64-bit identities from a seeded
// pseudorandom source. Each [Collection] owns its own generator.
type IDGenerator struct {
	src rand.Source
}

// NewIDGenerator returns a generator drawing from src.
// Panics if src is nil.
func NewIDGenerator(src rand.Source) *IDGenerator {
	if src == nil {
		panic("src is nil")
	}

	return &IDGenerator{src: src}
}

// NewSeededIDGenerator returns a generator with a deterministic PCG source.
func NewSeededIDGenerator(seed uint64) *IDGenerator {
	return NewIDGenerator(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRandomIDGenerator returns a generator seeded once from crypto/rand.
func NewRandomIDGenerator() *IDGenerator {
	var buf [16]byte

	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(buf[:])

	return NewIDGenerator(rand.NewPCG(
		binary.LittleEndian.Uint64(buf[:8]),
		binary.LittleEndian.Uint64(buf[8:]),
	))
}

// Generate returns a value for which taken reports false. It gives up with
// [ErrIdentityExhausted] after a fixed number of collisions.
func (g *IDGenerator) Generate(taken func(uint64) bool) (uint64, error) {
	for range maxIDAttempts {
		id := g.src.Uint64()
		if !taken(id) {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: no unique id after %d attempts", ErrIdentityExhausted, maxIDAttempts)
}

// fork returns an independent generator seeded from g.
func (g *IDGenerator) fork() *IDGenerator {
	return NewSeededIDGenerator(g.src.Uint64())
}
