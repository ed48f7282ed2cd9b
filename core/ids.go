package core

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
)

// RandomGenerator draws uniformly random ids from an entropy source.
type RandomGenerator struct {
	mu   sync.Mutex
	rand io.Reader
	buf  [4]byte
}

func NewRandomGenerator() *RandomGenerator {
	return NewRandomGeneratorFrom(rand.Reader)
}

// NewRandomGeneratorFrom reads ids from r, four bytes at a time.
func NewRandomGeneratorFrom(r io.Reader) *RandomGenerator {
	return &RandomGenerator{rand: r}
}

// Next returns the next random id. crypto/rand never fails on supported platforms, so a
// short read from a custom reader is treated as a programming error.
func (g *RandomGenerator) Next() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := io.ReadFull(g.rand, g.buf[:]); err != nil {
		panic("core: id entropy source failed: " + err.Error())
	}
	return binary.BigEndian.Uint32(g.buf[:])
}

// SequenceGenerator hands out ids counting up from a start value.
type SequenceGenerator struct {
	next atomic.Uint32
}

func NewSequenceGenerator(start uint32) *SequenceGenerator {
	g := &SequenceGenerator{}
	g.next.Store(start)
	return g
}

func (g *SequenceGenerator) Next() uint32 {
	return g.next.Add(1) - 1
}
