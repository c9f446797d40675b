// Package tempid generates placeholder identifiers for optimistically
// created entities. A draft row needs an id before the server has
// assigned the definitive one; tempid issues time-sortable ids with a
// recognizable prefix so the confirmation step knows which rows to
// replace.
package tempid

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"
	"time"
)

// Prefix marks an id as a client-side placeholder.
const Prefix = "tmp_"

const (
	// epoch: 2020-01-01T00:00:00Z
	epochMilli = 1577836800000

	randomBits = 22

	// Crockford Base32
	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

var defaultGen generator

type generator struct {
	mu       sync.Mutex
	lastTime int64
	counter  uint32
}

// New returns a fresh placeholder id: the Prefix followed by a
// 13-character time-sortable token, so draft rows created later sort
// after earlier ones.
func New() string {
	return Prefix + defaultGen.next()
}

// IsTemp reports whether id is a placeholder issued by New.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

func (g *generator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli() - epochMilli

	var buf [4]byte
	rand.Read(buf[:])
	random := binary.BigEndian.Uint32(buf[:]) & ((1 << randomBits) - 1)

	// Same-millisecond ids stay unique via the counter.
	if now == g.lastTime {
		g.counter++
		random = (random &^ 0xFFFF) | (g.counter & 0xFFFF)
	} else {
		g.lastTime = now
		g.counter = 0
	}

	value := (uint64(now) << randomBits) | uint64(random)
	return encode(value)
}

// encode renders a uint64 as 13 Crockford Base32 characters.
func encode(value uint64) string {
	out := make([]byte, 13)
	for i := 12; i >= 0; i-- {
		out[i] = alphabet[value&0x1F]
		value >>= 5
	}
	return string(out)
}
