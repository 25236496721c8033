// internal/naming/name.go
package naming

import (
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

const (
	// Alphabet is the set of symbols unit names are drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Length is the number of symbols in a generated name.
	Length = 7
)

// Generator produces short random unit names. Names are not checked for
// collisions; uniqueness is probabilistic.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator drawing from src. A nil src uses a
// randomly seeded PCG source.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rnd: rand.New(src)}
}

// Generate returns a fresh 7-character name over [a-z0-9].
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, Length)
	for i := range b {
		b[i] = Alphabet[g.rnd.IntN(len(Alphabet))]
	}
	return string(b)
}

// UUIDGenerator names units with random UUIDs, for deployments that need
// stronger uniqueness than 7 random symbols give.
type UUIDGenerator struct{}

// Generate returns a lowercase RFC 4122 UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
