package ledger

import (
	"math/rand/v2"
	"sync/atomic"
)

// DefaultIDRange bounds RandomIDs to [0, DefaultIDRange).
const DefaultIDRange = 1_000_000

// IDGenerator proposes transaction identifiers. Proposals may collide;
// Store.Add checks every candidate against the ledger.
type IDGenerator interface {
	Next() int64
}

// RandomIDs draws uniformly from [0, Range).
type RandomIDs struct {
	Range int64
	rnd   *rand.Rand
}

// NewRandomIDs returns a generator over [0, DefaultIDRange).
func NewRandomIDs() *RandomIDs {
	return &RandomIDs{Range: DefaultIDRange}
}

// NewSeededIDs returns a reproducible generator over [0, n).
func NewSeededIDs(n int64, seed uint64) *RandomIDs {
	return &RandomIDs{Range: n, rnd: rand.New(rand.NewPCG(seed, seed))}
}

func (g *RandomIDs) Next() int64 {
	n := g.Range
	if n <= 0 {
		n = DefaultIDRange
	}
	if g.rnd != nil {
		return g.rnd.Int64N(n)
	}
	return rand.Int64N(n)
}

// SequenceIDs hands out start, start+1, ...
type SequenceIDs struct {
	next atomic.Int64
}

func NewSequenceIDs(start int64) *SequenceIDs {
	s := &SequenceIDs{}
	s.next.Store(start)
	return s
}

func (s *SequenceIDs) Next() int64 {
	return s.next.Add(1) - 1
}

// FixedIDs replays a list of ids and then repeats the last one.
// Handy for forcing collisions in tests.
type FixedIDs struct {
	IDs []int64
	i   int
}

func (f *FixedIDs) Next() int64 {
	if len(f.IDs) == 0 {
		return 0
	}
	if f.i >= len(f.IDs) {
		return f.IDs[len(f.IDs)-1]
	}
	id := f.IDs[f.i]
	f.i++
	return id
}
