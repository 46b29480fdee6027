package merger

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/marocco/coordinate"
)

// AddressStrategy selects how addresses are drawn from a pool.
type AddressStrategy int

const (
	// Sequential draws addresses in ascending order starting at 1.
	Sequential AddressStrategy = iota
	// PseudoRandom draws addresses from a deterministic random
	// permutation seeded per merger.
	PseudoRandom
)

// OutOfAddressesError is returned when a pool has no addresses left to
// draw; the merger it belongs to (and hence its chip) is saturated.
type OutOfAddressesError struct {
	Merger coordinate.DNCMerger
}

func (e *OutOfAddressesError) Error() string {
	return fmt.Sprintf("merger: no free L1 addresses left on %s", e.Merger)
}

// AddressPool is the multiset of the 63 non-reserved L1 addresses
// available to one DNC merger.
type AddressPool struct {
	order []coordinate.L1Address
	next  int
}

// NewAddressPool builds a full pool (addresses 1..63) for one merger,
// ordered per strategy.
func NewAddressPool(strategy AddressStrategy, seed int64) *AddressPool {
	order := make([]coordinate.L1Address, 0, coordinate.MaxL1Address)
	for a := 1; a <= coordinate.MaxL1Address; a++ {
		order = append(order, coordinate.L1Address(a))
	}
	if strategy == PseudoRandom {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &AddressPool{order: order}
}

// Draw removes and returns the next address from the pool.
func (p *AddressPool) Draw(merger coordinate.DNCMerger) (coordinate.L1Address, error) {
	if p.next >= len(p.order) {
		return 0, &OutOfAddressesError{Merger: merger}
	}
	a := p.order[p.next]
	p.next++
	return a, nil
}

// Available reports how many addresses remain undrawn.
func (p *AddressPool) Available() int {
	return len(p.order) - p.next
}
