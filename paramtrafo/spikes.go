package paramtrafo

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sarchlab/marocco/coordinate"
)

// ToHardwareSpikes converts a bio-time spike train into the
// hardware-time train sent to a DNC merger: t_hw = t_bio/speedup +
// offset. The input need not be pre-sorted; the output always is.
func ToHardwareSpikes(bioTimes []float64, cfg Config, offset float64) []float64 {
	out := make([]float64, len(bioTimes))
	for i, t := range bioTimes {
		out[i] = t/cfg.Speedup + offset
	}
	sort.Float64s(out)
	return out
}

// MaterializePoisson deterministically generates a Poisson spike train
// in bio time over [0, duration) at the given rate (Hz), seeded from
// the run's configured seed combined with the target DNC merger's
// index so distinct sources routed to distinct mergers get independent,
// reproducible streams.
func MaterializePoisson(rate, duration float64, merger coordinate.DNCMergerOnWafer, cfg Config) []float64 {
	if rate <= 0 || duration <= 0 {
		return nil
	}
	seed := cfg.Seed ^ int64(merger.Chip.X)<<32 ^ int64(merger.Chip.Y)<<16 ^ int64(merger.Merger.Index)
	rng := rand.New(rand.NewSource(seed))

	var out []float64
	t := 0.0
	meanISI := 1000.0 / rate // ms, since rate is Hz and times are ms
	for {
		t += -meanISI * math.Log(1-rng.Float64())
		if t >= duration {
			break
		}
		out = append(out, t)
	}
	return out
}
