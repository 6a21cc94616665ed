package audio

import (
	"math"
	"testing"
)

func TestSharedSineTable(t *testing.T) {
	wt := sharedSineTable()
	expectEqual(t, len(wt.values), wavetableSize)
	expectNearlyEqual(t, wt.values[0], 0)
	expectNearlyEqual(t, wt.values[wavetableSize/4], 1)
	expectNearlyEqual(t, wt.values[wavetableSize/2], 0)
	expectNearlyEqual(t, wt.values[wavetableSize*3/4], -1)
	expectTrue(t, sharedSineTable() == wt, "expected the same table on every call")
}

func TestInitializeOnlyOnce(t *testing.T) {
	wt := newWavetable(16)
	wt.initialize()
	wt.values[3] = 42
	wt.initialize()
	expectEqual(t, wt.values[3], 42.0)
	expectEqual(t, len(wt.values), 16)
}

func TestGenerateCapacity(t *testing.T) {
	wt := newWavetable(4)
	expectError(t, wt.generate(5, math.Sin))
	expectNoError(t, wt.generate(4, math.Sin))
}

func TestGetAtPhaseInterpolates(t *testing.T) {
	wt := newWavetable(4)
	expectNoError(t, wt.generate(4, func(phase float64) float64 { return phase }))
	// values: 0, π/2, π, 3π/2
	expectNearlyEqual(t, wt.getAtPhase(0), 0)
	expectNearlyEqual(t, wt.getAtPhase(math.Pi/4), math.Pi/4)
	expectNearlyEqual(t, wt.getAtPhase(math.Pi), math.Pi)
	// upper neighbour of the last entry wraps to the first
	expectNearlyEqual(t, wt.getAtPhase(7*math.Pi/4), 3*math.Pi/4)
}

func TestGetAtPhaseWraps(t *testing.T) {
	wt := sharedSineTable()
	for _, phase := range []float64{0.1, 1.3, 2.9, 4.4, 6.2} {
		expectNearlyEqual(t, wt.getAtPhase(phase), math.Sin(phase))
		expectNearlyEqual(t, wt.getAtPhase(phase+twoPi), math.Sin(phase))
		expectNearlyEqual(t, wt.getAtPhase(phase-3*twoPi), math.Sin(phase))
	}
	expectNearlyEqual(t, wt.getAtPhase(-1e-18), 0)
	expectEqual(t, wt.getAtPhase(math.NaN()), 0.0)
	expectEqual(t, wt.getAtPhase(math.Inf(1)), 0.0)
}

func TestInitializeKeepsGeneratedValues(t *testing.T) {
	wt := newWavetable(4)
	expectNoError(t, wt.generate(4, func(phase float64) float64 { return 2 }))
	wt.initialize()
	for _, v := range wt.values {
		expectEqual(t, v, 2.0)
	}
}
