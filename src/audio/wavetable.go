package audio

import (
	"fmt"
	"math"
	"sync"
)

const wavetableSize = 4096
const twoPi = 2.0 * math.Pi

// ----- Wavetable ----- //

type wavetable struct {
	values []float64
}

func newWavetable(cap int) *wavetable {
	return &wavetable{
		values: make([]float64, 0, cap),
	}
}

func (wt *wavetable) generate(samples int, phaseToValue func(phase float64) float64) error {
	if samples > cap(wt.values) {
		return fmt.Errorf("capacity exceeded")
	}
	wt.values = wt.values[0:samples]
	for i := 0; i < samples; i++ {
		phase := twoPi / float64(samples) * float64(i)
		wt.values[i] = phaseToValue(phase)
	}
	return nil
}

// initialize fills the table with one sine period unless it is already filled.
func (wt *wavetable) initialize() {
	if len(wt.values) > 0 {
		return
	}
	if err := wt.generate(cap(wt.values), math.Sin); err != nil {
		panic(err)
	}
}

// getAtPhase reads the table at any phase in radians with linear interpolation.
func (wt *wavetable) getAtPhase(phase float64) float64 {
	length := len(wt.values)
	if length == 0 {
		return 0
	}
	pos := phase / twoPi * float64(length)
	pos -= math.Floor(pos/float64(length)) * float64(length)
	if math.IsNaN(pos) {
		return 0
	}
	index := int(pos)
	if index >= length {
		index, pos = 0, 0
	}
	frac := pos - float64(index)
	nextIndex := index + 1
	if nextIndex >= length {
		nextIndex = 0
	}
	return wt.values[index] + frac*(wt.values[nextIndex]-wt.values[index])
}

var (
	sineTableOnce sync.Once
	sineTable     *wavetable
)

// sharedSineTable returns the process-wide sine table, building it on first use.
func sharedSineTable() *wavetable {
	sineTableOnce.Do(func() {
		sineTable = newWavetable(wavetableSize)
		sineTable.initialize()
	})
	return sineTable
}
