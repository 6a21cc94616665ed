package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// ----- Transitive Value ----- //

// transitiveValue follows its target with a one-pole filter, one step per sample.
type transitiveValue struct {
	coefficient float64
	targetValue float64
	value       float64
}

func newTransitiveValue(value float64) *transitiveValue {
	tv := &transitiveValue{}
	tv.init(value)
	return tv
}

func (tv *transitiveValue) init(value float64) {
	tv.targetValue = value
	tv.value = value
}

// setTimeConstant sets the coefficient so the value covers 63% of the way to
// its target after duration seconds.
func (tv *transitiveValue) setTimeConstant(duration float64, sampleRate float64) {
	tv.coefficient = 1 - math.Exp(-1/(duration*sampleRate))
}

func (tv *transitiveValue) setTarget(value float64) {
	tv.targetValue = value
}

func (tv *transitiveValue) step() float64 {
	tv.value += tv.coefficient * (tv.targetValue - tv.value)
	tv.value = core.FlushDenormals(tv.value)
	return tv.value
}
