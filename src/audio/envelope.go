package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	defaultAttackTime  = 0.002 // sec
	defaultReleaseTime = 0.02  // sec
)

// ----- Envelope ----- //

/*
  1 +   x----------x
    |  /            \
    | /              \
  0 +/----------------x---
    |a  |            |r  |
*/
type envelope struct {
	inAttack        bool
	attackLevel     float64 // 0-1
	attackSamples   int     // total used by the next attack
	attackLength    int     // total of the attack in progress
	attackRemaining int

	inRelease        bool
	releaseLevel     float64 // 0-1
	releaseStart     float64
	releaseSamples   int // total used by the next release
	releaseLength    int // total of the release in progress
	releaseRemaining int
}

func secondsToSamples(seconds float64, sampleRate float64) int {
	n := seconds * sampleRate
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func (e *envelope) setAttackTime(seconds float64, sampleRate float64) {
	e.attackSamples = secondsToSamples(seconds, sampleRate)
}

func (e *envelope) setReleaseTime(seconds float64, sampleRate float64) {
	e.releaseSamples = secondsToSamples(seconds, sampleRate)
}

func (e *envelope) noteOn() {
	e.inAttack = true
	e.attackLevel = 0
	e.attackLength = e.attackSamples
	e.attackRemaining = e.attackSamples
	e.inRelease = false
	e.releaseLevel = 1
}

func (e *envelope) noteOff() {
	if e.inRelease {
		return
	}
	e.releaseStart = 1
	if e.inAttack {
		e.releaseStart = e.attackLevel
	}
	e.inAttack = false
	e.inRelease = true
	e.releaseLevel = e.releaseStart
	e.releaseLength = e.releaseSamples
	e.releaseRemaining = e.releaseSamples
}

func (e *envelope) level() float64 {
	if e.inAttack {
		return e.attackLevel
	}
	if e.inRelease {
		return e.releaseLevel
	}
	return 1
}

// step advances one sample and reports whether the release has finished.
func (e *envelope) step() bool {
	if e.inAttack {
		e.attackRemaining--
		if e.attackRemaining <= 0 {
			e.inAttack = false
			e.attackRemaining = 0
			e.attackLevel = 1
		} else {
			e.attackLevel = 1 - float64(e.attackRemaining)/float64(e.attackLength)
		}
	}
	if e.inRelease {
		e.releaseRemaining--
		if e.releaseRemaining <= 0 {
			e.inRelease = false
			e.releaseRemaining = 0
			e.releaseLevel = 0
			return true
		}
		t := float64(e.releaseRemaining) / float64(e.releaseLength)
		e.releaseLevel = core.FlushDenormals(e.releaseStart * t)
	}
	return false
}
