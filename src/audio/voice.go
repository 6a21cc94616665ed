package audio

import (
	"math"
)

// MaxHarmonics is the upper bound of partials summed by one voice.
const MaxHarmonics = 32

// gainCeiling bounds the summed partial gains so aligned phases cannot exceed it.
const gainCeiling = 0.9

const baseFreq = 440.0

func noteToFreq(note int) float64 {
	return baseFreq * math.Pow(2, float64(note-69)/12)
}

// harmonicGain is the falloff of the k-th partial (k starting at 1) whose
// frequency is ratio times the fundamental.
func harmonicGain(ratio float64, k int) float64 {
	return 2.0 / (math.Pow(1.1, ratio) * math.Pow(1.6, float64(k)))
}

// ----- Voice ----- //

type voice struct {
	table      *wavetable
	sampleRate float64
	active     bool
	note       int
	velocity   float64
	harmonics  int     // used by the next startNote
	partials   int     // filled by the last startNote
	attack     float64 // sec
	release    float64 // sec
	phases     [MaxHarmonics]float64
	increments [MaxHarmonics]float64
	gains      [MaxHarmonics]float64
	env        envelope
}

func newVoice(table *wavetable, sampleRate float64) *voice {
	v := &voice{}
	v.init(table, sampleRate)
	return v
}

func (v *voice) init(table *wavetable, sampleRate float64) {
	v.table = table
	v.sampleRate = sampleRate
	v.harmonics = defaultHarmonics
	v.setAttackTime(defaultAttackTime)
	v.setReleaseTime(defaultReleaseTime)
}

// setSampleRate recomputes sample counts. A sounding voice is restarted with
// its note, so its phases and envelope reset. A releasing voice stays released.
func (v *voice) setSampleRate(sampleRate float64) {
	v.sampleRate = sampleRate
	v.setAttackTime(v.attack)
	v.setReleaseTime(v.release)
	if v.active {
		releasing := v.env.inRelease
		v.startNote(v.note, v.velocity)
		if releasing {
			v.stopNote()
		}
	}
}

func (v *voice) startNote(note int, velocity float64) {
	v.note = note
	v.velocity = velocity
	v.active = true
	v.env.noteOn()

	f0 := noteToFreq(note)
	v.partials = v.harmonics
	gainSum := 0.0
	for i := 0; i < v.harmonics; i++ {
		ratio := float64(i + 1)
		v.phases[i] = 0
		v.gains[i] = harmonicGain(ratio, i+1)
		gainSum += math.Abs(v.gains[i])
		increment := twoPi * f0 * ratio / v.sampleRate
		if math.IsNaN(increment) || math.IsInf(increment, 0) {
			increment = 0
		}
		v.increments[i] = increment
	}
	if gainSum > gainCeiling {
		normalize := gainCeiling / gainSum
		for i := 0; i < v.harmonics; i++ {
			v.gains[i] *= normalize
		}
	}
}

func (v *voice) stopNote() {
	if !v.active || v.env.inRelease {
		return
	}
	v.env.noteOff()
}

func (v *voice) setHarmonicCount(n int) {
	if n < 1 {
		n = 1
	}
	if n > MaxHarmonics {
		n = MaxHarmonics
	}
	if n == v.harmonics {
		return
	}
	v.harmonics = n
	if v.active && !v.env.inRelease {
		v.startNote(v.note, v.velocity)
	}
}

func (v *voice) setAttackTime(seconds float64) {
	v.attack = seconds
	v.env.setAttackTime(seconds, v.sampleRate)
}

func (v *voice) setReleaseTime(seconds float64) {
	v.release = seconds
	v.env.setReleaseTime(seconds, v.sampleRate)
}

func (v *voice) isReleasing() bool {
	return v.active && v.env.inRelease
}

func (v *voice) releaseSamplesRemaining() int {
	if !v.env.inRelease {
		return 0
	}
	return v.env.releaseRemaining
}

func (v *voice) currentAmplitude() float64 {
	return v.velocity * v.env.level()
}

func (v *voice) sample() float64 {
	if !v.active {
		return 0
	}
	value := 0.0
	for i := 0; i < v.partials; i++ {
		value += v.table.getAtPhase(v.phases[i]) * v.gains[i]
	}
	return value * v.velocity * v.env.level()
}

func (v *voice) advance() {
	if !v.active {
		return
	}
	for i := 0; i < v.partials; i++ {
		phase := v.phases[i] + v.increments[i]
		if phase >= twoPi {
			phase -= twoPi
			if phase >= twoPi {
				phase = math.Mod(phase, twoPi)
			}
		}
		v.phases[i] = phase
	}
	if v.env.step() {
		v.active = false
	}
}
