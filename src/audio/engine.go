package audio

import (
	"math"
	"sync/atomic"
)

const defaultSampleRate = 48000

const (
	softClipThreshold = 0.7
	softClipRange     = 1.0 - softClipThreshold
)

func softClip(x float64) float64 {
	if x > softClipThreshold {
		return softClipThreshold + softClipRange*math.Tanh((x-softClipThreshold)/softClipRange)
	}
	if x < -softClipThreshold {
		return -softClipThreshold + softClipRange*math.Tanh((x+softClipThreshold)/softClipRange)
	}
	if math.IsNaN(x) {
		return 0
	}
	return x
}

// ----- Engine ----- //

// Engine renders blocks of additive voices. Process must be called from one
// goroutine at a time; the telemetry getters may be called from any goroutine.
type Engine struct {
	table      *wavetable
	pool       *voicePool
	compressor *compressor
	sampleRate float64
	blockSize  int

	activeVoices atomic.Int64
	factorBits   atomic.Uint64
}

// NewEngine creates an engine prepared for the given sample rate and block size.
func NewEngine(sampleRate float64, blockSize int) *Engine {
	table := sharedSineTable()
	e := &Engine{
		table:      table,
		pool:       newVoicePool(table, sampleRate),
		compressor: newCompressor(sampleRate),
	}
	e.Prepare(sampleRate, blockSize)
	return e
}

// Prepare must be called before rendering and whenever the sample rate changes.
func (e *Engine) Prepare(sampleRate float64, blockSize int) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		sampleRate = defaultSampleRate
	}
	e.sampleRate = sampleRate
	e.blockSize = blockSize
	e.pool.setSampleRate(sampleRate)
	e.compressor.prepare(sampleRate)
	e.publish()
}

// SampleRate ...
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// BlockSize ...
func (e *Engine) BlockSize() int {
	return e.blockSize
}

func (e *Engine) applyEvent(event Event) {
	switch event.Kind {
	case EventNoteOn:
		e.pool.noteOn(event.Note, event.Velocity)
	case EventNoteOff:
		e.pool.noteOff(event.Note)
	case EventAllNotesOff:
		e.pool.allNotesOff()
	}
}

// Process renders len(out[0]) frames into every channel of out. Events are
// applied in order before the first frame.
func (e *Engine) Process(out [][]float64, events []Event, params Params) {
	params = params.Clamped()
	e.pool.applyParams(params.Harmonics, defaultAttackTime, params.Release)
	for _, event := range events {
		e.applyEvent(event)
	}
	e.compressor.update(e.pool.activeCount(), params.Harmonics)

	if len(out) == 0 {
		e.publish()
		return
	}
	numSamples := len(out[0])
	for _, channel := range out[1:] {
		if len(channel) < numSamples {
			numSamples = len(channel)
		}
	}
	voices := &e.pool.voices
	for i := 0; i < numSamples; i++ {
		factor := e.compressor.step()
		value := 0.0
		for j := range voices {
			value += voices[j].sample()
		}
		value = softClip(value * factor * params.Amplitude)
		for _, channel := range out {
			channel[i] = value
		}
		for j := range voices {
			voices[j].advance()
		}
	}
	e.publish()
}

func (e *Engine) publish() {
	e.activeVoices.Store(int64(e.pool.activeCount()))
	e.factorBits.Store(math.Float64bits(e.compressor.current()))
}

// ActiveVoiceCount returns the number of sounding voices as of the last block.
func (e *Engine) ActiveVoiceCount() int {
	return int(e.activeVoices.Load())
}

// CompressorFactor returns the smoothed scaling factor as of the last block.
func (e *Engine) CompressorFactor() float64 {
	return math.Float64frombits(e.factorBits.Load())
}
