package audio

import "math"

const compressorTimeConstant = 0.02 // sec

// ----- Compressor ----- //

// compressor scales the mix down as voices and harmonics pile up.
type compressor struct {
	factor transitiveValue
}

func newCompressor(sampleRate float64) *compressor {
	c := &compressor{}
	c.prepare(sampleRate)
	return c
}

func (c *compressor) prepare(sampleRate float64) {
	c.factor.init(1)
	c.factor.setTimeConstant(compressorTimeConstant, sampleRate)
}

func compressorTarget(activeVoices int, harmonics int) float64 {
	if activeVoices <= 0 {
		return 1
	}
	base := 1 / math.Sqrt(float64(activeVoices))
	if harmonics > 1 {
		return base * (0.7 + 0.3/math.Log10(float64(harmonics+1)))
	}
	return base
}

func (c *compressor) update(activeVoices int, harmonics int) {
	c.factor.setTarget(compressorTarget(activeVoices, harmonics))
}

func (c *compressor) step() float64 {
	return c.factor.step()
}

func (c *compressor) current() float64 {
	return c.factor.value
}

func (c *compressor) target() float64 {
	return c.factor.targetValue
}

func (c *compressor) coefficient() float64 {
	return c.factor.coefficient
}
