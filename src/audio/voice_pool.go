package audio

// MaxVoices is the fixed polyphony of the engine.
const MaxVoices = 16

// ----- Voice Pool ----- //

// voicePool owns every voice. A voice is free when it is not active.
type voicePool struct {
	voices [MaxVoices]voice
}

func newVoicePool(table *wavetable, sampleRate float64) *voicePool {
	p := &voicePool{}
	for i := range p.voices {
		p.voices[i].init(table, sampleRate)
	}
	return p
}

// findFreeVoice returns the index of the voice to use for a new note:
// an idle voice, else the releasing voice closest to its end, else the quietest one.
func (p *voicePool) findFreeVoice() int {
	for i := range p.voices {
		if !p.voices[i].active {
			return i
		}
	}

	releasing := -1
	minRemaining := 0
	for i := range p.voices {
		v := &p.voices[i]
		if !v.isReleasing() {
			continue
		}
		remaining := v.releaseSamplesRemaining()
		if releasing < 0 || remaining < minRemaining {
			releasing = i
			minRemaining = remaining
		}
	}
	if releasing >= 0 {
		return releasing
	}

	quietest := 0
	minAmplitude := p.voices[0].currentAmplitude()
	for i := 1; i < len(p.voices); i++ {
		amplitude := p.voices[i].currentAmplitude()
		if amplitude < minAmplitude {
			quietest = i
			minAmplitude = amplitude
		}
	}
	return quietest
}

// findVoiceForNote returns the lowest index of a held voice playing note.
// Voices already releasing the note are only matched when no held one is
// left. It returns -1 when no active voice plays note.
func (p *voicePool) findVoiceForNote(note int) int {
	found := -1
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active || v.note != note {
			continue
		}
		if !v.env.inRelease {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

func (p *voicePool) noteOn(note int, velocity float64) int {
	i := p.findFreeVoice()
	p.voices[i].startNote(note, velocity)
	return i
}

func (p *voicePool) noteOff(note int) {
	if i := p.findVoiceForNote(note); i >= 0 {
		p.voices[i].stopNote()
	}
}

func (p *voicePool) allNotesOff() {
	for i := range p.voices {
		p.voices[i].stopNote()
	}
}

func (p *voicePool) activeCount() int {
	count := 0
	for i := range p.voices {
		if p.voices[i].active {
			count++
		}
	}
	return count
}

func (p *voicePool) setSampleRate(sampleRate float64) {
	for i := range p.voices {
		p.voices[i].setSampleRate(sampleRate)
	}
}

func (p *voicePool) applyParams(harmonics int, attack float64, release float64) {
	for i := range p.voices {
		v := &p.voices[i]
		v.setHarmonicCount(harmonics)
		v.setReleaseTime(release)
		v.setAttackTime(attack)
	}
}
