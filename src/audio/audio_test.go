package audio

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/dither"
)

func newTestAudio(t testing.TB) *Audio {
	t.Helper()
	config := DefaultConfig()
	config.SampleRate = testSampleRate
	config.BlockSize = 256
	a, err := newAudio(config)
	if err != nil {
		t.Fatalf("failed to create audio: %v", err)
	}
	return a
}

func midiVelocity(v int) float64 {
	return float64(v) / 127 * velocityHeadroom
}

func TestConfigValidate(t *testing.T) {
	expectNoError(t, DefaultConfig().validate())

	c := DefaultConfig()
	c.Channels = 3
	expectError(t, c.validate())

	c = DefaultConfig()
	c.BlockSize = 0
	expectError(t, c.validate())

	c = DefaultConfig()
	c.SampleRate = -1
	expectError(t, c.validate())

	c = DefaultConfig()
	c.Preset = "bright"
	expectError(t, c.validate())

	c = DefaultConfig()
	c.Channels = 1
	expectEqual(t, c.bytesPerFrame(), 2)
	expectEqual(t, c.bufferSizeInBytes(), 2*c.BlockSize)
}

func TestUpdateParams(t *testing.T) {
	a := newTestAudio(t)
	expectEqual(t, a.Params(), DefaultParams())

	expectNoError(t, a.update([]string{"set", "amplitude", "0.3"}))
	expectEqual(t, a.Params().Amplitude, 0.3)
	expectNoError(t, a.update([]string{"set", "amplitude", "2"}))
	expectEqual(t, a.Params().Amplitude, 1.0)
	expectNoError(t, a.update([]string{"set", "harmonics", "40"}))
	expectEqual(t, a.Params().Harmonics, MaxHarmonics)
	expectNoError(t, a.update([]string{"set", "release", "0.1"}))
	expectEqual(t, a.Params().Release, 0.1)

	expectError(t, a.update([]string{"set", "cutoff", "1"}))
	expectError(t, a.update([]string{"set", "amplitude"}))
	expectError(t, a.update([]string{"set", "harmonics", "many"}))
	expectError(t, a.update([]string{"preset", "bright"}))
	expectError(t, a.update([]string{"unknown"}))
	expectError(t, a.update(nil))
}

func TestUpdateNotes(t *testing.T) {
	a := newTestAudio(t)
	expectNoError(t, a.update([]string{"note_on", "60"}))
	expectNoError(t, a.update([]string{"note_on", "64", "127"}))
	expectNoError(t, a.update([]string{"note_on", "67", "0"}))
	expectNoError(t, a.update([]string{"note_off", "60"}))
	expectNoError(t, a.update([]string{"all_notes_off"}))
	expectError(t, a.update([]string{"note_on"}))
	expectError(t, a.update([]string{"note_on", "C4"}))
	expectError(t, a.update([]string{"note_off"}))

	_, events := a.takeBlock()
	expectEqual(t, len(events), 5)
	expectEqual(t, events[0], NoteOn(60, midiVelocity(defaultVelocity)))
	expectEqual(t, events[1], NoteOn(64, velocityHeadroom))
	expectEqual(t, events[2], NoteOff(67))
	expectEqual(t, events[3], NoteOff(60))
	expectEqual(t, events[4], AllNotesOff())

	_, events = a.takeBlock()
	expectEqual(t, len(events), 0)
}

func TestDecodeMidi(t *testing.T) {
	event, ok := DecodeMidi([]byte{0x90, 60, 100})
	expectTrue(t, ok, "note on should be decoded")
	expectEqual(t, event, NoteOn(60, midiVelocity(100)))

	event, ok = DecodeMidi([]byte{0x93, 60, 0})
	expectTrue(t, ok, "note on with zero velocity should be decoded")
	expectEqual(t, event, NoteOff(60))

	event, ok = DecodeMidi([]byte{0x80, 61, 64})
	expectTrue(t, ok, "note off should be decoded")
	expectEqual(t, event, NoteOff(61))

	event, ok = DecodeMidi([]byte{0xB0, ccAllNotesOff, 0})
	expectTrue(t, ok, "all notes off should be decoded")
	expectEqual(t, event, AllNotesOff())

	_, ok = DecodeMidi([]byte{0xB0, 7, 100})
	expectTrue(t, !ok, "volume change should be ignored")
	_, ok = DecodeMidi([]byte{0xC0, 1, 0})
	expectTrue(t, !ok, "program change should be ignored")
	_, ok = DecodeMidi([]byte{0x90, 60})
	expectTrue(t, !ok, "short message should be ignored")
}

func TestAddMidiEvent(t *testing.T) {
	a := newTestAudio(t)
	a.AddMidiEvent([]byte{0x90, 60, 127})
	a.AddMidiEvent([]byte{0xF8})
	_, events := a.takeBlock()
	expectEqual(t, len(events), 1)
	expectEqual(t, events[0], NoteOn(60, velocityHeadroom))
}

func TestApplyJSON(t *testing.T) {
	a := newTestAudio(t)
	a.ApplyJSON([]byte(`{"state":{"amplitude":2,"harmonics":0}}`))
	p := a.Params()
	expectEqual(t, p.Amplitude, 1.0)
	expectEqual(t, p.Harmonics, 1)
	expectEqual(t, p.Release, defaultReleaseTime)

	a.ApplyJSON([]byte(`not json`))
	expectEqual(t, a.Params(), p)

	b := newTestAudio(t)
	b.ApplyJSON(a.ToJSON())
	expectEqual(t, b.Params(), p)
}

func TestReadRendersIdenticalChannels(t *testing.T) {
	a := newTestAudio(t)
	expectNoError(t, a.update([]string{"note_on", "60", "127"}))
	buf := make([]byte, 1000*a.config.bytesPerFrame()+1)
	n, err := a.Read(buf)
	expectNoError(t, err)
	expectEqual(t, n, 1000*a.config.bytesPerFrame())

	nonZero := false
	for i := 0; i < n; i += 4 {
		if buf[i] != buf[i+2] || buf[i+1] != buf[i+3] {
			t.Fatalf("frame %d: channels differ", i/4)
		}
		sample := int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
		if sample > 100 || sample < -100 {
			nonZero = true
		}
	}
	expectTrue(t, nonZero, "expected sound")
	expectEqual(t, a.ActiveVoiceCount(), 1)
	expectTrue(t, strings.HasPrefix(a.Report(), "voices 1 "), "unexpected report %q", a.Report())
}

func TestWriteBufferCodes(t *testing.T) {
	a := newTestAudio(t)
	quantizer, err := dither.NewQuantizer(testSampleRate,
		dither.WithDitherType(dither.DitherNone),
		dither.WithFIRPreset(dither.PresetNone),
	)
	expectNoError(t, err)
	a.quantizer = quantizer

	const step = 1 / 32767.5
	inputs := []float64{0, -0.5 * step, 0.25 * step, -1.5 * step, 100.25 * step, 1, -1, 2, -2}
	expected := []int16{0, -1, 0, -2, 100, 32767, -32768, 32767, -32768}
	a.out[0] = a.out[0][:len(inputs)]
	copy(a.out[0], inputs)
	buf := make([]byte, len(inputs)*a.config.bytesPerFrame())
	a.writeBuffer(buf, len(inputs))
	for i, e := range expected {
		for ch := 0; ch < a.config.Channels; ch++ {
			offset := i*a.config.bytesPerFrame() + 2*ch
			code := int16(uint16(buf[offset]) | uint16(buf[offset+1])<<8)
			if code != e {
				t.Errorf("input %v channel %d: expected %d, but got: %d", inputs[i], ch, e, code)
			}
		}
	}
}

func TestReadAfterCancel(t *testing.T) {
	a := newTestAudio(t)
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	cancel()
	n, err := a.Read(make([]byte, 64))
	expectEqual(t, n, 0)
	expectEqual(t, err, io.EOF)
}

func TestStartWithoutDevice(t *testing.T) {
	a := newTestAudio(t)
	expectError(t, a.Start(context.Background()))
	expectNoError(t, a.Close())
}

func BenchmarkRead(b *testing.B) {
	a := newTestAudio(b)
	for note := 48; note < 48+MaxVoices; note++ {
		a.AddMidiEvent([]byte{0x90, byte(note), 100})
	}
	buf := make([]byte, a.config.bufferSizeInBytes())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Read(buf); err != nil {
			b.Fatal(err)
		}
	}
}
