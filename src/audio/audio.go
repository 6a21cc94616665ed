package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/dither"
	"github.com/hajimehoshi/oto"
)

const (
	bitDepthInBytes  = 2
	defaultBlockSize = 1024
	maxPendingEvents = 1024
	defaultVelocity  = 100
)

// Config ...
type Config struct {
	SampleRate int
	Channels   int // 1 or 2
	BlockSize  int // frames rendered per block
	PresetDir  string
	Preset     string
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		SampleRate: defaultSampleRate,
		Channels:   2,
		BlockSize:  defaultBlockSize,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("unsupported channel count %d (mono or stereo only)", c.Channels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("invalid block size %d", c.BlockSize)
	}
	if c.Preset != "" && c.PresetDir == "" {
		return fmt.Errorf("preset %q given without a preset directory", c.Preset)
	}
	return nil
}

func (c Config) bytesPerFrame() int {
	return bitDepthInBytes * c.Channels
}

func (c Config) bufferSizeInBytes() int {
	return c.BlockSize * c.bytesPerFrame()
}

// ----- State ----- //

// state is shared between the command side and the rendering side.
type state struct {
	sync.Mutex
	params  Params
	pending []Event
}

// ----- Audio ----- //

// Audio hosts an Engine: it queues events and parameter changes from any
// goroutine and renders 16-bit PCM blocks on Read.
type Audio struct {
	ctx        context.Context
	config     Config
	otoContext *oto.Context
	CommandCh  chan []string
	state      *state
	engine     *Engine
	presets    *presetManager
	quantizer  *dither.Quantizer
	rendering  []Event
	out        [][]float64 // length: channels, each with capacity BlockSize
}

var _ io.Reader = (*Audio)(nil)

type audioJSON struct {
	State json.RawMessage `json:"state"`
}

// NewAudio creates an Audio that plays through the default output device.
func NewAudio(config Config) (*Audio, error) {
	a, err := newAudio(config)
	if err != nil {
		return nil, err
	}
	otoContext, err := oto.NewContext(config.SampleRate, config.Channels, bitDepthInBytes, config.bufferSizeInBytes())
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	a.otoContext = otoContext
	go processCommands(a, a.CommandCh)
	return a, nil
}

func newAudio(config Config) (*Audio, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	quantizer, err := dither.NewQuantizer(float64(config.SampleRate),
		dither.WithBitDepth(bitDepthInBytes*8),
		dither.WithDitherType(dither.DitherTriangular),
		dither.WithLimit(true),
	)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, config.Channels)
	for i := range out {
		out[i] = make([]float64, config.BlockSize)
	}
	a := &Audio{
		ctx:       context.Background(),
		config:    config,
		CommandCh: make(chan []string, 256),
		state: &state{
			params:  DefaultParams(),
			pending: make([]Event, 0, maxPendingEvents),
		},
		engine:    NewEngine(float64(config.SampleRate), config.BlockSize),
		quantizer: quantizer,
		rendering: make([]Event, 0, maxPendingEvents),
		out:       out,
	}
	if config.PresetDir != "" {
		a.presets = newPresetManager(config.PresetDir)
	}
	if config.Preset != "" {
		if err := a.presets.applyToParams(config.Preset, &a.state.params); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("failed to apply command %v: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

// ApplyJSON ...
func (a *Audio) ApplyJSON(data []byte) {
	a.state.Lock()
	defer a.state.Unlock()
	var audioJSON audioJSON
	err := json.Unmarshal(data, &audioJSON)
	if err != nil {
		log.Println("failed to apply JSON to Audio", err)
		return
	}
	a.state.params.applyJSON(audioJSON.State)
}

// ToJSON ...
func (a *Audio) ToJSON() []byte {
	a.state.Lock()
	defer a.state.Unlock()
	bytes, err := json.Marshal(&audioJSON{
		State: a.state.params.toJSON(),
	})
	if err != nil {
		panic(err)
	}
	return bytes
}

// Params returns the current parameter snapshot.
func (a *Audio) Params() Params {
	a.state.Lock()
	defer a.state.Unlock()
	return a.state.params
}

func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	a.state.Lock()
	defer a.state.Unlock()

	switch command[0] {
	case "set":
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command[1:])
		}
		return a.state.params.set(command[1], command[2])
	case "preset":
		if len(command) != 2 {
			return fmt.Errorf("preset name is required")
		}
		if a.presets == nil {
			return fmt.Errorf("no preset directory configured")
		}
		return a.presets.applyToParams(command[1], &a.state.params)
	case "note_on":
		if len(command) != 2 && len(command) != 3 {
			return fmt.Errorf("usage: note_on <note> [velocity]")
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		velocity := int64(defaultVelocity)
		if len(command) == 3 {
			velocity, err = strconv.ParseInt(command[2], 10, 32)
			if err != nil {
				return err
			}
		}
		if velocity <= 0 {
			a.addMidiEvent(NoteOff(int(note)))
			return nil
		}
		v := core.Clamp(float64(velocity)/127, 0, 1) * velocityHeadroom
		a.addMidiEvent(NoteOn(int(note), v))
	case "note_off":
		if len(command) != 2 {
			return fmt.Errorf("usage: note_off <note>")
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		a.addMidiEvent(NoteOff(int(note)))
	case "all_notes_off":
		a.addMidiEvent(AllNotesOff())
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

// AddMidiEvent queues a raw MIDI message for the next block.
func (a *Audio) AddMidiEvent(data []byte) {
	event, ok := DecodeMidi(data)
	if !ok {
		return
	}
	a.state.Lock()
	defer a.state.Unlock()
	a.addMidiEvent(event)
}

// addMidiEvent must be called with the state locked.
func (a *Audio) addMidiEvent(event Event) {
	if len(a.state.pending) == cap(a.state.pending) {
		log.Printf("[WARN] %d events pending, queue grows\n", len(a.state.pending))
	}
	a.state.pending = append(a.state.pending, event)
}

// takeBlock hands the pending events over to the renderer along with the
// parameters they are rendered with.
func (a *Audio) takeBlock() (Params, []Event) {
	a.state.Lock()
	defer a.state.Unlock()
	a.rendering, a.state.pending = a.state.pending, a.rendering[:0]
	return a.state.params, a.rendering
}

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
	}
	bytesPerFrame := a.config.bytesPerFrame()
	frames := len(buf) / bytesPerFrame
	for offset := 0; offset < frames; offset += a.config.BlockSize {
		n := frames - offset
		if n > a.config.BlockSize {
			n = a.config.BlockSize
		}
		a.renderBlock(n)
		a.writeBuffer(buf[offset*bytesPerFrame:], n)
	}
	return frames * bytesPerFrame, nil
}

func (a *Audio) renderBlock(frames int) {
	params, events := a.takeBlock()
	for ch := range a.out {
		a.out[ch] = a.out[ch][:frames]
	}
	a.engine.Process(a.out, events, params)
}

// writeBuffer writes little-endian 16-bit frames. Channels carry identical content.
func (a *Audio) writeBuffer(buf []byte, frames int) {
	bytesPerFrame := a.config.bytesPerFrame()
	for i := 0; i < frames; i++ {
		b := int16(a.quantizer.ProcessInteger(a.out[0][i]))
		for ch := 0; ch < a.config.Channels; ch++ {
			buf[bytesPerFrame*i+2*ch] = byte(b)
			buf[bytesPerFrame*i+2*ch+1] = byte(b >> 8)
		}
	}
}

// ActiveVoiceCount ...
func (a *Audio) ActiveVoiceCount() int {
	return a.engine.ActiveVoiceCount()
}

// CompressorFactor ...
func (a *Audio) CompressorFactor() float64 {
	return a.engine.CompressorFactor()
}

// Report formats the telemetry line sent to the control surface.
func (a *Audio) Report() string {
	return fmt.Sprintf("voices %d %.6f", a.ActiveVoiceCount(), a.CompressorFactor())
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	if a.otoContext == nil {
		return nil
	}
	return a.otoContext.Close()
}

// Start plays until ctx is canceled.
func (a *Audio) Start(ctx context.Context) error {
	if a.otoContext == nil {
		return fmt.Errorf("no audio output")
	}
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, a.config.bufferSizeInBytes())); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}
