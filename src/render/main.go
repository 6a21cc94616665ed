package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
	"github.com/jinjor/overtone-synth/src/audio"
	"golang.org/x/sync/errgroup"
)

const numChannels = 2

type renderSettings struct {
	notes        []int
	velocity     float64
	harmonics    int
	amplitude    float64
	release      float64
	duration     float64 // sec
	releaseAfter float64 // sec
	sampleRate   int
	blockSize    int
}

func main() {
	out := flag.String("out", ".", "output directory")
	notes := flag.String("notes", "60,64,67", "comma separated MIDI notes played together")
	harmonics := flag.String("harmonics", "1,8,32", "comma separated harmonic counts, one file each")
	velocity := flag.Float64("velocity", 0.8, "note velocity (0-1)")
	amplitude := flag.Float64("amplitude", 0.5, "master amplitude (0-1)")
	release := flag.Float64("release", 0.2, "release time in seconds")
	duration := flag.Float64("duration", 2.0, "rendered length in seconds")
	releaseAfter := flag.Float64("release-after", 1.0, "send note-off after this many seconds")
	sampleRate := flag.Int("sample-rate", 48000, "sample rate in Hz")
	blockSize := flag.Int("block", 512, "frames per block")
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	noteList, err := parseInts(*notes)
	if err != nil {
		log.Fatalf("error: invalid -notes: %v\n", err)
	}
	harmonicList, err := parseInts(*harmonics)
	if err != nil {
		log.Fatalf("error: invalid -harmonics: %v\n", err)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("error: %v\n", err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, h := range harmonicList {
		s := renderSettings{
			notes:        noteList,
			velocity:     *velocity,
			harmonics:    h,
			amplitude:    *amplitude,
			release:      *release,
			duration:     *duration,
			releaseAfter: *releaseAfter,
			sampleRate:   *sampleRate,
			blockSize:    *blockSize,
		}
		path := filepath.Join(*out, fmt.Sprintf("harmonics-%02d.wav", h))
		g.Go(func() error {
			samples, err := render(ctx, s)
			if err != nil {
				return err
			}
			log.Printf("rendered %d harmonics\n", s.harmonics)
			if err := writeWAV(path, samples, s.sampleRate); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			log.Printf("saved %s\n", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("Successfully rendered all files.")
}

func parseInts(list string) ([]int, error) {
	var values []int
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	return values, nil
}

// render plays every note at once and returns interleaved stereo samples.
func render(ctx context.Context, s renderSettings) ([]float32, error) {
	if s.blockSize <= 0 {
		return nil, fmt.Errorf("invalid block size %d", s.blockSize)
	}
	engine := audio.NewEngine(float64(s.sampleRate), s.blockSize)
	params := audio.Params{
		Amplitude: s.amplitude,
		Harmonics: s.harmonics,
		Release:   s.release,
	}
	totalFrames := int(float64(s.sampleRate) * s.duration)
	releaseAt := int(float64(s.sampleRate) * s.releaseAfter)

	block := make([][]float64, numChannels)
	for ch := range block {
		block[ch] = make([]float64, s.blockSize)
	}
	events := make([]audio.Event, 0, len(s.notes))
	for _, note := range s.notes {
		events = append(events, audio.NoteOn(note, s.velocity))
	}
	released := false

	samples := make([]float32, 0, totalFrames*numChannels)
	for rendered := 0; rendered < totalFrames; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := s.blockSize
		if rendered+n > totalFrames {
			n = totalFrames - rendered
		}
		if !released && rendered >= releaseAt {
			for _, note := range s.notes {
				events = append(events, audio.NoteOff(note))
			}
			released = true
		}
		for ch := range block {
			block[ch] = block[ch][:n]
		}
		engine.Process(block, events, params)
		events = events[:0]
		for i := 0; i < n; i++ {
			for ch := range block {
				samples = append(samples, float32(block[ch][i]))
			}
		}
		rendered += n
	}
	return samples, nil
}

func writeWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, numChannels, 1)
	buf := &goaudio.Float32Buffer{
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return err
	}
	return encoder.Close()
}
