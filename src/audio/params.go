package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	defaultAmplitude = 0.5
	defaultHarmonics = 8
	minReleaseTime   = 0.001 // sec
	maxReleaseTime   = 0.5   // sec
)

// ----- Params ----- //

// Params is the set of global parameters read once per block.
type Params struct {
	Amplitude float64 // 0-1
	Harmonics int     // 1-MaxHarmonics
	Release   float64 // sec
}

// DefaultParams ...
func DefaultParams() Params {
	return Params{
		Amplitude: defaultAmplitude,
		Harmonics: defaultHarmonics,
		Release:   defaultReleaseTime,
	}
}

func clampFloat(value, min, max, fallback float64) float64 {
	if math.IsNaN(value) {
		return fallback
	}
	return core.Clamp(value, min, max)
}

func clampHarmonics(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxHarmonics {
		return MaxHarmonics
	}
	return n
}

// Clamped returns a copy with every field inside its valid range.
func (p Params) Clamped() Params {
	return Params{
		Amplitude: clampFloat(p.Amplitude, 0, 1, 0),
		Harmonics: clampHarmonics(p.Harmonics),
		Release:   clampFloat(p.Release, minReleaseTime, maxReleaseTime, defaultReleaseTime),
	}
}

type paramsJSON struct {
	Amplitude float64 `json:"amplitude"`
	Harmonics int     `json:"harmonics"`
	Release   float64 `json:"release"`
}

func (p *Params) applyJSON(data json.RawMessage) {
	j := paramsJSON{
		Amplitude: p.Amplitude,
		Harmonics: p.Harmonics,
		Release:   p.Release,
	}
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to params", err)
		return
	}
	p.Amplitude = j.Amplitude
	p.Harmonics = j.Harmonics
	p.Release = j.Release
	*p = p.Clamped()
}

func (p *Params) toJSON() json.RawMessage {
	return toRawMessage(&paramsJSON{
		Amplitude: p.Amplitude,
		Harmonics: p.Harmonics,
		Release:   p.Release,
	})
}

func (p *Params) set(key string, value string) error {
	switch key {
	case "amplitude":
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		p.Amplitude = value
	case "harmonics":
		value, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		p.Harmonics = int(value)
	case "release":
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		p.Release = value
	default:
		return fmt.Errorf("unknown param %q", key)
	}
	*p = p.Clamped()
	return nil
}

func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}
