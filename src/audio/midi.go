package audio

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/rtmididrv"
)

const velocityHeadroom = 0.8

const (
	statusNoteOff       = 0x8
	statusNoteOn        = 0x9
	statusControlChange = 0xB
	ccAllSoundOff       = 120
	ccAllNotesOff       = 123
)

// DecodeMidi converts a raw channel message into an Event. Messages the engine
// does not react to are reported with ok == false.
func DecodeMidi(data []byte) (event Event, ok bool) {
	if len(data) < 3 {
		return Event{}, false
	}
	note := int(data[1] & 0x7f)
	value := data[2] & 0x7f
	switch data[0] >> 4 {
	case statusNoteOff:
		return NoteOff(note), true
	case statusNoteOn:
		if value == 0 {
			return NoteOff(note), true
		}
		return NoteOn(note, float64(value)/127*velocityHeadroom), true
	case statusControlChange:
		if data[1] == ccAllNotesOff || data[1] == ccAllSoundOff {
			return AllNotesOff(), true
		}
	}
	return Event{}, false
}

func openMidiIn(ins []midi.In, name string) (midi.In, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("MIDI IN not found")
	}
	if name == "" {
		return ins[0], nil
	}
	for _, in := range ins {
		if strings.Contains(in.String(), name) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("MIDI IN %q not found in %v", name, ins)
}

// ListenToMidiIn forwards raw messages of the MIDI input whose name contains
// portName (the first one if empty) until ctx is done.
func ListenToMidiIn(ctx context.Context, portName string) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		in, err := openMidiIn(ins, portName)
		if err != nil {
			log.Printf("[WARN] %v\n", err)
			return
		}
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := make([]byte, len(data))
			copy(msg, data)
			select {
			case ch <- msg:
			default:
				log.Println("[WARN] MIDI IN buffer full")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}
