package audio

import "fmt"

// ----- MIDI Event ----- //

// EventKind identifies what an Event does to the voice pool.
type EventKind int

const (
	// EventNoteOn starts Note with Velocity.
	EventNoteOn EventKind = iota
	// EventNoteOff releases the first voice holding Note.
	EventNoteOff
	// EventAllNotesOff releases every voice.
	EventAllNotesOff
)

// Event is a note event applied at the start of the next block.
type Event struct {
	Kind     EventKind
	Note     int
	Velocity float64 // 0-1
}

// NoteOn ...
func NoteOn(note int, velocity float64) Event {
	return Event{Kind: EventNoteOn, Note: note, Velocity: velocity}
}

// NoteOff ...
func NoteOff(note int) Event {
	return Event{Kind: EventNoteOff, Note: note}
}

// AllNotesOff ...
func AllNotesOff() Event {
	return Event{Kind: EventAllNotesOff}
}

func (e Event) String() string {
	switch e.Kind {
	case EventNoteOn:
		return fmt.Sprintf("note_on %d %.3f", e.Note, e.Velocity)
	case EventNoteOff:
		return fmt.Sprintf("note_off %d", e.Note)
	case EventAllNotesOff:
		return "all_notes_off"
	}
	return fmt.Sprintf("unknown(%d)", int(e.Kind))
}
