package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mavwarf/waveforge/internal/audio"
)

// ErrNotFound is returned when a session name has no stored state.
var ErrNotFound = errors.New("session not found")

// Kind identifies what an Event does to the buffer on replay.
type Kind string

const (
	KindMelody  Kind = "melody"  // replaces the buffer
	KindHarmony Kind = "harmony" // replaces the buffer with the preset
	KindChord   Kind = "chord"   // mixes a named chord in at the end
	KindNote    Kind = "note"    // mixes a tone in at an explicit time
)

// Event is one recorded engine operation.
type Event struct {
	ID      int64
	Kind    Kind
	Notes   []string   // KindMelody
	Chord   string     // KindChord
	Note    audio.Note // KindNote
	Created time.Time
}

// Session is a named composition: engine settings plus the events that
// rebuild its buffer.
type Session struct {
	Name       string
	SampleRate int
	Amplitude  int
	Created    time.Time
	Updated    time.Time
	Events     []Event
}

// Summary is a session listing entry.
type Summary struct {
	Name       string
	SampleRate int
	Events     int
	Updated    time.Time
}

// Store persists sessions.
type Store interface {
	// Ensure creates the session with the given settings if it does not
	// exist yet. Existing sessions keep their settings.
	Ensure(name string, sampleRate, amplitude int) error
	Append(name string, ev Event) error
	Get(name string) (Session, error)
	List() ([]Summary, error)
	Reset(name string) error
	Close() error
}

// Replay configures e from the session and rebuilds its buffer by
// applying every event in order.
func (s Session) Replay(e *audio.Engine) error {
	e.SetSampleRate(s.SampleRate)
	e.SetAmplitude(s.Amplitude)
	e.Reset()
	for _, ev := range s.Events {
		if err := apply(e, ev); err != nil {
			return fmt.Errorf("session %s: event %d: %w", s.Name, ev.ID, err)
		}
	}
	return nil
}

func apply(e *audio.Engine, ev Event) error {
	switch ev.Kind {
	case KindMelody:
		e.SynthesizeMelody(ev.Notes)
	case KindHarmony:
		e.BuildPresetHarmony()
	case KindChord:
		return e.AppendChord(ev.Chord)
	case KindNote:
		e.AddNote(ev.Note)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

// Validate checks an event before it is stored.
func (ev Event) Validate() error {
	switch ev.Kind {
	case KindMelody, KindHarmony:
		return nil
	case KindChord:
		if _, ok := audio.Chords[ev.Chord]; !ok {
			return fmt.Errorf("%w %q", audio.ErrUnknownChord, ev.Chord)
		}
		return nil
	case KindNote:
		if ev.Note.Duration <= 0 {
			return fmt.Errorf("note duration must be positive, got %v", ev.Note.Duration)
		}
		if ev.Note.Frequency < 0 {
			return fmt.Errorf("note frequency must not be negative, got %v", ev.Note.Frequency)
		}
		return nil
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}
