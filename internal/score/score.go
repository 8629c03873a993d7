// Package score reads YAML composition files and applies them to an engine.
//
// A score looks like:
//
//	sample_rate: 22050
//	amplitude: 8000
//	output: song.wav
//	melody: [C4, E4, G4]
//	chords: [cmajor, gmajor]
//	notes:
//	  - note: A4
//	    start: 0.2
//	  - freq: 587.33
//	    start: 1.0
//	    duration: 0.8
package score

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Mavwarf/waveforge/internal/audio"
	"github.com/Mavwarf/waveforge/internal/notes"
	"gopkg.in/yaml.v3"
)

// NoteSpec places one tone. Exactly one of Note and Freq should be set;
// Note wins when both are. Duration defaults to audio.NoteDuration.
type NoteSpec struct {
	Note     string  `yaml:"note,omitempty"`
	Freq     float64 `yaml:"freq,omitempty"`
	Start    float64 `yaml:"start"`
	Duration float64 `yaml:"duration,omitempty"`
}

// Frequency resolves n to Hz. Unknown note names resolve to 0.
func (n NoteSpec) Frequency() float64 {
	if n.Note != "" {
		return notes.Frequency(n.Note)
	}
	return n.Freq
}

// Score is a parsed composition file.
type Score struct {
	SampleRate int        `yaml:"sample_rate,omitempty"`
	Amplitude  *int       `yaml:"amplitude,omitempty"`
	Output     string     `yaml:"output,omitempty"`
	Melody     []string   `yaml:"melody,omitempty"`
	Harmony    bool       `yaml:"harmony,omitempty"`
	Chords     []string   `yaml:"chords,omitempty"`
	Notes      []NoteSpec `yaml:"notes,omitempty"`
}

// Load reads and parses the score at path.
func Load(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML score. Unknown keys are rejected so that typos do
// not silently drop parts of a composition.
func Parse(data []byte) (*Score, error) {
	var s Score
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks structural problems that hold regardless of strictness.
func (s *Score) Validate() error {
	if s.SampleRate < 0 {
		return fmt.Errorf("sample_rate must not be negative, got %d", s.SampleRate)
	}
	if len(s.Melody) > 0 && s.Harmony {
		return errors.New("melody and harmony both replace the buffer; set only one")
	}
	for _, c := range s.Chords {
		if _, ok := audio.Chords[c]; !ok {
			return fmt.Errorf("%w %q (known: %v)", audio.ErrUnknownChord, c, audio.ChordNames())
		}
	}
	for i, n := range s.Notes {
		if n.Note == "" && n.Freq == 0 {
			return fmt.Errorf("notes[%d]: needs note or freq", i)
		}
		if n.Freq < 0 {
			return fmt.Errorf("notes[%d]: freq must not be negative", i)
		}
		if n.Duration < 0 {
			return fmt.Errorf("notes[%d]: duration must not be negative", i)
		}
	}
	return nil
}

// Unknown returns note names in the score that are not in the note table.
func (s *Score) Unknown() []string {
	out := notes.Unknown(s.Melody)
	for _, n := range s.Notes {
		if n.Note != "" && !notes.Known(n.Note) {
			out = append(out, n.Note)
		}
	}
	return out
}

// Apply renders the score into e: settings first, then melody or
// harmony, then chords appended in order, then individual notes mixed in.
// With strict set, unknown note names are an error instead of a rest.
func (s *Score) Apply(e *audio.Engine, strict bool) error {
	if strict {
		if bad := s.Unknown(); len(bad) > 0 {
			return fmt.Errorf("%w: %v (known: %v)", notes.ErrUnknownNote, bad, notes.Names())
		}
	}

	e.SetSampleRate(s.SampleRate)
	if s.Amplitude != nil {
		e.SetAmplitude(*s.Amplitude)
	}

	if s.Harmony {
		e.BuildPresetHarmony()
	} else {
		e.SynthesizeMelody(s.Melody)
	}

	for _, c := range s.Chords {
		if err := e.AppendChord(c); err != nil {
			return err
		}
	}

	for _, n := range s.Notes {
		d := n.Duration
		if d == 0 {
			d = audio.NoteDuration
		}
		e.AddNoteAt(n.Frequency(), n.Start, d)
	}
	return nil
}
