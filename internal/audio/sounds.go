package audio

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultSampleRate is the engine's sample rate until SetSampleRate is called.
	DefaultSampleRate = 44100

	// DefaultAmplitude scales the unit cosine of every synthesized tone.
	DefaultAmplitude = 8000

	// NoteDuration is the fixed length in seconds of every melody note,
	// chord and preset step.
	NoteDuration = 0.4

	// Channels and BitsPerSample are fixed by the output format.
	Channels      = 1
	BitsPerSample = 16
)

// Note is a single tone placed on the timeline. A Frequency of 0 is a rest.
type Note struct {
	Frequency float64 // Hz
	Start     float64 // seconds
	Duration  float64 // seconds
}

// Chord describes a named set of frequencies sounded together.
type Chord struct {
	Name        string
	Description string
	Frequencies []float64
}

// Chords is the registry of chords that AppendChord understands.
var Chords = map[string]Chord{
	"cmajor": {
		Name:        "cmajor",
		Description: "C major triad",
		Frequencies: []float64{261.63, 329.63, 392.00}, // C4 E4 G4
	},
	"gmajor": {
		Name:        "gmajor",
		Description: "G major triad",
		Frequencies: []float64{392.00, 493.88, 587.33}, // G4 B4 D5
	},
	"dminor": {
		Name:        "dminor",
		Description: "D minor triad",
		Frequencies: []float64{293.66, 349.23, 440.00}, // D4 F4 A4
	},
}

// ChordNames returns the registered chord names, sorted.
func ChordNames() []string {
	out := make([]string, 0, len(Chords))
	for name := range Chords {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PresetHarmony is the demonstration progression laid down by
// BuildPresetHarmony: triads alternating with single passing notes.
var PresetHarmony = []Note{
	{261.63, 0.0, NoteDuration}, // C4
	{329.63, 0.0, NoteDuration}, // E4
	{392.00, 0.0, NoteDuration}, // G4

	{329.63, 0.4, NoteDuration}, // E4

	{392.00, 0.8, NoteDuration}, // G4
	{493.88, 0.8, NoteDuration}, // B4
	{587.33, 0.8, NoteDuration}, // D5

	{349.23, 1.2, NoteDuration}, // F4

	{293.66, 1.6, NoteDuration}, // D4
	{349.23, 1.6, NoteDuration}, // F4
	{440.00, 1.6, NoteDuration}, // A4

	{329.63, 2.0, NoteDuration}, // E4

	{392.00, 2.4, NoteDuration}, // G4
	{523.25, 2.4, NoteDuration}, // C5
	{659.25, 2.4, NoteDuration}, // E5

	{261.63, 2.8, NoteDuration}, // C4
}

// Saturate16 rounds v to the nearest integer and clamps it to the int16
// range. Every sample the engine produces passes through here.
func Saturate16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// toneSample returns sample i of a cosine tone that starts at i = 0.
func toneSample(amplitude int, freq float64, i, sampleRate int) int16 {
	if freq == 0 {
		return 0
	}
	t := float64(i) / float64(sampleRate)
	return Saturate16(float64(amplitude) * math.Cos(2*math.Pi*freq*t))
}

// samplesFor converts seconds to a sample count at the given rate.
func samplesFor(seconds float64, sampleRate int) int {
	return int(math.Round(seconds * float64(sampleRate)))
}

func chordNotes(name string, start float64) ([]Note, error) {
	c, ok := Chords[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownChord, name, ChordNames())
	}
	out := make([]Note, len(c.Frequencies))
	for i, f := range c.Frequencies {
		out[i] = Note{Frequency: f, Start: start, Duration: NoteDuration}
	}
	return out, nil
}
