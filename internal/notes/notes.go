package notes

import (
	"errors"
	"fmt"
)

// ErrUnknownNote is returned by Lookup for names outside the note table.
var ErrUnknownNote = errors.New("unknown note")

// names lists the supported notes in pitch order.
var names = []string{"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5"}

var table = map[string]float64{
	"C4": 261.63,
	"D4": 293.66,
	"E4": 329.63,
	"F4": 349.23,
	"G4": 392.00,
	"A4": 440.00,
	"B4": 493.88,
	"C5": 523.25,
}

// Frequency returns the frequency in Hz for a note name such as "A4".
// Unrecognized names map to 0, which synthesizes as silence.
func Frequency(name string) float64 {
	return table[name]
}

// Known reports whether name is in the note table.
func Known(name string) bool {
	_, ok := table[name]
	return ok
}

// Lookup is the strict form of Frequency.
func Lookup(name string) (float64, error) {
	f, ok := table[name]
	if !ok {
		return 0, fmt.Errorf("%w %q (known: %v)", ErrUnknownNote, name, names)
	}
	return f, nil
}

// Names returns the supported note names in ascending pitch.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Unknown returns the entries of names that are not in the note table,
// in input order.
func Unknown(names []string) []string {
	var out []string
	for _, n := range names {
		if !Known(n) {
			out = append(out, n)
		}
	}
	return out
}
