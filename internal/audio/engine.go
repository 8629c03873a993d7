package audio

import (
	"errors"

	"github.com/Mavwarf/waveforge/internal/notes"
)

// ErrUnknownChord is returned by AppendChord for names not in Chords.
var ErrUnknownChord = errors.New("unknown chord")

// Engine owns a mono 16-bit sample buffer and the settings used to fill it.
// It is not safe for concurrent use; callers that share one must serialize
// access themselves.
type Engine struct {
	sampleRate int
	amplitude  int
	samples    []int16
}

// NewEngine returns an empty engine at DefaultSampleRate and DefaultAmplitude.
func NewEngine() *Engine {
	return &Engine{
		sampleRate: DefaultSampleRate,
		amplitude:  DefaultAmplitude,
	}
}

// SynthesizeMelody replaces the buffer with one NoteDuration tone per name,
// played back to back. Unknown names become rests.
func (e *Engine) SynthesizeMelody(names []string) {
	per := samplesFor(NoteDuration, e.sampleRate)
	e.samples = make([]int16, 0, per*len(names))
	for _, name := range names {
		freq := notes.Frequency(name)
		for i := 0; i < per; i++ {
			e.samples = append(e.samples, toneSample(e.amplitude, freq, i, e.sampleRate))
		}
	}
}

// AddNoteAt mixes a tone into the buffer starting at start seconds,
// growing the buffer with silence if it is too short. Each mixed sample
// is saturated to the int16 range. Any part of the tone that would fall
// before time 0 is dropped.
func (e *Engine) AddNoteAt(freq, start, duration float64) {
	first := samplesFor(start, e.sampleRate)
	count := samplesFor(duration, e.sampleRate)
	if count <= 0 {
		return
	}
	end := first + count
	if end <= 0 {
		return
	}
	if end > len(e.samples) {
		e.samples = append(e.samples, make([]int16, end-len(e.samples))...)
	}
	for i := 0; i < count; i++ {
		idx := first + i
		if idx < 0 {
			continue
		}
		mixed := int32(e.samples[idx]) + int32(toneSample(e.amplitude, freq, i, e.sampleRate))
		e.samples[idx] = Saturate16(float64(mixed))
	}
}

// AddNote is AddNoteAt for a Note value.
func (e *Engine) AddNote(n Note) {
	e.AddNoteAt(n.Frequency, n.Start, n.Duration)
}

// BuildPresetHarmony replaces the buffer with PresetHarmony.
func (e *Engine) BuildPresetHarmony() {
	e.samples = nil
	for _, n := range PresetHarmony {
		e.AddNote(n)
	}
}

// AppendChord mixes the named chord in at the current end of the buffer.
// All chord notes share one start time and sound together.
func (e *Engine) AppendChord(name string) error {
	ns, err := chordNotes(name, e.Duration())
	if err != nil {
		return err
	}
	for _, n := range ns {
		e.AddNote(n)
	}
	return nil
}

// Reset empties the buffer, keeping the sample rate and amplitude.
func (e *Engine) Reset() {
	e.samples = nil
}

// Load replaces the buffer with a copy of samples recorded at sampleRate.
// A non-positive sampleRate leaves the current rate in place.
func (e *Engine) Load(samples []int16, sampleRate int) {
	e.samples = append([]int16(nil), samples...)
	e.SetSampleRate(sampleRate)
}

// Len returns the number of samples in the buffer.
func (e *Engine) Len() int {
	return len(e.samples)
}

// SampleBytes returns the size of the buffer in bytes.
func (e *Engine) SampleBytes() int {
	return len(e.samples) * BitsPerSample / 8
}

// SampleAt returns the sample at index, or 0 if index is out of range.
func (e *Engine) SampleAt(index int) int16 {
	if index < 0 || index >= len(e.samples) {
		return 0
	}
	return e.samples[index]
}

// Samples returns a copy of the buffer.
func (e *Engine) Samples() []int16 {
	return append([]int16(nil), e.samples...)
}

// Duration returns the buffer length in seconds.
func (e *Engine) Duration() float64 {
	return float64(len(e.samples)) / float64(e.sampleRate)
}

// SetSampleRate changes the rate used by later synthesis. Values <= 0
// are ignored.
func (e *Engine) SetSampleRate(rate int) {
	if rate > 0 {
		e.sampleRate = rate
	}
}

// SampleRate returns the current sample rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// SetAmplitude sets the tone scale factor. Results that exceed the int16
// range are saturated at synthesis time.
func (e *Engine) SetAmplitude(amplitude int) {
	e.amplitude = amplitude
}

// Amplitude returns the current tone scale factor.
func (e *Engine) Amplitude() int { return e.amplitude }
