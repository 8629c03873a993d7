package session

import (
	"testing"

	"github.com/Mavwarf/waveforge/internal/audio"
)

func TestReplayMatchesDirectEngineCalls(t *testing.T) {
	sess := Session{
		Name:       "demo",
		SampleRate: 8000,
		Amplitude:  6000,
		Events: []Event{
			{Kind: KindMelody, Notes: []string{"C4", "D4"}},
			{Kind: KindChord, Chord: "gmajor"},
			{Kind: KindNote, Note: audio.Note{Frequency: 440, Start: 0.2, Duration: 0.1}},
		},
	}

	want := audio.NewEngine()
	want.SetSampleRate(8000)
	want.SetAmplitude(6000)
	want.SynthesizeMelody([]string{"C4", "D4"})
	want.AppendChord("gmajor")
	want.AddNoteAt(440, 0.2, 0.1)

	got := audio.NewEngine()
	got.SynthesizeMelody([]string{"E4"})
	if err := sess.Replay(got); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if got.SampleRate() != 8000 || got.Amplitude() != 6000 {
		t.Errorf("settings = %d/%d", got.SampleRate(), got.Amplitude())
	}
	if got.Len() != want.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), want.Len())
	}
	for i := 0; i < want.Len(); i++ {
		if got.SampleAt(i) != want.SampleAt(i) {
			t.Fatalf("sample %d = %d, want %d", i, got.SampleAt(i), want.SampleAt(i))
		}
	}
}

func TestReplayEmptySessionClearsBuffer(t *testing.T) {
	e := audio.NewEngine()
	e.SynthesizeMelody([]string{"C4"})
	if err := (Session{SampleRate: 44100, Amplitude: 8000}).Replay(e); err != nil {
		t.Fatal(err)
	}
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
}

func TestReplayUnknownKind(t *testing.T) {
	sess := Session{SampleRate: 44100, Amplitude: 8000, Events: []Event{{ID: 7, Kind: "warp"}}}
	if err := sess.Replay(audio.NewEngine()); err == nil {
		t.Error("expected error for unknown kind")
	}
}
