package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mavwarf/waveforge/internal/audio"
	"github.com/Mavwarf/waveforge/internal/config"
	"github.com/Mavwarf/waveforge/internal/notes"
	"github.com/Mavwarf/waveforge/internal/session"
)

// testApp returns an app writing to a temp dir with its own session db.
func testApp(t *testing.T) (*app, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	var buf bytes.Buffer
	a := &app{
		opts: options{
			Output:  filepath.Join(dir, "out.wav"),
			Session: "test",
			Volume:  100,
		},
		cfg:    config.Default(),
		out:    &buf,
		dbPath: filepath.Join(dir, "waveforge.db"),
	}
	return a, &buf, dir
}

func fileSamples(t *testing.T, path string) int {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return int(info.Size()-audio.HeaderSize) / 2
}

// --- parseStart / parseFrequency ---

func TestParseStart(t *testing.T) {
	if got, err := parseStart("end", 1.6); err != nil || got != 1.6 {
		t.Errorf("parseStart(end) = %v, %v; want 1.6", got, err)
	}
	if got, err := parseStart("0.25", 9); err != nil || got != 0.25 {
		t.Errorf("parseStart(0.25) = %v, %v; want 0.25", got, err)
	}
	for _, bad := range []string{"-1", "soon", ""} {
		if _, err := parseStart(bad, 0); err == nil {
			t.Errorf("parseStart(%q) succeeded, want error", bad)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	if got, err := parseFrequency("A4", false); err != nil || got != 440 {
		t.Errorf("parseFrequency(A4) = %v, %v; want 440", got, err)
	}
	if got, err := parseFrequency("523.25", true); err != nil || got != 523.25 {
		t.Errorf("parseFrequency(523.25) = %v, %v", got, err)
	}
	if got, err := parseFrequency("H9", false); err != nil || got != 0 {
		t.Errorf("parseFrequency(H9, lenient) = %v, %v; want 0, nil", got, err)
	}
	if _, err := parseFrequency("H9", true); !errors.Is(err, notes.ErrUnknownNote) {
		t.Errorf("parseFrequency(H9, strict) err = %v, want ErrUnknownNote", err)
	}
	if _, err := parseFrequency("-10", false); err == nil {
		t.Error("expected error for negative frequency")
	}
}

// --- outputFor ---

func TestOutputFor(t *testing.T) {
	scores := filepath.Join("songs", "intro.yaml")
	tests := []struct {
		name        string
		scoreOutput string
		flagOutput  string
		single      bool
		want        string
	}{
		{"score key wins", "intro-final.wav", "cli.wav", true, filepath.Join("songs", "intro-final.wav")},
		{"flag for single file", "", "cli.wav", true, "cli.wav"},
		{"flag ignored for batch", "", "cli.wav", false, filepath.Join("songs", "intro.wav")},
		{"derived from score name", "", "", true, filepath.Join("songs", "intro.wav")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputFor(scores, tt.scoreOutput, tt.flagOutput, tt.single); got != tt.want {
				t.Errorf("outputFor = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- session-backed commands ---

func TestMelodyWritesFile(t *testing.T) {
	a, buf, _ := testApp(t)
	if err := a.melody([]string{"C4", "E4", "G4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}
	if got := fileSamples(t, a.opts.Output); got != 3*17640 {
		t.Errorf("samples = %d, want %d", got, 3*17640)
	}
	if !strings.Contains(buf.String(), "Wrote ") {
		t.Errorf("output = %q, want a Wrote line", buf.String())
	}
}

func TestMelodyStrictRejectsUnknown(t *testing.T) {
	a, _, _ := testApp(t)
	a.opts.Strict = true
	err := a.melody([]string{"C4", "X9"})
	if !errors.Is(err, notes.ErrUnknownNote) {
		t.Fatalf("err = %v, want ErrUnknownNote", err)
	}
	if _, statErr := os.Stat(a.opts.Output); !os.IsNotExist(statErr) {
		t.Error("no file should be written when strict validation fails")
	}
}

func TestChordExtendsSession(t *testing.T) {
	a, _, _ := testApp(t)
	if err := a.melody([]string{"C4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}
	if err := a.chord([]string{"gmajor"}); err != nil {
		t.Fatalf("chord: %v", err)
	}
	if got := fileSamples(t, a.opts.Output); got != 2*17640 {
		t.Errorf("samples = %d, want %d", got, 2*17640)
	}

	if err := a.chord([]string{"nosuch"}); !errors.Is(err, audio.ErrUnknownChord) {
		t.Errorf("unknown chord err = %v, want ErrUnknownChord", err)
	}
}

func TestNoteAtEnd(t *testing.T) {
	a, _, _ := testApp(t)
	if err := a.harmony(nil); err != nil {
		t.Fatalf("harmony: %v", err)
	}
	if err := a.note([]string{"A4", "end", "0.5"}); err != nil {
		t.Fatalf("note: %v", err)
	}
	want := 141120 + 22050
	if got := fileSamples(t, a.opts.Output); got != want {
		t.Errorf("samples = %d, want %d", got, want)
	}
}

func TestMelodyReplacesSession(t *testing.T) {
	a, buf, _ := testApp(t)
	if err := a.harmony(nil); err != nil {
		t.Fatalf("harmony: %v", err)
	}
	if err := a.chord([]string{"cmajor"}); err != nil {
		t.Fatalf("chord: %v", err)
	}
	if err := a.melody([]string{"D4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}

	buf.Reset()
	if err := a.session([]string{"show"}); err != nil {
		t.Fatalf("session show: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "melody D4") {
		t.Errorf("show output missing melody event:\n%s", out)
	}
	if strings.Contains(out, "chord") || strings.Contains(out, "harmony") {
		t.Errorf("show output should only list the melody:\n%s", out)
	}
}

func TestSessionListAndReset(t *testing.T) {
	a, buf, _ := testApp(t)
	if err := a.melody([]string{"C4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}

	buf.Reset()
	if err := a.session([]string{"list"}); err != nil {
		t.Fatalf("session list: %v", err)
	}
	if !strings.Contains(buf.String(), "test") {
		t.Errorf("list output = %q, want session name", buf.String())
	}

	if err := a.session([]string{"reset"}); err != nil {
		t.Fatalf("session reset: %v", err)
	}
	if err := a.session([]string{"show"}); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("show after reset err = %v, want ErrNotFound", err)
	}
	if err := a.session([]string{"bogus"}); err == nil {
		t.Error("expected error for unknown session subcommand")
	}
}

// --- render ---

func writeScore(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderBatch(t *testing.T) {
	a, _, dir := testApp(t)
	a.opts.Output = ""
	one := writeScore(t, dir, "one.yaml", "melody: [C4, D4]\n")
	two := writeScore(t, dir, "two.yaml", "sample_rate: 8000\nchords: [dminor]\n")

	if err := a.render([]string{one, two}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := fileSamples(t, filepath.Join(dir, "one.wav")); got != 2*17640 {
		t.Errorf("one.wav samples = %d, want %d", got, 2*17640)
	}
	h, err := audio.ReadHeader(filepath.Join(dir, "two.wav"))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.SampleRate != 8000 || h.DataSize != 2*3200 {
		t.Errorf("two.wav rate=%d data=%d, want 8000, %d", h.SampleRate, h.DataSize, 2*3200)
	}
}

func TestRenderReportsBadScore(t *testing.T) {
	a, _, dir := testApp(t)
	bad := writeScore(t, dir, "bad.yaml", "melody: [C4]\nharmony: true\n")
	if err := a.render([]string{bad}); err == nil {
		t.Error("expected error for score with both melody and harmony")
	}
}

// --- inspect / view ---

func TestInspect(t *testing.T) {
	a, buf, _ := testApp(t)
	if err := a.melody([]string{"A4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}
	buf.Reset()
	if err := a.inspect([]string{a.opts.Output}); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"SampleRate     44100", "BitsPerSample  16", "DataSize       35280"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("inspect output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestViewFile(t *testing.T) {
	a, buf, _ := testApp(t)
	if err := a.melody([]string{"C4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}
	buf.Reset()
	if err := a.view([]string{a.opts.Output}); err != nil {
		t.Fatalf("view: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != viewHeight+1 {
		t.Errorf("view printed %d lines, want %d", len(lines), viewHeight+1)
	}

	buf.Reset()
	if err := a.view([]string{a.opts.Output, "99999"}); err != nil {
		t.Fatalf("view past end: %v", err)
	}
	if !strings.Contains(buf.String(), "Nothing to show") {
		t.Errorf("view past end = %q", buf.String())
	}
}

func TestParseViewArgs(t *testing.T) {
	dir := t.TempDir()
	numbered := filepath.Join(dir, "2024")
	if err := os.WriteFile(numbered, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		wantFile   string
		wantOffset int
	}{
		{"nothing", nil, "", 0},
		{"offset only", []string{"300"}, "", 300},
		{"file only", []string{"song.wav"}, "song.wav", 0},
		{"numeric file name", []string{numbered}, numbered, 0},
		{"numeric file with offset", []string{numbered, "12"}, numbered, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, offset, err := parseViewArgs(tt.args)
			if err != nil {
				t.Fatalf("parseViewArgs: %v", err)
			}
			if file != tt.wantFile || offset != tt.wantOffset {
				t.Errorf("got (%q, %d), want (%q, %d)", file, offset, tt.wantFile, tt.wantOffset)
			}
		})
	}

	for _, bad := range [][]string{{"a.wav", "-1"}, {"a.wav", "x"}, {"a", "1", "2"}} {
		if _, _, err := parseViewArgs(bad); err == nil {
			t.Errorf("parseViewArgs(%q) succeeded, want error", bad)
		}
	}
}

func TestViewNumericFileName(t *testing.T) {
	a, buf, dir := testApp(t)
	if err := a.melody([]string{"C4"}); err != nil {
		t.Fatalf("melody: %v", err)
	}
	numbered := filepath.Join(dir, "2024")
	if err := os.Rename(a.opts.Output, numbered); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := a.view([]string{numbered}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(buf.String(), "samples 0-") {
		t.Errorf("view output = %q, want a window starting at sample 0", buf.String())
	}
}

// --- init / notes ---

func TestInitConfigRefusesOverwrite(t *testing.T) {
	a, buf, dir := testApp(t)
	a.opts.ConfigPath = filepath.Join(dir, "waveforge-config.json")
	if err := a.initConfig(nil); err != nil {
		t.Fatalf("initConfig: %v", err)
	}
	if !strings.Contains(buf.String(), a.opts.ConfigPath) {
		t.Errorf("output = %q", buf.String())
	}
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if cfg.SampleRate != audio.DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, audio.DefaultSampleRate)
	}
	if err := a.initConfig(nil); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestPrintNotes(t *testing.T) {
	var buf bytes.Buffer
	printNotes(&buf)
	out := buf.String()
	for _, want := range []string{"C4", "440.00", "cmajor", "gmajor", "dminor"} {
		if !strings.Contains(out, want) {
			t.Errorf("printNotes output missing %q", want)
		}
	}
}
