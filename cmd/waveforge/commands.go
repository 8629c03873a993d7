package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Mavwarf/waveforge/internal/audio"
	"github.com/Mavwarf/waveforge/internal/config"
	"github.com/Mavwarf/waveforge/internal/mqtt"
	"github.com/Mavwarf/waveforge/internal/notes"
	"github.com/Mavwarf/waveforge/internal/paths"
	"github.com/Mavwarf/waveforge/internal/score"
	"github.com/Mavwarf/waveforge/internal/session"
	"github.com/Mavwarf/waveforge/internal/waveview"
)

// viewHeight is the number of text rows in a waveform view.
const viewHeight = 15

// app carries resolved settings into each command.
type app struct {
	opts    options
	cfg     config.Config
	out     io.Writer
	dbPath  string
	flagOut string // --output as given, empty if unset

	mu sync.Mutex // guards out during parallel render
}

func newApp(opts options, out io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	flagOut := opts.Output
	if opts.Output == "" {
		opts.Output = cfg.Output
	}
	if opts.Session == "" {
		opts.Session = cfg.Session
	}
	opts.Volume = resolveVolume(opts.Volume, cfg)
	opts.Strict = opts.Strict || cfg.Strict
	return &app{opts: opts, cfg: cfg, out: out, dbPath: paths.DBPath(), flagOut: flagOut}, nil
}

// resolveVolume picks the CLI volume if given, otherwise the config's.
func resolveVolume(cli int, cfg config.Config) int {
	if cli >= 0 {
		return cli
	}
	return cfg.Volume
}

// newEngine returns an engine configured from the config file.
func (a *app) newEngine() *audio.Engine {
	e := audio.NewEngine()
	e.SetSampleRate(a.cfg.SampleRate)
	e.SetAmplitude(a.cfg.Amplitude)
	return e
}

// checkNotes enforces --strict and warns about unknown names otherwise.
func (a *app) checkNotes(names []string) error {
	bad := notes.Unknown(names)
	if len(bad) == 0 {
		return nil
	}
	if a.opts.Strict {
		return fmt.Errorf("%w: %s (known: %s)", notes.ErrUnknownNote,
			strings.Join(bad, ", "), strings.Join(notes.Names(), " "))
	}
	fmt.Fprintf(os.Stderr, "warning: unknown notes rendered as rests: %s\n", strings.Join(bad, ", "))
	return nil
}

func (a *app) openStore() (*session.SQLiteStore, error) {
	s, err := session.Open(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return s, nil
}

// replace resets the session and records ev as its only event.
func (a *app) replace(ev session.Event) (*audio.Engine, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	name := a.opts.Session
	if err := store.Reset(name); err != nil {
		return nil, err
	}
	return a.appendEvent(store, name, ev)
}

// extend appends ev to the session, creating it from the config if needed.
func (a *app) extend(ev session.Event) (*audio.Engine, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return a.appendEvent(store, a.opts.Session, ev)
}

func (a *app) appendEvent(store session.Store, name string, ev session.Event) (*audio.Engine, error) {
	if err := store.Ensure(name, a.cfg.SampleRate, a.cfg.Amplitude); err != nil {
		return nil, err
	}
	if err := store.Append(name, ev); err != nil {
		return nil, err
	}
	return a.loadSession(store, name)
}

func (a *app) loadSession(store session.Store, name string) (*audio.Engine, error) {
	sess, err := store.Get(name)
	if err != nil {
		return nil, err
	}
	e := audio.NewEngine()
	if err := sess.Replay(e); err != nil {
		return nil, err
	}
	return e, nil
}

// export writes e to path, announces it, and plays it if requested.
func (a *app) export(e *audio.Engine, path, source string) error {
	if err := e.WriteWAV(path); err != nil {
		return err
	}
	a.mu.Lock()
	fmt.Fprintf(a.out, "Wrote %s (%d samples, %.2fs at %d Hz)\n", path, e.Len(), e.Duration(), e.SampleRate())
	a.mu.Unlock()

	r := mqtt.Rendered{
		Path:       path,
		Source:     source,
		SampleRate: e.SampleRate(),
		Samples:    e.Len(),
		Duration:   e.Duration(),
		Bytes:      audio.HeaderSize + e.SampleBytes(),
	}
	if err := mqtt.Announce(a.cfg.MQTT, r); err != nil {
		fmt.Fprintf(os.Stderr, "mqtt: %v\n", err)
	}

	if a.opts.Play {
		return e.Play(float64(a.opts.Volume) / 100)
	}
	return nil
}

func (a *app) melody(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: waveforge melody <note...> (notes: %s)", strings.Join(notes.Names(), " "))
	}
	if err := a.checkNotes(args); err != nil {
		return err
	}
	e, err := a.replace(session.Event{Kind: session.KindMelody, Notes: args})
	if err != nil {
		return err
	}
	return a.export(e, a.opts.Output, "melody")
}

func (a *app) harmony(args []string) error {
	if len(args) != 0 {
		return errors.New("usage: waveforge harmony")
	}
	e, err := a.replace(session.Event{Kind: session.KindHarmony})
	if err != nil {
		return err
	}
	return a.export(e, a.opts.Output, "harmony")
}

func (a *app) chord(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: waveforge chord <name> (chords: %s)", strings.Join(audio.ChordNames(), " "))
	}
	e, err := a.extend(session.Event{Kind: session.KindChord, Chord: args[0]})
	if err != nil {
		return err
	}
	return a.export(e, a.opts.Output, "chord "+args[0])
}

func (a *app) note(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: waveforge note <name|hz> <start|end> [duration]")
	}
	freq, err := parseFrequency(args[0], a.opts.Strict)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	name := a.opts.Session
	if err := store.Ensure(name, a.cfg.SampleRate, a.cfg.Amplitude); err != nil {
		return err
	}
	current, err := a.loadSession(store, name)
	if err != nil {
		return err
	}

	start, err := parseStart(args[1], current.Duration())
	if err != nil {
		return err
	}
	dur := audio.NoteDuration
	if len(args) == 3 {
		dur, err = strconv.ParseFloat(args[2], 64)
		if err != nil || dur <= 0 {
			return fmt.Errorf("invalid duration %q (seconds, > 0)", args[2])
		}
	}

	ev := session.Event{Kind: session.KindNote, Note: audio.Note{Frequency: freq, Start: start, Duration: dur}}
	e, err := a.appendEvent(store, name, ev)
	if err != nil {
		return err
	}
	return a.export(e, a.opts.Output, "note "+args[0])
}

// parseFrequency accepts a note name or a frequency in Hz.
func parseFrequency(s string, strict bool) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("frequency must not be negative, got %v", f)
		}
		return f, nil
	}
	if strict {
		return notes.Lookup(s)
	}
	if !notes.Known(s) {
		fmt.Fprintf(os.Stderr, "warning: unknown note %q rendered as a rest\n", s)
	}
	return notes.Frequency(s), nil
}

// parseStart accepts seconds or "end" for the current session length.
func parseStart(s string, end float64) (float64, error) {
	if s == "end" {
		return end, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid start %q (seconds >= 0, or \"end\")", s)
	}
	return f, nil
}

func (a *app) session(args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	name := a.opts.Session
	if len(args) > 1 {
		name = args[1]
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	switch sub {
	case "list":
		list, err := store.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(a.out, "No sessions")
		}
		for _, s := range list {
			fmt.Fprintf(a.out, "%-20s %6d Hz  %3d events  updated %s\n",
				s.Name, s.SampleRate, s.Events, s.Updated.Format("2006-01-02 15:04"))
		}
		return nil
	case "show":
		sess, err := store.Get(name)
		if err != nil {
			return err
		}
		e := audio.NewEngine()
		if err := sess.Replay(e); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: %d Hz, amplitude %d, %.2fs\n", sess.Name, sess.SampleRate, sess.Amplitude, e.Duration())
		for i, ev := range sess.Events {
			fmt.Fprintf(a.out, "  %2d. %s\n", i+1, describe(ev))
		}
		return nil
	case "reset":
		if err := store.Reset(name); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Session %s cleared\n", name)
		return nil
	default:
		return fmt.Errorf("unknown session command %q (list, show, reset)", sub)
	}
}

// describe returns a one-line summary of a session event.
func describe(ev session.Event) string {
	switch ev.Kind {
	case session.KindMelody:
		return "melody " + strings.Join(ev.Notes, " ")
	case session.KindHarmony:
		return "harmony (preset)"
	case session.KindChord:
		return "chord " + ev.Chord
	case session.KindNote:
		return fmt.Sprintf("note %.2f Hz at %.2fs for %.2fs", ev.Note.Frequency, ev.Note.Start, ev.Note.Duration)
	}
	return string(ev.Kind)
}

func (a *app) render(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: waveforge render <score.yaml...>")
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, path := range args {
		path := path
		g.Go(func() error {
			return a.renderScore(path, len(args) == 1)
		})
	}
	return g.Wait()
}

// renderScore renders one score file. single reports whether it is the
// only file, in which case --output applies to it.
func (a *app) renderScore(path string, single bool) error {
	s, err := score.Load(path)
	if err != nil {
		return err
	}
	return a.renderLoaded(path, s, single)
}

func (a *app) renderLoaded(path string, s *score.Score, single bool) error {
	if bad := s.Unknown(); len(bad) > 0 && !a.opts.Strict {
		fmt.Fprintf(os.Stderr, "warning: %s: unknown notes rendered as rests: %s\n", path, strings.Join(bad, ", "))
	}
	e := a.newEngine()
	if err := s.Apply(e, a.opts.Strict); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return a.export(e, outputFor(path, s.Output, a.flagOut, single), path)
}

// outputFor picks a score's WAV path: the score's own output key, then
// --output when rendering a single file, then the score path with a .wav
// extension. A relative output key is resolved against the score's dir.
func outputFor(scorePath, scoreOutput, flagOutput string, single bool) string {
	if scoreOutput != "" {
		if filepath.IsAbs(scoreOutput) {
			return scoreOutput
		}
		return filepath.Join(filepath.Dir(scorePath), scoreOutput)
	}
	if single && flagOutput != "" {
		return flagOutput
	}
	return strings.TrimSuffix(scorePath, filepath.Ext(scorePath)) + ".wav"
}

func (a *app) watch(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: waveforge watch <score.yaml>")
	}
	path := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(a.out, "Watching %s (Ctrl+C to stop)\n", path)
	return score.Watch(ctx, path, func(s *score.Score, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			return
		}
		if err := a.renderLoaded(path, s, true); err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	})
}

// source loads a WAV file when one is named, otherwise the current session.
func (a *app) source(file string) (*audio.Engine, error) {
	if file != "" {
		e := audio.NewEngine()
		if err := e.LoadWAV(file); err != nil {
			return nil, err
		}
		return e, nil
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return a.loadSession(store, a.opts.Session)
}

func (a *app) play(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: waveforge play [file.wav]")
	}
	var file string
	if len(args) == 1 {
		file = args[0]
	}
	e, err := a.source(file)
	if err != nil {
		return err
	}
	return e.Play(float64(a.opts.Volume) / 100)
}

func (a *app) view(args []string) error {
	file, offset, err := parseViewArgs(args)
	if err != nil {
		return err
	}

	e, err := a.source(file)
	if err != nil {
		return err
	}
	width := terminalWidth()
	rows := waveview.Render(e, offset, width, viewHeight)
	if rows == nil {
		fmt.Fprintf(a.out, "Nothing to show at sample %d (buffer has %d)\n", offset, e.Len())
		return nil
	}
	for _, r := range rows {
		fmt.Fprintln(a.out, r)
	}
	fmt.Fprintf(a.out, "samples %d-%d of %d, peak %d, %.3fs\n",
		offset, offset+len(rows[0])-1, e.Len(), waveview.Peak(e, offset, width), float64(offset)/float64(e.SampleRate()))
	return nil
}

// parseViewArgs splits "[file] [offset]". With two arguments the first is
// always the file. A lone argument is the file if such a file exists,
// otherwise an offset into the session.
func parseViewArgs(args []string) (string, int, error) {
	var file, off string
	switch len(args) {
	case 0:
	case 1:
		if _, err := os.Stat(args[0]); err == nil {
			file = args[0]
		} else if _, err := strconv.Atoi(args[0]); err == nil {
			off = args[0]
		} else {
			file = args[0]
		}
	case 2:
		file, off = args[0], args[1]
	default:
		return "", 0, errors.New("usage: waveforge view [file.wav] [offset]")
	}
	if off == "" {
		return file, 0, nil
	}
	n, err := strconv.Atoi(off)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid offset %q (sample index >= 0)", off)
	}
	return file, n, nil
}

// terminalWidth returns the stdout width, or 80 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func (a *app) inspect(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: waveforge inspect <file.wav>")
	}
	h, err := audio.ReadHeader(args[0])
	if err != nil {
		return err
	}
	printHeader(a.out, args[0], h)
	return nil
}

func printHeader(w io.Writer, path string, h audio.Header) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  ChunkSize      %d\n", h.ChunkSize)
	fmt.Fprintf(w, "  AudioFormat    %d\n", h.AudioFormat)
	fmt.Fprintf(w, "  NumChannels    %d\n", h.NumChannels)
	fmt.Fprintf(w, "  SampleRate     %d\n", h.SampleRate)
	fmt.Fprintf(w, "  ByteRate       %d\n", h.ByteRate)
	fmt.Fprintf(w, "  BlockAlign     %d\n", h.BlockAlign)
	fmt.Fprintf(w, "  BitsPerSample  %d\n", h.BitsPerSample)
	fmt.Fprintf(w, "  DataSize       %d\n", h.DataSize)
	if h.ByteRate > 0 {
		fmt.Fprintf(w, "  Duration       %.3fs\n", float64(h.DataSize)/float64(h.ByteRate))
	}
}

func (a *app) initConfig(args []string) error {
	if len(args) != 0 {
		return errors.New("usage: waveforge init")
	}
	path := a.opts.ConfigPath
	if path == "" {
		path = paths.ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", path)
	return nil
}

func printNotes(w io.Writer) {
	fmt.Fprintln(w, "Notes:")
	for _, n := range notes.Names() {
		fmt.Fprintf(w, "  %-4s %7.2f Hz\n", n, notes.Frequency(n))
	}
	fmt.Fprintln(w, "Chords:")
	for _, name := range audio.ChordNames() {
		fmt.Fprintf(w, "  %-8s %s\n", name, audio.Chords[name].Description)
	}
}
