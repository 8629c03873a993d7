package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// options holds global flags. Zero values mean "use the config".
type options struct {
	ConfigPath string
	Output     string
	Session    string
	Volume     int // -1 = config
	Play       bool
	Strict     bool
}

func main() {
	opts, args, err := parseArgs(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-V", "--version":
		printVersion()
		return
	case "notes":
		printNotes(os.Stdout)
		return
	}

	a, err := newApp(opts, os.Stdout)
	if err != nil {
		fatal("%v", err)
	}

	var cmdErr error
	switch args[0] {
	case "melody":
		cmdErr = a.melody(args[1:])
	case "harmony":
		cmdErr = a.harmony(args[1:])
	case "chord":
		cmdErr = a.chord(args[1:])
	case "note":
		cmdErr = a.note(args[1:])
	case "session":
		cmdErr = a.session(args[1:])
	case "render":
		cmdErr = a.render(args[1:])
	case "watch":
		cmdErr = a.watch(args[1:])
	case "play":
		cmdErr = a.play(args[1:])
	case "view":
		cmdErr = a.view(args[1:])
	case "inspect":
		cmdErr = a.inspect(args[1:])
	case "init":
		cmdErr = a.initConfig(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		fmt.Fprintf(os.Stderr, "Run 'waveforge help' for usage.\n")
		os.Exit(1)
	}
	if cmdErr != nil {
		fatal("%v", cmdErr)
	}
}

// parseArgs pulls global flags out of args, wherever they appear, and
// returns the remaining positional arguments.
func parseArgs(args []string) (options, []string, error) {
	opts := options{Volume: -1}
	var rest []string

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			v, err := value(i, args[i])
			if err != nil {
				return opts, nil, err
			}
			opts.ConfigPath = v
			i++
		case "--output", "-o":
			v, err := value(i, args[i])
			if err != nil {
				return opts, nil, err
			}
			opts.Output = v
			i++
		case "--session", "-s":
			v, err := value(i, args[i])
			if err != nil {
				return opts, nil, err
			}
			opts.Session = v
			i++
		case "--volume", "-v":
			v, err := value(i, args[i])
			if err != nil {
				return opts, nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > 100 {
				return opts, nil, fmt.Errorf("volume must be a number between 0 and 100")
			}
			opts.Volume = n
			i++
		case "--play", "-p":
			opts.Play = true
		case "--strict":
			opts.Strict = true
		default:
			rest = append(rest, args[i])
		}
	}
	return opts, rest, nil
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("waveforge %s (%s) %s/%s\n", version, buildDate, runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Printf("waveforge %s - Synthesize notes and chords into 16-bit PCM WAV files\n", version)
	fmt.Println(`
Usage:
  waveforge [options] <command> [args...]

Options:
  --output, -o <path>    WAV file to write (default: config or melody.wav)
  --session, -s <name>   Session that chord/note commands extend (default: "default")
  --config, -c <path>    Path to waveforge-config.json
  --volume, -v <0-100>   Playback volume (default: config or 100)
  --play, -p             Play the result after writing it
  --strict               Treat unknown note names as errors instead of rests

Commands:
  melody <note...>                  Replace the session with a melody (0.4s per note)
  harmony                           Replace the session with the preset harmony
  chord <name>                      Append a chord at the end of the session
  note <name|hz> <start|end> [dur]  Mix a tone into the session
  session [list|show|reset] [name]  Inspect or clear stored sessions
  render <score.yaml...>            Render YAML score files (in parallel)
  watch <score.yaml>                Re-render a score whenever it changes
  play [file.wav]                   Play a WAV file, or the current session
  view [file.wav] [offset]          Print a text waveform
  inspect <file.wav>                Show WAV header fields
  init                              Write a default config file
  notes                             List note names and chords
  version, -V                       Show version and build date
  help, -h, --help                  Show this help message

Config resolution:
  1. --config <path>
  2. waveforge-config.json next to binary
  3. ~/.config/waveforge/waveforge-config.json
  4. built-in defaults (44100 Hz, amplitude 8000)

Examples:
  waveforge melody C4 D4 E4 F4 G4 A4 B4 C5
  waveforge harmony -o demo.wav
  waveforge chord cmajor -p
  waveforge note A4 end 0.8
  waveforge render intro.yaml outro.yaml`)
}
