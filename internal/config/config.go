package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Mavwarf/waveforge/internal/audio"
	"github.com/Mavwarf/waveforge/internal/paths"
)

// DefaultOutput is the WAV file written when no output path is given.
const DefaultOutput = "melody.wav"

// DefaultVolume is the default playback volume (0-100).
const DefaultVolume = 100

// DefaultSession is the session that chord and note commands extend.
const DefaultSession = "default"

// MQTT configures the optional render announcement.
type MQTT struct {
	Broker   string `json:"broker,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	QoS      byte   `json:"qos,omitempty"`
	Retain   bool   `json:"retain,omitempty"`
}

// Enabled reports whether a broker and topic are configured.
func (m MQTT) Enabled() bool {
	return m.Broker != "" && m.Topic != ""
}

// Config holds engine defaults and CLI behavior.
type Config struct {
	SampleRate int    `json:"sample_rate,omitempty"`
	Amplitude  int    `json:"amplitude,omitempty"`
	Output     string `json:"output,omitempty"`
	Volume     int    `json:"volume,omitempty"`
	Strict     bool   `json:"strict,omitempty"`
	Session    string `json:"session,omitempty"`
	MQTT       MQTT   `json:"mqtt,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SampleRate: audio.DefaultSampleRate,
		Amplitude:  audio.DefaultAmplitude,
		Output:     DefaultOutput,
		Volume:     DefaultVolume,
		Session:    DefaultSession,
		MQTT:       MQTT{ClientID: "waveforge"},
	}
}

// UnmarshalJSON sets defaults then decodes the JSON structure.
// Go's json.Unmarshal merges into existing struct fields, so only
// values present in JSON override the defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	*c = Default()
	type Alias Config
	return json.Unmarshal(data, (*Alias)(c))
}

// Validate reports settings the engine or player cannot use.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Volume)
	}
	if c.Output == "" {
		return errors.New("output must not be empty")
	}
	return nil
}

// Load reads and parses a config file. It tries, in order:
//  1. explicitPath (if non-empty; must exist)
//  2. waveforge-config.json next to the running binary
//  3. waveforge-config.json in the user data directory
//
// When no file is found the defaults are used. WAVEFORGE_SAMPLE_RATE,
// WAVEFORGE_AMPLITUDE and WAVEFORGE_OUTPUT override file values.
func Load(explicitPath string) (Config, error) {
	cfg, err := loadFile(explicitPath)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadFile(explicitPath string) (Config, error) {
	if explicitPath != "" {
		return readConfig(explicitPath)
	}

	exe, err := os.Executable()
	if err == nil {
		p := filepath.Join(filepath.Dir(exe), paths.ConfigFileName)
		if _, err := os.Stat(p); err == nil {
			return readConfig(p)
		}
	}

	if p := paths.ConfigPath(); fileExists(p) {
		return readConfig(p)
	}

	return Default(), nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return paths.AtomicWrite(path, append(data, '\n'))
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.SampleRate = envInt("WAVEFORGE_SAMPLE_RATE", cfg.SampleRate)
	cfg.Amplitude = envInt("WAVEFORGE_AMPLITUDE", cfg.Amplitude)
	cfg.Output = envStr("WAVEFORGE_OUTPUT", cfg.Output)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "warning: ignoring %s=%q (not an integer)\n", key, v)
	}
	return fallback
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
