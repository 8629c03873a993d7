package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoCtx     *oto.Context
	otoRate    int
	otoOnce    sync.Once
	otoInitErr error
)

// getContext opens the shared output context. oto allows one context per
// process, so the first caller's sample rate is the only one playable.
func getContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-readyChan
			otoRate = sampleRate
		}
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("audio output is open at %d Hz, cannot play %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Play plays mono samples at sampleRate, blocking until playback completes.
// volume is a multiplier from 0.0 (silent) to 1.0 (full volume).
func Play(samples []int16, sampleRate int, volume float64) error {
	pcm := make([]byte, len(samples)*2)
	putSamples(pcm, scaleVolume(samples, volume))

	ctx, err := getContext(sampleRate)
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	player := ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	for player.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}

	return player.Close()
}

// Play plays the engine's buffer. See Play.
func (e *Engine) Play(volume float64) error {
	return Play(e.samples, e.sampleRate, volume)
}

// scaleVolume returns samples scaled by volume. At full volume or above
// the input is returned as is.
func scaleVolume(samples []int16, volume float64) []int16 {
	if volume >= 1.0 {
		return samples
	}
	if volume < 0 {
		volume = 0
	}
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = Saturate16(float64(s) * volume)
	}
	return out
}
