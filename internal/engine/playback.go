package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// playbackLoop writes synthesized PCM to the output device in bursts.
//
// The first chunk of a burst acquires the interlock and raises the
// engine's playing flag; both segmenters stay muted for the duration. Once
// no chunk arrives within the idle poll window the burst is over: the
// device buffer is drained, the settle delay lets the tail leave the
// speakers, and the interlock is released. Release runs on every exit path.
//
// On Stop the loop abandons queued chunks instead of playing them. Only
// what the device already buffered is drained, which keeps the release
// well inside the stop deadline.
func (e *Engine) playbackLoop() {
	playing := false

	endBurst := func() {
		if !playing {
			return
		}
		if err := e.playback.Drain(); err != nil {
			slog.Warn("playback drain failed", "engine", e.name, "error", err)
		}
		time.Sleep(e.settleDelay)
		e.playing.Store(false)
		e.lock.Release(e.name)
		e.metrics.RecordPlaybackHold(e.ctx, e.name, -1)
		playing = false
	}
	defer endBurst()

	for {
		var (
			chunk []byte
			ok    bool
		)
		if playing {
			// Mid-burst gaps shorter than the idle poll are bridged by
			// the device buffer; anything longer ends the burst.
			timer := time.NewTimer(e.idlePoll)
			select {
			case <-e.ctx.Done():
				timer.Stop()
				return
			case chunk, ok = <-e.pcm:
				timer.Stop()
				if !ok {
					return
				}
			case <-timer.C:
				endBurst()
				continue
			}
		} else {
			select {
			case <-e.ctx.Done():
				return
			case chunk, ok = <-e.pcm:
				if !ok {
					return
				}
			}
		}

		if !playing {
			e.lock.Acquire(e.name)
			e.playing.Store(true)
			e.metrics.RecordPlaybackHold(e.ctx, e.name, 1)
			playing = true
		}

		if _, err := e.playback.Write(chunk); err != nil {
			slog.Error("playback write failed", "engine", e.name, "error", err)
			if errors.Is(err, audio.ErrDeviceUnavailable) {
				e.fail(fmt.Errorf("engine %s: playback: %w", e.name, err))
				return
			}
		}
	}
}
