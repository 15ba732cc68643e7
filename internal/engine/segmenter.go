package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// overrunCounter is implemented by capture streams that count driver
// periods dropped because the pipeline fell behind (miniaudio does).
type overrunCounter interface {
	Overruns() uint64
}

// segmentLoop turns the capture frame stream into discrete utterances.
//
// The state machine has two states. In IDLE a speech-classified frame opens
// a segment; in SPEAKING every frame is buffered, speech resets the
// trailing-silence counter and silence advances it. When the counter
// reaches endSilenceFrames the buffer is emitted as one utterance, trailing
// silence included, and the machine returns to IDLE.
//
// While any engine is playing, frames are discarded outright and an open
// segment is thrown away: whatever the microphone hears during playback is
// the synthesized voice, not the speaker. A discarded segment is never
// flushed later.
//
// The loop exits when the capture stream closes. A stream that closed
// because the device disappeared takes the whole engine down.
func (e *Engine) segmentLoop() {
	defer close(e.utterances)
	defer e.reportOverruns()

	var (
		buf      []byte
		started  time.Time
		frames   int
		silence  int
		speaking bool
	)
	discard := func() {
		buf = nil
		frames = 0
		silence = 0
		speaking = false
		e.detector.Reset()
	}

	for frame := range e.capture.Frames() {
		rms := audio.RMS(frame)
		if e.volume != nil {
			e.volume(rms)
		}

		if e.lock.Held() || e.playing.Load() {
			if speaking {
				slog.Debug("segment discarded, playback in progress",
					"engine", e.name, "frames", frames)
				discard()
			}
			continue
		}

		speech, err := e.detector.ProcessFrame(frame)
		if err != nil {
			slog.Debug("vad error on frame, treating as silence",
				"engine", e.name, "error", err)
			speech = false
		}

		if speech {
			if !speaking {
				speaking = true
				started = time.Now()
			}
			buf = append(buf, frame...)
			frames++
			silence = 0
		} else if speaking {
			buf = append(buf, frame...)
			frames++
			silence++
			if silence >= e.endSilenceFrames {
				e.emitSegment(buf, started, frames)
				buf = nil
				frames = 0
				silence = 0
				speaking = false
			}
		}
	}

	if speaking {
		slog.Debug("capture ended mid-segment, discarding",
			"engine", e.name, "frames", frames)
	}
	if err := e.capture.Err(); err != nil {
		slog.Error("capture stream failed", "engine", e.name, "error", err)
		e.fail(fmt.Errorf("engine %s: capture: %w", e.name, err))
	}
}

// emitSegment applies the post-segmentation silence floor and queues the
// utterance for processing. A full queue drops the utterance rather than
// stalling the capture path.
func (e *Engine) emitSegment(pcm []byte, started time.Time, frames int) {
	if rms := audio.RMS(pcm); rms < e.silenceRMS {
		slog.Debug("segment below silence floor, dropping",
			"engine", e.name, "rms", rms, "frames", frames)
		e.dropped.Add(1)
		e.metrics.RecordUtterance(e.ctx, e.name, "dropped")
		return
	}

	e.reportOverruns()

	utt := utterance{pcm: pcm, start: started, end: time.Now(), frames: frames}
	select {
	case e.utterances <- utt:
		slog.Debug("utterance segmented",
			"engine", e.name, "frames", frames, "duration", utt.end.Sub(started))
	default:
		slog.Warn("utterance queue full, dropping segment",
			"engine", e.name, "frames", frames)
		e.dropped.Add(1)
		e.metrics.RecordUtterance(e.ctx, e.name, "dropped")
	}
}

// reportOverruns records how many capture periods the driver dropped since
// the last reading. Checked at segment boundaries; per-frame polling would
// cost more than the signal is worth.
func (e *Engine) reportOverruns() {
	counter, ok := e.capture.(overrunCounter)
	if !ok {
		return
	}
	total := counter.Overruns()
	if delta := total - e.overrunsSeen; delta > 0 {
		e.overrunsSeen = total
		slog.Warn("capture overruns", "engine", e.name, "dropped_periods", delta)
		e.metrics.RecordCaptureOverruns(e.ctx, e.name, int64(delta))
	}
}
