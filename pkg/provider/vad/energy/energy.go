// Package energy implements vad.Engine with a short-term energy classifier.
//
// Each frame is reduced to its root mean square level and zero-crossing
// rate. A frame counts as speech when its level clears a per-mode threshold
// scaled by an adaptive noise floor; in the permissive modes, quieter frames
// with a high zero-crossing rate are also accepted to keep unvoiced
// fricatives. The classifier needs no model files and costs a few
// microseconds per frame, which keeps the capture loop realtime-safe.
package energy

import (
	"fmt"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// floorAlpha is the exponential smoothing factor for the noise floor
// estimate. Only frames already below the base threshold update the floor.
const floorAlpha = 0.05

// params holds the classifier knobs for one aggressiveness mode. base is the
// RMS threshold on the normalized [0,1] scale, floorGain scales the adaptive
// noise floor into the effective threshold, and zcrMin/rescueGain admit
// quieter high-zero-crossing frames (unvoiced consonants). A zero rescueGain
// disables the rescue.
type params struct {
	base       float64
	floorGain  float64
	zcrMin     float64
	rescueGain float64
}

var modeParams = [4]params{
	{base: 0.004, floorGain: 2.0, zcrMin: 0.10, rescueGain: 0.5},
	{base: 0.008, floorGain: 2.5, zcrMin: 0.12, rescueGain: 0.5},
	{base: 0.012, floorGain: 3.0, zcrMin: 0.15, rescueGain: 0.6},
	{base: 0.020, floorGain: 3.5},
}

// Engine implements vad.Engine.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// NewDetector implements vad.Engine.
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("energy: unsupported sample rate %d", cfg.SampleRate)
	}
	samplesPerMs := cfg.SampleRate / 1000
	switch cfg.FrameSize {
	case 10 * samplesPerMs, 20 * samplesPerMs, 30 * samplesPerMs:
	default:
		return nil, fmt.Errorf("energy: frame size %d samples is not 10, 20, or 30 ms at %d Hz", cfg.FrameSize, cfg.SampleRate)
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("energy: mode %d out of range 0..3", cfg.Mode)
	}
	return &detector{
		frameBytes: cfg.FrameSize * audio.BytesPerSample,
		p:          modeParams[cfg.Mode],
	}, nil
}

type detector struct {
	frameBytes int
	p          params
	floor      float64
}

// ProcessFrame implements vad.Detector.
func (d *detector) ProcessFrame(frame []byte) (bool, error) {
	if len(frame) != d.frameBytes {
		return false, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), d.frameBytes)
	}

	rms := audio.RMS(frame)
	threshold := max(d.p.base, d.p.floorGain*d.floor)

	if rms < d.p.base {
		// Quiet frame: fold it into the noise floor estimate.
		d.floor = (1-floorAlpha)*d.floor + floorAlpha*rms
	}

	if rms >= threshold {
		return true, nil
	}
	if d.p.rescueGain > 0 && rms >= d.p.rescueGain*threshold {
		if audio.ZeroCrossingRate(frame) >= d.p.zcrMin {
			return true, nil
		}
	}
	return false, nil
}

// Reset implements vad.Detector.
func (d *detector) Reset() {
	d.floor = 0
}

var _ vad.Engine = (*Engine)(nil)
