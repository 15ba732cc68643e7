// Package engine drives one direction of the live translation loop.
//
// An [Engine] owns a capture device and a playback device and moves audio
// between them through a staged pipeline:
//
//  1. The capture stream delivers 30 ms PCM frames.
//  2. The segmenter classifies frames with a voice activity detector and
//     cuts contiguous speech into utterances once a second of trailing
//     silence confirms the speaker is done.
//  3. The processor transcribes the utterance and translates the
//     transcript, then synthesizes the translation as a PCM stream.
//  4. The playback worker plays synthesized chunks, holding the shared
//     interlock so that no segmenter mistakes the speakers for a person.
//
// Two engines with mirrored language pairs form a full interpreter: SENDER
// translates the local microphone outward while RECEIVER translates the far
// side's voice back. The interlock is the only state they share.
//
// Engines do not restart. The lifecycle runs CONSTRUCTED → RUNNING →
// STOPPING → STOPPED exactly once; a fatal device loss stops the engine by
// itself, and [Engine.Done] and [Engine.Err] report it without affecting
// the peer.
//
// This package lives under internal/ because it encapsulates
// application-private pipeline logic and is not intended to be imported by
// external code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/parley/internal/interlock"
	"github.com/MrWong99/parley/internal/lang"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/transcript"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/history"
	"github.com/MrWong99/parley/pkg/provider/mt"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/tts"
	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

const (
	// defaultVADMode is the aggressiveness passed to the default detector.
	// Close-mic conversation wants the least trigger-happy setting.
	defaultVADMode = 3

	// defaultEndSilenceFrames is the number of consecutive silent frames
	// that closes a segment: 33 frames of 30 ms is one second.
	defaultEndSilenceFrames = 33

	// defaultSilenceRMS is the mean level below which a finished segment is
	// discarded as room tone instead of being sent to recognition.
	defaultSilenceRMS = 0.01

	// defaultErrBackoff is the pause after a failed provider call.
	defaultErrBackoff = 2 * time.Second

	// defaultCriticalBackoff is the pause after a panic or any failure the
	// worker cannot attribute to a provider.
	defaultCriticalBackoff = 5 * time.Second

	// defaultIdlePoll is how long the playback worker waits for the next
	// chunk before treating a burst as finished.
	defaultIdlePoll = 50 * time.Millisecond

	// defaultSettleDelay is slept after the device drains, letting the last
	// audio leave the speakers before the interlock is released.
	defaultSettleDelay = 100 * time.Millisecond

	// utteranceBuf is the capacity of the segmenter→processor channel.
	utteranceBuf = 16

	// pcmBuf is the capacity of the processor→playback channel.
	pcmBuf = 256
)

// State identifies where an engine is in its lifecycle.
type State int32

// Lifecycle states, in order. Transitions are one-way.
const (
	StateConstructed State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the lowercase state name used in logs and on the monitor
// surfaces.
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// utterance is one contiguous speech segment cut by the segmenter,
// including its trailing silence.
type utterance struct {
	pcm    []byte
	start  time.Time
	end    time.Time
	frames int
}

// Config carries the required collaborators for one engine.
type Config struct {
	// Name labels the translation direction, conventionally "SENDER" or
	// "RECEIVER". It appears in logs, status lines, and interlock ownership.
	Name string

	// Source is the language expected on the capture device.
	Source lang.Tag

	// Target is the language synthesized to the playback device.
	Target lang.Tag

	// Capture is the open input stream. The engine takes ownership and
	// closes it on Stop.
	Capture audio.CaptureStream

	// Playback is the open output stream. The engine takes ownership and
	// closes it on Stop.
	Playback audio.PlaybackStream

	// Recognizer transcribes utterances.
	Recognizer stt.Recognizer

	// Translator translates transcripts. Required even when Source equals
	// Target; the processor short-circuits locally in that case.
	Translator mt.Translator

	// Synthesizer renders translations as speech.
	Synthesizer tts.Synthesizer

	// Interlock is the process-wide playback latch shared with the peer
	// engine.
	Interlock *interlock.Interlock
}

func (c Config) validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.Source.IsZero() {
		errs = append(errs, errors.New("source language is required"))
	}
	if c.Target.IsZero() {
		errs = append(errs, errors.New("target language is required"))
	}
	if c.Capture == nil {
		errs = append(errs, errors.New("capture stream is required"))
	}
	if c.Playback == nil {
		errs = append(errs, errors.New("playback stream is required"))
	}
	if c.Recognizer == nil {
		errs = append(errs, errors.New("recognizer is required"))
	}
	if c.Translator == nil {
		errs = append(errs, errors.New("translator is required"))
	}
	if c.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	if c.Interlock == nil {
		errs = append(errs, errors.New("interlock is required"))
	}
	return errors.Join(errs...)
}

// Option is a functional option for configuring an [Engine] during
// construction.
type Option func(*Engine)

// WithStatusSink directs human-readable status lines (transcript pairs,
// glitch notices) to sink. Sends never block; lines are dropped when the
// sink is full.
func WithStatusSink(sink chan<- string) Option {
	return func(e *Engine) { e.statusSink = sink }
}

// WithVolumeCallback registers fn to receive the normalized RMS level of
// every captured frame. fn runs on the segmenter goroutine and must return
// quickly.
func WithVolumeCallback(fn func(level float64)) Option {
	return func(e *Engine) { e.volume = fn }
}

// WithFilter replaces the default transcript filter.
func WithFilter(f *transcript.Filter) Option {
	return func(e *Engine) { e.filter = f }
}

// WithVAD replaces the default energy detector.
func WithVAD(det vad.Detector) Option {
	return func(e *Engine) { e.detector = det }
}

// WithEndSilenceFrames sets how many consecutive silent frames close a
// segment. The default of 33 frames is one second of audio.
func WithEndSilenceFrames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.endSilenceFrames = n
		}
	}
}

// WithSilenceRMS sets the mean level below which a finished segment is
// discarded before recognition. The default is 0.01.
func WithSilenceRMS(level float64) Option {
	return func(e *Engine) { e.silenceRMS = level }
}

// WithBackoff overrides the pauses the processor takes after a failed
// provider call (transient) and after a panic (critical). Useful in tests
// to keep suites fast.
func WithBackoff(transient, critical time.Duration) Option {
	return func(e *Engine) {
		e.errBackoff = transient
		e.criticalBackoff = critical
	}
}

// WithPlaybackTiming overrides the playback worker's idle poll interval and
// the settle delay slept after the device drains. Useful in tests.
func WithPlaybackTiming(idlePoll, settle time.Duration) Option {
	return func(e *Engine) {
		if idlePoll > 0 {
			e.idlePoll = idlePoll
		}
		if settle >= 0 {
			e.settleDelay = settle
		}
	}
}

// WithMetrics replaces the package-default metrics instance, primarily so
// tests can observe recordings through a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHistory records every translated utterance to store.
func WithHistory(store history.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithVoice selects the synthesis voice. The zero value lets the
// synthesizer pick its own default.
func WithVoice(v tts.Voice) Option {
	return func(e *Engine) { e.voice = v }
}

// Engine is one direction of the translation loop. Create it with [New],
// start the workers with [Engine.Start], and shut it down with
// [Engine.Stop].
type Engine struct {
	name   string
	source lang.Tag
	target lang.Tag

	capture  audio.CaptureStream
	playback audio.PlaybackStream

	recognizer stt.Recognizer
	translator mt.Translator
	synth      tts.Synthesizer
	lock       *interlock.Interlock

	detector vad.Detector
	filter   *transcript.Filter
	voice    tts.Voice

	statusSink chan<- string
	volume     func(float64)
	metrics    *observe.Metrics
	store      history.Store

	endSilenceFrames int
	silenceRMS       float64
	errBackoff       time.Duration
	criticalBackoff  time.Duration
	idlePoll         time.Duration
	settleDelay      time.Duration

	utterances chan utterance
	pcm        chan []byte

	// playing mirrors the playback worker's interlock hold so the
	// segmenter can skip the atomic map lookup in the common case.
	playing atomic.Bool

	state      atomic.Int32
	translated atomic.Uint64
	dropped    atomic.Uint64
	failures   atomic.Uint64

	// overrunsSeen is the last capture overrun total reported to metrics.
	// Only the segmenter goroutine touches it.
	overrunsSeen uint64

	// ctx is cancelled on Stop; it bounds every provider call and flips
	// the processor and playback workers into discard mode.
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	err     error
	stopErr error

	// wg tracks the segmenter, processor, and playback workers so Stop
	// (and tests, via Wait) can synchronise with their exit.
	wg sync.WaitGroup
}

// New validates cfg, applies opts, and wires defaults for everything left
// unset: an energy voice activity detector in its most aggressive mode, the
// standard transcript filter, and the package metrics instance.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		name:       cfg.Name,
		source:     cfg.Source,
		target:     cfg.Target,
		capture:    cfg.Capture,
		playback:   cfg.Playback,
		recognizer: cfg.Recognizer,
		translator: cfg.Translator,
		synth:      cfg.Synthesizer,
		lock:       cfg.Interlock,

		filter:  transcript.NewFilter(),
		metrics: observe.DefaultMetrics(),

		endSilenceFrames: defaultEndSilenceFrames,
		silenceRMS:       defaultSilenceRMS,
		errBackoff:       defaultErrBackoff,
		criticalBackoff:  defaultCriticalBackoff,
		idlePoll:         defaultIdlePoll,
		settleDelay:      defaultSettleDelay,

		utterances: make(chan utterance, utteranceBuf),
		pcm:        make(chan []byte, pcmBuf),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.detector == nil {
		det, err := energy.New().NewDetector(vad.Config{
			SampleRate: audio.SampleRate,
			FrameSize:  audio.FrameSamples,
			Mode:       defaultVADMode,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("engine: default detector: %w", err)
		}
		e.detector = det
	}
	return e, nil
}

// Name returns the engine's direction label.
func (e *Engine) Name() string { return e.name }

// Source returns the language this engine listens for.
func (e *Engine) Source() lang.Tag { return e.source }

// Target returns the language this engine speaks.
func (e *Engine) Target() lang.Tag { return e.target }

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Counters is a snapshot of an engine's utterance statistics.
type Counters struct {
	// Translated counts utterances that completed the full pipeline.
	Translated uint64

	// Dropped counts utterances discarded by the silence floor, the
	// transcript filter, an empty translation, or a full queue.
	Dropped uint64

	// Failures counts utterances abandoned on provider errors or panics.
	Failures uint64
}

// Counters returns the engine's utterance statistics so far.
func (e *Engine) Counters() Counters {
	return Counters{
		Translated: e.translated.Load(),
		Dropped:    e.dropped.Load(),
		Failures:   e.failures.Load(),
	}
}

// Start spawns the segmenter, processor, and playback workers. Calling
// Start on a running engine is a no-op; calling it after Stop is an error,
// engines do not restart.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateConstructed), int32(StateRunning)) {
		if e.State() == StateRunning {
			return nil
		}
		return fmt.Errorf("engine %s: start after stop", e.name)
	}

	slog.Info("engine starting",
		"engine", e.name,
		"source", e.source.String(),
		"target", e.target.String(),
	)
	e.wg.Go(e.segmentLoop)
	e.wg.Go(e.processLoop)
	e.wg.Go(e.playbackLoop)
	return nil
}

// Stop shuts the engine down: the capture stream closes first so the
// segmenter exits, in-flight provider calls are cancelled, queued
// utterances and synthesized audio are discarded, the device buffer is
// drained, and the interlock is released. Stop blocks until the engine
// reaches STOPPED. Safe to call from any goroutine and more than once.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		go e.shutdown()
	})
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopErr
}

// Done returns a channel that is closed once the engine has fully stopped,
// whether by [Engine.Stop] or by a fatal failure.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns the fatal error that made the engine stop itself, or nil
// after a deliberate Stop.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Wait blocks until all worker goroutines have exited. This is primarily
// useful in tests to synchronise before inspecting mock call records.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// fail records the engine's fatal error and triggers a self-stop. The stop
// runs on its own goroutine so a worker can report a failure without
// deadlocking on its own shutdown.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.stopOnce.Do(func() {
		go e.shutdown()
	})
}

// shutdown executes the stop sequence exactly once, then releases everyone
// blocked in [Engine.Stop].
func (e *Engine) shutdown() {
	e.state.Store(int32(StateStopping))
	slog.Info("engine stopping", "engine", e.name)

	// Capture closes first; the segmenter exits when the frame channel
	// drains and closes the utterance channel behind itself.
	cerr := e.capture.Close()
	e.cancel()
	e.wg.Wait()

	perr := e.playback.Close()

	e.mu.Lock()
	if err := errors.Join(cerr, perr); err != nil {
		e.stopErr = fmt.Errorf("engine %s: close streams: %w", e.name, err)
	}
	e.mu.Unlock()

	e.state.Store(int32(StateStopped))
	close(e.done)

	slog.Info("engine stopped",
		"engine", e.name,
		"translated", e.translated.Load(),
		"dropped", e.dropped.Load(),
		"failures", e.failures.Load(),
	)
}

// publishStatus delivers a status line to the configured sink without ever
// blocking the pipeline. Lines are dropped when the sink is full.
func (e *Engine) publishStatus(line string) {
	if e.statusSink == nil {
		return
	}
	select {
	case e.statusSink <- line:
	default:
		slog.Debug("status sink full, dropping line", "engine", e.name)
	}
}

// pause sleeps for d or until the engine is stopped, whichever comes first.
func (e *Engine) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-e.ctx.Done():
	}
}
