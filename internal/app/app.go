// Package app wires all parley subsystems into a running translator.
//
// The App struct owns the full lifecycle: New opens the audio devices,
// builds the speech providers and both translation engines, Run keeps them
// running until the context is cancelled, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithPlatform, WithRecognizer, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/engine"
	"github.com/MrWong99/parley/internal/interlock"
	"github.com/MrWong99/parley/internal/lang"
	"github.com/MrWong99/parley/internal/mcp"
	"github.com/MrWong99/parley/internal/monitor"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/internal/transcript"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/miniaudio"
	"github.com/MrWong99/parley/pkg/history"
	"github.com/MrWong99/parley/pkg/history/postgres"
	"github.com/MrWong99/parley/pkg/provider/mt"
	"github.com/MrWong99/parley/pkg/provider/mt/anyllm"
	mtgroq "github.com/MrWong99/parley/pkg/provider/mt/groq"
	"github.com/MrWong99/parley/pkg/provider/stt"
	sttelevenlabs "github.com/MrWong99/parley/pkg/provider/stt/elevenlabs"
	sttgroq "github.com/MrWong99/parley/pkg/provider/stt/groq"
	"github.com/MrWong99/parley/pkg/provider/tts"
	ttselevenlabs "github.com/MrWong99/parley/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

// statusBuffer is the capacity of the shared status channel both engines
// report on. Full channel drops are acceptable; status lines are advisory.
const statusBuffer = 16

// App owns all subsystem lifetimes and orchestrates the two translation
// engines plus the optional monitor and MCP servers.
type App struct {
	cfg     *config.Config
	version string

	source lang.Tag
	target lang.Tag
	voices *config.VoiceCatalog

	// Subsystems: initialised in New, torn down in Shutdown.
	platform    audio.Platform
	recognizer  stt.Recognizer
	translator  mt.Translator
	synthesizer tts.Synthesizer
	store       history.Store
	metrics     *observe.Metrics
	lock        *interlock.Interlock
	sender      *engine.Engine
	receiver    *engine.Engine
	monitor     *monitor.Server
	monitorLn   net.Listener
	mcpServer   *mcp.Server

	// Open streams handed to the engines in initEngines. The engines own
	// them from then on and close them during Stop.
	senderCapture    audio.CaptureStream
	senderPlayback   audio.PlaybackStream
	receiverCapture  audio.CaptureStream
	receiverPlayback audio.PlaybackStream

	// status carries engine status lines to the fan-out loop in Run.
	status    chan string
	statusOut io.Writer

	// historyPing is set when the history store is backed by PostgreSQL
	// and can meaningfully fail a readiness probe.
	historyPing bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPlatform injects an audio platform instead of opening miniaudio.
func WithPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithRecognizer injects a speech recognizer instead of building one from config.
func WithRecognizer(r stt.Recognizer) Option {
	return func(a *App) { a.recognizer = r }
}

// WithTranslator injects a translator instead of building the Groq chain.
func WithTranslator(t mt.Translator) Option {
	return func(a *App) { a.translator = t }
}

// WithSynthesizer injects a speech synthesizer instead of building one from config.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(a *App) { a.synthesizer = s }
}

// WithHistory injects a transcript store instead of creating one from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics registry instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStatusWriter redirects engine status lines. Defaults to os.Stdout.
func WithStatusWriter(w io.Writer) Option {
	return func(a *App) { a.statusOut = w }
}

// WithVersion sets the version string reported over MCP.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: device resolution, stream
// opening, provider construction, history store connection, engine assembly,
// and the optional monitor listener bind. No goroutines run until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		status:    make(chan string, statusBuffer),
		statusOut: os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Languages ─────────────────────────────────────────────────────
	var err error
	if a.source, a.target, err = cfg.Languages(); err != nil {
		return nil, fmt.Errorf("app: init languages: %w", err)
	}

	// ── 2. Voice catalog ─────────────────────────────────────────────────
	if cfg.VoicesFile != "" {
		if a.voices, err = config.LoadVoices(cfg.VoicesFile); err != nil {
			return nil, fmt.Errorf("app: init voices: %w", err)
		}
	}

	// ── 3. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 4. Audio platform + streams ──────────────────────────────────────
	if err := a.initAudio(); err != nil {
		return nil, fmt.Errorf("app: init audio: %w", err)
	}

	// ── 5. Speech providers ──────────────────────────────────────────────
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	// ── 6. History ───────────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 7. Monitor ───────────────────────────────────────────────────────
	if err := a.initMonitor(); err != nil {
		return nil, fmt.Errorf("app: init monitor: %w", err)
	}

	// ── 8. Engines ───────────────────────────────────────────────────────
	if err := a.initEngines(); err != nil {
		return nil, fmt.Errorf("app: init engines: %w", err)
	}

	// ── 9. MCP ───────────────────────────────────────────────────────────
	if cfg.MCP {
		a.mcpServer = mcp.New(mcp.Config{
			Version:  a.version,
			Engines:  []*engine.Engine{a.sender, a.receiver},
			Lock:     a.lock,
			Platform: a.platform,
			History:  a.store,
		})
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initAudio opens the audio platform, resolves the four configured device
// labels against the live device lists, and opens both capture and both
// playback streams.
func (a *App) initAudio() error {
	if a.platform == nil {
		p, err := miniaudio.New()
		if err != nil {
			return err
		}
		a.platform = p
		a.closers = append(a.closers, p.Close)
	}

	inputs, err := a.platform.InputDevices()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	outputs, err := a.platform.OutputDevices()
	if err != nil {
		return fmt.Errorf("list output devices: %w", err)
	}

	senderIn := resolveDevice(inputs, a.cfg.SenderInput, "sender_input")
	senderOut := resolveDevice(outputs, a.cfg.SenderOutput, "sender_output")
	receiverIn := resolveDevice(inputs, a.cfg.ReceiverInput, "receiver_input")
	receiverOut := resolveDevice(outputs, a.cfg.ReceiverOutput, "receiver_output")

	if a.senderCapture, err = a.platform.OpenCapture(audio.CaptureConfig{Device: senderIn}); err != nil {
		return fmt.Errorf("open sender capture: %w", err)
	}
	if a.senderPlayback, err = a.platform.OpenPlayback(audio.PlaybackConfig{Device: senderOut}); err != nil {
		return fmt.Errorf("open sender playback: %w", err)
	}
	if a.receiverCapture, err = a.platform.OpenCapture(audio.CaptureConfig{Device: receiverIn}); err != nil {
		return fmt.Errorf("open receiver capture: %w", err)
	}
	if a.receiverPlayback, err = a.platform.OpenPlayback(audio.PlaybackConfig{Device: receiverOut}); err != nil {
		return fmt.Errorf("open receiver playback: %w", err)
	}
	return nil
}

// initProviders builds the recognizer, translator, and synthesizer unless
// they were injected. Each missing API key is reported with the config key
// the operator has to set.
func (a *App) initProviders() error {
	if a.recognizer == nil {
		r, err := a.buildRecognizer()
		if err != nil {
			return err
		}
		a.recognizer = r
	}
	if a.translator == nil {
		t, err := a.buildTranslator()
		if err != nil {
			return err
		}
		a.translator = t
	}
	if a.synthesizer == nil {
		if a.cfg.APIKeyElevenLabs == "" {
			return errors.New("api_key_elevenlabs (or ELEVENLABS_API_KEY) is required for speech synthesis")
		}
		var opts []ttselevenlabs.Option
		if a.cfg.TTSModel != "" {
			opts = append(opts, ttselevenlabs.WithModel(a.cfg.TTSModel))
		}
		s, err := ttselevenlabs.New(a.cfg.APIKeyElevenLabs, opts...)
		if err != nil {
			return err
		}
		a.synthesizer = s
	}
	return nil
}

// buildRecognizer constructs the configured primary backend and, when the
// other backend's API key is also present, registers it as a fallback behind
// a circuit breaker.
func (a *App) buildRecognizer() (stt.Recognizer, error) {
	primary, err := a.recognizerBackend(a.cfg.Recognizer, a.cfg.RecognizerModel)
	if err != nil {
		return nil, err
	}

	group := resilience.NewRecognizerFallback(primary, string(a.cfg.Recognizer), resilience.FallbackConfig{})
	other := config.RecognizerGroq
	if a.cfg.Recognizer == config.RecognizerGroq {
		other = config.RecognizerElevenLabs
	}
	// The secondary keeps its backend's default model; recognizer_model
	// names a model of the primary backend only.
	if fallback, err := a.recognizerBackend(other, ""); err == nil {
		group.AddFallback(string(other), fallback)
		slog.Info("recognizer fallback registered", "primary", a.cfg.Recognizer, "fallback", other)
	}
	return group, nil
}

// recognizerBackend constructs a single recognizer backend.
func (a *App) recognizerBackend(kind config.Recognizer, model string) (stt.Recognizer, error) {
	switch kind {
	case config.RecognizerGroq:
		if a.cfg.APIKeyGroq == "" {
			return nil, errors.New("api_key_groq (or GROQ_API_KEY) is required for the groq recognizer")
		}
		var opts []sttgroq.Option
		if model != "" {
			opts = append(opts, sttgroq.WithModel(model))
		}
		return sttgroq.New(a.cfg.APIKeyGroq, opts...)
	default:
		if a.cfg.APIKeyElevenLabs == "" {
			return nil, errors.New("api_key_elevenlabs (or ELEVENLABS_API_KEY) is required for the elevenlabs recognizer")
		}
		var opts []sttelevenlabs.Option
		if model != "" {
			opts = append(opts, sttelevenlabs.WithModel(model))
		}
		return sttelevenlabs.New(a.cfg.APIKeyElevenLabs, opts...)
	}
}

// buildTranslator chains the native Groq client with the any-llm client as
// fallback. Both lanes share the key but not the HTTP plumbing, so a client
// side failure in one does not take out the other.
func (a *App) buildTranslator() (mt.Translator, error) {
	if a.cfg.APIKeyGroq == "" {
		return nil, errors.New("api_key_groq (or GROQ_API_KEY) is required for translation")
	}
	var opts []mtgroq.Option
	if a.cfg.TranslatorModel != "" {
		opts = append(opts, mtgroq.WithModel(a.cfg.TranslatorModel))
	}
	primary, err := mtgroq.New(a.cfg.APIKeyGroq, opts...)
	if err != nil {
		return nil, err
	}

	group := resilience.NewTranslatorFallback(primary, "groq", resilience.FallbackConfig{})
	model := a.cfg.TranslatorModel
	if model == "" {
		model = mtgroq.DefaultModel
	}
	fallback, err := anyllm.NewGroq(model, anyllmlib.WithAPIKey(a.cfg.APIKeyGroq))
	if err != nil {
		slog.Warn("translator fallback unavailable", "error", err)
		return group, nil
	}
	group.AddFallback("groq-anyllm", fallback)
	return group, nil
}

// initHistory connects the transcript store: PostgreSQL when a DSN is
// configured, otherwise an in-memory ring so recent_transcripts has data to
// serve.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.cfg.HistoryDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.HistoryDSN)
		if err != nil {
			return err
		}
		a.store = store
		a.historyPing = true
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		return nil
	}
	a.store = history.NewMemoryStore(0)
	return nil
}

// initEngines builds both engines around the shared interlock. The sender
// translates source→target, the receiver target→source, each with its own
// voice resolved from the catalog by the language it speaks.
func (a *App) initEngines() error {
	a.lock = interlock.New()

	sender, err := a.newEngine("SENDER", a.source, a.target, a.senderCapture, a.senderPlayback)
	if err != nil {
		return err
	}
	receiver, err := a.newEngine("RECEIVER", a.target, a.source, a.receiverCapture, a.receiverPlayback)
	if err != nil {
		return err
	}
	a.sender, a.receiver = sender, receiver
	return nil
}

// newEngine assembles one engine for the given direction.
func (a *App) newEngine(name string, source, target lang.Tag, capture audio.CaptureStream, playback audio.PlaybackStream) (*engine.Engine, error) {
	det, err := energy.New().NewDetector(vadConfig(a.cfg.VADMode))
	if err != nil {
		return nil, fmt.Errorf("vad detector: %w", err)
	}

	opts := []engine.Option{
		engine.WithVAD(det),
		engine.WithStatusSink(a.status),
		engine.WithMetrics(a.metrics),
		engine.WithHistory(a.store),
		engine.WithVoice(a.voiceFor(target)),
	}
	if frames := a.cfg.EndSilenceFrames(); frames > 0 {
		opts = append(opts, engine.WithEndSilenceFrames(frames))
	}
	if a.cfg.FilterWords != nil {
		opts = append(opts, engine.WithFilter(transcript.NewFilter(transcript.WithStopPhrases(a.cfg.FilterWords))))
	}
	if a.monitor != nil {
		hub := a.monitor.Hub()
		opts = append(opts, engine.WithVolumeCallback(func(level float64) {
			hub.PublishLevel(name, level)
		}))
	}

	return engine.New(engine.Config{
		Name:        name,
		Source:      source,
		Target:      target,
		Capture:     capture,
		Playback:    playback,
		Recognizer:  a.recognizer,
		Translator:  a.translator,
		Synthesizer: a.synthesizer,
		Interlock:   a.lock,
	}, opts...)
}

// voiceFor resolves the synthesis voice for a target language: catalog entry
// by language code first, then the flat tts_voice / tts_model config keys.
func (a *App) voiceFor(target lang.Tag) tts.Voice {
	v := a.voices.Voice(target.Code)
	if v.ID == "" {
		v.ID = a.cfg.TTSVoice
	}
	if v.Model == "" {
		v.Model = a.cfg.TTSModel
	}
	return v
}

// initMonitor binds the monitor listener when monitor_addr is configured.
// Binding here rather than in Run keeps address errors synchronous and
// fail-fast.
func (a *App) initMonitor() error {
	if a.cfg.MonitorAddr == "" {
		return nil
	}

	checkers := []monitor.Checker{
		{Name: "audio", Check: func(ctx context.Context) error {
			_, err := a.platform.InputDevices()
			return err
		}},
		{Name: "engines", Check: a.checkEngines},
	}
	if a.historyPing {
		checkers = append(checkers, monitor.Checker{Name: "history", Check: func(ctx context.Context) error {
			_, err := a.store.Recent(ctx, 1)
			return err
		}})
	}

	a.monitor = monitor.New(monitor.Config{
		Addr:     a.cfg.MonitorAddr,
		Metrics:  a.metrics,
		Checkers: checkers,
	})

	ln, err := net.Listen("tcp", a.cfg.MonitorAddr)
	if err != nil {
		return fmt.Errorf("bind monitor listener: %w", err)
	}
	a.monitorLn = ln
	return nil
}

// MonitorAddr returns the bound monitor listen address, or the empty string
// when the monitor is disabled. With a ":0" port configured this is the
// resolved address.
func (a *App) MonitorAddr() string {
	if a.monitorLn == nil {
		return ""
	}
	return a.monitorLn.Addr().String()
}

// checkEngines fails readiness once either engine has stopped or is going down.
func (a *App) checkEngines(context.Context) error {
	for _, e := range []*engine.Engine{a.sender, a.receiver} {
		if err := e.Err(); err != nil {
			return fmt.Errorf("engine %s: %w", e.Name(), err)
		}
		if st := e.State(); st == engine.StateStopping || st == engine.StateStopped {
			return fmt.Errorf("engine %s is %s", e.Name(), st)
		}
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts both engines and blocks until ctx is cancelled or an engine
// fails fatally. The monitor and MCP servers, when configured, run alongside
// under the same group. On return the engines are still running; call
// Shutdown to stop them.
func (a *App) Run(ctx context.Context) error {
	if err := a.sender.Start(); err != nil {
		return fmt.Errorf("app: start sender: %w", err)
	}
	if err := a.receiver.Start(); err != nil {
		return fmt.Errorf("app: start receiver: %w", err)
	}
	a.publishState(a.sender)
	a.publishState(a.receiver)

	g, gctx := errgroup.WithContext(ctx)

	// ── Status fan-out ───────────────────────────────────────────────────
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line := <-a.status:
				fmt.Fprintln(a.statusOut, line)
				a.publishCaption(line)
			}
		}
	})

	// ── Engine supervision ───────────────────────────────────────────────
	for _, e := range []*engine.Engine{a.sender, a.receiver} {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case <-e.Done():
				a.publishState(e)
				if err := e.Err(); err != nil {
					return fmt.Errorf("app: engine %s failed: %w", e.Name(), err)
				}
				slog.Info("engine stopped", "engine", e.Name())
				return nil
			}
		})
	}

	// ── Monitor server ───────────────────────────────────────────────────
	if a.monitor != nil {
		g.Go(func() error {
			return a.monitor.Serve(a.monitorLn)
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.monitor.Shutdown(context.Background())
		})
	}

	// ── MCP server ───────────────────────────────────────────────────────
	if a.mcpServer != nil {
		g.Go(func() error {
			err := a.mcpServer.Run(gctx)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("app: mcp server: %w", err)
			}
			if err == nil {
				slog.Info("mcp session ended")
			}
			return nil
		})
	}

	slog.Info("app running",
		"source", a.source.Name, "target", a.target.Name,
		"monitor", a.cfg.MonitorAddr != "", "mcp", a.mcpServer != nil)

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// publishState mirrors an engine's state onto the caption hub.
func (a *App) publishState(e *engine.Engine) {
	if a.monitor == nil {
		return
	}
	a.monitor.Hub().PublishState(e.Name(), e.State().String())
}

// publishCaption forwards status lines that carry a transcript pair to the
// caption hub. Other status lines (glitch notices) stay console-only.
func (a *App) publishCaption(line string) {
	if a.monitor == nil {
		return
	}
	if pair, ok := transcript.ParsePair(line); ok {
		a.monitor.Hub().PublishCaption(pair.Engine, pair.Original, pair.Translated)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops both engines, the servers, and every closer in order. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Engines first: they own the audio streams and the interlock.
		var wg sync.WaitGroup
		for _, e := range []*engine.Engine{a.sender, a.receiver} {
			if e == nil {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := e.Stop(); err != nil {
					slog.Warn("engine stop error", "engine", e.Name(), "err", err)
				}
				a.publishState(e)
			}()
		}
		wg.Wait()

		if a.monitor != nil {
			if err := a.monitor.Shutdown(ctx); err != nil {
				slog.Warn("monitor shutdown error", "err", err)
			}
		}
		// Serve may never have been reached; the bound listener is closed
		// here so a constructed-but-not-run app leaks nothing.
		if a.monitorLn != nil {
			_ = a.monitorLn.Close()
		}

		// Run closers in order.
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// resolveDevice matches a configured device label against the live device
// list. An empty label or a stale one selects the system default; the stale
// case logs the closest known device so typos surface.
func resolveDevice(devices []audio.Device, label, key string) *audio.Device {
	if label == "" {
		return nil
	}
	if d, ok := audio.Resolve(devices, label); ok {
		return &d
	}
	if s, ok := audio.Suggest(devices, label); ok {
		slog.Warn("configured device not found, using system default",
			"setting", key, "label", label, "closest", s.Label())
	} else {
		slog.Warn("configured device not found, using system default",
			"setting", key, "label", label)
	}
	return nil
}

// vadConfig builds the detector config for the capture format.
func vadConfig(mode int) vad.Config {
	return vad.Config{
		SampleRate: audio.SampleRate,
		FrameSize:  audio.FrameSamples,
		Mode:       mode,
	}
}
