// Command parley is the real-time bi-directional speech translator.
//
// It runs two translation engines with opposite language polarity: the
// SENDER engine turns local speech into the target language, the RECEIVER
// engine turns remote speech back into the source language. Device routing,
// languages, and provider credentials come from a flat config.json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/miniaudio"
	"github.com/MrWong99/parley/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	voicesPath := flag.String("voices", "", "path to the YAML voice catalog (overrides voices_file)")
	logLevel := flag.String("log-level", "", "log verbosity: debug, info, warn, error (overrides log_level)")
	monitorAddr := flag.String("monitor-addr", "", "monitor HTTP listen address (overrides monitor_addr)")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio (overrides mcp)")
	listDevices := flag.Bool("list-devices", false, "print the available audio devices and exit")
	listVoices := flag.Bool("list-voices", false, "print the ElevenLabs voices available to the configured API key and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("parley", version)
		return 0
	}
	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found — an empty {} gets you defaults, -list-devices shows the device labels\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	// Flags override their config keys; re-validate the merged result.
	if *voicesPath != "" {
		cfg.VoicesFile = *voicesPath
	}
	if *logLevel != "" {
		cfg.LogLevel = config.LogLevel(*logLevel)
	}
	if *monitorAddr != "" {
		cfg.MonitorAddr = *monitorAddr
	}
	if *mcpMode {
		cfg.MCP = true
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}

	if *listVoices {
		return printVoices(cfg)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel.Level()}))
	slog.SetDefault(logger)

	slog.Info("parley starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// The Prometheus bridge feeds the default registry, which the monitor
	// server scrapes on /metrics.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := []app.Option{app.WithVersion(version)}
	if cfg.MCP {
		// MCP owns stdout for the protocol; keep transcripts on stderr.
		opts = append(opts, app.WithStatusWriter(os.Stderr))
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("translator ready — press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Device listing ──────────────────────────────────────────────────────────────

// printDevices enumerates the host audio devices in the exact label form the
// sender_input/sender_output configuration keys accept.
func printDevices() int {
	platform, err := miniaudio.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}
	defer platform.Close()

	inputs, err := platform.InputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}
	outputs, err := platform.OutputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}

	fmt.Println("Input devices (sender_input / receiver_input):")
	printDeviceList(inputs)
	fmt.Println()
	fmt.Println("Output devices (sender_output / receiver_output):")
	printDeviceList(outputs)
	return 0
}

func printDeviceList(devices []audio.Device) {
	if len(devices) == 0 {
		fmt.Println("  (none found)")
		return
	}
	for _, d := range devices {
		if d.Default {
			fmt.Printf("  %s  [default]\n", d.Label())
		} else {
			fmt.Printf("  %s\n", d.Label())
		}
	}
}

// ── Voice listing ───────────────────────────────────────────────────────────────

// printVoices fetches the voice catalogue for the configured ElevenLabs key.
// The printed IDs are what the voices file and the voice_id config key accept.
func printVoices(cfg *config.Config) int {
	synth, err := elevenlabs.New(cfg.APIKeyElevenLabs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	voices, err := synth.ListVoices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		return 1
	}
	fmt.Print(formatVoiceList(voices))
	return 0
}

// formatVoiceList renders one line per voice: ID, name, category, and the
// labels the API provides, sorted by key so output is stable.
func formatVoiceList(voices []elevenlabs.VoiceInfo) string {
	if len(voices) == 0 {
		return "(no voices found)\n"
	}
	var b strings.Builder
	for _, v := range voices {
		fmt.Fprintf(&b, "%-24s %-20s %s%s\n", v.ID, v.Name, v.Category, labelSuffix(v.Labels))
	}
	return b.String()
}

func labelSuffix(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return "  [" + strings.Join(parts, ", ") + "]"
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║            parley — startup summary          ║")
	fmt.Fprintln(os.Stderr, "╠══════════════════════════════════════════════╣")
	printSummaryLine("Languages", cfg.SourceLang+" ⇄ "+cfg.TargetLang)
	printSummaryLine("Recognizer", withModel(string(cfg.Recognizer), cfg.RecognizerModel))
	printSummaryLine("Translator", withModel("groq", cfg.TranslatorModel))
	printSummaryLine("Synthesizer", withModel("elevenlabs", cfg.TTSModel))
	printSummaryLine("Sender in", orDefault(cfg.SenderInput))
	printSummaryLine("Sender out", orDefault(cfg.SenderOutput))
	printSummaryLine("Receiver in", orDefault(cfg.ReceiverInput))
	printSummaryLine("Receiver out", orDefault(cfg.ReceiverOutput))
	printSummaryLine("VAD mode", fmt.Sprintf("%d (silence %d ms)", cfg.VADMode, cfg.EndSilenceMs))
	printSummaryLine("History", enabledWhen(cfg.HistoryDSN != ""))
	printSummaryLine("Monitor", orDisabled(cfg.MonitorAddr))
	printSummaryLine("MCP", enabledWhen(cfg.MCP))
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════╝")
}

func printSummaryLine(key, value string) {
	if len([]rune(value)) > 30 {
		value = string([]rune(value)[:29]) + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-12s: %-30s ║\n", key, value)
}

func withModel(name, model string) string {
	if model == "" {
		return name
	}
	return name + " / " + model
}

func orDefault(label string) string {
	if label == "" {
		return "(system default)"
	}
	return label
}

func orDisabled(value string) string {
	if value == "" {
		return "(disabled)"
	}
	return value
}

func enabledWhen(on bool) string {
	if on {
		return "enabled"
	}
	return "(disabled)"
}
