package engine

import (
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/transcript"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/history"
)

// processLoop drains the utterance queue, one utterance at a time. It exits
// when the engine stops or the segmenter closes the queue; on the stop path
// anything still queued is discarded unprocessed.
func (e *Engine) processLoop() {
	defer close(e.pcm)

	for {
		select {
		case <-e.ctx.Done():
			return
		case utt, ok := <-e.utterances:
			if !ok {
				return
			}
			e.processUtterance(utt)
		}
	}
}

// processUtterance runs one utterance through recognition, translation, and
// synthesis, forwarding synthesized chunks to the playback worker as they
// arrive. The whole utterance is traced as one span with a child span per
// provider stage. Failures drop the utterance after a short backoff; the
// worker itself survives everything up to and including panics.
func (e *Engine) processUtterance(utt utterance) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("utterance processing panicked",
				"engine", e.name, "panic", r)
			e.failures.Add(1)
			e.metrics.RecordUtterance(e.ctx, e.name, "error")
			e.pause(e.criticalBackoff)
		}
	}()

	ctx, span := observe.StartSpan(e.ctx, "utterance",
		trace.WithAttributes(
			attribute.String("engine", e.name),
			attribute.Int("frames", utt.frames),
		),
	)
	defer span.End()

	// ── Stage 1: speech to text ──
	sttStart := time.Now()
	sttCtx, sttSpan := observe.StartSpan(ctx, "stt.recognize")
	text, err := e.recognizer.Recognize(sttCtx, utt.pcm, e.source.Code)
	endStageSpan(sttSpan, err)
	if err != nil {
		e.providerFailure(span, "stt", "request", err)
		return
	}
	sttDur := time.Since(sttStart)

	// ── Stage 2: hallucination filter ──
	if reason, drop := e.filter.Drop(text); drop {
		slog.Debug("transcript dropped",
			"engine", e.name, "reason", reason, "text", text)
		e.dropped.Add(1)
		e.metrics.RecordUtterance(ctx, e.name, "dropped")
		return
	}

	// ── Stage 3: translation ──
	// A same-language pair skips the provider round trip entirely.
	translated := text
	var mtDur time.Duration
	if e.source.Code != e.target.Code {
		mtStart := time.Now()
		mtCtx, mtSpan := observe.StartSpan(ctx, "mt.translate")
		translated, err = e.translator.Translate(mtCtx, text, e.target.Name)
		endStageSpan(mtSpan, err)
		if err != nil {
			e.providerFailure(span, "mt", "request", err)
			return
		}
		mtDur = time.Since(mtStart)
		if strings.TrimSpace(translated) == "" {
			slog.Debug("empty translation, dropping", "engine", e.name, "text", text)
			e.dropped.Add(1)
			e.metrics.RecordUtterance(ctx, e.name, "dropped")
			return
		}
	}

	e.publishStatus(transcript.FormatPair(e.name, text, translated))

	// ── Stage 4: streaming synthesis ──
	ttsStart := time.Now()
	ttsCtx, ttsSpan := observe.StartSpan(ctx, "tts.synthesize")
	stream, err := e.synth.Synthesize(ttsCtx, translated, e.voice)
	endStageSpan(ttsSpan, err)
	if err != nil {
		e.providerFailure(span, "tts", "request", err)
		return
	}

	var ttfb, total time.Duration
	chunks := 0
	for chunk := range stream.Chunks() {
		if chunks == 0 {
			ttfb = time.Since(ttsStart)
			total = time.Since(utt.end)
		}
		chunks++
		select {
		case e.pcm <- chunk:
		case <-ctx.Done():
			// The producer sees the same cancellation; collect whatever it
			// already emitted so its final sends never block.
			audio.Drain(stream.Chunks())
			return
		}
	}
	if err := stream.Err(); err != nil {
		// The clip is truncated, never retried; whatever already reached
		// the playback queue plays out.
		e.providerFailure(span, "tts", "stream", err)
		return
	}
	if chunks == 0 {
		total = time.Since(utt.end)
	}

	span.SetAttributes(
		attribute.Int("chunks", chunks),
		attribute.Int64("total_ms", total.Milliseconds()),
	)
	observe.Logger(ctx).Info("utterance completed",
		"engine", e.name,
		"stt_ms", sttDur.Milliseconds(),
		"mt_ms", mtDur.Milliseconds(),
		"tts_ttfb_ms", ttfb.Milliseconds(),
		"total_ms", total.Milliseconds(),
		"chunks", chunks,
	)
	e.translated.Add(1)
	e.metrics.RecordPipeline(ctx, e.name, sttDur, mtDur, ttfb, total)
	e.metrics.RecordUtterance(ctx, e.name, "translated")

	if e.store != nil {
		entry := history.Entry{
			Engine:         e.name,
			SourceLang:     e.source.Code,
			TargetLang:     e.target.Code,
			SourceText:     text,
			TranslatedText: translated,
			STT:            sttDur,
			MT:             mtDur,
			TTSFirstByte:   ttfb,
			Total:          total,
		}
		if err := e.store.Append(ctx, entry); err != nil {
			slog.Warn("history append failed", "engine", e.name, "error", err)
		}
	}
}

// endStageSpan closes a provider stage span, marking it failed when the
// stage returned an error.
func endStageSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// providerFailure handles a failed provider call: the utterance is dropped,
// the status sink gets a glitch notice, and the worker backs off briefly
// before taking the next utterance. Failures during shutdown are ignored;
// the cancelled call is the stop sequence, not a provider problem.
func (e *Engine) providerFailure(span trace.Span, stage, kind string, err error) {
	if e.ctx.Err() != nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")
	slog.Error("provider call failed",
		"engine", e.name, "stage", stage, "error", err)
	e.publishStatus(transcript.FormatGlitch(err))
	e.failures.Add(1)
	e.metrics.RecordUtterance(e.ctx, e.name, "error")
	e.metrics.RecordProviderError(e.ctx, stage, kind)
	e.pause(e.errBackoff)
}
