// Package mcp exposes a running translator to Model Context Protocol clients.
//
// The server speaks MCP over stdio using the official Go SDK and offers four
// read-only tools:
//
//   - get_status         — engine states, utterance counters, interlock holders
//   - list_devices       — capture and playback devices visible to the host
//   - recent_transcripts — newest entries from the transcript history
//   - search_transcripts — substring search over the transcript history
//
// Tools never mutate the translator; an MCP client can observe a session but
// not steer it.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/parley/internal/engine"
	"github.com/MrWong99/parley/internal/interlock"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/history"
)

// defaultTranscriptLimit applies when a transcript tool is called without a
// limit argument.
const defaultTranscriptLimit = 20

// errHistoryDisabled is reported by transcript tools when no history store is
// configured.
var errHistoryDisabled = errors.New("transcript history is disabled, set history_dsn to enable it")

// Config wires the running subsystems into the tool surface.
type Config struct {
	// Version is reported to clients during the MCP handshake.
	Version string

	// Engines are the engines to report in get_status, in display order.
	Engines []*engine.Engine

	// Lock is the duplex interlock shared by the engines.
	Lock *interlock.Interlock

	// Platform enumerates audio devices for list_devices.
	Platform audio.Platform

	// History backs the transcript tools. Nil makes those tools report an
	// error instead of failing the whole server.
	History history.Store
}

// Server is the MCP stdio server. Create one with [New] and serve it with
// [Server.Run].
type Server struct {
	cfg Config
	srv *mcpsdk.Server
}

// New builds the server and registers all tools.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	srv := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: "parley", Version: cfg.Version},
		nil,
	)
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Engine states, per-engine utterance counters and duplex interlock holders of the running translator.",
	}, s.getStatus)
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "list_devices",
		Description: "List the capture and playback audio devices currently visible to the host.",
	}, s.listDevices)
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "recent_transcripts",
		Description: "Return the newest transcript entries in chronological order.",
	}, s.recentTranscripts)
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        "search_transcripts",
		Description: "Search transcript history by substring, optionally restricted to one engine.",
	}, s.searchTranscripts)

	s.srv = srv
	return s
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx is
// cancelled. While Run is active, stdout belongs to the protocol; the
// application must keep its own output on stderr.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// Connect attaches the server to an arbitrary transport and returns the
// session. Used by tests; production callers want [Server.Run].
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

// ─── get_status ──────────────────────────────────────────────────────────────

// EngineStatus is one engine's row in a [Status] report.
type EngineStatus struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Translated uint64 `json:"translated"`
	Dropped    uint64 `json:"dropped"`
	Failures   uint64 `json:"failures"`
}

// InterlockStatus reports who currently holds the duplex interlock.
type InterlockStatus struct {
	Held    bool     `json:"held"`
	Holders []string `json:"holders,omitempty"`
}

// Status is the result of the get_status tool.
type Status struct {
	Engines   []EngineStatus  `json:"engines"`
	Interlock InterlockStatus `json:"interlock"`
}

func (s *Server) getStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, Status, error) {
	st := Status{Engines: make([]EngineStatus, 0, len(s.cfg.Engines))}
	for _, e := range s.cfg.Engines {
		c := e.Counters()
		st.Engines = append(st.Engines, EngineStatus{
			Name:       e.Name(),
			State:      e.State().String(),
			Source:     e.Source().Name,
			Target:     e.Target().Name,
			Translated: c.Translated,
			Dropped:    c.Dropped,
			Failures:   c.Failures,
		})
	}
	if s.cfg.Lock != nil {
		st.Interlock = InterlockStatus{Held: s.cfg.Lock.Held(), Holders: s.cfg.Lock.Holders()}
	}
	return nil, st, nil
}

// ─── list_devices ────────────────────────────────────────────────────────────

// Device is one audio device in a [DeviceList]. Label is the exact string
// accepted by the sender_input/sender_output configuration keys.
type Device struct {
	Label   string `json:"label"`
	Default bool   `json:"default,omitempty"`
}

// DeviceList is the result of the list_devices tool.
type DeviceList struct {
	Inputs  []Device `json:"inputs"`
	Outputs []Device `json:"outputs"`
}

func (s *Server) listDevices(_ context.Context, _ *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, DeviceList, error) {
	inputs, err := s.cfg.Platform.InputDevices()
	if err != nil {
		return nil, DeviceList{}, fmt.Errorf("list input devices: %w", err)
	}
	outputs, err := s.cfg.Platform.OutputDevices()
	if err != nil {
		return nil, DeviceList{}, fmt.Errorf("list output devices: %w", err)
	}
	return nil, DeviceList{Inputs: toDevices(inputs), Outputs: toDevices(outputs)}, nil
}

func toDevices(devices []audio.Device) []Device {
	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = Device{Label: d.Label(), Default: d.Default}
	}
	return out
}

// ─── transcript tools ────────────────────────────────────────────────────────

// Transcript is one history entry rendered for MCP clients.
type Transcript struct {
	ID         string    `json:"id"`
	Engine     string    `json:"engine"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	SourceText string    `json:"source_text"`
	Translated string    `json:"translated_text"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TranscriptList is the result of the transcript tools, oldest entry first.
type TranscriptList struct {
	Transcripts []Transcript `json:"transcripts"`
}

type recentArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries to return, default 20"`
}

func (s *Server) recentTranscripts(ctx context.Context, _ *mcpsdk.CallToolRequest, args recentArgs) (*mcpsdk.CallToolResult, TranscriptList, error) {
	if s.cfg.History == nil {
		return nil, TranscriptList{}, errHistoryDisabled
	}
	entries, err := s.cfg.History.Recent(ctx, normalizeLimit(args.Limit))
	if err != nil {
		return nil, TranscriptList{}, fmt.Errorf("recent transcripts: %w", err)
	}
	return nil, toTranscriptList(entries), nil
}

type searchArgs struct {
	Query  string `json:"query" jsonschema:"case-insensitive substring matched against source and translated text"`
	Engine string `json:"engine,omitempty" jsonschema:"restrict matches to one engine, SENDER or RECEIVER"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of matches to return, default 20"`
}

func (s *Server) searchTranscripts(ctx context.Context, _ *mcpsdk.CallToolRequest, args searchArgs) (*mcpsdk.CallToolResult, TranscriptList, error) {
	if s.cfg.History == nil {
		return nil, TranscriptList{}, errHistoryDisabled
	}
	if args.Query == "" {
		return nil, TranscriptList{}, errors.New("query must not be empty")
	}
	entries, err := s.cfg.History.Search(ctx, args.Query, history.SearchOpts{
		Engine: args.Engine,
		Limit:  normalizeLimit(args.Limit),
	})
	if err != nil {
		return nil, TranscriptList{}, fmt.Errorf("search transcripts: %w", err)
	}
	return nil, toTranscriptList(entries), nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultTranscriptLimit
	}
	return limit
}

func toTranscriptList(entries []history.Entry) TranscriptList {
	list := TranscriptList{Transcripts: make([]Transcript, len(entries))}
	for i, e := range entries {
		list.Transcripts[i] = Transcript{
			ID:         e.ID.String(),
			Engine:     e.Engine,
			SourceLang: e.SourceLang,
			TargetLang: e.TargetLang,
			SourceText: e.SourceText,
			Translated: e.TranslatedText,
			LatencyMs:  e.Total.Milliseconds(),
			CreatedAt:  e.CreatedAt,
		}
	}
	return list
}
