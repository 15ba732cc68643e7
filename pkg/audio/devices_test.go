package audio_test

import (
	"testing"

	"github.com/MrWong99/parley/pkg/audio"
)

var testDevices = []audio.Device{
	{Index: 0, Name: "Speakers (Realtek High Definition Audio)", Default: true},
	{Index: 1, Name: "Headset Earphone (Arctis 7)"},
	{Index: 12, Name: "Microphone (Realtek Audio)"},
}

func TestDeviceLabel(t *testing.T) {
	t.Parallel()

	got := testDevices[2].Label()
	want := "12: Microphone (Realtek Audio)"
	if got != want {
		t.Errorf("Label() = %q, want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		label     string
		wantIndex int
		wantOK    bool
	}{
		{name: "full label", label: "12: Microphone (Realtek Audio)", wantIndex: 12, wantOK: true},
		{name: "bare name", label: "Headset Earphone (Arctis 7)", wantIndex: 1, wantOK: true},
		{name: "bare name case-insensitive", label: "headset earphone (arctis 7)", wantIndex: 1, wantOK: true},
		{name: "stale index", label: "3: Microphone (Realtek Audio)", wantOK: false},
		{name: "unknown", label: "7: USB Webcam Mic", wantOK: false},
		{name: "empty", label: "", wantOK: false},
		{name: "whitespace", label: "   ", wantOK: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, ok := audio.Resolve(testDevices, tc.label)
			if ok != tc.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.label, ok, tc.wantOK)
			}
			if ok && d.Index != tc.wantIndex {
				t.Errorf("Resolve(%q) index = %d, want %d", tc.label, d.Index, tc.wantIndex)
			}
		})
	}
}

func TestSuggest_FindsClosestLabel(t *testing.T) {
	t.Parallel()

	d, ok := audio.Suggest(testDevices, "12: Microphone (Realtek)")
	if !ok {
		t.Fatal("Suggest returned no device")
	}
	if d.Index != 12 {
		t.Errorf("Suggest index = %d, want 12", d.Index)
	}

	if _, ok := audio.Suggest(nil, "anything"); ok {
		t.Error("Suggest on empty device list returned a device")
	}
}
