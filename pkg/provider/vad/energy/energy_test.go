package energy_test

import (
	"math"
	"testing"

	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

const (
	testSampleRate = 16000
	testFrameSize  = 480
)

func testConfig(mode int) vad.Config {
	return vad.Config{SampleRate: testSampleRate, FrameSize: testFrameSize, Mode: mode}
}

// sineFrame returns one 30 ms frame of a 440 Hz tone at the given peak
// amplitude.
func sineFrame(amplitude float64) []byte {
	frame := make([]byte, testFrameSize*2)
	for i := 0; i < testFrameSize; i++ {
		s := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/testSampleRate))
		frame[2*i] = byte(s)
		frame[2*i+1] = byte(s >> 8)
	}
	return frame
}

// altFrame returns one frame alternating between +amplitude and -amplitude
// every sample, giving a zero-crossing rate of 1.
func altFrame(amplitude int16) []byte {
	frame := make([]byte, testFrameSize*2)
	for i := 0; i < testFrameSize; i++ {
		s := amplitude
		if i%2 == 1 {
			s = -amplitude
		}
		frame[2*i] = byte(s)
		frame[2*i+1] = byte(s >> 8)
	}
	return frame
}

func silenceFrame() []byte {
	return make([]byte, testFrameSize*2)
}

func TestNewDetector_ValidatesConfig(t *testing.T) {
	t.Parallel()

	eng := energy.New()

	tests := []struct {
		name    string
		cfg     vad.Config
		wantErr bool
	}{
		{"valid 16k 30ms mode 3", vad.Config{SampleRate: 16000, FrameSize: 480, Mode: 3}, false},
		{"valid 8k 10ms mode 0", vad.Config{SampleRate: 8000, FrameSize: 80, Mode: 0}, false},
		{"valid 48k 20ms mode 2", vad.Config{SampleRate: 48000, FrameSize: 960, Mode: 2}, false},
		{"unsupported sample rate", vad.Config{SampleRate: 44100, FrameSize: 441, Mode: 1}, true},
		{"frame size not 10/20/30 ms", vad.Config{SampleRate: 16000, FrameSize: 512, Mode: 1}, true},
		{"mode too high", vad.Config{SampleRate: 16000, FrameSize: 480, Mode: 4}, true},
		{"negative mode", vad.Config{SampleRate: 16000, FrameSize: 480, Mode: -1}, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.NewDetector(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("NewDetector(%+v) error = %v, wantErr %v", tc.cfg, err, tc.wantErr)
			}
		})
	}
}

func TestProcessFrame_RejectsWrongSize(t *testing.T) {
	t.Parallel()

	det, err := energy.New().NewDetector(testConfig(3))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if _, err := det.ProcessFrame(make([]byte, 100)); err == nil {
		t.Error("ProcessFrame with undersized frame did not error")
	}
}

func TestProcessFrame_ClassifiesSpeechAndSilence(t *testing.T) {
	t.Parallel()

	for mode := 0; mode <= 3; mode++ {
		det, err := energy.New().NewDetector(testConfig(mode))
		if err != nil {
			t.Fatalf("NewDetector(mode %d): %v", mode, err)
		}

		speech, err := det.ProcessFrame(sineFrame(8000))
		if err != nil {
			t.Fatalf("ProcessFrame(loud tone, mode %d): %v", mode, err)
		}
		if !speech {
			t.Errorf("mode %d: loud tone classified as silence", mode)
		}

		speech, err = det.ProcessFrame(silenceFrame())
		if err != nil {
			t.Fatalf("ProcessFrame(silence, mode %d): %v", mode, err)
		}
		if speech {
			t.Errorf("mode %d: silence classified as speech", mode)
		}
	}
}

func TestProcessFrame_ModeControlsSensitivity(t *testing.T) {
	t.Parallel()

	// A quiet tone just above the mode-0 threshold.
	quiet := sineFrame(200)

	permissive, _ := energy.New().NewDetector(testConfig(0))
	aggressive, _ := energy.New().NewDetector(testConfig(3))

	if speech, _ := permissive.ProcessFrame(quiet); !speech {
		t.Error("mode 0 rejected a quiet tone above its threshold")
	}
	if speech, _ := aggressive.ProcessFrame(quiet); speech {
		t.Error("mode 3 accepted a tone well below its threshold")
	}
}

func TestProcessFrame_AdaptsToNoiseFloor(t *testing.T) {
	t.Parallel()

	det, err := energy.New().NewDetector(testConfig(0))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	probe := sineFrame(200)
	if speech, _ := det.ProcessFrame(probe); !speech {
		t.Fatal("probe tone not classified as speech by a fresh detector")
	}

	// Sustained background hum raises the noise floor above the probe.
	hum := sineFrame(120)
	for i := 0; i < 200; i++ {
		if _, err := det.ProcessFrame(hum); err != nil {
			t.Fatalf("ProcessFrame(hum %d): %v", i, err)
		}
	}

	if speech, _ := det.ProcessFrame(probe); speech {
		t.Error("probe tone still classified as speech after the floor adapted above it")
	}

	det.Reset()
	if speech, _ := det.ProcessFrame(probe); !speech {
		t.Error("Reset did not clear the adapted noise floor")
	}
}

func TestProcessFrame_HighZeroCrossingRescue(t *testing.T) {
	t.Parallel()

	// Both frames sit between half the mode-1 threshold and the threshold
	// itself; only the one with a high zero-crossing rate passes.
	fricativeLike := altFrame(200)
	voicedLike := sineFrame(283)

	det, err := energy.New().NewDetector(testConfig(1))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if speech, _ := det.ProcessFrame(fricativeLike); !speech {
		t.Error("high-ZCR frame below the threshold was not rescued")
	}

	det, err = energy.New().NewDetector(testConfig(1))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if speech, _ := det.ProcessFrame(voicedLike); speech {
		t.Error("low-ZCR frame below the threshold was classified as speech")
	}
}
