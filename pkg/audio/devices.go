package audio

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// Device describes one enumerated audio device.
type Device struct {
	// Index is the position of the device in the enumeration order of its
	// platform. Indexes are stable for the lifetime of a Platform but may
	// change across restarts when devices come and go.
	Index int

	// Name is the host-reported device name, e.g. "Microphone (Realtek Audio)".
	Name string

	// Default marks the system default device of its direction.
	Default bool
}

// Label renders the device in the "NN: Name" form used by configuration
// files and the device listing, e.g. "12: Microphone (Realtek Audio)".
func (d Device) Label() string {
	return fmt.Sprintf("%d: %s", d.Index, d.Name)
}

// Resolve matches a configured label against devices. It accepts the full
// "NN: Name" label form as well as a bare device name. Returns false when
// label is empty or matches nothing; the caller then falls back to the
// default device.
func Resolve(devices []Device, label string) (Device, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Device{}, false
	}
	for _, d := range devices {
		if d.Label() == label {
			return d, true
		}
	}
	for _, d := range devices {
		if strings.EqualFold(d.Name, label) {
			return d, true
		}
	}
	return Device{}, false
}

// Suggest returns the device whose label is closest to label by Levenshtein
// distance. Used to enrich the log line when [Resolve] fails. Returns false
// when devices is empty.
func Suggest(devices []Device, label string) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	label = strings.ToLower(strings.TrimSpace(label))
	best := devices[0]
	bestDist := -1
	for _, d := range devices {
		dist := matchr.Levenshtein(label, strings.ToLower(d.Label()))
		if nameDist := matchr.Levenshtein(label, strings.ToLower(d.Name)); nameDist < dist {
			dist = nameDist
		}
		if bestDist < 0 || dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best, true
}
