package app

import (
	"fmt"

	"github.com/ayusman/handtrack/internal/store"
)

// Settings are the runtime display toggles.
type Settings struct {
	Mirror        bool
	ShowLandmarks bool
	ShowFPS       bool
	LogLandmarks  bool
}

// Toggle names one of the Settings switches.
type Toggle int

const (
	ToggleMirror Toggle = iota
	ToggleLandmarks
	ToggleFPS
	ToggleLogLandmarks
)

func (t Toggle) String() string {
	switch t {
	case ToggleMirror:
		return "mirror"
	case ToggleLandmarks:
		return "landmarks"
	case ToggleFPS:
		return "fps"
	case ToggleLogLandmarks:
		return "log_landmarks"
	default:
		return fmt.Sprintf("toggle(%d)", int(t))
	}
}

// storeKey maps a toggle to its settings key.
func (t Toggle) storeKey() string {
	switch t {
	case ToggleMirror:
		return store.KeyMirror
	case ToggleLandmarks:
		return store.KeyShowLandmarks
	case ToggleFPS:
		return store.KeyShowFPS
	case ToggleLogLandmarks:
		return store.KeyLogLandmarks
	default:
		return ""
	}
}

func (s *Settings) field(t Toggle) *bool {
	switch t {
	case ToggleMirror:
		return &s.Mirror
	case ToggleLandmarks:
		return &s.ShowLandmarks
	case ToggleFPS:
		return &s.ShowFPS
	case ToggleLogLandmarks:
		return &s.LogLandmarks
	default:
		return nil
	}
}

// Get returns the value of a toggle.
func (s Settings) Get(t Toggle) bool {
	if p := s.field(t); p != nil {
		return *p
	}
	return false
}

// LoadSettings overlays persisted toggles on defaults. Keys that were never
// stored keep their default.
func LoadSettings(repo *store.SettingsRepository, defaults Settings) (Settings, error) {
	s := defaults
	for _, t := range []Toggle{ToggleMirror, ToggleLandmarks, ToggleFPS, ToggleLogLandmarks} {
		p := s.field(t)
		v, err := repo.GetBool(t.storeKey(), *p)
		if err != nil {
			return defaults, fmt.Errorf("load setting %s: %w", t, err)
		}
		*p = v
	}
	return s, nil
}
