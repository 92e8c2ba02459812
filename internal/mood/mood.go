// Package mood models the four-dimensional emotional state that drives the
// visual scene. A State is replaced wholesale on every change; nothing mutates
// it in place once published.
package mood

import (
	"github.com/veliks/moodpulse/internal/utils"
)

// State is a normalized mood vector. All components live in [0,1].
type State struct {
	Energy    float64 `json:"energy"`
	Valence   float64 `json:"valence"`
	Euphoria  float64 `json:"euphoria"`
	Cognition float64 `json:"cognition"`
}

// New returns a State with every component clamped to [0,1].
func New(energy, valence, euphoria, cognition float64) State {
	return State{
		Energy:    utils.Clamp(energy, 0.0, 1.0),
		Valence:   utils.Clamp(valence, 0.0, 1.0),
		Euphoria:  utils.Clamp(euphoria, 0.0, 1.0),
		Cognition: utils.Clamp(cognition, 0.0, 1.0),
	}
}

// Clamped returns a copy of s with all components forced into [0,1].
func (s State) Clamped() State {
	return New(s.Energy, s.Valence, s.Euphoria, s.Cognition)
}

// AudioFeatures is the per-track metadata supplied by the streaming service.
// Estimated marks features synthesized locally because the upstream lookup
// was missing or denied.
type AudioFeatures struct {
	Energy           float64
	Valence          float64
	Danceability     float64
	Acousticness     float64
	Instrumentalness float64
	Tempo            float64
	Estimated        bool
}

// FromAudioFeatures maps streaming-service track metadata onto the mood axes:
// danceability feeds euphoria, and the acoustic/instrumental average feeds
// cognition.
func FromAudioFeatures(f AudioFeatures) State {
	return New(
		f.Energy,
		f.Valence,
		f.Danceability,
		(f.Acousticness+f.Instrumentalness)/2,
	)
}
