package session

import (
	"time"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/rng"
)

// Deps are shared by every session of a Manager. Nothing in here holds
// per-session state.
type Deps struct {
	Catalog    *catalog.Catalog
	Detector   detect.Provider
	Challenges *challenge.Generator
	Rand       rng.Source
	Now        func() time.Time
}

func (d *Deps) defaults() {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Rand == nil {
		d.Rand = rng.NewTimeSeeded()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Detector == nil {
		d.Detector = detect.NewSimulator(detect.Options{Catalog: d.Catalog, Rand: d.Rand})
	}
	if d.Challenges == nil {
		d.Challenges = challenge.NewGenerator(d.Catalog, d.Rand)
	}
}

// Snapshot is a copy of a session's state, safe to render.
type Snapshot struct {
	Token               string                `json:"token"`
	CreatedAt           time.Time             `json:"createdAt"`
	Language            catalog.Language      `json:"language"`
	UserScore           int                   `json:"userScore"`
	GamesPlayed         int                   `json:"gamesPlayed"`
	ReportToShare       *community.ShareDraft `json:"reportToShare,omitempty"`
	RegisteredWorkshops []string              `json:"registeredWorkshops"`
	CurrentChallenge    *challenge.Challenge  `json:"currentChallenge,omitempty"`
	UserChoice          *challenge.Choice     `json:"userChoice,omitempty"`
	LastResult          *detect.Result        `json:"lastResult,omitempty"`
	ReportCount         int                   `json:"reportCount"`
}

// Outcome is the graded answer to the current challenge.
type Outcome struct {
	Correct       bool             `json:"correct"`
	Choice        challenge.Choice `json:"choice"`
	CorrectAnswer challenge.Choice `json:"correctAnswer"`
	Explanation   string           `json:"explanation"`
	UserScore     int              `json:"userScore"`
	GamesPlayed   int              `json:"gamesPlayed"`
}
