package detect

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/rng"
)

const (
	DefaultMediaDelay     = 2 * time.Second
	DefaultTextDelay      = 1500 * time.Millisecond
	DefaultMaxUploadBytes = 50 << 20

	triggerWeight = 20
	maxJitter     = 40
	maxTextScore  = 90
	fakeThreshold = 50
)

type Options struct {
	Catalog        *catalog.Catalog
	Rand           rng.Source
	MediaDelay     time.Duration
	TextDelay      time.Duration
	MaxUploadBytes int64
}

// Simulator returns scripted verdicts after an artificial delay.
type Simulator struct {
	cat        *catalog.Catalog
	rand       rng.Source
	mediaDelay time.Duration
	textDelay  time.Duration
	maxUpload  int64
	triggers   []string
}

func NewSimulator(opts Options) *Simulator {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rng.NewTimeSeeded()
	}
	s := &Simulator{
		cat:        opts.Catalog,
		rand:       opts.Rand,
		mediaDelay: opts.MediaDelay,
		textDelay:  opts.TextDelay,
		maxUpload:  opts.MaxUploadBytes,
	}
	for _, p := range opts.Catalog.TriggerPhrases {
		s.triggers = append(s.triggers, fold(p))
	}
	return s
}

func (s *Simulator) AnalyzeMedia(ctx context.Context, m Media) (Result, error) {
	kind, err := ValidateUpload(m, s.maxUpload)
	if err != nil {
		return Result{}, err
	}
	if err := wait(ctx, s.mediaDelay); err != nil {
		return Result{}, err
	}
	tpl := rng.Pick(s.rand, s.cat.MediaTemplates)
	res := fromTemplate(tpl, rng.Between(s.rand, tpl.MinScore, tpl.MaxScore), kind)
	log.Debug().Str("file", m.Filename).Str("kind", kind).Str("class", string(res.Classification)).Int("score", res.Score).Msg("media analyzed")
	return res, nil
}

func (s *Simulator) AnalyzeText(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}
	if err := wait(ctx, s.textDelay); err != nil {
		return Result{}, err
	}
	score := s.Heuristic(text) + rng.Between(s.rand, 0, maxJitter)
	if score > maxTextScore {
		score = maxTextScore
	}
	var res Result
	if score > fakeThreshold {
		res = fromTemplate(s.cat.TextFake, score, ContentNews)
	} else {
		res = fromTemplate(s.cat.TextReliable, s.reliableScore(), ContentNews)
	}
	log.Debug().Int("heuristic", score).Str("class", string(res.Classification)).Int("score", res.Score).Msg("text analyzed")
	return res, nil
}

// Heuristic is 20 points per trigger phrase found in text, each phrase
// counted once, case-insensitively. No jitter.
func (s *Simulator) Heuristic(text string) int {
	folded := fold(text)
	n := 0
	for _, p := range s.triggers {
		if p != "" && strings.Contains(folded, p) {
			n++
		}
	}
	return n * triggerWeight
}

// reliableScore draws the score shown for the reliable branch. The computed
// heuristic is discarded here; the displayed number is a fresh draw.
func (s *Simulator) reliableScore() int {
	return rng.Between(s.rand, s.cat.TextReliable.MinScore, s.cat.TextReliable.MaxScore)
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
