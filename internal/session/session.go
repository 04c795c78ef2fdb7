package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoChallenge     = errors.New("no active challenge")
	ErrAlreadyAnswered = errors.New("challenge already answered")
	ErrNoResult        = errors.New("no detection result to share")
)

// Session is the state of one visitor. All methods are safe for concurrent
// use; overlapping requests for the same token are serialized.
type Session struct {
	Token     string
	CreatedAt time.Time

	deps *Deps

	mu               sync.Mutex
	ledger           *community.Ledger
	userScore        int
	gamesPlayed      int
	reportToShare    *community.ShareDraft
	language         catalog.Language
	workshops        []string
	currentChallenge *challenge.Challenge
	userChoice       *challenge.Choice
	lastResult       *detect.Result
}

func newSession(token string, deps *Deps) *Session {
	return &Session{
		Token:     token,
		CreatedAt: deps.Now().UTC(),
		deps:      deps,
		ledger:    community.NewLedger(deps.Catalog, deps.Rand, deps.Now),
		language:  catalog.DefaultLanguage,
		workshops: []string{},
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Token:               s.Token,
		CreatedAt:           s.CreatedAt,
		Language:            s.language,
		UserScore:           s.userScore,
		GamesPlayed:         s.gamesPlayed,
		RegisteredWorkshops: append([]string{}, s.workshops...),
		ReportCount:         s.ledger.Len(),
	}
	if s.reportToShare != nil {
		d := *s.reportToShare
		snap.ReportToShare = &d
	}
	if s.currentChallenge != nil {
		c := *s.currentChallenge
		snap.CurrentChallenge = &c
	}
	if s.userChoice != nil {
		c := *s.userChoice
		snap.UserChoice = &c
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.LastResult = &r
	}
	return snap
}

func (s *Session) Language() catalog.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Session) SetLanguage(value string) (catalog.Language, error) {
	lang, err := catalog.ParseLanguage(value)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
	return lang, nil
}

// RegisterWorkshops signs the visitor up for every upcoming workshop.
// Registering twice is a no-op.
func (s *Session) RegisterWorkshops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.deps.Catalog.WorkshopIDs() {
		if !containsString(s.workshops, id) {
			s.workshops = append(s.workshops, id)
		}
	}
	return append([]string{}, s.workshops...)
}

// AnalyzeMedia runs the detector outside the session lock and records the
// result as the session's latest.
func (s *Session) AnalyzeMedia(ctx context.Context, m detect.Media) (detect.Result, error) {
	res, err := s.deps.Detector.AnalyzeMedia(ctx, m)
	if err != nil {
		return detect.Result{}, err
	}
	s.storeResult(res)
	return res, nil
}

func (s *Session) AnalyzeText(ctx context.Context, text string) (detect.Result, error) {
	res, err := s.deps.Detector.AnalyzeText(ctx, text)
	if err != nil {
		return detect.Result{}, err
	}
	s.storeResult(res)
	return res, nil
}

func (s *Session) storeResult(res detect.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = &res
}

// PrepareShare turns res into the pending share draft, replacing any
// earlier one.
func (s *Session) PrepareShare(res detect.Result) community.ShareDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := community.NewShareDraft(res, s.language)
	s.reportToShare = &d
	return d
}

// ShareLastResult is PrepareShare for the most recent analysis.
func (s *Session) ShareLastResult() (community.ShareDraft, error) {
	s.mu.Lock()
	last := s.lastResult
	s.mu.Unlock()
	if last == nil {
		return community.ShareDraft{}, ErrNoResult
	}
	return s.PrepareShare(*last), nil
}

func (s *Session) ReportToShare() *community.ShareDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportToShare == nil {
		return nil
	}
	d := *s.reportToShare
	return &d
}

func (s *Session) Prefill() community.Prefill {
	return community.PrefillFrom(s.ReportToShare())
}

func (s *Session) Reports() []community.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.List()
}

// SubmitReport appends a report. A pending share draft fixes the accuracy
// and is consumed on success.
func (s *Session) SubmitReport(f community.Fields) (community.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ledger.Submit(f, s.reportToShare)
	if err != nil {
		return community.Report{}, err
	}
	s.reportToShare = nil
	return r, nil
}

// NewChallenge draws a challenge and clears any pending answer.
func (s *Session) NewChallenge() challenge.Challenge {
	c := s.deps.Challenges.Next()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentChallenge = &c
	s.userChoice = nil
	return c
}

func (s *Session) CurrentChallenge() (challenge.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentChallenge == nil {
		return challenge.Challenge{}, false
	}
	return *s.currentChallenge, true
}

// Answer grades choice against the current challenge. Every answer counts
// as a game played; only correct ones score.
func (s *Session) Answer(choice challenge.Choice) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentChallenge == nil {
		return Outcome{}, ErrNoChallenge
	}
	if s.userChoice != nil {
		return Outcome{}, ErrAlreadyAnswered
	}
	c := *s.currentChallenge
	correct := challenge.Grade(c, choice)
	s.userChoice = &choice
	s.gamesPlayed++
	if correct {
		s.userScore++
	}
	return Outcome{
		Correct:       correct,
		Choice:        choice,
		CorrectAnswer: c.CorrectAnswer,
		Explanation:   c.Explanation(s.language),
		UserScore:     s.userScore,
		GamesPlayed:   s.gamesPlayed,
	}, nil
}

// NextChallenge clears the current challenge and answer.
func (s *Session) NextChallenge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentChallenge = nil
	s.userChoice = nil
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
