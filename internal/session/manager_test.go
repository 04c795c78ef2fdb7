package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/rng"
)

func testDeps(src rng.Source) Deps {
	return Deps{
		Rand: src,
		Now:  func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) },
	}
}

func newTestManager(src rng.Source) *Manager {
	return NewManager(testDeps(src), ManagerOptions{})
}

func intPtr(v int) *int { return &v }

func TestCreateSessionDefaults(t *testing.T) {
	m := newTestManager(rng.Fixed(0))
	s := m.Create()
	if s.Token == "" {
		t.Fatal("session token should not be empty")
	}

	snap := s.Snapshot()
	if snap.Language != catalog.Khmer {
		t.Fatalf("expected default language km, got %s", snap.Language)
	}
	if snap.UserScore != 0 || snap.GamesPlayed != 0 {
		t.Fatalf("expected zero counters, got score=%d games=%d", snap.UserScore, snap.GamesPlayed)
	}
	if snap.ReportToShare != nil {
		t.Fatal("fresh session should have no share draft")
	}
	if snap.CurrentChallenge != nil || snap.UserChoice != nil {
		t.Fatal("fresh session should have no challenge")
	}
	if len(snap.RegisteredWorkshops) != 0 {
		t.Fatalf("expected no workshops, got %v", snap.RegisteredWorkshops)
	}
	if snap.ReportCount != 3 {
		t.Fatalf("expected 3 seeded reports, got %d", snap.ReportCount)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := newTestManager(rng.Fixed(0))
	if _, err := m.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Get(""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty token, got %v", err)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(rng.Fixed(0))
	a, b := m.Create(), m.Create()
	if a.Token == b.Token {
		t.Fatal("sessions should have distinct tokens")
	}

	if _, err := a.SubmitReport(community.Fields{Type: "News", Category: "Social Media Scam", Accuracy: intPtr(40)}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := a.SetLanguage("en"); err != nil {
		t.Fatalf("set language failed: %v", err)
	}

	if got := len(b.Reports()); got != 3 {
		t.Fatalf("other session should still have 3 reports, got %d", got)
	}
	if b.Language() != catalog.Khmer {
		t.Fatal("language change leaked into another session")
	}

	got, err := m.Get(a.Token)
	if err != nil || got != a {
		t.Fatalf("expected to get session a back, err=%v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Len())
	}
}

func TestEndSession(t *testing.T) {
	m := newTestManager(rng.Fixed(0))
	s := m.Create()
	if !m.End(s.Token) {
		t.Fatal("end should report the session was present")
	}
	if _, err := m.Get(s.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("ended session should be gone, got %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	m := NewManager(testDeps(rng.Fixed(0)), ManagerOptions{TTL: 20 * time.Millisecond})
	s := m.Create()
	time.Sleep(60 * time.Millisecond)
	if _, err := m.Get(s.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	m := NewManager(testDeps(rng.Fixed(0)), ManagerOptions{MaxSessions: 2})
	first := m.Create()
	m.Create()
	m.Create()
	if _, err := m.Get(first.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("oldest session should have been evicted, got %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Len())
	}
}

func TestSetLanguage(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	lang, err := s.SetLanguage("English")
	if err != nil || lang != catalog.English {
		t.Fatalf("expected English, got %s err=%v", lang, err)
	}
	if _, err := s.SetLanguage("fr"); !errors.Is(err, catalog.ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}
	if s.Language() != catalog.English {
		t.Fatal("failed language change must not mutate state")
	}
}

func TestRegisterWorkshopsIsIdempotent(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	first := s.RegisterWorkshops()
	second := s.RegisterWorkshops()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 workshops both times, got %v then %v", first, second)
	}
	if first[0] != "Phnom Penh - Sept 15, 2025" {
		t.Fatalf("unexpected first workshop %q", first[0])
	}
}

func TestChallengeFlow(t *testing.T) {
	// rng.Fixed(1) always draws the news challenge, whose answer is B
	s := newTestManager(rng.Fixed(1)).Create()

	if _, err := s.Answer(challenge.ChoiceA); !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge, got %v", err)
	}

	c := s.NewChallenge()
	if c.ID != "news" {
		t.Fatalf("expected news challenge, got %s", c.ID)
	}

	out, err := s.Answer(challenge.ChoiceB)
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if !out.Correct || out.UserScore != 1 || out.GamesPlayed != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Explanation != c.ExplanationPrimary {
		t.Fatal("explanation should follow the session language")
	}

	if _, err := s.Answer(challenge.ChoiceB); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	s.NextChallenge()
	if _, ok := s.CurrentChallenge(); ok {
		t.Fatal("next should clear the challenge")
	}
	if snap := s.Snapshot(); snap.UserChoice != nil {
		t.Fatal("next should clear the choice")
	}

	s.NewChallenge()
	out, err = s.Answer(challenge.ChoiceA)
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if out.Correct || out.UserScore != 1 || out.GamesPlayed != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestScoreNeverExceedsGamesPlayed(t *testing.T) {
	s := newTestManager(rng.New(17)).Create()
	choices := []challenge.Choice{challenge.ChoiceA, challenge.ChoiceB}
	for i := 0; i < 50; i++ {
		s.NewChallenge()
		if _, err := s.Answer(choices[i%2]); err != nil {
			t.Fatalf("answer %d failed: %v", i, err)
		}
	}
	snap := s.Snapshot()
	if snap.GamesPlayed != 50 {
		t.Fatalf("expected 50 games, got %d", snap.GamesPlayed)
	}
	if snap.UserScore > snap.GamesPlayed {
		t.Fatalf("score %d exceeds games %d", snap.UserScore, snap.GamesPlayed)
	}
}

func TestNewChallengeClearsPendingChoice(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	s.NewChallenge()
	if _, err := s.Answer(challenge.ChoiceA); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	s.NewChallenge()
	if _, err := s.Answer(challenge.ChoiceA); err != nil {
		t.Fatalf("a fresh challenge should accept an answer: %v", err)
	}
}

func TestShareThenSubmitUsesDetectionScore(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()

	res, err := s.AnalyzeText(context.Background(), "URGENT breaking exclusive")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	draft := s.PrepareShare(res)
	if draft.Score != res.Score || draft.Type != detect.ContentNews {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.Explanation != res.ExplanationPrimary {
		t.Fatal("draft explanation should be in the session language")
	}

	pre := s.Prefill()
	if !pre.FromDraft || pre.Accuracy != res.Score {
		t.Fatalf("unexpected prefill %+v", pre)
	}

	r, err := s.SubmitReport(community.Fields{Category: "Political Misinformation", Accuracy: intPtr(1), Description: pre.Description})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if r.Accuracy != res.Score {
		t.Fatalf("expected accuracy %d, got %d", res.Score, r.Accuracy)
	}
	if r.ID != 4 {
		t.Fatalf("expected id 4, got %d", r.ID)
	}
	if s.ReportToShare() != nil {
		t.Fatal("draft should be cleared after submission")
	}
	if s.Reports()[0].ID != r.ID {
		t.Fatal("new report should be listed first")
	}
}

func TestFailedSubmitKeepsDraft(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	s.PrepareShare(detect.Result{Score: 80, Verdict: "AI Generated (Likely Fake)", ContentType: detect.ContentImage})
	if _, err := s.SubmitReport(community.Fields{Category: "Gossip"}); err == nil {
		t.Fatal("expected validation error")
	}
	if s.ReportToShare() == nil {
		t.Fatal("draft must survive a failed submission")
	}
}

func TestShareLastResult(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	if _, err := s.ShareLastResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
	if _, err := s.SetLanguage("en"); err != nil {
		t.Fatal(err)
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	res, err := s.AnalyzeMedia(context.Background(), detect.Media{Filename: "a.png", Data: png})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	d, err := s.ShareLastResult()
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	if d.Score != res.Score || d.Explanation != res.ExplanationSecondary || d.Type != detect.ContentImage {
		t.Fatalf("unexpected draft %+v", d)
	}
}

func TestEmptyTextLeavesStateUntouched(t *testing.T) {
	s := newTestManager(rng.Fixed(0)).Create()
	if _, err := s.AnalyzeText(context.Background(), ""); !errors.Is(err, detect.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if s.Snapshot().LastResult != nil {
		t.Fatal("failed analysis must not store a result")
	}
}

type stubDetector struct{ res detect.Result }

func (d stubDetector) AnalyzeMedia(context.Context, detect.Media) (detect.Result, error) {
	return d.res, nil
}

func (d stubDetector) AnalyzeText(context.Context, string) (detect.Result, error) {
	return d.res, nil
}

func TestDetectorIsPluggable(t *testing.T) {
	deps := testDeps(rng.Fixed(0))
	deps.Detector = stubDetector{res: detect.Result{Score: 42, Verdict: "model says so", ContentType: detect.ContentNews}}
	s := NewManager(deps, ManagerOptions{}).Create()
	res, err := s.AnalyzeText(context.Background(), "anything")
	if err != nil || res.Score != 42 {
		t.Fatalf("expected stub result, got %+v err=%v", res, err)
	}
}
