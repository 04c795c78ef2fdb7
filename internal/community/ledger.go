// Package community keeps the per-session feed of community reports.
package community

import (
	"errors"
	"fmt"
	"time"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/rng"
)

const DateLayout = "2006-01-02"

const (
	minLikes    = 5
	maxLikes    = 50
	minComments = 1
	maxComments = 15
)

var (
	ErrAccuracyRequired   = errors.New("accuracy is required when no detection result is shared")
	ErrInvalidAccuracy    = errors.New("accuracy must be between 0 and 100")
	ErrInvalidContentType = errors.New("unknown content type")
	ErrInvalidCategory    = errors.New("unknown category")
)

type Report struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	User        string `json:"user"`
	Accuracy    int    `json:"accuracy"`
	Likes       int    `json:"likes"`
	Comments    int    `json:"comments"`
}

// ShareDraft carries a detection result into the report form.
type ShareDraft struct {
	Type        string `json:"type"`
	Score       int    `json:"score"`
	Verdict     string `json:"verdict"`
	Explanation string `json:"explanation"`
}

// NewShareDraft projects a result, keeping the explanation in lang.
func NewShareDraft(res detect.Result, lang catalog.Language) ShareDraft {
	return ShareDraft{
		Type:        res.ContentType,
		Score:       res.Score,
		Verdict:     res.Verdict,
		Explanation: res.Explanation(lang),
	}
}

// Fields are the user-entered parts of a report.
type Fields struct {
	Type        string
	Description string
	Explanation string
	Category    string
	Accuracy    *int
}

// Prefill is what the report form starts with.
type Prefill struct {
	Description string `json:"description"`
	Explanation string `json:"explanation"`
	Accuracy    int    `json:"accuracy"`
	Type        string `json:"type,omitempty"`
	FromDraft   bool   `json:"fromDraft"`
}

func PrefillFrom(draft *ShareDraft) Prefill {
	if draft == nil {
		return Prefill{}
	}
	return Prefill{
		Description: fmt.Sprintf("%s - %s detected", draft.Verdict, draft.Type),
		Explanation: draft.Explanation,
		Accuracy:    draft.Score,
		Type:        draft.Type,
		FromDraft:   true,
	}
}

// AccuracyBand buckets an accuracy for display badges.
func AccuracyBand(accuracy int) string {
	switch {
	case accuracy >= 80:
		return "high"
	case accuracy >= 60:
		return "medium"
	default:
		return "low"
	}
}

// Ledger is an append-only list of reports. It is not safe for concurrent
// use; the owning session serializes access.
type Ledger struct {
	cat     *catalog.Catalog
	rand    rng.Source
	now     func() time.Time
	reports []Report
}

// NewLedger returns a ledger seeded with the catalog's starter reports.
func NewLedger(cat *catalog.Catalog, src rng.Source, now func() time.Time) *Ledger {
	if cat == nil {
		cat = catalog.Default()
	}
	if src == nil {
		src = rng.NewTimeSeeded()
	}
	if now == nil {
		now = time.Now
	}
	l := &Ledger{cat: cat, rand: src, now: now}
	for _, s := range cat.SeedReports {
		l.reports = append(l.reports, Report{
			ID:          s.ID,
			Type:        s.Type,
			Description: s.Description,
			Explanation: s.Explanation,
			Date:        s.Date,
			Category:    s.Category,
			User:        s.User,
			Accuracy:    s.Accuracy,
			Likes:       s.Likes,
			Comments:    s.Comments,
		})
	}
	return l
}

// List returns every report, most recently added first.
func (l *Ledger) List() []Report {
	out := make([]Report, len(l.reports))
	for i, r := range l.reports {
		out[len(l.reports)-1-i] = r
	}
	return out
}

func (l *Ledger) Len() int { return len(l.reports) }

// Submit appends a new report. With a draft the accuracy is the draft score
// and f.Accuracy is ignored; without one f.Accuracy is required.
func (l *Ledger) Submit(f Fields, draft *ShareDraft) (Report, error) {
	if f.Type == "" && draft != nil {
		f.Type = draft.Type
	}
	if !l.cat.IsContentType(f.Type) {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidContentType, f.Type)
	}
	if !l.cat.IsCategory(f.Category) {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidCategory, f.Category)
	}

	var accuracy int
	switch {
	case draft != nil:
		accuracy = draft.Score
	case f.Accuracy == nil:
		return Report{}, ErrAccuracyRequired
	default:
		accuracy = *f.Accuracy
	}
	if accuracy < 0 || accuracy > 100 {
		return Report{}, ErrInvalidAccuracy
	}

	r := Report{
		ID:          l.nextID(),
		Type:        f.Type,
		Description: f.Description,
		Explanation: f.Explanation,
		Date:        l.now().Format(DateLayout),
		Category:    f.Category,
		User:        rng.Pick(l.rand, l.cat.ReporterNames),
		Accuracy:    accuracy,
		Likes:       rng.Between(l.rand, minLikes, maxLikes),
		Comments:    rng.Between(l.rand, minComments, maxComments),
	}
	l.reports = append(l.reports, r)
	return r, nil
}

func (l *Ledger) nextID() int {
	highest := 0
	for _, r := range l.reports {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest + 1
}
