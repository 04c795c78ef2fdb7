// Package catalog holds the fixed tables behind the detection simulator,
// the spot-the-AI game and the community feed.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

//go:embed catalog.toml
var defaultTOML string

type Language string

const (
	Khmer   Language = "km"
	English Language = "en"
)

// DefaultLanguage is what a fresh session starts with.
const DefaultLanguage = Khmer

var ErrInvalidLanguage = errors.New("unsupported language")

var languageMatcher = language.NewMatcher([]language.Tag{language.Khmer, language.English})

// ParseLanguage accepts language codes ("km", "en-US") and the display
// names used by the language toggle ("Khmer", "English").
func ParseLanguage(s string) (Language, error) {
	v := strings.TrimSpace(strings.ToLower(s))
	switch v {
	case "khmer", "ខ្មែរ":
		return Khmer, nil
	case "english":
		return English, nil
	case "":
		return "", ErrInvalidLanguage
	}
	tag, err := language.Parse(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "km":
		return Khmer, nil
	case "en":
		return English, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
}

// MatchAcceptLanguage picks the closest supported language for an
// Accept-Language header, falling back to DefaultLanguage.
func MatchAcceptLanguage(header string) Language {
	if header == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	if idx == 1 {
		return English
	}
	return Khmer
}

// Text is a string in both supported languages.
type Text struct {
	Km string `toml:"km" json:"km"`
	En string `toml:"en" json:"en"`
}

func (t Text) In(lang Language) string {
	if lang == English {
		return t.En
	}
	return t.Km
}

type List struct {
	Km []string `toml:"km" json:"km"`
	En []string `toml:"en" json:"en"`
}

func (l List) In(lang Language) []string {
	if lang == English {
		return l.En
	}
	return l.Km
}

// Template is one scripted verdict. Scores are drawn from [MinScore, MaxScore].
type Template struct {
	Key         string `toml:"key"`
	Verdict     string `toml:"verdict"`
	MinScore    int    `toml:"min_score"`
	MaxScore    int    `toml:"max_score"`
	Technical   string `toml:"technical"`
	Explanation Text   `toml:"explanation"`
}

type Challenge struct {
	ID          string `toml:"id"`
	MediaType   string `toml:"media_type"`
	Correct     string `toml:"correct"`
	Question    Text   `toml:"question"`
	OptionA     Text   `toml:"option_a"`
	OptionB     Text   `toml:"option_b"`
	Explanation Text   `toml:"explanation"`
}

type SeedReport struct {
	ID          int    `toml:"id"`
	Type        string `toml:"type"`
	Description string `toml:"description"`
	Explanation string `toml:"explanation"`
	Date        string `toml:"date"`
	Category    string `toml:"category"`
	User        string `toml:"user"`
	Accuracy    int    `toml:"accuracy"`
	Likes       int    `toml:"likes"`
	Comments    int    `toml:"comments"`
}

type Workshop struct {
	ID     string   `toml:"id" json:"id"`
	City   string   `toml:"city" json:"city"`
	Date   string   `toml:"date" json:"date"`
	Venue  string   `toml:"venue" json:"venue"`
	Topics []string `toml:"topics" json:"topics"`
}

type LearningSection struct {
	Key     string `toml:"key"`
	Title   Text   `toml:"title"`
	Heading Text   `toml:"heading"`
	Points  List   `toml:"points"`
}

// LearningPage is a learning hub section rendered in one language.
type LearningPage struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

type Catalog struct {
	TriggerPhrases []string          `toml:"trigger_phrases"`
	ReporterNames  []string          `toml:"reporter_names"`
	ContentTypes   []string          `toml:"content_types"`
	Categories     []string          `toml:"categories"`
	MediaTemplates []Template        `toml:"media_template"`
	TextFake       Template          `toml:"text_fake"`
	TextReliable   Template          `toml:"text_reliable"`
	Challenges     []Challenge       `toml:"challenge"`
	SeedReports    []SeedReport      `toml:"seed_report"`
	Workshops      []Workshop        `toml:"workshop"`
	Learning       []LearningSection `toml:"learning"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which is caught by the package tests.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultTOML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

func Parse(data string) (*Catalog, error) {
	var c Catalog
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(string(b))
}

func (c *Catalog) Validate() error {
	var errs []error
	if len(c.MediaTemplates) == 0 {
		errs = append(errs, errors.New("no media templates"))
	}
	for _, t := range append(append([]Template{}, c.MediaTemplates...), c.TextFake, c.TextReliable) {
		if t.MinScore < 0 || t.MaxScore > 100 || t.MinScore > t.MaxScore {
			errs = append(errs, fmt.Errorf("template %q has invalid score range [%d,%d]", t.Verdict, t.MinScore, t.MaxScore))
		}
	}
	if len(c.Challenges) == 0 {
		errs = append(errs, errors.New("no challenges"))
	}
	for _, ch := range c.Challenges {
		if ch.Correct != "A" && ch.Correct != "B" {
			errs = append(errs, fmt.Errorf("challenge %q has invalid answer %q", ch.ID, ch.Correct))
		}
	}
	if len(c.ReporterNames) == 0 {
		errs = append(errs, errors.New("no reporter names"))
	}
	if len(c.ContentTypes) == 0 || len(c.Categories) == 0 {
		errs = append(errs, errors.New("content types and categories must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return nil
}

// LearningIn renders the learning hub in the given language.
func (c *Catalog) LearningIn(lang Language) []LearningPage {
	out := make([]LearningPage, 0, len(c.Learning))
	for _, s := range c.Learning {
		out = append(out, LearningPage{
			Key:     s.Key,
			Title:   s.Title.In(lang),
			Heading: s.Heading.In(lang),
			Points:  s.Points.In(lang),
		})
	}
	return out
}

func (c *Catalog) WorkshopIDs() []string {
	ids := make([]string, 0, len(c.Workshops))
	for _, w := range c.Workshops {
		ids = append(ids, w.ID)
	}
	return ids
}

func (c *Catalog) IsContentType(s string) bool { return contains(c.ContentTypes, s) }

func (c *Catalog) IsCategory(s string) bool { return contains(c.Categories, s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
