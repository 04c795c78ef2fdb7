// Package challenge runs the "learn to spot" trivia game.
package challenge

import (
	"errors"
	"strings"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/rng"
)

type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
)

var ErrInvalidChoice = errors.New("choice must be A or B")

func ParseChoice(s string) (Choice, error) {
	switch Choice(strings.ToUpper(strings.TrimSpace(s))) {
	case ChoiceA:
		return ChoiceA, nil
	case ChoiceB:
		return ChoiceB, nil
	}
	return "", ErrInvalidChoice
}

// Challenge is a two-option quiz item. Values are copies of catalog entries.
type Challenge struct {
	ID                   string       `json:"id"`
	MediaType            string       `json:"mediaType"`
	QuestionPrimary      string       `json:"questionPrimary"`
	QuestionSecondary    string       `json:"questionSecondary"`
	OptionA              catalog.Text `json:"optionA"`
	OptionB              catalog.Text `json:"optionB"`
	CorrectAnswer        Choice       `json:"-"`
	ExplanationPrimary   string       `json:"explanationPrimary"`
	ExplanationSecondary string       `json:"explanationSecondary"`
}

func (c Challenge) Question(lang catalog.Language) string {
	if lang == catalog.English {
		return c.QuestionSecondary
	}
	return c.QuestionPrimary
}

func (c Challenge) Explanation(lang catalog.Language) string {
	if lang == catalog.English {
		return c.ExplanationSecondary
	}
	return c.ExplanationPrimary
}

// Grade reports whether choice is the correct answer.
func Grade(c Challenge, choice Choice) bool {
	return choice == c.CorrectAnswer
}

type Generator struct {
	items []Challenge
	rand  rng.Source
}

func NewGenerator(cat *catalog.Catalog, src rng.Source) *Generator {
	if cat == nil {
		cat = catalog.Default()
	}
	if src == nil {
		src = rng.NewTimeSeeded()
	}
	g := &Generator{rand: src}
	for _, e := range cat.Challenges {
		g.items = append(g.items, Challenge{
			ID:                   e.ID,
			MediaType:            e.MediaType,
			QuestionPrimary:      e.Question.Km,
			QuestionSecondary:    e.Question.En,
			OptionA:              e.OptionA,
			OptionB:              e.OptionB,
			CorrectAnswer:        Choice(e.Correct),
			ExplanationPrimary:   e.Explanation.Km,
			ExplanationSecondary: e.Explanation.En,
		})
	}
	return g
}

// Next picks a challenge uniformly at random.
func (g *Generator) Next() Challenge {
	return rng.Pick(g.rand, g.items)
}

func (g *Generator) Len() int { return len(g.items) }
