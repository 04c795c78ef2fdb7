package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/rng"
)

func TestGeneratorLoadsCatalog(t *testing.T) {
	g := NewGenerator(nil, rng.Fixed(0))
	require.Equal(t, 3, g.Len())

	first := g.Next()
	assert.Equal(t, "image", first.ID)
	assert.Equal(t, "Image", first.MediaType)
	assert.Equal(t, ChoiceA, first.CorrectAnswer)
	assert.Equal(t, "Which image is AI generated?", first.Question(catalog.English))
	assert.NotEqual(t, first.Question(catalog.English), first.Question(catalog.Khmer))
}

func TestNextIsDeterministicUnderSeed(t *testing.T) {
	a := NewGenerator(nil, rng.New(2025))
	b := NewGenerator(nil, rng.New(2025))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ca, cb := a.Next(), b.Next()
		require.Equal(t, ca.ID, cb.ID, "draw %d", i)
		seen[ca.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestNextReturnsCopies(t *testing.T) {
	g := NewGenerator(nil, rng.Fixed(1))
	c := g.Next()
	c.QuestionSecondary = "mutated"
	c.CorrectAnswer = ChoiceA
	again := g.Next()
	assert.Equal(t, "Which headline is more likely fake?", again.QuestionSecondary)
	assert.Equal(t, ChoiceB, again.CorrectAnswer)
}

func TestGrade(t *testing.T) {
	g := NewGenerator(nil, rng.Fixed(2))
	video := g.Next()
	assert.Equal(t, "video", video.ID)
	assert.True(t, Grade(video, ChoiceB))
	assert.False(t, Grade(video, ChoiceA))
}

func TestParseChoice(t *testing.T) {
	c, err := ParseChoice(" a ")
	require.NoError(t, err)
	assert.Equal(t, ChoiceA, c)

	c, err = ParseChoice("B")
	require.NoError(t, err)
	assert.Equal(t, ChoiceB, c)

	_, err = ParseChoice("C")
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestExplanationByLanguage(t *testing.T) {
	c := NewGenerator(nil, rng.Fixed(1)).Next()
	assert.Contains(t, c.Explanation(catalog.English), "SHOCKING")
	assert.Contains(t, c.Explanation(catalog.Khmer), "SHOCKING")
}
