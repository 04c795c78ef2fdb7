package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/rng"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newSim(src rng.Source) *Simulator {
	return NewSimulator(Options{Rand: src})
}

func TestAnalyzeMediaScoreWithinTemplateRange(t *testing.T) {
	sim := newSim(rng.New(7))
	bounds := map[Classification][2]int{
		ClassFake:      {75, 95},
		ClassReal:      {15, 40},
		ClassUncertain: {45, 65},
	}
	seen := map[Classification]bool{}
	for i := 0; i < 500; i++ {
		res, err := sim.AnalyzeMedia(context.Background(), Media{Filename: "photo.png", Data: pngHeader})
		require.NoError(t, err)
		b, ok := bounds[res.Classification]
		require.True(t, ok, "unexpected classification %q", res.Classification)
		require.GreaterOrEqual(t, res.Score, b[0])
		require.LessOrEqual(t, res.Score, b[1])
		seen[res.Classification] = true
	}
	assert.Len(t, seen, 3, "all three templates should be reachable")
}

func TestAnalyzeMediaPicksTemplateFromSource(t *testing.T) {
	// first draw picks the template, second the score offset
	sim := newSim(rng.NewSequence(1, 0))
	res, err := sim.AnalyzeMedia(context.Background(), Media{Filename: "x.JPG", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, ClassReal, res.Classification)
	assert.Equal(t, "Real (Human Created)", res.Verdict)
	assert.Equal(t, 15, res.Score)
	assert.Equal(t, ContentImage, res.ContentType)
	assert.Contains(t, res.ExplanationSecondary, "appears authentic")
	assert.NotEmpty(t, res.TechnicalNote)
}

func TestAnalyzeMediaRejectsBadUploads(t *testing.T) {
	sim := NewSimulator(Options{Rand: rng.Fixed(0), MaxUploadBytes: 8})

	_, err := sim.AnalyzeMedia(context.Background(), Media{Filename: "doc.pdf", Data: pngHeader})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = sim.AnalyzeMedia(context.Background(), Media{Filename: "noext", Data: pngHeader})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = sim.AnalyzeMedia(context.Background(), Media{Filename: "a.gif"})
	assert.ErrorIs(t, err, ErrEmptyMedia)

	_, err = sim.AnalyzeMedia(context.Background(), Media{Filename: "a.png", Data: pngHeader})
	assert.ErrorIs(t, err, ErrMediaTooLarge)
}

func TestValidateUploadKind(t *testing.T) {
	kind, err := ValidateUpload(Media{Filename: "clip.mov", Data: []byte("not really a video")}, 0)
	require.NoError(t, err)
	assert.Equal(t, ContentVideo, kind)

	kind, err = ValidateUpload(Media{Filename: "weird.jpg", Data: []byte("plain"), DeclaredType: "video/mp4"}, 0)
	require.NoError(t, err)
	assert.Equal(t, ContentVideo, kind)

	kind, err = ValidateUpload(Media{Filename: "real.mp4", Data: pngHeader}, 0)
	require.NoError(t, err)
	assert.Equal(t, ContentImage, kind, "sniffed bytes win over the extension")
}

func TestAnalyzeTextEmpty(t *testing.T) {
	sim := newSim(rng.Fixed(0))
	_, err := sim.AnalyzeText(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHeuristic(t *testing.T) {
	sim := newSim(rng.Fixed(0))
	tests := []struct {
		text string
		want int
	}{
		{"Local school gets new library", 0},
		{"URGENT", 20},
		{"Breaking: urgent urgent urgent", 40},
		{"The Hidden Truth behind the government cover-up, an EXCLUSIVE secret", 80},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sim.Heuristic(tt.text), tt.text)
	}
}

func TestAnalyzeTextReliableBranchDrawsFreshScore(t *testing.T) {
	// jitter 0, then the reliable score draw at offset 5 -> 15
	sim := newSim(rng.NewSequence(0, 5))
	res, err := sim.AnalyzeText(context.Background(), "City council approves budget")
	require.NoError(t, err)
	assert.Equal(t, "Likely Reliable", res.Verdict)
	assert.Equal(t, ClassReal, res.Classification)
	assert.Equal(t, 15, res.Score)
	assert.Equal(t, ContentNews, res.ContentType)
}

func TestAnalyzeTextNoTriggersZeroJitterIsReliable(t *testing.T) {
	sim := newSim(rng.Fixed(0))
	assert.Equal(t, 0, sim.Heuristic("plain words"))
	res, err := sim.AnalyzeText(context.Background(), "plain words")
	require.NoError(t, err)
	assert.Equal(t, "Likely Reliable", res.Verdict)
	assert.GreaterOrEqual(t, res.Score, 10)
	assert.LessOrEqual(t, res.Score, 30)
}

func TestAnalyzeTextFakeBranchUsesHeuristicScore(t *testing.T) {
	// three triggers = 60, jitter 0
	sim := newSim(rng.Fixed(0))
	res, err := sim.AnalyzeText(context.Background(), "BREAKING urgent exclusive")
	require.NoError(t, err)
	assert.Equal(t, "Likely Fake News", res.Verdict)
	assert.Equal(t, ClassFake, res.Classification)
	assert.Equal(t, 60, res.Score)
}

func TestAnalyzeTextScoreCappedAt90(t *testing.T) {
	sim := newSim(rng.Fixed(40))
	res, err := sim.AnalyzeText(context.Background(), "urgent breaking secret hidden truth")
	require.NoError(t, err)
	assert.Equal(t, 90, res.Score)
}

func TestAnalyzeTextAlwaysFakeWhenHeuristicAtLeast60(t *testing.T) {
	cat := *catalog.Default()
	cat.TriggerPhrases = []string{"breaking", "secret", "government"}
	sim := NewSimulator(Options{Catalog: &cat, Rand: rng.New(3)})
	require.Equal(t, 60, sim.Heuristic("BREAKING: secret government plan"))
	for i := 0; i < 100; i++ {
		res, err := sim.AnalyzeText(context.Background(), "BREAKING: secret government plan")
		require.NoError(t, err)
		require.Equal(t, ClassFake, res.Classification)
		require.GreaterOrEqual(t, res.Score, 60)
		require.LessOrEqual(t, res.Score, 90)
	}
}

func TestDelayHonoursContext(t *testing.T) {
	sim := NewSimulator(Options{Rand: rng.Fixed(0), TextDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.AnalyzeText(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultExplanation(t *testing.T) {
	r := Result{ExplanationPrimary: "km", ExplanationSecondary: "en"}
	assert.Equal(t, "km", r.Explanation(catalog.Khmer))
	assert.Equal(t, "en", r.Explanation(catalog.English))
}
