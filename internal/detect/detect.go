// Package detect produces verdicts for uploaded media and pasted text.
//
// There is no model behind it: Simulator picks scripted verdicts from the
// catalog. Callers depend on MediaAnalyzer and TextAnalyzer only, so a real
// classifier can be dropped in without touching session logic.
package detect

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cap-cambodia/cap/internal/catalog"
)

type Classification string

const (
	ClassFake      Classification = "fake"
	ClassReal      Classification = "real"
	ClassUncertain Classification = "uncertain"
)

const (
	ContentImage = "Image"
	ContentVideo = "Video"
	ContentNews  = "News"
)

var (
	ErrEmptyText        = errors.New("please enter some text to analyze")
	ErrEmptyMedia       = errors.New("uploaded file is empty")
	ErrUnsupportedMedia = errors.New("unsupported file type")
	ErrMediaTooLarge    = errors.New("uploaded file is too large")
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".mp4", ".avi", ".mov"}

var videoExtensions = map[string]bool{".mp4": true, ".avi": true, ".mov": true}

// Result is an immutable verdict.
type Result struct {
	Score                int            `json:"score"`
	Verdict              string         `json:"verdict"`
	ExplanationPrimary   string         `json:"explanationPrimary"`
	ExplanationSecondary string         `json:"explanationSecondary"`
	TechnicalNote        string         `json:"technicalNote"`
	Classification       Classification `json:"classification"`
	ContentType          string         `json:"contentType"`
}

// Explanation returns the explanation in the given language.
func (r Result) Explanation(lang catalog.Language) string {
	if lang == catalog.English {
		return r.ExplanationSecondary
	}
	return r.ExplanationPrimary
}

type Media struct {
	Filename     string
	DeclaredType string
	Data         []byte
}

type MediaAnalyzer interface {
	AnalyzeMedia(ctx context.Context, m Media) (Result, error)
}

type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (Result, error)
}

// Provider is the full verdict provider used by sessions.
type Provider interface {
	MediaAnalyzer
	TextAnalyzer
}

// ValidateUpload checks the allow-list and size limit and reports whether the
// upload is an Image or a Video. maxBytes <= 0 disables the size check.
func ValidateUpload(m Media, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(m.Filename))
	allowed := false
	for _, e := range AllowedExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", ErrUnsupportedMedia
	}
	if len(m.Data) == 0 {
		return "", ErrEmptyMedia
	}
	if maxBytes > 0 && int64(len(m.Data)) > maxBytes {
		return "", ErrMediaTooLarge
	}
	return mediaKind(m, ext), nil
}

func mediaKind(m Media, ext string) string {
	switch mt := mimetype.Detect(m.Data).String(); {
	case strings.HasPrefix(mt, "video/"):
		return ContentVideo
	case strings.HasPrefix(mt, "image/"):
		return ContentImage
	}
	if strings.HasPrefix(m.DeclaredType, "video/") || videoExtensions[ext] {
		return ContentVideo
	}
	return ContentImage
}

func fromTemplate(tpl catalog.Template, score int, contentType string) Result {
	return Result{
		Score:                score,
		Verdict:              tpl.Verdict,
		ExplanationPrimary:   tpl.Explanation.Km,
		ExplanationSecondary: tpl.Explanation.En,
		TechnicalNote:        tpl.Technical,
		Classification:       Classification(tpl.Key),
		ContentType:          contentType,
	}
}
