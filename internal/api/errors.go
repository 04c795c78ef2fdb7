package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/session"
)

var errMissingToken = errors.New("missing session token")

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, detect.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, detect.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrNoChallenge),
		errors.Is(err, session.ErrAlreadyAnswered),
		errors.Is(err, session.ErrNoResult):
		return http.StatusConflict
	case errors.Is(err, detect.ErrEmptyText),
		errors.Is(err, detect.ErrEmptyMedia),
		errors.Is(err, catalog.ErrInvalidLanguage),
		errors.Is(err, challenge.ErrInvalidChoice),
		errors.Is(err, community.ErrAccuracyRequired),
		errors.Is(err, community.ErrInvalidAccuracy),
		errors.Is(err, community.ErrInvalidContentType),
		errors.Is(err, community.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an envelope. Returns false for a nil error.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		ResponseJSON(c, code, "Internal Server Error", nil)
		c.Abort()
		return true
	}
	ResponseJSON(c, code, err.Error(), nil)
	c.Abort()
	return true
}
