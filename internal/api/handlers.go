package api

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
)

func (s *Server) health(c *gin.Context) {
	ResponseOK(c, gin.H{"ok": true, "time": time.Now().UTC()})
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	if c.GetHeader("Accept-Language") != "" {
		_, _ = sess.SetLanguage(string(lang(c)))
	}
	ResponseCreated(c, gin.H{"token": sess.Token, "state": sess.Snapshot()})
}

func (s *Server) getSession(c *gin.Context) {
	ResponseOK(c, sessionFrom(c).Snapshot())
}

func (s *Server) endSession(c *gin.Context) {
	s.sessions.End(sessionFrom(c).Token)
	ResponseOK(c, nil)
}

func (s *Server) setLanguage(c *gin.Context) {
	var req LanguageRequest
	if !bind(c, &req) {
		return
	}
	sess := sessionFrom(c)
	if _, err := sess.SetLanguage(req.Language); HandleError(c, err) {
		return
	}
	ResponseOK(c, sess.Snapshot())
}

func (s *Server) registerWorkshops(c *gin.Context) {
	ids := sessionFrom(c).RegisterWorkshops()
	ResponseOK(c, gin.H{"registeredWorkshops": ids})
}

func (s *Server) detectMedia(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		ResponseBadRequest(c, "file is required", nil)
		return
	}
	if s.maxUpload > 0 && fh.Size > s.maxUpload {
		HandleError(c, detect.ErrMediaTooLarge)
		return
	}
	f, err := fh.Open()
	if HandleError(c, err) {
		return
	}
	defer f.Close()

	r := io.Reader(f)
	if s.maxUpload > 0 {
		r = io.LimitReader(f, s.maxUpload+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		HandleError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := sessionFrom(c).AnalyzeMedia(c.Request.Context(), detect.Media{
		Filename:     fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Data:         data,
	})
	if HandleError(c, err) {
		return
	}
	s.metrics.Analysis("media", string(res.Classification))
	ResponseOK(c, res)
}

func (s *Server) detectText(c *gin.Context) {
	var req TextRequest
	if !bind(c, &req) {
		return
	}
	res, err := sessionFrom(c).AnalyzeText(c.Request.Context(), req.Text)
	if HandleError(c, err) {
		return
	}
	s.metrics.Analysis("text", string(res.Classification))
	ResponseOK(c, res)
}

func (s *Server) shareResult(c *gin.Context) {
	draft, err := sessionFrom(c).ShareLastResult()
	if HandleError(c, err) {
		return
	}
	ResponseOK(c, draft)
}

func (s *Server) currentChallenge(c *gin.Context) {
	ch, ok := sessionFrom(c).CurrentChallenge()
	if !ok {
		ResponseOK(c, nil)
		return
	}
	ResponseOK(c, ch)
}

func (s *Server) newChallenge(c *gin.Context) {
	ResponseOK(c, sessionFrom(c).NewChallenge())
}

func (s *Server) answerChallenge(c *gin.Context) {
	var req AnswerRequest
	if !bind(c, &req) {
		return
	}
	out, err := sessionFrom(c).Answer(req.choice())
	if HandleError(c, err) {
		return
	}
	s.metrics.ChallengeAnswered(out.Correct)
	ResponseOK(c, out)
}

func (s *Server) nextChallenge(c *gin.Context) {
	sess := sessionFrom(c)
	sess.NextChallenge()
	ResponseOK(c, sess.Snapshot())
}

func (s *Server) listReports(c *gin.Context) {
	reports := sessionFrom(c).Reports()
	type item struct {
		community.Report
		Band string `json:"band"`
	}
	out := make([]item, 0, len(reports))
	for _, r := range reports {
		out = append(out, item{Report: r, Band: community.AccuracyBand(r.Accuracy)})
	}
	ResponseOK(c, out)
}

func (s *Server) prefill(c *gin.Context) {
	ResponseOK(c, sessionFrom(c).Prefill())
}

func (s *Server) submitReport(c *gin.Context) {
	var req ReportRequest
	if !bind(c, &req) {
		return
	}
	r, err := sessionFrom(c).SubmitReport(community.Fields{
		Type:        req.Type,
		Description: req.Description,
		Explanation: req.Explanation,
		Category:    req.Category,
		Accuracy:    req.Accuracy,
	})
	if HandleError(c, err) {
		return
	}
	s.metrics.ReportSubmitted()
	log.Info().Int("id", r.ID).Str("category", r.Category).Msg("report submitted")
	ResponseCreated(c, r)
}

func (s *Server) learning(c *gin.Context) {
	l := lang(c)
	ResponseOK(c, gin.H{"language": l, "sections": s.cat.LearningIn(l)})
}

func (s *Server) workshops(c *gin.Context) {
	ResponseOK(c, s.cat.Workshops)
}

func (s *Server) catalogOptions(c *gin.Context) {
	ResponseOK(c, gin.H{
		"contentTypes": s.cat.ContentTypes,
		"categories":   s.cat.Categories,
		"choices":      []challenge.Choice{challenge.ChoiceA, challenge.ChoiceB},
		"extensions":   detect.AllowedExtensions,
	})
}

func (s *Server) adminStats(c *gin.Context) {
	ResponseOK(c, gin.H{
		"activeSessions": s.sessions.Len(),
		"version":        s.version,
		"uptime":         time.Since(s.started).Round(time.Second).String(),
	})
}
