// Package api exposes CAP sessions over HTTP.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/metrics"
	"github.com/cap-cambodia/cap/internal/session"
)

const (
	TokenHeader = "X-Session-Token"
	tokenQuery  = "token"
	sessionKey  = "cap.session"
)

type Options struct {
	Sessions       *session.Manager
	Catalog        *catalog.Catalog
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	AdminUser      string
	AdminPass      string
	Version        string
}

type Server struct {
	sessions  *session.Manager
	cat       *catalog.Catalog
	metrics   *metrics.Metrics
	maxUpload int64
	admin     gin.Accounts
	version   string
	started   time.Time
}

func New(opts Options) *Server {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(opts.Sessions.Len)
	}
	s := &Server{
		sessions:  opts.Sessions,
		cat:       opts.Catalog,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadBytes,
		version:   opts.Version,
		started:   time.Now().UTC(),
	}
	if opts.AdminUser != "" && opts.AdminPass != "" {
		s.admin = gin.Accounts{opts.AdminUser: opts.AdminPass}
	}
	return s
}

// NewEngine returns a gin engine with recovery, access logging and CORS.
func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessLog())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AddAllowHeaders(TokenHeader)
	r.Use(cors.New(config))
	return r
}

// AccessLog logs every request except Socket.IO polling.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}

// Register mounts every route on r.
func (s *Server) Register(r *gin.Engine) {
	r.Use(s.metrics.Middleware())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	pub := r.Group("/api")
	pub.POST("/sessions", s.createSession)
	pub.GET("/learning", s.learning)
	pub.GET("/workshops", s.workshops)
	pub.GET("/catalog/options", s.catalogOptions)

	if s.admin != nil {
		r.GET("/api/admin/stats", gin.BasicAuth(s.admin), s.adminStats)
	}

	sess := r.Group("/api", s.requireSession())
	sess.GET("/session", s.getSession)
	sess.DELETE("/session", s.endSession)
	sess.PUT("/session/language", s.setLanguage)
	sess.POST("/session/workshops", s.registerWorkshops)

	sess.POST("/detect/media", s.detectMedia)
	sess.POST("/detect/text", s.detectText)
	sess.POST("/detect/share", s.shareResult)

	sess.GET("/challenge", s.currentChallenge)
	sess.POST("/challenge", s.newChallenge)
	sess.POST("/challenge/answer", s.answerChallenge)
	sess.POST("/challenge/next", s.nextChallenge)

	sess.GET("/reports", s.listReports)
	sess.GET("/reports/prefill", s.prefill)
	sess.POST("/reports", s.submitReport)

	r.NoRoute(func(c *gin.Context) {
		ResponseJSON(c, http.StatusNotFound, "Not Found", nil)
	})
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			token = c.Query(tokenQuery)
		}
		if token == "" {
			HandleError(c, errMissingToken)
			return
		}
		sess, err := s.sessions.Get(token)
		if HandleError(c, err) {
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// bind decodes and validates a JSON body, answering 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		ResponseBadRequest(c, "invalid request body", nil)
		c.Abort()
		return false
	}
	if err := GetValidator().Struct(req); err != nil {
		ResponseBadRequest(c, "Validation failed", FormatValidationErrors(err))
		c.Abort()
		return false
	}
	return true
}

// lang is the explicit ?lang=, then Accept-Language.
func lang(c *gin.Context) catalog.Language {
	if q := c.Query("lang"); q != "" {
		if l, err := catalog.ParseLanguage(q); err == nil {
			return l
		}
	}
	return catalog.MatchAcceptLanguage(c.GetHeader("Accept-Language"))
}
