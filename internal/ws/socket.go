package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
	"github.com/cap-cambodia/cap/internal/community"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/metrics"
	"github.com/cap-cambodia/cap/internal/session"
)

const namespace = "/"

type ConnCtx struct {
	Token string
}

// Conn is the part of socketio.Conn the handlers use.
type Conn interface {
	ID() string
	Context() interface{}
	SetContext(ctx interface{})
	Emit(event string, v ...interface{})
	Join(room string)
	Leave(room string)
}

type broadcaster interface {
	BroadcastToRoom(namespace string, room, event string, args ...interface{}) bool
}

type Server struct {
	sessions *session.Manager
	metrics  *metrics.Metrics
	io       broadcaster
}

func New(sessions *session.Manager, m *metrics.Metrics) *Server {
	return &Server{sessions: sessions, metrics: m}
}

type languagePayload struct {
	Language string `json:"language"`
}

type resumePayload struct {
	Token string `json:"token"`
}

type textPayload struct {
	Text string `json:"text"`
}

type answerPayload struct {
	Choice string `json:"choice"`
}

type reportPayload struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
	Category    string `json:"category"`
	Accuracy    *int   `json:"accuracy"`
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect(namespace, func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		if srv.metrics != nil {
			srv.metrics.SocketConnected()
		}
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent(namespace, "session:create", func(s socketio.Conn, p languagePayload) map[string]any {
		return srv.create(s, p)
	})
	io.OnEvent(namespace, "session:resume", func(s socketio.Conn, p resumePayload) map[string]any {
		return srv.resume(s, p)
	})
	io.OnEvent(namespace, "session:language", func(s socketio.Conn, p languagePayload) map[string]any {
		return srv.setLanguage(s, p)
	})
	io.OnEvent(namespace, "detect:text", func(s socketio.Conn, p textPayload) map[string]any {
		return srv.detectText(s, p)
	})
	io.OnEvent(namespace, "detect:share", func(s socketio.Conn) map[string]any {
		return srv.share(s)
	})
	io.OnEvent(namespace, "challenge:new", func(s socketio.Conn) map[string]any {
		return srv.newChallenge(s)
	})
	io.OnEvent(namespace, "challenge:answer", func(s socketio.Conn, p answerPayload) map[string]any {
		return srv.answer(s, p)
	})
	io.OnEvent(namespace, "challenge:next", func(s socketio.Conn) map[string]any {
		return srv.nextChallenge(s)
	})
	io.OnEvent(namespace, "report:submit", func(s socketio.Conn, p reportPayload) map[string]any {
		return srv.submitReport(s, p)
	})

	io.OnError(namespace, func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		if srv.metrics != nil {
			srv.metrics.SocketDisconnected()
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) create(s Conn, p languagePayload) map[string]any {
	lang := catalog.DefaultLanguage
	if p.Language != "" {
		l, err := catalog.ParseLanguage(p.Language)
		if err != nil {
			return srv.err(s, err)
		}
		lang = l
	}
	sess := srv.sessions.Create()
	if _, err := sess.SetLanguage(string(lang)); err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, sess.Token)
	log.Info().Str("sid", s.ID()).Str("token", sess.Token).Msg("session:create")
	srv.emitState(sess)
	return map[string]any{"token": sess.Token}
}

func (srv *Server) resume(s Conn, p resumePayload) map[string]any {
	sess, err := srv.sessions.Get(p.Token)
	if err != nil {
		return srv.err(s, err)
	}
	srv.attach(s, sess.Token)
	log.Info().Str("sid", s.ID()).Str("token", sess.Token).Msg("session:resume")
	s.Emit("session:state", sess.Snapshot())
	return map[string]any{"ok": true}
}

func (srv *Server) setLanguage(s Conn, p languagePayload) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	lang, err := sess.SetLanguage(p.Language)
	if err != nil {
		return srv.err(s, err)
	}
	srv.emitState(sess)
	return map[string]any{"language": lang}
}

func (srv *Server) detectText(s Conn, p textPayload) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	res, err := sess.AnalyzeText(context.Background(), p.Text)
	if err != nil {
		return srv.err(s, err)
	}
	if srv.metrics != nil {
		srv.metrics.Analysis("text", string(res.Classification))
	}
	srv.emitState(sess)
	return map[string]any{"result": res}
}

func (srv *Server) share(s Conn) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	draft, err := sess.ShareLastResult()
	if err != nil {
		return srv.err(s, err)
	}
	srv.emitState(sess)
	return map[string]any{"draft": draft, "prefill": community.PrefillFrom(&draft)}
}

func (srv *Server) newChallenge(s Conn) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	c := sess.NewChallenge()
	srv.emitState(sess)
	return map[string]any{"challenge": c}
}

func (srv *Server) answer(s Conn, p answerPayload) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	choice, err := challenge.ParseChoice(p.Choice)
	if err != nil {
		return srv.err(s, err)
	}
	out, err := sess.Answer(choice)
	if err != nil {
		return srv.err(s, err)
	}
	if srv.metrics != nil {
		srv.metrics.ChallengeAnswered(out.Correct)
	}
	srv.emitState(sess)
	return map[string]any{"outcome": out}
}

func (srv *Server) nextChallenge(s Conn) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	sess.NextChallenge()
	srv.emitState(sess)
	return map[string]any{"ok": true}
}

func (srv *Server) submitReport(s Conn, p reportPayload) map[string]any {
	sess, err := srv.current(s)
	if err != nil {
		return srv.err(s, err)
	}
	r, err := sess.SubmitReport(community.Fields{
		Type:        p.Type,
		Description: p.Description,
		Explanation: p.Explanation,
		Category:    p.Category,
		Accuracy:    p.Accuracy,
	})
	if err != nil {
		return srv.err(s, err)
	}
	if srv.metrics != nil {
		srv.metrics.ReportSubmitted()
	}
	log.Info().Str("token", sess.Token).Int("id", r.ID).Msg("report:submit")
	srv.emitState(sess)
	return map[string]any{"report": r}
}

// attach binds the connection to token, leaving any previous session room.
func (srv *Server) attach(s Conn, token string) {
	if ctx, ok := s.Context().(*ConnCtx); ok && ctx.Token != "" && ctx.Token != token {
		s.Leave(ctx.Token)
	}
	s.SetContext(&ConnCtx{Token: token})
	s.Join(token)
}

func (srv *Server) current(s Conn) (*session.Session, error) {
	ctx, ok := s.Context().(*ConnCtx)
	if !ok || ctx.Token == "" {
		return nil, session.ErrSessionNotFound
	}
	return srv.sessions.Get(ctx.Token)
}

// emitState pushes the snapshot to every connection attached to the session.
func (srv *Server) emitState(sess *session.Session) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom(namespace, sess.Token, "session:state", sess.Snapshot())
}

func (srv *Server) err(s Conn, err error) map[string]any {
	code := errorCode(err)
	message := err.Error()
	if code == "internal" {
		log.Error().Str("sid", s.ID()).Err(err).Msg("socket handler failed")
		message = "internal error"
	}
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, session.ErrNoChallenge),
		errors.Is(err, session.ErrAlreadyAnswered),
		errors.Is(err, session.ErrNoResult):
		return "conflict"
	case errors.Is(err, detect.ErrEmptyText),
		errors.Is(err, catalog.ErrInvalidLanguage),
		errors.Is(err, challenge.ErrInvalidChoice),
		errors.Is(err, community.ErrAccuracyRequired),
		errors.Is(err, community.ErrInvalidAccuracy),
		errors.Is(err, community.ErrInvalidContentType),
		errors.Is(err, community.ErrInvalidCategory):
		return "bad_request"
	}
	return "internal"
}
