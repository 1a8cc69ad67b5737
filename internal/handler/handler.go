// Package handler exposes the quiz session over a JSON HTTP API. The API is
// the contract for the presentation layer; it never leaks correct answers
// before submission.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quiz-labs/quizgen/internal/catalog"
	"github.com/quiz-labs/quizgen/internal/i18n"
	"github.com/quiz-labs/quizgen/internal/model"
	"github.com/quiz-labs/quizgen/internal/perf"
	"github.com/quiz-labs/quizgen/internal/session"
)

const sessionCookie = "quiz_session"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions      *session.Manager
	secureCookies bool
}

// New creates a new Handler.
func New(m *session.Manager, secureCookies bool) *Handler {
	return &Handler{sessions: m, secureCookies: secureCookies}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.handleCreateSession)
		r.Get("/session", h.handleGetSession)
		r.Post("/session/language", h.handleSelectLanguage)
		r.Post("/session/language/change", h.handleChangeLanguage)
		r.Post("/session/student", h.handleIdentify)
		r.Get("/session/profile", h.handleProfile)
		r.Post("/session/configure", h.handleConfigure)
		r.Post("/session/start", h.handleStart)
		r.Get("/session/question", h.handleQuestion)
		r.Post("/session/answer", h.handleAnswer)
		r.Post("/session/next", h.handleNext)
		r.Post("/session/prev", h.handlePrev)
		r.Post("/session/submit", h.handleSubmit)
		r.Get("/session/results", h.handleResults)
		r.Post("/session/restart", h.handleRestart)
		r.Get("/catalog/classes", h.handleClasses)
		r.Get("/catalog/languages", h.handleLanguages)
	})
}

// sessionView is the client-facing snapshot. Questions are reduced to a
// count; the current question is served separately without its answer key.
type sessionView struct {
	Stage        model.Stage      `json:"stage"`
	Language     string           `json:"language,omitempty"`
	StudentID    string           `json:"student_id,omitempty"`
	Config       model.QuizConfig `json:"config"`
	QuizStarted  bool             `json:"quiz_started"`
	Total        int              `json:"total_questions"`
	CurrentIndex int              `json:"current_index"`
	Submitted    bool             `json:"submitted"`
}

// questionView is one question as shown to the student. The correct label
// stays server-side until results.
type questionView struct {
	Index   int               `json:"index"`
	Total   int               `json:"total"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
	Answer  string            `json:"answer,omitempty"`
}

func viewOf(sess model.Session) sessionView {
	return sessionView{
		Stage:        sess.Stage,
		Language:     sess.Language,
		StudentID:    sess.StudentID,
		Config:       sess.Config,
		QuizStarted:  sess.QuizStarted,
		Total:        len(sess.Questions),
		CurrentIndex: sess.CurrentIndex,
		Submitted:    sess.Submitted,
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Get(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.sessions.SelectLanguage(token, req.Language)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleChangeLanguage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.ChangeLanguage(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req struct {
		StudentID string `json:"student_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.sessions.Identify(token, req.StudentID)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	summary, err := h.sessions.Profile(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleConfigure(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req struct {
		Class   string   `json:"class"`
		Mode    string   `json:"mode"`
		Subject string   `json:"subject"`
		Topics  []string `json:"topics"`
		Count   int      `json:"count"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.sessions.Configure(token, session.ConfigureParams{
		Class:   req.Class,
		Mode:    model.Mode(req.Mode),
		Subject: req.Subject,
		Topics:  req.Topics,
		Count:   req.Count,
	})
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Start(r.Context(), token)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Get(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sess.Stage != model.StageAnswer || len(sess.Questions) == 0 {
		h.writeError(w, localized(r, sess.Language), session.ErrNoQuestions)
		return
	}
	i := sess.CurrentIndex
	q := sess.Questions[i]
	writeJSON(w, http.StatusOK, questionView{
		Index:   i,
		Total:   len(sess.Questions),
		Text:    q.Text,
		Options: q.Options,
		Answer:  sess.Answers[i],
	})
}

type answerRequest struct {
	Option string `json:"option"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.sessions.SelectOption(token, req.Option)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	h.moveHandler(w, r, h.sessions.Next)
}

func (h *Handler) handlePrev(w http.ResponseWriter, r *http.Request) {
	h.moveHandler(w, r, h.sessions.Prev)
}

func (h *Handler) moveHandler(w http.ResponseWriter, r *http.Request, move func(token, pending string) (model.Session, error)) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := move(token, req.Option)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.sessions.Submit(r.Context(), token, req.Option)
	if err != nil {
		h.writeError(w, localized(r, sess.Language), err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Results)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	payload, err := h.sessions.Results(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Restart(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type classView struct {
	Class    string   `json:"class"`
	Subjects []string `json:"subjects"`
}

func (h *Handler) handleClasses(w http.ResponseWriter, r *http.Request) {
	classes := catalog.Classes()
	out := make([]classView, 0, len(classes))
	for _, c := range classes {
		out = append(out, classView{Class: c, Subjects: catalog.SubjectsFor(c)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Languages())
}

// localized swaps in the localizer for the session's chosen language so
// error messages follow the quiz language rather than the server default.
func localized(r *http.Request, language string) *http.Request {
	if language == "" {
		return r
	}
	return r.WithContext(i18n.WithLanguage(r.Context(), language))
}

// token extracts the session cookie, writing the error response itself when
// the cookie is absent.
func (h *Handler) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: i18n.T(r.Context(), "session_not_found")})
		return "", false
	}
	return c.Value, true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP statuses and localized messages.
// Unknown errors are logged and reported as a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var status int
	var msgID string
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status, msgID = http.StatusUnauthorized, "session_not_found"
	case errors.Is(err, session.ErrInvalidStage):
		status, msgID = http.StatusBadRequest, "invalid_stage"
	case errors.Is(err, session.ErrInvalidLanguage):
		status, msgID = http.StatusUnprocessableEntity, "invalid_language"
	case errors.Is(err, session.ErrInvalidStudentID):
		status, msgID = http.StatusUnprocessableEntity, "invalid_student_id"
	case errors.Is(err, session.ErrInvalidClass):
		status, msgID = http.StatusUnprocessableEntity, "invalid_class"
	case errors.Is(err, session.ErrEmptyTargetSelection):
		status, msgID = http.StatusUnprocessableEntity, "empty_target_selection"
	case errors.Is(err, session.ErrInvalidOption):
		status, msgID = http.StatusUnprocessableEntity, "invalid_option"
	case errors.Is(err, perf.ErrNoPerformanceData):
		status, msgID = http.StatusConflict, "no_performance_data"
	case errors.Is(err, session.ErrGenerationFailure):
		status, msgID = http.StatusBadGateway, "generation_failure"
	case errors.Is(err, session.ErrNoQuestions):
		status, msgID = http.StatusBadRequest, "no_questions"
	case errors.Is(err, session.ErrNotLastQuestion):
		status, msgID = http.StatusBadRequest, "not_last_question"
	case errors.Is(err, session.ErrOutOfRange):
		status, msgID = http.StatusBadRequest, "out_of_range"
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		status, msgID = http.StatusInternalServerError, "internal_error"
	}

	writeJSON(w, status, errorBody{Error: i18n.T(ctx, msgID)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeBody reads a JSON body, tolerating an empty body for endpoints whose
// fields are all optional. It writes the error response on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: i18n.T(r.Context(), "internal_error")})
		return false
	}
	return true
}
