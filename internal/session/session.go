// Package session implements the quiz session state machine: language
// selection, identification, configuration, question-by-question answering
// and submission.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/quiz-labs/quizgen/internal/catalog"
	"github.com/quiz-labs/quizgen/internal/eval"
	"github.com/quiz-labs/quizgen/internal/model"
	"github.com/quiz-labs/quizgen/internal/perf"
)

// User-correctable failures. Each leaves the session stage unchanged so the
// same step can be retried without losing entered data.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidStage         = errors.New("action not allowed at this stage")
	ErrInvalidLanguage      = errors.New("unknown language")
	ErrInvalidStudentID     = errors.New("student ID must contain only letters and digits")
	ErrInvalidClass         = errors.New("unknown class")
	ErrEmptyTargetSelection = errors.New("no subject or topic selected")
	ErrInvalidOption        = errors.New("answer must be one of A, B, C, D")
	ErrGenerationFailure    = errors.New("question generation failed")
	ErrNoQuestions          = errors.New("quiz has no questions yet")
	ErrNotLastQuestion      = errors.New("submit is only allowed on the last question")
	ErrOutOfRange           = errors.New("no question in that direction")
)

var studentIDRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Generator produces quiz questions for a generation request.
type Generator interface {
	GenerateQuestions(ctx context.Context, req model.GenerationRequest) ([]model.Question, error)
}

// Retriever supplies topical context snippets for auto-detected quizzes.
type Retriever interface {
	Retrieve(ctx context.Context, query []string, k int) (string, error)
}

// Evaluator runs the post-submission pipeline.
type Evaluator interface {
	Run(ctx context.Context, in eval.Input) (*model.ResultsPayload, error)
}

// RecordSource reads stored performance records.
type RecordSource interface {
	GetRecord(studentID string) (*model.PerformanceRecord, error)
}

// Manager owns all live sessions. Each user action takes the manager lock,
// mutates one session and returns a snapshot; sessions are ephemeral and
// never outlive the process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	generator  Generator
	retriever  Retriever
	evaluator  Evaluator
	records    RecordSource
	retrievalK int
}

// NewManager creates a session manager. retriever may be nil when no
// knowledge index is configured.
func NewManager(gen Generator, retriever Retriever, evaluator Evaluator, records RecordSource, retrievalK int) *Manager {
	return &Manager{
		sessions:   make(map[string]*model.Session),
		generator:  gen,
		retriever:  retriever,
		evaluator:  evaluator,
		records:    records,
		retrievalK: retrievalK,
	}
}

// Create starts a new session at the language selection stage and returns
// its snapshot. The token identifies the session in subsequent calls.
func (m *Manager) Create() (model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return model.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &model.Session{Token: token, Stage: model.StageLanguage}
	m.sessions[token] = sess
	return snapshot(sess), nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(token string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return snapshot(sess), nil
}

// SelectLanguage records the preferred language and advances to
// identification.
func (m *Manager) SelectLanguage(token, language string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageLanguage {
		return snapshot(sess), ErrInvalidStage
	}
	if !catalog.ValidLanguage(language) {
		return snapshot(sess), ErrInvalidLanguage
	}
	sess.Language = language
	sess.Stage = model.StageIdentify
	// A returning student in the same session skips re-identification.
	if sess.StudentID != "" {
		sess.Stage = model.StageConfigure
	}
	return snapshot(sess), nil
}

// ChangeLanguage clears the language and returns to stage 0. Identity and
// any entered configuration are kept.
func (m *Manager) ChangeLanguage(token string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	sess.Language = ""
	sess.Stage = model.StageLanguage
	return snapshot(sess), nil
}

// Identify validates and records the student identifier. An identifier with
// an existing performance record locks the stored class into the session
// configuration.
func (m *Manager) Identify(token, studentID string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageIdentify {
		return snapshot(sess), ErrInvalidStage
	}
	studentID = strings.TrimSpace(studentID)
	if !studentIDRe.MatchString(studentID) {
		return snapshot(sess), ErrInvalidStudentID
	}
	sess.StudentID = studentID

	rec, err := m.records.GetRecord(studentID)
	if err != nil {
		return snapshot(sess), fmt.Errorf("look up student %s: %w", studentID, err)
	}
	if rec != nil {
		sess.Config.Class = rec.Class
	}
	sess.Stage = model.StageConfigure
	return snapshot(sess), nil
}

// ConfigureParams are the stage 2 inputs.
type ConfigureParams struct {
	Class   string
	Mode    model.Mode
	Subject string
	Topics  []string
	Count   int
}

// Configure validates the quiz configuration, resolves the target list and
// arms question generation. The class is locked to the stored record for
// returning students; the question count is clamped to the allowed bounds.
func (m *Manager) Configure(token string, params ConfigureParams) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageConfigure {
		return snapshot(sess), ErrInvalidStage
	}

	rec, err := m.records.GetRecord(sess.StudentID)
	if err != nil {
		return snapshot(sess), fmt.Errorf("look up student %s: %w", sess.StudentID, err)
	}

	class := params.Class
	if rec != nil {
		// The class is permanently bound to the student ID.
		class = rec.Class
	} else if !catalog.ValidClass(class) {
		return snapshot(sess), ErrInvalidClass
	}

	var targets model.TargetList
	switch params.Mode {
	case model.ModeSubject:
		subject := strings.TrimSpace(params.Subject)
		if subject == "" {
			return snapshot(sess), ErrEmptyTargetSelection
		}
		if catalog.ValidClass(class) && !catalog.HasSubject(class, subject) {
			return snapshot(sess), fmt.Errorf("%w: %q is not offered in %s", ErrEmptyTargetSelection, subject, class)
		}
		targets = model.TargetList{{Subject: subject}}

	case model.ModeGeneral:
		targets = topicTargets(params.Topics)
		if len(targets) == 0 {
			return snapshot(sess), ErrEmptyTargetSelection
		}

	case model.ModeAuto:
		targets, err = perf.SelectWeakAreas(rec)
		if err != nil {
			return snapshot(sess), err
		}

	default:
		return snapshot(sess), fmt.Errorf("unknown quiz mode %q", params.Mode)
	}

	count := params.Count
	if count < model.MinQuestions {
		count = model.MinQuestions
	}
	if count > model.MaxQuestions {
		count = model.MaxQuestions
	}

	sess.Config = model.QuizConfig{
		Class:   class,
		Mode:    params.Mode,
		Targets: targets,
		Count:   count,
	}
	// Clear any previous quiz state before re-arming generation.
	sess.Questions = nil
	sess.Answers = nil
	sess.CurrentIndex = 0
	sess.Submitted = false
	sess.Results = nil
	sess.QuizStarted = true
	sess.Stage = model.StageAnswer
	return snapshot(sess), nil
}

// topicTargets trims, deduplicates and converts free-form topics into bare
// targets, preserving entry order.
func topicTargets(topics []string) model.TargetList {
	seen := make(map[string]bool)
	var targets model.TargetList
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, model.Target{Subject: t})
	}
	return targets
}

// Start generates the quiz questions if they have not been generated yet.
// On generation failure the stage is re-armed for retry without mutating
// the (empty) question list.
func (m *Manager) Start(ctx context.Context, token string) (model.Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	if !ok {
		m.mu.Unlock()
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageAnswer {
		snap := snapshot(sess)
		m.mu.Unlock()
		return snap, ErrInvalidStage
	}
	if len(sess.Questions) > 0 {
		snap := snapshot(sess)
		m.mu.Unlock()
		return snap, nil
	}
	req := model.GenerationRequest{
		Count:    sess.Config.Count,
		Class:    sess.Config.Class,
		Targets:  sess.Config.Targets,
		Language: sess.Language,
	}
	autoDetect := sess.Config.Mode == model.ModeAuto
	m.mu.Unlock()

	// Generation runs outside the lock: it is the slowest call in the
	// system and must not stall unrelated sessions.
	if autoDetect && m.retriever != nil {
		snippets, err := m.retriever.Retrieve(ctx, req.Targets.Strings(), m.retrievalK)
		if err != nil {
			slog.Warn("context retrieval failed, generating without context", "error", err)
		} else {
			req.Context = snippets
		}
	}

	questions, err := m.generator.GenerateQuestions(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok = m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil || len(questions) == 0 {
		sess.QuizStarted = false
		if err == nil {
			err = fmt.Errorf("generator returned no questions")
		}
		return snapshot(sess), fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	sess.QuizStarted = true
	sess.Questions = questions
	sess.Answers = make([]string, len(questions))
	sess.CurrentIndex = 0
	return snapshot(sess), nil
}

// SelectOption records the answer for the currently displayed question.
func (m *Manager) SelectOption(token, option string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageAnswer || len(sess.Questions) == 0 {
		return snapshot(sess), ErrInvalidStage
	}
	if !validOption(option) {
		return snapshot(sess), ErrInvalidOption
	}
	sess.Answers[sess.CurrentIndex] = option
	return snapshot(sess), nil
}

// Next saves the pending selection and moves to the following question.
func (m *Manager) Next(token, pending string) (model.Session, error) {
	return m.move(token, pending, +1)
}

// Prev saves the pending selection and moves to the preceding question, so
// revisiting a question shows the previously chosen option.
func (m *Manager) Prev(token, pending string) (model.Session, error) {
	return m.move(token, pending, -1)
}

func (m *Manager) move(token, pending string, delta int) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageAnswer || len(sess.Questions) == 0 {
		return snapshot(sess), ErrInvalidStage
	}
	if pending != "" {
		if !validOption(pending) {
			return snapshot(sess), ErrInvalidOption
		}
		sess.Answers[sess.CurrentIndex] = pending
	}
	next := sess.CurrentIndex + delta
	if next < 0 || next >= len(sess.Questions) {
		return snapshot(sess), ErrOutOfRange
	}
	sess.CurrentIndex = next
	return snapshot(sess), nil
}

// Submit finishes the quiz from the last question and runs the evaluation
// pipeline exactly once. On a persistence failure the session stays at the
// answering stage with all answers intact so the submission can be retried;
// a successful run caches the results payload for stage 4 re-renders.
func (m *Manager) Submit(ctx context.Context, token, pending string) (model.Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	if !ok {
		m.mu.Unlock()
		return model.Session{}, ErrSessionNotFound
	}
	if sess.Stage != model.StageAnswer || len(sess.Questions) == 0 || sess.Submitted {
		snap := snapshot(sess)
		m.mu.Unlock()
		return snap, ErrInvalidStage
	}
	if sess.CurrentIndex != len(sess.Questions)-1 {
		snap := snapshot(sess)
		m.mu.Unlock()
		return snap, ErrNotLastQuestion
	}
	if pending != "" {
		if !validOption(pending) {
			snap := snapshot(sess)
			m.mu.Unlock()
			return snap, ErrInvalidOption
		}
		sess.Answers[sess.CurrentIndex] = pending
	}
	// Marks the submission in flight before the lock is released, so a
	// duplicate Submit cannot run the pipeline a second time.
	sess.Submitted = true

	in := eval.Input{
		StudentID:  sess.StudentID,
		Class:      sess.Config.Class,
		Language:   sess.Language,
		AutoDetect: sess.Config.Mode == model.ModeAuto,
		Targets:    sess.Config.Targets,
		Questions:  append([]model.Question(nil), sess.Questions...),
		Answers:    append([]string(nil), sess.Answers...),
	}
	m.mu.Unlock()

	payload, err := m.evaluator.Run(ctx, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok = m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil {
		// Answers survive so the student can submit again.
		sess.Submitted = false
		return snapshot(sess), fmt.Errorf("evaluate quiz: %w", err)
	}
	sess.Results = payload
	sess.CurrentIndex = len(sess.Questions)
	sess.Stage = model.StageResults
	return snapshot(sess), nil
}

// Results returns the cached evaluation payload. Re-reading results never
// re-runs the pipeline.
func (m *Manager) Results(token string) (*model.ResultsPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Stage != model.StageResults || sess.Results == nil {
		return nil, ErrInvalidStage
	}
	return sess.Results, nil
}

// Restart clears all session data and returns to language selection.
func (m *Manager) Restart(token string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	*sess = model.Session{Token: token, Stage: model.StageLanguage}
	return snapshot(sess), nil
}

// Profile returns the stored performance summary for the session's student.
func (m *Manager) Profile(token string) (perf.Summary, error) {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	if !ok {
		m.mu.Unlock()
		return perf.Summary{}, ErrSessionNotFound
	}
	studentID := sess.StudentID
	m.mu.Unlock()

	if studentID == "" {
		return perf.Summary{}, ErrInvalidStage
	}
	rec, err := m.records.GetRecord(studentID)
	if err != nil {
		return perf.Summary{}, fmt.Errorf("look up student %s: %w", studentID, err)
	}
	return perf.Summarize(rec), nil
}

// snapshot copies a session for return to callers. The question and answer
// slices are copied so a snapshot never aliases the live session's state.
func snapshot(sess *model.Session) model.Session {
	snap := *sess
	if sess.Questions != nil {
		snap.Questions = append([]model.Question(nil), sess.Questions...)
	}
	if sess.Answers != nil {
		snap.Answers = append([]string(nil), sess.Answers...)
	}
	return snap
}

func validOption(option string) bool {
	for _, l := range model.OptionLabels {
		if option == l {
			return true
		}
	}
	return false
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
