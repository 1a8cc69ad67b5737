package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/quiz-labs/quizgen/internal/eval"
	appI18n "github.com/quiz-labs/quizgen/internal/i18n"
	"github.com/quiz-labs/quizgen/internal/model"
	"github.com/quiz-labs/quizgen/internal/session"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) GenerateQuestions(_ context.Context, req model.GenerationRequest) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	questions := make([]model.Question, req.Count)
	for i := range questions {
		questions[i] = model.Question{
			Text:    fmt.Sprintf("Question %d", i+1),
			Options: map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			Correct: "A",
		}
	}
	return questions, nil
}

type fakeEvaluator struct{}

func (fakeEvaluator) Run(_ context.Context, in eval.Input) (*model.ResultsPayload, error) {
	results := make([]model.EvaluationResult, len(in.Questions))
	for i, q := range in.Questions {
		results[i] = model.EvaluationResult{
			Question:      q.Text,
			UserAnswer:    in.Answers[i],
			CorrectAnswer: q.Correct,
			IsCorrect:     in.Answers[i] == q.Correct,
			Subject:       "Science",
			Topic:         "Plants",
		}
	}
	return &model.ResultsPayload{Results: results, Report: "report", Feedback: "feedback"}, nil
}

type fakeRecords struct {
	rec *model.PerformanceRecord
}

func (f *fakeRecords) GetRecord(string) (*model.PerformanceRecord, error) {
	return f.rec, nil
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	cookie *http.Cookie
}

func newTestClient(t *testing.T, gen *fakeGenerator, records *fakeRecords) *testClient {
	t.Helper()
	if gen == nil {
		gen = &fakeGenerator{}
	}
	if records == nil {
		records = &fakeRecords{}
	}
	manager := session.NewManager(gen, nil, fakeEvaluator{}, records, 3)
	h := New(manager, false)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testClient{t: t, server: server}
}

// do sends a request, carrying the session cookie once one was issued.
func (c *testClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.server.URL+path, &reqBody)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == "quiz_session" {
			c.cookie = ck
		}
	}
	return resp, buf.Bytes()
}

func (c *testClient) expect(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s: status %d, want %d (body %s)", method, path, resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("%s %s: decode %s: %v", method, path, data, err)
		}
	}
}

func TestQuizLifecycle(t *testing.T) {
	c := newTestClient(t, nil, nil)

	var view sessionView
	c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, &view)
	if view.Stage != model.StageLanguage {
		t.Fatalf("expected stage 0, got %d", view.Stage)
	}
	if c.cookie == nil {
		t.Fatal("expected session cookie")
	}

	c.expect(http.MethodPost, "/api/session/language",
		map[string]string{"language": "English"}, http.StatusOK, &view)
	if view.Stage != model.StageIdentify {
		t.Fatalf("expected stage 1, got %d", view.Stage)
	}

	c.expect(http.MethodPost, "/api/session/student",
		map[string]string{"student_id": "abc123"}, http.StatusOK, &view)

	c.expect(http.MethodPost, "/api/session/configure", map[string]any{
		"class":   "Class 6",
		"mode":    "subject",
		"subject": "Science",
		"count":   5,
	}, http.StatusOK, &view)
	if view.Stage != model.StageAnswer || view.Config.Count != 5 {
		t.Fatalf("unexpected view after configure: %+v", view)
	}

	c.expect(http.MethodPost, "/api/session/start", nil, http.StatusOK, &view)
	if view.Total != 5 {
		t.Fatalf("expected 5 questions, got %d", view.Total)
	}

	var q questionView
	c.expect(http.MethodGet, "/api/session/question", nil, http.StatusOK, &q)
	if q.Index != 0 || q.Total != 5 || q.Text == "" {
		t.Fatalf("unexpected question view: %+v", q)
	}

	// Walk to the last question, answering A each time.
	for i := 0; i < 4; i++ {
		c.expect(http.MethodPost, "/api/session/next",
			map[string]string{"option": "A"}, http.StatusOK, &view)
	}
	if view.CurrentIndex != 4 {
		t.Fatalf("expected index 4, got %d", view.CurrentIndex)
	}

	var payload model.ResultsPayload
	c.expect(http.MethodPost, "/api/session/submit",
		map[string]string{"option": "B"}, http.StatusOK, &payload)
	if len(payload.Results) != 5 || payload.Report != "report" {
		t.Fatalf("unexpected results payload: %+v", payload)
	}

	// Results stay re-readable.
	c.expect(http.MethodGet, "/api/session/results", nil, http.StatusOK, &payload)

	c.expect(http.MethodPost, "/api/session/restart", nil, http.StatusOK, &view)
	if view.Stage != model.StageLanguage {
		t.Fatalf("expected stage 0 after restart, got %d", view.Stage)
	}
}

func TestQuestionHidesAnswerKey(t *testing.T) {
	c := newTestClient(t, nil, nil)
	c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)
	c.expect(http.MethodPost, "/api/session/language",
		map[string]string{"language": "English"}, http.StatusOK, nil)
	c.expect(http.MethodPost, "/api/session/student",
		map[string]string{"student_id": "abc123"}, http.StatusOK, nil)
	c.expect(http.MethodPost, "/api/session/configure", map[string]any{
		"class": "Class 6", "mode": "subject", "subject": "Science", "count": 5,
	}, http.StatusOK, nil)
	c.expect(http.MethodPost, "/api/session/start", nil, http.StatusOK, nil)

	resp, data := c.do(http.MethodGet, "/api/session/question", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("question: status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, leaked := raw["correct"]; leaked {
		t.Error("question payload leaks the answer key")
	}
}

func TestMissingCookie(t *testing.T) {
	c := newTestClient(t, nil, nil)
	resp, _ := c.do(http.MethodGet, "/api/session", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without cookie, got %d", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Run("invalid student id", func(t *testing.T) {
		c := newTestClient(t, nil, nil)
		c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)
		c.expect(http.MethodPost, "/api/session/language",
			map[string]string{"language": "English"}, http.StatusOK, nil)

		resp, data := c.do(http.MethodPost, "/api/session/student",
			map[string]string{"student_id": "abc 123"})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d (%s)", resp.StatusCode, data)
		}
	})

	t.Run("wrong stage", func(t *testing.T) {
		c := newTestClient(t, nil, nil)
		c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)

		resp, _ := c.do(http.MethodPost, "/api/session/student",
			map[string]string{"student_id": "abc123"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for action at wrong stage, got %d", resp.StatusCode)
		}
	})

	t.Run("auto mode without history", func(t *testing.T) {
		c := newTestClient(t, nil, nil)
		c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)
		c.expect(http.MethodPost, "/api/session/language",
			map[string]string{"language": "English"}, http.StatusOK, nil)
		c.expect(http.MethodPost, "/api/session/student",
			map[string]string{"student_id": "abc123"}, http.StatusOK, nil)

		resp, _ := c.do(http.MethodPost, "/api/session/configure", map[string]any{
			"class": "Class 6", "mode": "auto", "count": 5,
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409 for auto without history, got %d", resp.StatusCode)
		}
	})

	t.Run("generation failure", func(t *testing.T) {
		c := newTestClient(t, &fakeGenerator{err: errors.New("model down")}, nil)
		c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)
		c.expect(http.MethodPost, "/api/session/language",
			map[string]string{"language": "English"}, http.StatusOK, nil)
		c.expect(http.MethodPost, "/api/session/student",
			map[string]string{"student_id": "abc123"}, http.StatusOK, nil)
		c.expect(http.MethodPost, "/api/session/configure", map[string]any{
			"class": "Class 6", "mode": "subject", "subject": "Science", "count": 5,
		}, http.StatusOK, nil)

		resp, _ := c.do(http.MethodPost, "/api/session/start", nil)
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("expected 502 on generation failure, got %d", resp.StatusCode)
		}
	})
}

func TestProfileEndpoint(t *testing.T) {
	records := &fakeRecords{rec: &model.PerformanceRecord{
		StudentID:               "abc123",
		Class:                   "Class 6",
		TotalQuestionsAttempted: 4,
		TotalCorrectAnswers:     3,
		TotalIncorrectAnswers:   1,
		Subjects: map[string]model.SubjectStats{
			"Math": {TotalAttempts: 4, CorrectCount: 3},
		},
	}}
	c := newTestClient(t, nil, records)
	c.expect(http.MethodPost, "/api/session", nil, http.StatusCreated, nil)
	c.expect(http.MethodPost, "/api/session/language",
		map[string]string{"language": "English"}, http.StatusOK, nil)
	c.expect(http.MethodPost, "/api/session/student",
		map[string]string{"student_id": "abc123"}, http.StatusOK, nil)

	var summary struct {
		Class          string  `json:"class"`
		OverallPercent float64 `json:"overall_percent"`
	}
	c.expect(http.MethodGet, "/api/session/profile", nil, http.StatusOK, &summary)
	if summary.Class != "Class 6" || summary.OverallPercent != 75 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	c := newTestClient(t, nil, nil)

	var classes []classView
	c.expect(http.MethodGet, "/api/catalog/classes", nil, http.StatusOK, &classes)
	if len(classes) != 14 {
		t.Fatalf("expected 14 classes, got %d", len(classes))
	}
	for _, cv := range classes {
		if cv.Class == "Class 6" && len(cv.Subjects) == 0 {
			t.Error("expected subjects for Class 6")
		}
	}

	var languages []string
	c.expect(http.MethodGet, "/api/catalog/languages", nil, http.StatusOK, &languages)
	if len(languages) == 0 || languages[0] != "English" {
		t.Errorf("expected English first in language list")
	}
}
