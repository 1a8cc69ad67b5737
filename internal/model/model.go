package model

import "strings"

// Stage marks the session's position in the linear quiz flow.
type Stage int

const (
	// StageLanguage is the initial language selection screen.
	StageLanguage Stage = 0
	// StageIdentify asks for the student identifier.
	StageIdentify Stage = 1
	// StageConfigure collects class, mode, targets and question count.
	StageConfigure Stage = 2
	// StageAnswer presents questions one at a time.
	StageAnswer Stage = 3
	// StageResults shows the evaluated report.
	StageResults Stage = 4
)

// Mode selects how quiz targets are chosen.
type Mode string

const (
	// ModeSubject is a single subject picked from the class catalog.
	ModeSubject Mode = "subject"
	// ModeGeneral is a free-form list of topics typed by the student.
	ModeGeneral Mode = "general"
	// ModeAuto derives targets from past performance.
	ModeAuto Mode = "auto"
)

// Question count bounds for a single quiz.
const (
	MinQuestions = 5
	MaxQuestions = 30
)

// OptionLabels are the four fixed answer labels of a multiple-choice question.
var OptionLabels = []string{"A", "B", "C", "D"}

// Target identifies what a question should be about: a subject, optionally
// narrowed to one topic. Topic is empty for a bare subject target.
type Target struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic,omitempty"`
}

// String renders the target in the wire form used in generation prompts,
// either "Subject" or "Subject - Topic".
func (t Target) String() string {
	if t.Topic == "" {
		return t.Subject
	}
	return t.Subject + " - " + t.Topic
}

// ParseTarget splits a "Subject - Topic" string back into a Target.
// A string without the separator is a bare subject target.
func ParseTarget(s string) Target {
	subj, topic, found := strings.Cut(s, " - ")
	if !found {
		return Target{Subject: strings.TrimSpace(s)}
	}
	return Target{Subject: strings.TrimSpace(subj), Topic: strings.TrimSpace(topic)}
}

// TargetList is an ordered sequence of targets. In auto-detect mode its order
// is significant: the generator returns one question per target, in order.
type TargetList []Target

// Strings returns the wire form of every target, preserving order.
func (tl TargetList) Strings() []string {
	out := make([]string, len(tl))
	for i, t := range tl {
		out[i] = t.String()
	}
	return out
}

// Question is one generated multiple-choice question. It lives only for the
// duration of a quiz session. Subject and Topic are assigned once during
// evaluation-time enrichment.
type Question struct {
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
	Correct string            `json:"correct"`
	Subject string            `json:"subject,omitempty"`
	Topic   string            `json:"topic,omitempty"`
}

// GenerationRequest specifies a quiz to be produced by the question generator.
type GenerationRequest struct {
	Count    int        `json:"count"`
	Class    string     `json:"class"`
	Targets  TargetList `json:"targets"`
	Language string     `json:"language"`
	Context  string     `json:"context,omitempty"`
}

// QuizConfig is the configuration confirmed at stage 2.
type QuizConfig struct {
	Class   string     `json:"class"`
	Mode    Mode       `json:"mode"`
	Targets TargetList `json:"targets"`
	Count   int        `json:"count"`
}

// Session is the owned, serializable state of one student interaction.
// It is mutated only through the session manager.
type Session struct {
	Token        string          `json:"-"`
	Stage        Stage           `json:"stage"`
	Language     string          `json:"language,omitempty"`
	StudentID    string          `json:"student_id,omitempty"`
	Config       QuizConfig      `json:"config"`
	QuizStarted  bool            `json:"quiz_started"`
	Questions    []Question      `json:"questions,omitempty"`
	Answers      []string        `json:"answers,omitempty"`
	CurrentIndex int             `json:"current_index"`
	Submitted    bool            `json:"submitted"`
	Results      *ResultsPayload `json:"results,omitempty"`
}

// EvaluationResult is the graded outcome for one question.
type EvaluationResult struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Subject       string `json:"subject"`
	Topic         string `json:"topic"`
}

// ResultsPayload caches the evaluated report on the session so that stage 4
// re-renders never re-run the pipeline.
type ResultsPayload struct {
	Results  []EvaluationResult `json:"results"`
	Report   string             `json:"report"`
	Feedback string             `json:"feedback"`
}

// TopicStats are the per-topic counters of a performance record.
type TopicStats struct {
	TotalAttempts int `json:"total_attempts"`
	CorrectCount  int `json:"correct_count"`
}

// SubjectStats are the per-subject counters plus the topic breakdown.
type SubjectStats struct {
	TotalAttempts int                   `json:"total_attempts"`
	CorrectCount  int                   `json:"correct_count"`
	Topics        map[string]TopicStats `json:"topics"`
}

// PerformanceRecord is the durable per-student aggregate. Class is fixed at
// record creation and never changes afterwards.
type PerformanceRecord struct {
	StudentID               string                  `json:"student_id"`
	Class                   string                  `json:"class"`
	TotalQuestionsAttempted int                     `json:"total_questions_attempted"`
	TotalCorrectAnswers     int                     `json:"total_correct_answers"`
	TotalIncorrectAnswers   int                     `json:"total_incorrect_answers"`
	Subjects                map[string]SubjectStats `json:"subjects"`
}

// Increments is one quiz attempt's additive contribution to a record.
// Applied atomically by the store; never mixed with absolute writes.
type Increments struct {
	Attempted int
	Correct   int
	Incorrect int
	Subjects  map[string]SubjectStats
}
