// Package eval runs the post-submission evaluation pipeline: enrichment,
// grading, narrative reporting and performance persistence.
package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quiz-labs/quizgen/internal/llm"
	"github.com/quiz-labs/quizgen/internal/model"
	"github.com/quiz-labs/quizgen/internal/perf"
)

// Placeholder strings substituted when a narrative call fails. The pipeline
// always produces a report and feedback, degraded or not.
const (
	reportFailure   = "Failed to generate performance report."
	feedbackFailure = "Failed to generate personalized feedback."
	unknownLabel    = "Unknown"
)

// Classifier infers a question's subject and topic.
type Classifier interface {
	ClassifyQuestion(ctx context.Context, questionText, class string, targets model.TargetList) (llm.Classification, error)
}

// Narrator produces the report and feedback texts.
type Narrator interface {
	PerformanceReport(ctx context.Context, results []model.EvaluationResult, language string) (string, error)
	PersonalizedFeedback(ctx context.Context, results []model.EvaluationResult, language string) (string, error)
}

// PerformanceStore applies the aggregate update for one submission.
type PerformanceStore interface {
	ApplyIncrements(studentID, classIfNew string, inc model.Increments) error
}

// Input carries one submitted quiz into the pipeline.
type Input struct {
	StudentID  string
	Class      string
	Language   string
	AutoDetect bool
	Targets    model.TargetList
	Questions  []model.Question
	Answers    []string
}

// Pipeline is the fixed five-step evaluation sequence. Steps 1-4 are total:
// they degrade to defaults on failure and never abort. Only the final
// persistence step can fail the run.
type Pipeline struct {
	classifier Classifier
	narrator   Narrator
	store      PerformanceStore
}

// New creates a pipeline over the given collaborators.
func New(classifier Classifier, narrator Narrator, store PerformanceStore) *Pipeline {
	return &Pipeline{classifier: classifier, narrator: narrator, store: store}
}

// Run executes enrich, grade, report, feedback and persist in order and
// returns the populated results payload. The payload's report and feedback
// are always present, possibly as failure placeholders.
func (p *Pipeline) Run(ctx context.Context, in Input) (*model.ResultsPayload, error) {
	questions := p.enrich(ctx, in)
	results := grade(questions, in.Answers)

	report, err := p.narrator.PerformanceReport(ctx, results, in.Language)
	if err != nil {
		slog.Error("performance report failed", "student_id", in.StudentID, "error", err)
		report = reportFailure
	}

	feedback, err := p.narrator.PersonalizedFeedback(ctx, results, in.Language)
	if err != nil {
		slog.Error("personalized feedback failed", "student_id", in.StudentID, "error", err)
		feedback = feedbackFailure
	}

	inc := perf.BuildIncrements(results)
	if err := p.store.ApplyIncrements(in.StudentID, in.Class, inc); err != nil {
		return nil, fmt.Errorf("persist performance for %s: %w", in.StudentID, err)
	}

	return &model.ResultsPayload{
		Results:  results,
		Report:   report,
		Feedback: feedback,
	}, nil
}

// enrich assigns subject and topic to every question. Auto-detect zips the
// target list positionally with the questions; other modes ask the
// classifier per question and fall back to defaults on failure.
func (p *Pipeline) enrich(ctx context.Context, in Input) []model.Question {
	questions := make([]model.Question, len(in.Questions))
	copy(questions, in.Questions)

	for i := range questions {
		if in.AutoDetect {
			if i < len(in.Targets) && in.Targets[i].Subject != "" {
				questions[i].Subject = in.Targets[i].Subject
				questions[i].Topic = in.Targets[i].Topic
				if questions[i].Topic == "" {
					questions[i].Topic = unknownLabel
				}
			} else {
				questions[i].Subject = unknownLabel
				questions[i].Topic = unknownLabel
			}
			continue
		}

		cl, err := p.classifier.ClassifyQuestion(ctx, questions[i].Text, in.Class, in.Targets)
		if err != nil {
			slog.Warn("classification failed, using defaults",
				"student_id", in.StudentID, "question", i, "error", err)
			cl = llm.Classification{Subject: fallbackSubject(in.Targets), Topic: unknownLabel}
		}
		if cl.Subject == "" {
			cl.Subject = fallbackSubject(in.Targets)
		}
		if cl.Topic == "" {
			cl.Topic = unknownLabel
		}
		questions[i].Subject = cl.Subject
		questions[i].Topic = cl.Topic
	}
	return questions
}

// fallbackSubject picks the classification default: the selected subject for
// a single-subject quiz, Unknown otherwise.
func fallbackSubject(targets model.TargetList) string {
	if len(targets) == 1 && targets[0].Topic == "" && targets[0].Subject != "" {
		return targets[0].Subject
	}
	return unknownLabel
}

// grade compares answers to the correct option labels. Matching is exact and
// case-sensitive; a missing or empty answer is incorrect, never an error.
func grade(questions []model.Question, answers []string) []model.EvaluationResult {
	results := make([]model.EvaluationResult, 0, len(questions))
	for i, q := range questions {
		var userAnswer string
		if i < len(answers) {
			userAnswer = answers[i]
		}
		results = append(results, model.EvaluationResult{
			Question:      q.Text,
			UserAnswer:    userAnswer,
			CorrectAnswer: q.Correct,
			IsCorrect:     userAnswer != "" && userAnswer == q.Correct,
			Subject:       q.Subject,
			Topic:         q.Topic,
		})
	}
	return results
}
