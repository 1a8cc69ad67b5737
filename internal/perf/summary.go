package perf

import (
	"sort"

	"github.com/quiz-labs/quizgen/internal/model"
)

// TopicSummary is one topic's share of the profile breakdown.
type TopicSummary struct {
	Topic    string  `json:"topic"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Percent  float64 `json:"percent"`
}

// SubjectSummary is one subject's share of the profile breakdown.
type SubjectSummary struct {
	Subject  string         `json:"subject"`
	Attempts int            `json:"attempts"`
	Correct  int            `json:"correct"`
	Percent  float64        `json:"percent"`
	Topics   []TopicSummary `json:"topics"`
}

// Summary is the profile view of a performance record: overall accuracy,
// per-subject and per-topic breakdowns, and the two weakest subjects.
type Summary struct {
	Class          string           `json:"class"`
	TotalAttempted int              `json:"total_attempted"`
	TotalCorrect   int              `json:"total_correct"`
	OverallPercent float64          `json:"overall_percent"`
	Subjects       []SubjectSummary `json:"subjects"`
	SubjectGap     []string         `json:"subject_gap"`
}

// Summarize builds the profile summary for a record. Subjects and topics are
// listed in name order; SubjectGap holds the two lowest subjects by accuracy.
func Summarize(rec *model.PerformanceRecord) Summary {
	if rec == nil {
		return Summary{}
	}

	sum := Summary{
		Class:          rec.Class,
		TotalAttempted: rec.TotalQuestionsAttempted,
		TotalCorrect:   rec.TotalCorrectAnswers,
		OverallPercent: percent(rec.TotalCorrectAnswers, rec.TotalQuestionsAttempted),
		SubjectGap:     LowestSubjects(rec, 2),
	}

	subjects := make([]string, 0, len(rec.Subjects))
	for name := range rec.Subjects {
		subjects = append(subjects, name)
	}
	sort.Strings(subjects)

	for _, name := range subjects {
		stats := rec.Subjects[name]
		ss := SubjectSummary{
			Subject:  name,
			Attempts: stats.TotalAttempts,
			Correct:  stats.CorrectCount,
			Percent:  percent(stats.CorrectCount, stats.TotalAttempts),
		}

		topics := make([]string, 0, len(stats.Topics))
		for topic := range stats.Topics {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		for _, topic := range topics {
			ts := stats.Topics[topic]
			ss.Topics = append(ss.Topics, TopicSummary{
				Topic:    topic,
				Attempts: ts.TotalAttempts,
				Correct:  ts.CorrectCount,
				Percent:  percent(ts.CorrectCount, ts.TotalAttempts),
			})
		}
		sum.Subjects = append(sum.Subjects, ss)
	}
	return sum
}

func percent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
