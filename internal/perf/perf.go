// Package perf implements weak-area selection and aggregate bookkeeping over
// student performance records.
package perf

import (
	"errors"
	"sort"

	"github.com/quiz-labs/quizgen/internal/model"
)

// ErrNoPerformanceData is returned when auto-detect is requested for a
// student with no recorded attempts.
var ErrNoPerformanceData = errors.New("no past performance data for student")

// weakTopicThreshold is the accuracy below which a topic counts as weak.
const weakTopicThreshold = 0.9

// maxWeakTopics caps how many weak topics a single subject contributes.
const maxWeakTopics = 3

// SelectWeakAreas computes the ordered target list for an auto-detected quiz.
//
// Every subject tied at the minimum accuracy is selected. For each selected
// subject the weakest topics (accuracy below 0.9, at most three, ascending by
// accuracy) become "Subject - Topic" targets; a subject with no weak topic
// contributes itself as a bare target. The output is deterministic for a
// fixed record: subjects and equally-accurate topics are visited in name
// order.
func SelectWeakAreas(rec *model.PerformanceRecord) (model.TargetList, error) {
	if rec == nil || len(rec.Subjects) == 0 {
		return nil, ErrNoPerformanceData
	}

	type subjectAcc struct {
		name string
		acc  float64
	}
	var accs []subjectAcc
	for name, stats := range rec.Subjects {
		if stats.TotalAttempts > 0 {
			accs = append(accs, subjectAcc{
				name: name,
				acc:  float64(stats.CorrectCount) / float64(stats.TotalAttempts),
			})
		}
	}
	if len(accs) == 0 {
		return nil, ErrNoPerformanceData
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].name < accs[j].name })

	minAcc := accs[0].acc
	for _, sa := range accs[1:] {
		if sa.acc < minAcc {
			minAcc = sa.acc
		}
	}

	var targets model.TargetList
	for _, sa := range accs {
		if sa.acc != minAcc {
			continue
		}
		weak := weakTopics(rec.Subjects[sa.name])
		if len(weak) == 0 {
			targets = append(targets, model.Target{Subject: sa.name})
			continue
		}
		for _, topic := range weak {
			targets = append(targets, model.Target{Subject: sa.name, Topic: topic})
		}
	}
	return targets, nil
}

func weakTopics(stats model.SubjectStats) []string {
	type topicAcc struct {
		name string
		acc  float64
	}
	var accs []topicAcc
	for name, ts := range stats.Topics {
		if ts.TotalAttempts > 0 {
			accs = append(accs, topicAcc{
				name: name,
				acc:  float64(ts.CorrectCount) / float64(ts.TotalAttempts),
			})
		}
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].acc != accs[j].acc {
			return accs[i].acc < accs[j].acc
		}
		return accs[i].name < accs[j].name
	})

	var out []string
	for _, ta := range accs {
		if ta.acc >= weakTopicThreshold {
			break
		}
		out = append(out, ta.name)
		if len(out) == maxWeakTopics {
			break
		}
	}
	return out
}

// LowestSubjects returns the n subjects with the lowest accuracy, ascending.
// This is the looser profile-summary heuristic: unlike SelectWeakAreas it
// takes a fixed count rather than every subject tied at the minimum.
func LowestSubjects(rec *model.PerformanceRecord, n int) []string {
	if rec == nil {
		return nil
	}
	type subjectAcc struct {
		name string
		acc  float64
	}
	var accs []subjectAcc
	for name, stats := range rec.Subjects {
		acc := 0.0
		if stats.TotalAttempts > 0 {
			acc = float64(stats.CorrectCount) / float64(stats.TotalAttempts)
		}
		accs = append(accs, subjectAcc{name: name, acc: acc})
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].acc != accs[j].acc {
			return accs[i].acc < accs[j].acc
		}
		return accs[i].name < accs[j].name
	})
	if n > len(accs) {
		n = len(accs)
	}
	out := make([]string, 0, n)
	for _, sa := range accs[:n] {
		out = append(out, sa.name)
	}
	return out
}

// BuildIncrements aggregates one quiz's evaluation results into the additive
// update applied to the performance store.
func BuildIncrements(results []model.EvaluationResult) model.Increments {
	inc := model.Increments{Subjects: make(map[string]model.SubjectStats)}
	for _, r := range results {
		inc.Attempted++
		if r.IsCorrect {
			inc.Correct++
		} else {
			inc.Incorrect++
		}

		subj := r.Subject
		if subj == "" {
			subj = "Unknown"
		}
		topic := r.Topic
		if topic == "" {
			topic = "Unknown"
		}

		stats := inc.Subjects[subj]
		if stats.Topics == nil {
			stats.Topics = make(map[string]model.TopicStats)
		}
		stats.TotalAttempts++
		ts := stats.Topics[topic]
		ts.TotalAttempts++
		if r.IsCorrect {
			stats.CorrectCount++
			ts.CorrectCount++
		}
		stats.Topics[topic] = ts
		inc.Subjects[subj] = stats
	}
	return inc
}
