package perf

import (
	"errors"
	"reflect"
	"testing"

	"github.com/quiz-labs/quizgen/internal/model"
)

func record(class string, subjects map[string]model.SubjectStats) *model.PerformanceRecord {
	rec := &model.PerformanceRecord{StudentID: "abc123", Class: class, Subjects: subjects}
	for _, stats := range subjects {
		rec.TotalQuestionsAttempted += stats.TotalAttempts
		rec.TotalCorrectAnswers += stats.CorrectCount
		rec.TotalIncorrectAnswers += stats.TotalAttempts - stats.CorrectCount
	}
	return rec
}

func TestSelectWeakAreasNoData(t *testing.T) {
	cases := []struct {
		name string
		rec  *model.PerformanceRecord
	}{
		{"nil record", nil},
		{"no subjects", record("Class 6", map[string]model.SubjectStats{})},
		{"zero attempts only", record("Class 6", map[string]model.SubjectStats{
			"Math": {TotalAttempts: 0},
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SelectWeakAreas(tc.rec)
			if !errors.Is(err, ErrNoPerformanceData) {
				t.Errorf("expected ErrNoPerformanceData, got %v", err)
			}
		})
	}
}

func TestSelectWeakAreasTiesAtMinimum(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math":    {TotalAttempts: 10, CorrectCount: 5},
		"Science": {TotalAttempts: 4, CorrectCount: 2},
		"English": {TotalAttempts: 10, CorrectCount: 8},
	})

	targets, err := SelectWeakAreas(rec)
	if err != nil {
		t.Fatalf("SelectWeakAreas: %v", err)
	}

	// Both subjects at 50% are selected, in name order; English at 80% is not.
	want := model.TargetList{{Subject: "Math"}, {Subject: "Science"}}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("expected %v, got %v", want, targets)
	}
}

func TestSelectWeakAreasTopicCapAndOrder(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math": {
			TotalAttempts: 50,
			CorrectCount:  25,
			Topics: map[string]model.TopicStats{
				"Algebra":     {TotalAttempts: 10, CorrectCount: 2}, // 0.2
				"Geometry":    {TotalAttempts: 10, CorrectCount: 5}, // 0.5
				"Fractions":   {TotalAttempts: 10, CorrectCount: 7}, // 0.7
				"Decimals":    {TotalAttempts: 10, CorrectCount: 8}, // 0.8
				"Mensuration": {TotalAttempts: 10, CorrectCount: 3}, // 0.3
			},
		},
	})

	targets, err := SelectWeakAreas(rec)
	if err != nil {
		t.Fatalf("SelectWeakAreas: %v", err)
	}

	// Three weakest topics, ascending by accuracy.
	want := model.TargetList{
		{Subject: "Math", Topic: "Algebra"},
		{Subject: "Math", Topic: "Mensuration"},
		{Subject: "Math", Topic: "Geometry"},
	}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("expected %v, got %v", want, targets)
	}
}

func TestSelectWeakAreasBareSubjectFallback(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math": {
			TotalAttempts: 20,
			CorrectCount:  19,
			Topics: map[string]model.TopicStats{
				// At exactly the threshold a topic is not weak.
				"Algebra":  {TotalAttempts: 10, CorrectCount: 9},
				"Geometry": {TotalAttempts: 10, CorrectCount: 10},
			},
		},
	})

	targets, err := SelectWeakAreas(rec)
	if err != nil {
		t.Fatalf("SelectWeakAreas: %v", err)
	}
	want := model.TargetList{{Subject: "Math"}}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("expected bare subject fallback %v, got %v", want, targets)
	}
}

func TestSelectWeakAreasDeterministic(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math": {
			TotalAttempts: 20,
			CorrectCount:  10,
			Topics: map[string]model.TopicStats{
				// Equal accuracy resolves by topic name.
				"Geometry": {TotalAttempts: 10, CorrectCount: 5},
				"Algebra":  {TotalAttempts: 10, CorrectCount: 5},
			},
		},
	})

	first, err := SelectWeakAreas(rec)
	if err != nil {
		t.Fatalf("SelectWeakAreas: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := SelectWeakAreas(rec)
		if err != nil {
			t.Fatalf("SelectWeakAreas: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic output: %v vs %v", first, again)
		}
	}
	want := model.TargetList{
		{Subject: "Math", Topic: "Algebra"},
		{Subject: "Math", Topic: "Geometry"},
	}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("expected %v, got %v", want, first)
	}
}

func TestLowestSubjects(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math":    {TotalAttempts: 10, CorrectCount: 9},
		"Science": {TotalAttempts: 10, CorrectCount: 3},
		"English": {TotalAttempts: 10, CorrectCount: 6},
	})

	got := LowestSubjects(rec, 2)
	want := []string{"Science", "English"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := LowestSubjects(rec, 10); len(got) != 3 {
		t.Errorf("expected all 3 subjects, got %v", got)
	}
	if got := LowestSubjects(nil, 2); got != nil {
		t.Errorf("expected nil for nil record, got %v", got)
	}
}

func TestBuildIncrements(t *testing.T) {
	results := []model.EvaluationResult{
		{IsCorrect: true, Subject: "Math", Topic: "Algebra"},
		{IsCorrect: false, Subject: "Math", Topic: "Algebra"},
		{IsCorrect: true, Subject: "Science", Topic: "Plants"},
		{IsCorrect: false, Subject: "", Topic: ""},
	}

	inc := BuildIncrements(results)
	if inc.Attempted != 4 || inc.Correct != 2 || inc.Incorrect != 2 {
		t.Errorf("unexpected totals: %d/%d/%d", inc.Attempted, inc.Correct, inc.Incorrect)
	}

	math := inc.Subjects["Math"]
	if math.TotalAttempts != 2 || math.CorrectCount != 1 {
		t.Errorf("unexpected Math stats: %d/%d", math.TotalAttempts, math.CorrectCount)
	}
	if ts := math.Topics["Algebra"]; ts.TotalAttempts != 2 || ts.CorrectCount != 1 {
		t.Errorf("unexpected Algebra stats: %d/%d", ts.TotalAttempts, ts.CorrectCount)
	}

	// Unclassified results land under Unknown/Unknown.
	unknown, ok := inc.Subjects["Unknown"]
	if !ok {
		t.Fatal("expected Unknown subject bucket")
	}
	if ts := unknown.Topics["Unknown"]; ts.TotalAttempts != 1 || ts.CorrectCount != 0 {
		t.Errorf("unexpected Unknown stats: %d/%d", ts.TotalAttempts, ts.CorrectCount)
	}
}

func TestSummarize(t *testing.T) {
	rec := record("Class 6", map[string]model.SubjectStats{
		"Math": {
			TotalAttempts: 4,
			CorrectCount:  3,
			Topics: map[string]model.TopicStats{
				"Algebra": {TotalAttempts: 4, CorrectCount: 3},
			},
		},
		"Science": {TotalAttempts: 4, CorrectCount: 1},
	})

	sum := Summarize(rec)
	if sum.Class != "Class 6" {
		t.Errorf("expected class 'Class 6', got %q", sum.Class)
	}
	if sum.TotalAttempted != 8 || sum.TotalCorrect != 4 {
		t.Errorf("unexpected totals: %d/%d", sum.TotalAttempted, sum.TotalCorrect)
	}
	if sum.OverallPercent != 50 {
		t.Errorf("expected 50%%, got %v", sum.OverallPercent)
	}
	if len(sum.Subjects) != 2 || sum.Subjects[0].Subject != "Math" {
		t.Errorf("expected name-ordered subjects, got %+v", sum.Subjects)
	}
	if sum.Subjects[0].Percent != 75 {
		t.Errorf("expected Math at 75%%, got %v", sum.Subjects[0].Percent)
	}
	if !reflect.DeepEqual(sum.SubjectGap, []string{"Science", "Math"}) {
		t.Errorf("unexpected subject gap: %v", sum.SubjectGap)
	}
}

func TestSummarizeNil(t *testing.T) {
	sum := Summarize(nil)
	if sum.TotalAttempted != 0 || len(sum.Subjects) != 0 {
		t.Errorf("expected zero summary, got %+v", sum)
	}
}
