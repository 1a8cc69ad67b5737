package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quiz-labs/quizgen/internal/model"
)

var (
	questionMarkerRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*Question:`)
	questionRe       = regexp.MustCompile(`(?s)\d+\.\s*Question:(.*?)\s*A\.(.*?)\s*B\.(.*?)\s*C\.(.*?)\s*D\.(.*?)\s*Answer:\s*([ABCD])`)
)

// ParseQuestions parses the fixed quiz template emitted by the generator
// into structured questions. Parsing is all-or-nothing: if any question
// marker fails to parse into the full shape, the whole batch is rejected
// and the caller retries generation.
func ParseQuestions(raw string) ([]model.Question, error) {
	markers := len(questionMarkerRe.FindAllString(raw, -1))
	if markers == 0 {
		return nil, fmt.Errorf("no question markers found")
	}

	matches := questionRe.FindAllStringSubmatch(raw, -1)
	if len(matches) != markers {
		return nil, fmt.Errorf("parsed %d of %d questions", len(matches), markers)
	}

	questions := make([]model.Question, 0, len(matches))
	for _, m := range matches {
		q := model.Question{
			Text: strings.TrimSpace(m[1]),
			Options: map[string]string{
				"A": strings.TrimSpace(m[2]),
				"B": strings.TrimSpace(m[3]),
				"C": strings.TrimSpace(m[4]),
				"D": strings.TrimSpace(m[5]),
			},
			Correct: strings.TrimSpace(m[6]),
		}
		if q.Text == "" {
			return nil, fmt.Errorf("question %d has empty text", len(questions)+1)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
