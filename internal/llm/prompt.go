package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quiz-labs/quizgen/internal/model"
)

func buildGenerationPrompt(req model.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"You are an AI quiz generator. Generate %d multiple-choice questions for a student of %s.\n",
		req.Count, req.Class))
	sb.WriteString("Topic(s): " + strings.Join(req.Targets.Strings(), ", ") + "\n")
	if len(req.Targets) > 1 {
		sb.WriteString("Generate the questions in the same order as the topics above, one question per topic.\n")
	}
	if req.Context != "" {
		sb.WriteString("\nUse this context:\n" + req.Context + "\n")
	}
	sb.WriteString("\nEach question must have exactly four options (A, B, C, D) and one correct answer.\n")
	sb.WriteString("The quiz must be in Language: " + req.Language + "\n\n")
	sb.WriteString("Format:\n")
	sb.WriteString("1. Question: ...\n")
	sb.WriteString("A. ...\n")
	sb.WriteString("B. ...\n")
	sb.WriteString("C. ...\n")
	sb.WriteString("D. ...\n")
	sb.WriteString("Answer: A\n")
	return sb.String()
}

func buildClassifyPrompt(questionText, class string, targets model.TargetList) string {
	var sb strings.Builder
	if len(targets) == 1 && targets[0].Topic == "" {
		// Single-subject quiz: only the topic needs inferring.
		subject := targets[0].Subject
		sb.WriteString("You are given:\n")
		sb.WriteString("Class: \"" + class + "\"\n")
		sb.WriteString("Subject: \"" + subject + "\"\n")
		sb.WriteString("Based on the following quiz question, identify the most appropriate topic within this subject.\n\n")
		sb.WriteString("Question: " + questionText + "\n")
		sb.WriteString(`Respond only as JSON: {"subject": "` + subject + `", "topic": "..."}`)
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("You are given learning level: \"" + class + "\".\n")
	sb.WriteString("Topics: " + strings.Join(targets.Strings(), ", ") + "\n")
	sb.WriteString("Based on the following quiz question, identify and confirm subject and most relevant topic.\n\n")
	sb.WriteString("Question: " + questionText + "\n")
	sb.WriteString(`Respond only as JSON: {"subject": "...", "topic": "..."}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildReportPrompt(results []model.EvaluationResult, language string) string {
	data, _ := json.MarshalIndent(results, "", "  ")

	var sb strings.Builder
	sb.WriteString("Given quiz results (JSON):\n")
	sb.Write(data)
	sb.WriteString("\n\nGive a clear and concise performance report in " + language + " including:\n")
	sb.WriteString("- Total questions\n")
	sb.WriteString("- Number of correct and incorrect answers\n")
	sb.WriteString("- Breakdown of performance by subject and by topic\n\n")
	sb.WriteString("Respond with a formatted textual summary.\n")
	return sb.String()
}

func buildFeedbackPrompt(results []model.EvaluationResult, language string) string {
	data, _ := json.MarshalIndent(results, "", "  ")

	var sb strings.Builder
	sb.WriteString("You are an AI tutor analyzing a student's quiz performance.\n\n")
	sb.WriteString(fmt.Sprintf("The quiz comprised %d questions.\n\n", len(results)))
	sb.WriteString("Each question is characterized by the subject, topic, and whether the student's answer was correct.\n\n")
	sb.WriteString("Here are the quiz details (in JSON format):\n")
	sb.Write(data)
	sb.WriteString("\n\nProvide personalized, encouraging, and constructive feedback for the student, including:\n")
	sb.WriteString("- Overall performance summary\n")
	sb.WriteString("- Highlights of subjects and topics where the student excelled\n")
	sb.WriteString("- Subjects and topics which need improvement\n")
	sb.WriteString("- Specific advice on how to improve weaker areas\n")
	sb.WriteString("- Motivation to keep learning and practicing\n\n")
	sb.WriteString("Please respond in " + language + ".\n")
	sb.WriteString("Give the feedback in 3-5 concise paragraphs.\n")
	return sb.String()
}
