package prompt

import (
	"bytes"
	"fmt"
)

// QuizRequest renders the quiz generation prompt. audience reads like "7th grade" or
// "masters level".
func QuizRequest(audience, subject string, count int, topics []string) (string, error) {
	data := struct {
		Audience string
		Subject  string
		Count    int
		Topics   []string
	}{Audience: audience, Subject: subject, Count: count, Topics: topics}

	var buf bytes.Buffer
	if err := quizTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build quiz prompt: %w", err)
	}
	return buf.String(), nil
}

// QuizFeedback renders the prompt asking for study suggestions after a submission.
func QuizFeedback(subject string, total, correct, score int, missed []string) (string, error) {
	data := struct {
		Subject string
		Total   int
		Correct int
		Score   int
		Missed  []string
	}{Subject: subject, Total: total, Correct: correct, Score: score, Missed: missed}

	var buf bytes.Buffer
	if err := quizFeedbackTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build quiz feedback prompt: %w", err)
	}
	return buf.String(), nil
}
