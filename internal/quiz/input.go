package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EducationLevels are the non-numeric levels a quiz can target.
var EducationLevels = []string{"associate", "bachelors", "masters", "phd", "postdoc", "other"}

// Level is a school grade (1-12) or an education level. Clients send either a number or a
// string.
type Level string

func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Level(strings.TrimSpace(s))
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("grade must be a number or a string: %w", err)
	}
	*l = Level(n.String())
	return nil
}

// resolve returns the numeric grade (0 for education levels) and the normalised level name.
func (l Level) resolve() (grade int, level string, err error) {
	raw := strings.TrimSpace(string(l))
	if raw == "" {
		return 0, "", fmt.Errorf("%w: grade is required", ErrValidation)
	}
	if n, convErr := strconv.Atoi(raw); convErr == nil {
		if n < 1 || n > 12 {
			return 0, "", fmt.Errorf("%w: grade must be between 1 and 12, got %d", ErrValidation, n)
		}
		return n, "", nil
	}
	lower := strings.ToLower(raw)
	if !slices.Contains(EducationLevels, lower) {
		return 0, "", fmt.Errorf("%w: invalid education level %q, valid levels: %s",
			ErrValidation, raw, strings.Join(EducationLevels, ", "))
	}
	return 0, lower, nil
}

// Topics accepts a JSON array or a comma separated string.
type Topics []string

func (t *Topics) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var list []string
	switch {
	case len(data) > 0 && data[0] == '[':
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		list = strings.Split(s, ",")
	}
	out := make([]string, 0, len(list))
	for _, topic := range list {
		if topic = strings.TrimSpace(topic); topic != "" {
			out = append(out, topic)
		}
	}
	*t = out
	return nil
}

// GenerateInput asks for a new quiz.
type GenerateInput struct {
	Grade        Level  `json:"grade"`
	Subject      string `json:"subject"`
	NumQuestions int    `json:"numQuestions"`
	Topics       Topics `json:"topics"`
}

// SimilarInput searches previously generated questions.
type SimilarInput struct {
	Text       string `json:"text"`
	Subject    string `json:"subject"`
	Difficulty string `json:"difficulty"`
	Limit      int    `json:"limit"`
}

func audience(grade int, level string) string {
	if level != "" {
		return level + " level"
	}
	return ordinal(grade) + " grade"
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
