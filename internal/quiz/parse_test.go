package quiz

import (
	"encoding/json"
	"testing"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

func resolvedSchema(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestParseGeneratedFromFence(t *testing.T) {
	svc := resolvedSchema(t)
	reply := "Here you go:\n```json\n" + `{"questions":[
		{"text":"Capital of France?","options":["A) London","B) Berlin","C) Paris","D) Madrid"],"correctAnswer":"C","difficulty":"easy"},
		{"text":"2+2?","options":["3","4","5","6"],"correctAnswer":"4","difficulty":"trivial"}
	]}` + "\n```"

	got, err := parseGenerated(svc.schema, reply, 5)
	if err != nil {
		t.Fatalf("parseGenerated() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
	if got[0].Options[2] != "Paris" || got[0].CorrectAnswer != "C" || got[0].Difficulty != types.DifficultyEasy {
		t.Fatalf("first question = %+v", got[0])
	}
	if got[1].CorrectAnswer != "B" || got[1].Difficulty != types.DifficultyMedium || got[1].Position != 2 {
		t.Fatalf("second question = %+v", got[1])
	}
}

func TestParseGeneratedRejectsBadShape(t *testing.T) {
	svc := resolvedSchema(t)
	for name, reply := range map[string]string{
		"not json":      "sorry, I can't",
		"no questions":  `{"questions":[]}`,
		"missing field": `{"questions":[{"text":"q","options":["a","b"]}]}`,
		"ungradable":    `{"questions":[{"text":"q","options":["a","b"],"correctAnswer":"Z"}]}`,
	} {
		if _, err := parseGenerated(svc.schema, reply, 5); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseGeneratedHonoursLimit(t *testing.T) {
	svc := resolvedSchema(t)
	reply := `{"questions":[
		{"text":"q1","options":["a","b"],"correctAnswer":"A"},
		{"text":"q2","options":["a","b"],"correctAnswer":"B"},
		{"text":"q3","options":["a","b"],"correctAnswer":"A"}
	]}`
	got, err := parseGenerated(svc.schema, reply, 2)
	if err != nil {
		t.Fatalf("parseGenerated() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
}

func TestAnswerLetter(t *testing.T) {
	options := []string{"Berlin", "Paris", "A city", "Rome"}
	cases := map[string]string{
		"B":        "B",
		"b":        "B",
		"B)":       "B",
		"B. Paris": "B",
		"paris":    "B",
		"A city":   "C",
		"Berlin":   "A",
		"Lisbon":   "",
		"E":        "",
		"":         "",
	}
	for in, want := range cases {
		if got := answerLetter(in, options); got != want {
			t.Errorf("answerLetter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLevelUnmarshal(t *testing.T) {
	var in GenerateInput
	if err := json.Unmarshal([]byte(`{"grade":7,"subject":"math","topics":"fractions, ratios ,"}`), &in); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if in.Grade != "7" || len(in.Topics) != 2 || in.Topics[1] != "ratios" {
		t.Fatalf("decoded input = %+v", in)
	}

	grade, level, err := Level("Masters").resolve()
	if err != nil || grade != 0 || level != "masters" {
		t.Fatalf("resolve(Masters) = %d, %q, %v", grade, level, err)
	}
	for _, bad := range []Level{"", "13", "0", "kindergarten"} {
		if _, _, err := bad.resolve(); err == nil {
			t.Errorf("resolve(%q) expected error", bad)
		}
	}
}

func TestParseSuggestions(t *testing.T) {
	got := parseSuggestions("Sure!\n[\"Revise fractions\", \" \", \"Time yourself\"]\nGood luck")
	if len(got) != 2 || got[0] != "Revise fractions" {
		t.Fatalf("parseSuggestions() = %q", got)
	}
	if got := parseSuggestions("no list here"); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

func TestOrdinal(t *testing.T) {
	cases := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th"}
	for n, want := range cases {
		if got := ordinal(n); got != want {
			t.Errorf("ordinal(%d) = %q, want %q", n, got, want)
		}
	}
}
