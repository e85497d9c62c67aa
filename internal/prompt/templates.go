package prompt

import (
	"strings"
	"text/template"
)

// NoContextPlaceholder keeps the persona instruction well-formed when enrichment found nothing.
const NoContextPlaceholder = "No additional context available."

const personaTemplateText = `
You are {{.Name}}.
{{.Instruction}}

Always respond in {{.Language}}.

Here is relevant context from past conversations or knowledge base:
{{.RelevantContext}}
`

const documentTemplateText = `You are an AI assistant that answers questions about the document "{{.Title}}" based on the provided context.

Context:
{{range $i, $c := .Chunks}}{{if $i}}
{{end}}[{{inc $i}}] {{$c}}
{{end}}
Question: {{.Question}}

Answer the question based on the context above. If the context doesn't contain relevant information, say "I don't have enough information to answer that question."
`

var personaTemplate = template.Must(template.New("persona").Parse(personaTemplateText))

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(documentTemplateText))

const quizTemplateText = `Generate a {{.Audience}} {{.Subject}} quiz with {{.Count}} questions.
{{if .Topics}}Focus on these topics: {{join .Topics ", "}}.
{{end}}
For each question, provide:
1. The question text
2. 4 multiple choice options (A, B, C, D)
3. The correct answer (A, B, C, or D)
4. A difficulty level (EASY, MEDIUM, HARD)

Format the response as a JSON object with these fields:
{
  "questions": [
    {
      "text": "Question text",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": "A",
      "difficulty": "EASY"
    }
  ]
}

IMPORTANT: The difficulty field MUST be one of: EASY, MEDIUM, or HARD (uppercase)
`

const quizFeedbackTemplateText = `A student has completed a quiz with the following results:
- Subject: {{.Subject}}
- Total questions: {{.Total}}
- Correct answers: {{.Correct}}
- Score: {{.Score}}%
{{if .Missed}}- Questions answered wrongly:
{{range .Missed}}  * {{.}}
{{end}}{{end}}
Generate 2-3 personalized suggestions for the student to improve their performance.
Focus on their weak areas and provide specific study tips.

Format the response as a JSON array of strings:
["Suggestion 1", "Suggestion 2", "Suggestion 3"]
`

var quizTemplate = template.Must(template.New("quiz").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(quizTemplateText))

var quizFeedbackTemplate = template.Must(template.New("quiz_feedback").Parse(quizFeedbackTemplateText))
