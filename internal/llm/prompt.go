package llm

import (
	"strings"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/entity"
)

// BuildExtractionSystemPrompt returns the system message for keyword
// extraction, specialized per document kind.
func BuildExtractionSystemPrompt(kind constants.DocumentKind) string {
	parts := []string{
		"You are a recruiting-domain keyword extractor. Return ONLY JSON that matches the JSON Schema provided.",
		"Extract concrete skills, technologies, role titles and seniority markers.",
		"Keep each term short (1-4 words), in its conventional capitalization (e.g. Go, PostgreSQL, backend engineer).",
		"Assign a weight in [0,1] reflecting how central the term is to the document.",
		"Never output null. If a field is not present, omit it.",
	}
	switch kind {
	case constants.KindResume:
		parts = append(parts, "The input is a candidate resume. Prefer demonstrated skills over aspirations.")
	case constants.KindJob:
		parts = append(parts, "The input is a job description. Prefer required qualifications over perks and boilerplate.")
	}
	return strings.Join(parts, " ")
}

// BuildExtractionUserPrompt wraps the raw document text.
func BuildExtractionUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Document text:\n")
	b.WriteString(text)
	return b.String()
}

// BuildImprovementSystemPrompt returns the system message for the
// match-and-improve call.
func BuildImprovementSystemPrompt() string {
	return strings.Join([]string{
		"You are a resume improvement assistant. Return ONLY JSON that matches the JSON Schema provided.",
		"Given a resume, a job description and the keywords extracted from each,",
		"rewrite the resume to better match the job while staying truthful to the candidate's experience.",
		"Report 'score' as the match between the improved resume and the job, between 0 and 1.",
		"Return the full rewritten resume in 'improved_resume'. Never fabricate employers, titles or dates.",
	}, " ")
}

// BuildImprovementUserPrompt lays out both documents and keyword sets as
// the model context.
func BuildImprovementUserPrompt(req ImproveRequest) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(req.JobText)
	b.WriteString("\n\nJob keywords: ")
	b.WriteString(joinTerms(req.JobKeywords))
	b.WriteString("\n\nResume:\n")
	b.WriteString(req.ResumeText)
	b.WriteString("\n\nResume keywords: ")
	b.WriteString(joinTerms(req.ResumeKeywords))
	return b.String()
}

func joinTerms(s entity.KeywordSet) string {
	return strings.Join(s.Terms(), ", ")
}
