package session

import (
	"math/rand"
	"strings"
	"unicode"
)

// PersonalizeQuestions prefixes the first question (and occasionally later
// ones) with the candidate's first name so the interviewer sounds less like
// a question list. The first question is always personalized.
func PersonalizeQuestions(questions []string, firstName string) []string {
	firstName = strings.TrimSpace(firstName)
	if firstName == "" || len(questions) == 0 {
		return questions
	}
	out := make([]string, len(questions))
	for i, q := range questions {
		if i == 0 || rand.Float64() > 0.7 {
			out[i] = firstName + ", " + lowerFirst(q)
			continue
		}
		out[i] = q
	}
	return out
}

func lowerFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
