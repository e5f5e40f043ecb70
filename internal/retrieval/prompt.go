package retrieval

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const educationalHeader = `
EDUCATIONAL CONTEXT: This document contains tagged problem and solution areas. Use this structured information to provide educational guidance.
- PROBLEM AREAS contain questions, exercises, or challenges
- SOLUTION AREAS contain answers, explanations, or methods
- When answering, reference both problems and solutions to provide comprehensive learning support`

const (
	answerWithContent = "Please provide a helpful educational answer. If the question relates to a problem, " +
		"try to guide the student through the solution process rather than just giving the answer."
	answerWithoutContent = "Please provide a helpful educational answer. No specific relevant content was found " +
		"in the documents for this question, but try to provide general guidance based on the document context."
)

type promptInput struct {
	question      string
	documentCount int
	documentNames []string
	snippets      []Snippet
	hasAreaHits   bool
	history       []HistoryMessage
	historyWindow int
}

func buildPrompt(in promptInput) string {
	var b strings.Builder
	names := strings.Join(in.documentNames, ", ")

	if len(in.snippets) > 0 {
		fmt.Fprintf(&b, "You are an educational AI assistant helping with %d document(s): %s\n", in.documentCount, names)
		if in.hasAreaHits {
			b.WriteString(educationalHeader)
		}
		b.WriteString("\n\nRelevant content from the documents:\n")
		for i, s := range in.snippets {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(s.String())
		}
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "You are an educational AI assistant working with %d document(s): %s\n\n", in.documentCount, names)
	}

	b.WriteString(renderHistory(in.history, in.historyWindow))
	fmt.Fprintf(&b, "Current question: %s\n\n", in.question)
	if len(in.snippets) > 0 {
		b.WriteString(answerWithContent)
	} else {
		b.WriteString(answerWithoutContent)
	}
	return b.String()
}

// renderHistory keeps the last window messages as "Role: content" lines.
func renderHistory(history []HistoryMessage, window int) string {
	if len(history) == 0 || window <= 0 {
		return ""
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(m.Role), m.Content)
	}
	b.WriteByte('\n')
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
