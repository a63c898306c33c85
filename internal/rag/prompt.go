package rag

import (
	"strings"

	"github.com/hyperjump/pdfqa/internal/models"
)

const (
	answerInstruction = "Use the following pieces of context to answer the question. " +
		"If you don't know the answer, just say that you don't know, don't try to make up an answer."
	contextSeparator = "\n\n---\n\n"
)

// BuildAnswerPrompt stuffs the question and the retrieved chunks, nearest first, into one prompt.
func BuildAnswerPrompt(question string, chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Content
	}
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(parts, contextSeparator))
	b.WriteString("\n\nHelpful Answer:")
	return b.String()
}

// BuildSummaryPrompt places the tone instruction before the document text.
func BuildSummaryPrompt(tone Tone, text string) string {
	return tone.Prefix() + "\n\n" + text
}
