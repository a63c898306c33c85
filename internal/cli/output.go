// Package cli provides output formatting for the pdfqa command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// chunkPreviewRunes bounds each retrieved chunk shown in text output.
const chunkPreviewRunes = 200

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

type chunkJSON struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

type answerJSON struct {
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Failed    bool        `json:"failed"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Sources   []string    `json:"sources"`
	Chunks    []chunkJSON `json:"chunks"`
}

type summaryJSON struct {
	Document  string `json:"document,omitempty"`
	Tone      string `json:"tone"`
	Summary   string `json:"summary"`
	Failed    bool   `json:"failed"`
	ErrorKind string `json:"error_kind,omitempty"`
	Truncated bool   `json:"truncated"`
}

// WriteAnswer writes ans to w in the given format. With showChunks the text format also
// lists the retrieved context.
func WriteAnswer(w io.Writer, ans *rag.Answer, format OutputFormat, showChunks bool) error {
	if format == OutputJSON {
		out := answerJSON{
			Question:  ans.Question,
			Answer:    ans.Text,
			Failed:    ans.Result.Failed(),
			ErrorKind: string(ans.Result.Kind),
			Sources:   ans.Sources,
			Chunks:    make([]chunkJSON, len(ans.Chunks)),
		}
		for i, ch := range ans.Chunks {
			out.Chunks[i] = chunkJSON{Index: ch.Index, Source: ch.Source(), Content: ch.Content}
		}
		return encode(w, out)
	}

	fmt.Fprintf(w, "\nQuestion: %s\n\n%s\n", ans.Question, ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(ans.Sources, ", "))
	}
	if showChunks {
		for i, ch := range ans.Chunks {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "[%d] %s (chunk %d)\n", i+1, ch.Source(), ch.Index)
			fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(ch.Content, chunkPreviewRunes))
		}
	}
	return nil
}

// WriteSummary writes sum to w in the given format.
func WriteSummary(w io.Writer, sum *rag.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return encode(w, summaryJSON{
			Document:  sum.Document,
			Tone:      string(sum.Tone),
			Summary:   sum.Text,
			Failed:    sum.Result.Failed(),
			ErrorKind: string(sum.Result.Kind),
			Truncated: sum.Truncated,
		})
	}
	fmt.Fprintf(w, "\n%s %s Summary\n\n%s\n", sum.Tone.Emoji(), sum.Tone.Label(), sum.Text)
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
