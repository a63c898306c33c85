package e2e

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hyperjump/pdfqa/internal/extract"
)

func TestMinimalPDF_Extractable(t *testing.T) {
	e := extract.NewExtractor()
	data := MinimalPDF("Alpha causes Beta.\nBeta causes Gamma.", "Second (page) text")
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("missing PDF header")
	}
	text, err := e.ExtractPDF(data)
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	for _, want := range []string{"Alpha causes Beta.", "Beta causes Gamma.", "Second (page) text"} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text %q missing %q", text, want)
		}
	}
}

func TestImageOnlyPDF_HasNoText(t *testing.T) {
	e := extract.NewExtractor()
	if got := strings.TrimSpace(e.Extract(ImageOnlyPDF())); got != "" {
		t.Errorf("Extract(image-only) = %q, want empty", got)
	}
}
