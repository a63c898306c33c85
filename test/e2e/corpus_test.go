package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus_OneCasePerDocument(t *testing.T) {
	c := BuildCorpus()
	if len(c.Documents) != len(topics) || len(c.TestCases) != len(topics) {
		t.Fatalf("documents=%d cases=%d, want %d each", len(c.Documents), len(c.TestCases), len(topics))
	}
	names := make(map[string]bool)
	for _, d := range c.Documents {
		if names[d.Name] {
			t.Errorf("duplicate document name %s", d.Name)
		}
		names[d.Name] = true
	}
	for _, tc := range c.TestCases {
		if !names[tc.ExpectedDoc] {
			t.Errorf("%s: expected doc not in corpus", tc.Description)
		}
	}
}

func TestBuildCorpus_DocumentsContainTheirPhrase(t *testing.T) {
	c := BuildCorpus()
	for i, d := range c.Documents {
		if !strings.Contains(d.Text(), topics[i].phrase) {
			t.Errorf("%s does not contain %q", d.Name, topics[i].phrase)
		}
	}
}

func TestCorpus_Uploads(t *testing.T) {
	c := BuildCorpus()
	ups := c.Uploads()
	if len(ups) != len(c.Documents) {
		t.Fatalf("got %d uploads", len(ups))
	}
	for i, u := range ups {
		if u.Name != c.Documents[i].Name || u.ContentType != "application/pdf" || len(u.Data) == 0 {
			t.Errorf("upload %d = %s %s (%d bytes)", i, u.Name, u.ContentType, len(u.Data))
		}
	}
}
