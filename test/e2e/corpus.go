package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/pdfqa/internal/models"
)

// CorpusDocument is one PDF of the corpus: its file name and the text drawn on its pages.
type CorpusDocument struct {
	Name  string
	Pages []string
}

// Text returns the page texts joined the way a reader sees them.
func (d CorpusDocument) Text() string {
	return strings.Join(d.Pages, "\n")
}

// QueryTestCase defines a question and the document that must appear among the answer's sources.
type QueryTestCase struct {
	Question    string
	ExpectedDoc string
	Description string
}

// Corpus holds documents and question test cases for E2E tests.
type Corpus struct {
	Documents []CorpusDocument
	TestCases []QueryTestCase
}

var topics = []struct {
	name    string
	phrase  string
	content string
}{
	{"python-guide.pdf", "Python programming language", "Python is a high-level programming language.\nPython programming language is used for web development and data science."},
	{"kubernetes-docs.pdf", "Kubernetes container orchestration", "Kubernetes is an open-source container orchestration platform.\nKubernetes container orchestration automates deployment and scaling."},
	{"react-tutorial.pdf", "React hooks and components", "React is a JavaScript library.\nReact hooks and components enable building user interfaces."},
	{"go-language.pdf", "Go golang concurrency", "Go is a statically typed language.\nGo golang concurrency is achieved with goroutines and channels."},
	{"postgresql-manual.pdf", "PostgreSQL relational database", "PostgreSQL is an advanced relational database.\nPostgreSQL relational database supports JSON and full-text search."},
	{"machine-learning.pdf", "machine learning algorithms", "Machine learning is a subset of AI.\nMachine learning algorithms learn patterns from data."},
	{"redis-notes.pdf", "Redis in-memory store", "Redis is an in-memory data structure store.\nRedis in-memory store is used as cache and message broker."},
	{"kafka-overview.pdf", "Apache Kafka streaming", "Apache Kafka is a distributed event streaming platform.\nApache Kafka streaming handles trillions of events per day."},
	{"tls-primer.pdf", "HTTPS TLS certificates", "HTTPS encrypts traffic between browser and server.\nHTTPS TLS certificates prove the identity of a site."},
	{"scrum-handbook.pdf", "Agile Scrum sprints", "Scrum is an agile framework for teams.\nAgile Scrum sprints last between one and four weeks."},
}

// BuildCorpus returns one document per topic, each with a unique signature phrase, plus a
// question per document asking about that phrase.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for _, t := range topics {
		c.Documents = append(c.Documents, CorpusDocument{
			Name:  t.name,
			Pages: []string{t.content, "Appendix: notes about " + t.phrase + "."},
		})
		c.TestCases = append(c.TestCases, QueryTestCase{
			Question:    fmt.Sprintf("What does the document say about %s?", t.phrase),
			ExpectedDoc: t.name,
			Description: fmt.Sprintf("question about %q should cite %s", t.phrase, t.name),
		})
	}
	return c
}

// Uploads renders every corpus document as a PDF upload.
func (c *Corpus) Uploads() []models.Upload {
	out := make([]models.Upload, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = models.Upload{Name: d.Name, ContentType: "application/pdf", Data: MinimalPDF(d.Pages...)}
	}
	return out
}
