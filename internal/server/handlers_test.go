package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/pdfqa/internal/completion"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
)

// plainText treats upload bytes as extracted text; bytes starting with "IMG" extract to nothing.
type plainText struct{}

func (plainText) Extract(b []byte) string {
	if bytes.HasPrefix(b, []byte("IMG")) {
		return ""
	}
	return string(b)
}

type echoCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (e *echoCompleter) Complete(_ context.Context, prompt string) completion.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prompts = append(e.prompts, prompt)
	return completion.Result{Text: "generated"}
}

type testEnv struct {
	ts     *httptest.Server
	client *http.Client
	llm    *echoCompleter
	store  *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(64), indexer.NewChunker(1000, 100),
		indexer.WithExtractor(plainText{}))
	llm := &echoCompleter{}
	store := session.NewMemoryStore()
	srv := NewServer(idx, rag.NewService(idx, llm), store, nil, &config.ServerConfig{MaxUploadBytes: 1024}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{ts: ts, client: &http.Client{Jar: jar}, llm: llm, store: store}
}

type part struct {
	name, contentType string
	data              []byte
}

func (e *testEnv) upload(t *testing.T, parts ...part) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write(p.data)
	}
	_ = mw.Close()
	resp, err := e.client.Post(e.ts.URL+"/api/v1/documents", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", nil)
	var health map[string]string
	decode(t, resp, &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, health)
	}

	resp = env.do(t, http.MethodGet, "/", nil)
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "PDF Q&amp;A") {
		t.Error("index page not served")
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	var view sessionView
	resp := env.do(t, http.MethodGet, "/api/v1/session", nil)
	decode(t, resp, &view)
	if view.Status != string(session.StatusNew) || view.ID == "" {
		t.Fatalf("initial session: %+v", view)
	}
	firstID := view.ID

	// Asking before upload is a precondition failure and never reaches the backend.
	resp = env.do(t, http.MethodPost, "/api/v1/ask", askRequest{Question: "anything?"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("ask before upload: got %d", resp.StatusCode)
	}
	if len(env.llm.prompts) != 0 {
		t.Error("backend called before ready")
	}

	resp = env.upload(t,
		part{name: "causes.pdf", data: []byte("Alpha causes Beta. Beta causes Gamma.")},
		part{name: "scan.pdf", contentType: "application/pdf", data: []byte("IMG only")},
	)
	decode(t, resp, &view)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: %d", resp.StatusCode)
	}
	if view.ID != firstID {
		t.Errorf("cookie not kept: %s != %s", view.ID, firstID)
	}
	if view.Status != string(session.StatusReady) || len(view.Documents) != 1 || view.ChunkCount != 1 {
		t.Errorf("after upload: %+v", view)
	}
	if len(view.Skipped) != 1 || view.Skipped[0] != "scan.pdf" {
		t.Errorf("skipped: %v", view.Skipped)
	}

	var ans askResponse
	resp = env.do(t, http.MethodPost, "/api/v1/ask", askRequest{Question: "What causes Gamma?"})
	decode(t, resp, &ans)
	if resp.StatusCode != http.StatusOK || ans.Answer != "generated" {
		t.Fatalf("ask: %d %+v", resp.StatusCode, ans)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "causes.pdf" || len(ans.Chunks) != 1 {
		t.Errorf("provenance: %+v", ans)
	}

	var sum summarizeResponse
	resp = env.do(t, http.MethodPost, "/api/v1/summarize", summarizeRequest{Document: "causes.pdf", Tone: "bogus"})
	decode(t, resp, &sum)
	if resp.StatusCode != http.StatusOK || sum.Tone != "formal" || sum.Summary != "generated" {
		t.Errorf("summarize: %d %+v", resp.StatusCode, sum)
	}
	last := env.llm.prompts[len(env.llm.prompts)-1]
	if !strings.HasPrefix(last, rag.ToneFormal.Prefix()) {
		t.Errorf("summary prompt: %q", last)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/summarize", summarizeRequest{Document: "nope.pdf"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown document: got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/session", nil)
	decode(t, resp, &view)
	if view.Status != string(session.StatusWaitingForPDF) || len(view.Documents) != 0 {
		t.Errorf("after clear: %+v", view)
	}
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		parts []part
		want  int
	}{
		{"not a pdf", []part{{name: "notes.txt", contentType: "text/plain", data: []byte("x")}}, http.StatusUnsupportedMediaType},
		{"too large", []part{{name: "big.pdf", data: bytes.Repeat([]byte("a"), 2048)}}, http.StatusRequestEntityTooLarge},
		{"no text", []part{{name: "scan.pdf", data: []byte("IMG")}}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.upload(t, tc.parts...)
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("got %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}

	var view sessionView
	decode(t, env.do(t, http.MethodGet, "/api/v1/session", nil), &view)
	if view.Status != string(session.StatusWaitingForPDF) {
		t.Errorf("failed upload should leave waiting_for_pdf, got %s", view.Status)
	}
}

// cancelOnExtract cancels the request context as soon as extraction starts.
type cancelOnExtract struct {
	cancel context.CancelFunc
}

func (c cancelOnExtract) Extract(b []byte) string {
	c.cancel()
	return string(b)
}

func TestUpload_CancelledRequestExitsProcessing(t *testing.T) {
	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(64), indexer.NewChunker(1000, 100),
		indexer.WithExtractor(cancelOnExtract{cancel: cancel}))
	srv := NewServer(idx, rag.NewService(idx, &echoCompleter{}), store, nil, &config.ServerConfig{MaxUploadBytes: 1024}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"a.pdf", "b.pdf"} {
		w, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte("some text in " + name))
	}
	_ = mw.Close()

	const id = "3f1c9a62-5d8e-4b7a-9c0e-2a6b1d4f8e13"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body).WithContext(ctx)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want %d: %s", rec.Code, http.StatusInternalServerError, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "load session") {
		t.Errorf("final transition ran on the cancelled context: %s", rec.Body.String())
	}
	sess, err := session.Load(context.Background(), store, id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != session.StatusWaitingForPDF {
		t.Errorf("cancelled upload should leave waiting_for_pdf, got %s", sess.Status)
	}
}

func TestUpload_BodyLimit(t *testing.T) {
	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(64), indexer.NewChunker(1000, 100),
		indexer.WithExtractor(plainText{}))
	srv := NewServer(idx, rag.NewService(idx, &echoCompleter{}), session.NewMemoryStore(), nil,
		&config.ServerConfig{MaxUploadBytes: 1024}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	w, err := mw.CreateFormFile("files", "huge.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write(bytes.Repeat([]byte("a"), 2<<20))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp["error"], "upload is too large") {
		t.Errorf("unexpected error %q", resp["error"])
	}
}

func TestUploadBodyLimit(t *testing.T) {
	s := &Server{config: &config.ServerConfig{MaxUploadBytes: 1024}}
	if got, want := s.uploadBodyLimit(), int64(1024*maxUploadFiles+multipartOverhead); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
	s.config.MaxUploadBytes = 0
	if got := s.uploadBodyLimit(); got != 0 {
		t.Errorf("unlimited uploads should not bound the body, got %d", got)
	}
}

func TestUpload_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got %d", resp.StatusCode)
	}
}

func TestSessionsAreIsolatedByCookie(t *testing.T) {
	env := newTestEnv(t)
	resp := env.upload(t, part{name: "a.pdf", data: []byte("some text")})
	resp.Body.Close()

	other := &http.Client{}
	resp, err := other.Get(env.ts.URL + "/api/v1/session")
	if err != nil {
		t.Fatal(err)
	}
	var view sessionView
	decode(t, resp, &view)
	if view.Status != string(session.StatusNew) {
		t.Errorf("a cookie-less client must get a fresh session, got %s", view.Status)
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		filename, contentType string
		want                  bool
	}{
		{"a.pdf", "", true},
		{"A.PDF", "application/octet-stream", true},
		{"a.bin", "application/pdf", true},
		{"a.txt", "text/plain", false},
	}
	for _, tt := range tests {
		fh := &multipart.FileHeader{Filename: tt.filename, Header: textproto.MIMEHeader{}}
		if tt.contentType != "" {
			fh.Header.Set("Content-Type", tt.contentType)
		}
		if got := isPDF(fh); got != tt.want {
			t.Errorf("isPDF(%q, %q) = %v, want %v", tt.filename, tt.contentType, got, tt.want)
		}
	}
}
