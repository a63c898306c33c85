package bot

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/pdfqa/internal/completion"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
)

const testUser = 42

type plainText struct{}

func (plainText) Extract(b []byte) string {
	if bytes.HasPrefix(b, []byte("IMG")) {
		return ""
	}
	return string(b)
}

type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
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

func (e *echoCompleter) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

type testBot struct {
	bot       *Bot
	api       *fakeAPI
	llm       *echoCompleter
	store     *session.MemoryStore
	files     map[string][]byte
	downloads atomic.Int32
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	tb := &testBot{
		api:   &fakeAPI{},
		llm:   &echoCompleter{},
		store: session.NewMemoryStore(),
		files: map[string][]byte{},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tb.downloads.Add(1)
		data, ok := tb.files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(ts.Close)
	tb.api.fileURL = ts.URL

	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(64), indexer.NewChunker(1000, 100),
		indexer.WithExtractor(plainText{}))
	cfg := &config.BotConfig{MaxFileBytes: 1024, SummaryMaxChars: 4000, PollTimeout: time.Second}
	tb.bot = New(tb.api, idx, rag.NewService(idx, tb.llm), tb.store, cfg)
	return tb
}

func (tb *testBot) command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUser},
		Chat:     &tgbotapi.Chat{ID: testUser},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func (tb *testBot) text(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUser},
		Chat: &tgbotapi.Chat{ID: testUser},
		Text: text,
	}}
}

func (tb *testBot) document(name, mime string, data []byte) tgbotapi.Update {
	fileID := "file-" + name
	tb.files[fileID] = data
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUser},
		Chat: &tgbotapi.Chat{ID: testUser},
		Document: &tgbotapi.Document{
			FileID:   fileID,
			FileName: name,
			MimeType: mime,
			FileSize: len(data),
		},
	}}
}

func (tb *testBot) callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser},
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: testUser}},
		Data:    data,
	}}
}

func (tb *testBot) handle(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	tb.bot.HandleUpdate(context.Background(), u)
}

func (tb *testBot) session(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.Load(context.Background(), tb.store, "42")
	require.NoError(t, err)
	return sess
}

func (tb *testBot) ready(t *testing.T) {
	t.Helper()
	tb.handle(t, tb.document("causes.pdf", pdfMIME, []byte("Alpha causes Beta. Beta causes Gamma.")))
	require.Equal(t, session.StatusReady, tb.session(t).Status)
}

func TestStartAndHelp(t *testing.T) {
	tb := newTestBot(t)
	tb.handle(t, tb.command("/start"))
	assert.Contains(t, tb.api.last(), "Welcome to PDF Q&amp;A Bot")
	assert.Contains(t, tb.api.last(), "max 1024 bytes")
	assert.Equal(t, session.StatusWaitingForPDF, tb.session(t).Status)

	tb.handle(t, tb.command("/help"))
	assert.Contains(t, tb.api.last(), "/clear - Clear current PDF session")

	tb.handle(t, tb.command("/bogus"))
	assert.Equal(t, msgUnknown, tb.api.last())
}

func TestDocumentFlow(t *testing.T) {
	tb := newTestBot(t)
	tb.ready(t)

	texts := tb.api.texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "Downloading file")
	joined := strings.Join(texts, "\n")
	assert.Contains(t, joined, "Extracting text")
	assert.Contains(t, joined, "Creating chunks")
	assert.Contains(t, joined, "Building vector database")
	assert.Contains(t, tb.api.last(), "PDF Ready for Analysis")
	assert.Contains(t, tb.api.last(), "causes.pdf")

	tb.api.mu.Lock()
	final, ok := tb.api.sent[len(tb.api.sent)-1].(tgbotapi.EditMessageTextConfig)
	tb.api.mu.Unlock()
	require.True(t, ok, "ready message should edit the progress message")
	require.NotNil(t, final.ReplyMarkup)
	require.Len(t, final.ReplyMarkup.InlineKeyboard, 3)
	assert.Equal(t, callbackAsk, *final.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "summary_bullet", *final.ReplyMarkup.InlineKeyboard[2][0].CallbackData)

	sess := tb.session(t)
	assert.Equal(t, 1, sess.ChunkCount)
	assert.Positive(t, sess.CharCount)
}

// cancelOnExtract cancels the update's context once extraction starts.
type cancelOnExtract struct {
	cancel context.CancelFunc
}

func (c cancelOnExtract) Extract(b []byte) string {
	c.cancel()
	return string(b)
}

func TestDocumentCancelledMidProcessing(t *testing.T) {
	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	data := []byte("Alpha causes Beta.")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	t.Cleanup(ts.Close)
	api := &fakeAPI{fileURL: ts.URL}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idx := indexer.NewIndexer(embedding.NewHashingEmbedder(64), indexer.NewChunker(1000, 100),
		indexer.WithExtractor(cancelOnExtract{cancel: cancel}))
	cfg := &config.BotConfig{MaxFileBytes: 1024, SummaryMaxChars: 4000, PollTimeout: time.Second}
	b := New(api, idx, rag.NewService(idx, &echoCompleter{}), store, cfg)

	b.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUser},
		Chat:     &tgbotapi.Chat{ID: testUser},
		Document: &tgbotapi.Document{FileID: "f", FileName: "a.pdf", MimeType: pdfMIME, FileSize: len(data)},
	}})

	sess, err := session.Load(context.Background(), store, "42")
	require.NoError(t, err)
	assert.Equal(t, session.StatusWaitingForPDF, sess.Status)
	assert.NotContains(t, api.last(), "load session")
}

func TestDocumentRejections(t *testing.T) {
	tb := newTestBot(t)

	tb.handle(t, tb.document("notes.txt", "text/plain", []byte("x")))
	assert.Equal(t, msgNotPDF, tb.api.last())

	tb.handle(t, tb.document("big.pdf", pdfMIME, bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, tooLargeText(1024), tb.api.last())
	assert.Zero(t, tb.downloads.Load(), "oversized files must not be downloaded")

	tb.handle(t, tb.document("scan.pdf", pdfMIME, []byte("IMG")))
	assert.Equal(t, msgNoText, tb.api.last())
	assert.Equal(t, session.StatusWaitingForPDF, tb.session(t).Status)
}

func TestTextRouting(t *testing.T) {
	tb := newTestBot(t)

	tb.handle(t, tb.text("What is this?"))
	assert.Equal(t, msgAwaitingPDF, tb.api.last())
	assert.Empty(t, tb.llm.calls())

	tb.ready(t)

	tb.handle(t, tb.text("What causes Gamma?"))
	assert.Contains(t, tb.api.last(), "💡 <b>Answer:</b>\ngenerated")
	prompts := tb.llm.calls()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Question: What causes Gamma?")
	assert.Contains(t, prompts[0], "Alpha causes Beta.")

	tb.handle(t, tb.text("Please summarize this"))
	assert.Contains(t, tb.api.last(), "Formal &amp; Professional Summary")
	prompts = tb.llm.calls()
	require.Len(t, prompts, 2)
	assert.True(t, strings.HasPrefix(prompts[1], rag.ToneFormal.Prefix()))
}

func TestCallbacks(t *testing.T) {
	tb := newTestBot(t)

	tb.handle(t, tb.callback("summary_casual"))
	tb.api.mu.Lock()
	require.Len(t, tb.api.requests, 1)
	cb := tb.api.requests[0].(tgbotapi.CallbackConfig)
	tb.api.mu.Unlock()
	assert.Equal(t, msgUploadFirstAlt, cb.Text)
	assert.Empty(t, tb.llm.calls())

	tb.ready(t)

	tb.handle(t, tb.callback(callbackAsk))
	assert.Equal(t, msgAskPrompt, tb.api.last())

	tb.handle(t, tb.callback("summary_casual"))
	assert.Contains(t, tb.api.last(), "Casual &amp; Friendly Summary")
	prompts := tb.llm.calls()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], rag.ToneCasual.Prefix()))
}

func TestStatusAndClear(t *testing.T) {
	tb := newTestBot(t)
	tb.handle(t, tb.command("/status"))
	assert.Contains(t, tb.api.last(), "Waiting for PDF upload")

	tb.ready(t)
	tb.handle(t, tb.command("/status"))
	assert.Contains(t, tb.api.last(), "Session Ready!")
	assert.Contains(t, tb.api.last(), "<b>Chunks:</b> 1")

	tb.handle(t, tb.command("/clear"))
	assert.Equal(t, msgCleared, tb.api.last())
	assert.Equal(t, session.StatusWaitingForPDF, tb.session(t).Status)
	assert.Empty(t, tb.session(t).Documents)
}

func TestServeDrainsHandlers(t *testing.T) {
	tb := newTestBot(t)
	updates := make(chan tgbotapi.Update, 2)
	updates <- tb.command("/help")
	updates <- tb.command("/status")
	close(updates)

	done := make(chan struct{})
	go func() {
		tb.bot.Serve(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the channel closed")
	}
	assert.Len(t, tb.api.texts(), 2)
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"}
	for n, want := range tests {
		assert.Equal(t, want, formatCount(n), "formatCount(%d)", n)
	}
}

func TestProcessingText(t *testing.T) {
	text := processingText(string(indexer.StageChunking))
	assert.Contains(t, text, "✅ Downloaded")
	assert.Contains(t, text, "✅ Text extracted")
	assert.Contains(t, text, "⏳ Creating chunks...")
	assert.NotContains(t, text, "vector database")
}
