// Package bot implements the Telegram front-end for pdfqa.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
	"github.com/hyperjump/pdfqa/pkg/utils"
	"go.uber.org/zap"
)

// Callback data carried by the inline keyboard.
const (
	callbackAsk           = "ask_question"
	callbackSummaryPrefix = "summary_"
)

const pdfMIME = "application/pdf"

// API is the subset of the Telegram Bot API the bot uses. *tgbotapi.BotAPI satisfies it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot routes Telegram updates to the pdfqa pipeline. Sessions are keyed by Telegram user id.
type Bot struct {
	api     API
	indexer *indexer.Indexer
	rag     *rag.Service
	store   session.Store
	locker  *session.Locker
	config  *config.BotConfig
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.logger = utils.OrNop(l) }
}

// WithLocker shares a session locker with another front-end.
func WithLocker(l *session.Locker) Option {
	return func(b *Bot) {
		if l != nil {
			b.locker = l
		}
	}
}

// WithHTTPClient sets the client used to download documents.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) {
		if c != nil {
			b.http = c
		}
	}
}

// Connect logs in with token and returns the Bot API client.
func Connect(token string, debug bool) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// New creates a bot.
func New(api API, idx *indexer.Indexer, svc *rag.Service, store session.Store, cfg *config.BotConfig, opts ...Option) *Bot {
	b := &Bot{
		api:     api,
		indexer: idx,
		rag:     svc,
		store:   store,
		locker:  session.NewLocker(),
		config:  cfg,
		http:    &http.Client{Timeout: 2 * time.Minute},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run long-polls Telegram until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.config.PollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("Bot is running")
	b.Serve(ctx, updates)
	return nil
}

// Serve handles updates until ctx is cancelled or updates is closed. Each update runs in its
// own goroutine; Serve waits for in-flight handlers before returning.
func (b *Bot) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		switch {
		case msg.IsCommand():
			b.handleCommand(ctx, msg)
		case msg.Document != nil:
			b.handleDocument(ctx, msg)
		case msg.Text != "":
			b.handleText(ctx, msg)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	id := userID(msg.From)
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		if _, err := session.Update(ctx, b.store, b.locker, id, func(s *session.Session) error {
			s.Reset()
			return nil
		}); err != nil {
			b.fail(chatID, "reset session", err)
			return
		}
		b.reply(chatID, fmt.Sprintf(welcomeText, formatBytes(b.config.MaxFileBytes)))
	case "help":
		b.reply(chatID, fmt.Sprintf(helpText, formatBytes(b.config.MaxFileBytes)))
	case "status":
		sess, err := session.Load(ctx, b.store, id)
		if err != nil {
			b.fail(chatID, "load session", err)
			return
		}
		b.reply(chatID, statusText(sess))
	case "clear":
		if _, err := session.Update(ctx, b.store, b.locker, id, func(s *session.Session) error {
			s.Reset()
			return nil
		}); err != nil {
			b.fail(chatID, "clear session", err)
			return
		}
		b.reply(chatID, msgCleared)
	default:
		b.reply(chatID, msgUnknown)
	}
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	chatID := msg.Chat.ID
	id := userID(msg.From)

	if doc.MimeType != pdfMIME && !strings.EqualFold(filepath.Ext(doc.FileName), ".pdf") {
		b.reply(chatID, msgNotPDF)
		return
	}
	if b.config.MaxFileBytes > 0 && int64(doc.FileSize) > b.config.MaxFileBytes {
		b.reply(chatID, tooLargeText(b.config.MaxFileBytes))
		return
	}

	name := doc.FileName
	if name == "" {
		name = "document.pdf"
	}
	if _, err := session.Update(ctx, b.store, b.locker, id, func(s *session.Session) error {
		s.BeginProcessing([]string{name})
		return nil
	}); err != nil {
		b.fail(chatID, "save session", err)
		return
	}

	progress, err := b.api.Send(b.message(chatID, processingText("download")))
	if err != nil {
		b.logger.Error("send progress message failed", zap.Error(err))
	}
	edit := func(text string, markup *tgbotapi.InlineKeyboardMarkup) {
		if progress.MessageID == 0 {
			b.send(b.messageWithMarkup(chatID, text, markup))
			return
		}
		cfg := tgbotapi.NewEditMessageText(chatID, progress.MessageID, text)
		cfg.ParseMode = tgbotapi.ModeHTML
		cfg.ReplyMarkup = markup
		b.send(cfg)
	}

	data, err := b.download(ctx, doc.FileID)
	var res *indexer.Result
	if err == nil {
		res, err = b.indexer.Process(ctx, []models.Upload{{Name: name, ContentType: doc.MimeType, Data: data}},
			func(stage indexer.Stage) { edit(processingText(string(stage)), nil) })
	}

	// Cancellation during processing must not leave the user stuck in processing.
	sess, saveErr := session.Update(context.WithoutCancel(ctx), b.store, b.locker, id, func(s *session.Session) error {
		if err != nil {
			s.Fail()
			return nil
		}
		return s.MarkReady(res.Documents, res.Index, res.Chars, res.Chunks)
	})
	if saveErr != nil {
		b.logger.Error("save session failed", zap.Error(saveErr))
		edit(processingErrorText(saveErr), nil)
		return
	}

	switch {
	case errors.Is(err, indexer.ErrNoText):
		edit(msgNoText, nil)
	case errors.Is(err, indexer.ErrIndexUnavailable):
		edit(msgNoIndex, nil)
	case err != nil:
		b.logger.Error("Document processing error", zap.String("user", id), zap.Error(err))
		edit(processingErrorText(err), nil)
	default:
		kb := readyKeyboard()
		edit(readyText(sess, res.Skipped), &kb)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	sess, err := session.Load(ctx, b.store, userID(msg.From))
	if err != nil {
		b.fail(chatID, "load session", err)
		return
	}
	switch sess.Status {
	case session.StatusReady:
		if rag.WantsSummary(msg.Text) {
			b.summarize(ctx, chatID, 0, sess, rag.ToneFormal)
			return
		}
		b.answer(ctx, chatID, sess, strings.TrimSpace(msg.Text))
	case session.StatusProcessing:
		b.reply(chatID, msgStillWorking)
	default:
		b.reply(chatID, msgAwaitingPDF)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	sess, err := session.Load(ctx, b.store, userID(q.From))
	if err != nil {
		b.answerCallback(q.ID, "")
		b.fail(chatID, "load session", err)
		return
	}
	if !sess.Ready() {
		b.answerCallback(q.ID, msgUploadFirstAlt)
		return
	}
	b.answerCallback(q.ID, "")

	switch {
	case q.Data == callbackAsk:
		b.editText(chatID, q.Message.MessageID, msgAskPrompt)
	case strings.HasPrefix(q.Data, callbackSummaryPrefix):
		tone := rag.ParseTone(strings.TrimPrefix(q.Data, callbackSummaryPrefix))
		b.summarize(ctx, chatID, q.Message.MessageID, sess, tone)
	default:
		b.logger.Warn("unknown callback", zap.String("data", q.Data))
	}
}

func (b *Bot) answer(ctx context.Context, chatID int64, sess *session.Session, question string) {
	if !sess.Ready() {
		b.reply(chatID, msgUploadFirst)
		return
	}
	thinking, err := b.api.Send(b.message(chatID, thinkingText(question)))
	if err != nil {
		b.logger.Error("send message failed", zap.Error(err))
	}

	var text string
	ans, err := b.rag.Answer(ctx, sess, question)
	if err != nil {
		b.logger.Error("answer failed", zap.String("session", sess.ID), zap.Error(err))
		text = answerErrorText(err)
	} else {
		text = answerText(ans)
	}
	b.replace(chatID, thinking.MessageID, text)
}

// summarize edits messageID in place when it is set, otherwise it posts a new progress message.
func (b *Bot) summarize(ctx context.Context, chatID int64, messageID int, sess *session.Session, tone rag.Tone) {
	if messageID == 0 {
		m, err := b.api.Send(b.message(chatID, generatingText(tone)))
		if err != nil {
			b.logger.Error("send message failed", zap.Error(err))
		}
		messageID = m.MessageID
	} else {
		b.editText(chatID, messageID, generatingText(tone))
	}

	var text string
	sum, err := b.rag.Summarize(ctx, sess, "", tone, b.config.SummaryMaxChars)
	if err != nil {
		b.logger.Error("summary failed", zap.String("session", sess.ID), zap.Error(err))
		text = summaryErrorText(err)
	} else {
		text = summaryText(sum)
	}
	b.replace(chatID, messageID, text)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	r := io.Reader(resp.Body)
	if b.config.MaxFileBytes > 0 {
		r = io.LimitReader(resp.Body, b.config.MaxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if b.config.MaxFileBytes > 0 && int64(len(data)) > b.config.MaxFileBytes {
		return nil, fmt.Errorf("file exceeds %s", formatBytes(b.config.MaxFileBytes))
	}
	return data, nil
}

func readyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Ask Question", callbackAsk),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎩 Formal Summary", callbackSummaryPrefix+string(rag.ToneFormal)),
			tgbotapi.NewInlineKeyboardButtonData("😊 Casual Summary", callbackSummaryPrefix+string(rag.ToneCasual)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📌 Bullet Points", callbackSummaryPrefix+string(rag.ToneBullet)),
		),
	)
}

func (b *Bot) message(chatID int64, text string) tgbotapi.MessageConfig {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	return m
}

func (b *Bot) messageWithMarkup(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) tgbotapi.MessageConfig {
	m := b.message(chatID, text)
	if markup != nil {
		m.ReplyMarkup = *markup
	}
	return m
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(b.message(chatID, text))
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ParseMode = tgbotapi.ModeHTML
	b.send(cfg)
}

// replace edits messageID, or sends a fresh message when the placeholder was never delivered.
func (b *Bot) replace(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.reply(chatID, text)
		return
	}
	b.editText(chatID, messageID, text)
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Warn("answer callback failed", zap.Error(err))
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("send message failed", zap.Error(err))
	}
}

func (b *Bot) fail(chatID int64, op string, err error) {
	b.logger.Error(op+" failed", zap.Error(err))
	b.reply(chatID, errorText(err))
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}
