package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
	"github.com/hyperjump/pdfqa/pkg/utils"
)

// maxMessageRunes keeps replies under Telegram's 4096 character message limit.
const maxMessageRunes = 3800

const welcomeText = `🤖 <b>Welcome to PDF Q&amp;A Bot!</b>

I can help you analyze PDF documents by:
📄 <b>Reading PDFs</b> - Upload any PDF document
❓ <b>Answering Questions</b> - Ask me anything about the content
📋 <b>Creating Summaries</b> - Get formatted summaries

<b>How to use:</b>
1. Send me a PDF file (max %s)
2. Wait for processing confirmation
3. Ask questions or request summaries

Ready? Send me a PDF to get started! 📎`

const helpText = `🆘 <b>Help - How to Use PDF Q&amp;A Bot</b>

<b>Commands:</b>
• /start - Start the bot
• /help - Show this help message
• /status - Check current session status
• /clear - Clear current PDF session

<b>Features:</b>
📤 <b>Upload PDF:</b> Send any PDF file (up to %s)
❓ <b>Ask Questions:</b> Type any question about your PDF
📋 <b>Get Summary:</b> Use summary buttons or type "summarize"

<b>Examples:</b>
• "What is this document about?"
• "Summarize the main points"
• "What are the key findings?"

<b>Tips:</b>
✅ Ensure your PDF has readable text
✅ Wait for "✅ Ready!" before asking questions
✅ Use /clear to upload a new PDF`

const (
	msgCleared        = "🗑️ Session cleared! Send me a new PDF to analyze."
	msgNotPDF         = "📎 Please send the document as a PDF file."
	msgUploadFirst    = "❌ Please upload a PDF first using /start"
	msgUploadFirstAlt = "Please upload a PDF first!"
	msgAwaitingPDF    = "📎 Please send me a PDF file to analyze.\n\nUse /help if you need assistance!"
	msgStillWorking   = "🔄 Still processing your PDF. Please wait..."
	msgUnknown        = "❓ I didn't understand that. Use /help for available commands!"
	msgAskPrompt      = "❓ <b>Ask me anything about your PDF!</b>\n\nJust type your question in the chat."
	msgNoText         = "❌ <b>Error:</b> Could not extract text from PDF.\nMake sure your PDF contains readable text (not just images)."
	msgNoIndex        = "❌ <b>Error:</b> Could not create vector database. Please try again."
)

func tooLargeText(limit int64) string {
	return fmt.Sprintf("❌ File too large! Please send a PDF smaller than %s.", formatBytes(limit))
}

func processingText(stage string) string {
	steps := []struct{ key, done, todo string }{
		{"download", "✅ Downloaded", "⏳ Downloading file..."},
		{string(indexer.StageExtracting), "✅ Text extracted", "⏳ Extracting text..."},
		{string(indexer.StageChunking), "✅ Chunks created", "⏳ Creating chunks..."},
		{string(indexer.StageIndexing), "", "⏳ Building vector database..."},
	}
	var b strings.Builder
	b.WriteString("🔄 <b>Processing your PDF...</b>\n")
	for _, s := range steps {
		b.WriteString("\n")
		if s.key == stage {
			b.WriteString(s.todo)
			break
		}
		b.WriteString(s.done)
	}
	return b.String()
}

func statusText(sess *session.Session) string {
	switch sess.Status {
	case session.StatusNew, session.StatusWaitingForPDF:
		return "⏳ Waiting for PDF upload. Please send a PDF file."
	case session.StatusProcessing:
		return "🔄 Processing your PDF. Please wait..."
	case session.StatusReady:
		return fmt.Sprintf("✅ <b>Session Ready!</b>\n\n%s\nYou can now ask questions or request summaries!", statsText(sess))
	default:
		return "❓ Unknown status. Use /start to restart."
	}
}

func readyText(sess *session.Session, skipped []string) string {
	text := fmt.Sprintf("✅ <b>PDF Ready for Analysis!</b>\n\n%s", statsText(sess))
	if len(skipped) > 0 {
		text += fmt.Sprintf("⚠️ <b>Skipped:</b> %s\n", html.EscapeString(strings.Join(skipped, ", ")))
	}
	return text + "\n<b>What would you like to do?</b>"
}

func statsText(sess *session.Session) string {
	return fmt.Sprintf("📄 <b>PDF:</b> %s\n📊 <b>Characters:</b> %s\n📦 <b>Chunks:</b> %d\n",
		html.EscapeString(strings.Join(sess.DocumentNames(), ", ")), formatCount(sess.CharCount), sess.ChunkCount)
}

func processingErrorText(err error) string {
	return fmt.Sprintf("❌ <b>Error processing PDF:</b> %s\n\nPlease try again with a different file.", html.EscapeString(err.Error()))
}

func errorText(err error) string {
	return "❌ Error: " + html.EscapeString(err.Error())
}

func thinkingText(question string) string {
	return fmt.Sprintf("🤔 <b>Question:</b> %s\n\n⏳ Searching for answer...", html.EscapeString(question))
}

func answerText(ans *rag.Answer) string {
	text := fmt.Sprintf("❓ <b>Question:</b> %s\n\n💡 <b>Answer:</b>\n%s\n",
		html.EscapeString(ans.Question), html.EscapeString(utils.Truncate(ans.Text, maxMessageRunes)))
	if len(ans.Sources) > 1 {
		text += fmt.Sprintf("\n📚 <b>Sources:</b> %s\n", html.EscapeString(strings.Join(ans.Sources, ", ")))
	}
	return text + "\n---\n💬 Ask another question or use /clear for a new PDF"
}

func answerErrorText(err error) string {
	return fmt.Sprintf("❌ Error getting answer: %s\n\nPlease try rephrasing your question.", html.EscapeString(err.Error()))
}

func generatingText(tone rag.Tone) string {
	return fmt.Sprintf("%s <b>Generating %s summary...</b>\n\n⏳ Please wait...", tone.Emoji(), tone)
}

func summaryText(sum *rag.Summary) string {
	return fmt.Sprintf("%s <b>%s Summary:</b>\n\n%s\n\n---\n💬 Ask a question or request another summary type",
		sum.Tone.Emoji(), html.EscapeString(sum.Tone.Label()), html.EscapeString(utils.Truncate(sum.Text, maxMessageRunes)))
}

func summaryErrorText(err error) string {
	return fmt.Sprintf("❌ Error generating summary: %s\n\nPlease try again.", html.EscapeString(err.Error()))
}

// formatCount renders n with thousands separators.
func formatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatBytes(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
