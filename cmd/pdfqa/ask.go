package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfqa/internal/cli"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/models"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
)

var (
	outputFlag     string
	showChunksFlag bool
	toneFlag       string
	maxCharsFlag   int
)

var askCmd = &cobra.Command{
	Use:   "ask <file.pdf> <question>",
	Short: "Answer one question about a PDF",
	Long: `Extracts, chunks and indexes the PDF in memory, retrieves the most relevant
chunks for the question and asks the completion backend for an answer.

Examples:
  pdfqa ask report.pdf "What are the key findings?"
  pdfqa ask report.pdf "Who wrote it?" --output json
  pdfqa ask report.pdf "What is the budget?" --show-chunks`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(outputFlag)
		if err != nil {
			return err
		}
		sess, components, logger, err := loadOneShot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer components.Close()
		defer func() { _ = logger.Sync() }()

		ans, err := components.RAG.Answer(cmd.Context(), sess, args[1])
		if err != nil {
			return err
		}
		return cli.WriteAnswer(cmd.OutOrStdout(), ans, format, showChunksFlag)
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file.pdf>",
	Short: "Summarize a PDF in the chosen tone",
	Long: `Summarizes the full extracted text of the PDF.

Tones: formal (default), casual, bullet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(outputFlag)
		if err != nil {
			return err
		}
		sess, components, logger, err := loadOneShot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer components.Close()
		defer func() { _ = logger.Sync() }()

		sum, err := components.RAG.Summarize(cmd.Context(), sess, "", rag.ParseTone(toneFlag), maxCharsFlag)
		if err != nil {
			return err
		}
		return cli.WriteSummary(cmd.OutOrStdout(), sum, format)
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, summarizeCmd} {
		c.Flags().StringVarP(&outputFlag, "output", "o", "text", "output format: text or json")
	}
	askCmd.Flags().BoolVar(&showChunksFlag, "show-chunks", false, "print the retrieved context")
	summarizeCmd.Flags().StringVar(&toneFlag, "tone", string(rag.ToneFormal), "summary tone: formal, casual or bullet")
	summarizeCmd.Flags().IntVar(&maxCharsFlag, "max-chars", 0, "truncate the document text sent for summarization (0 = no limit)")
	rootCmd.AddCommand(askCmd, summarizeCmd)
}

// loadOneShot processes path into a ready in-memory session.
func loadOneShot(ctx context.Context, path string) (*session.Session, *Components, *zap.Logger, error) {
	cfg, logger, err := setup("pdfqa")
	if err != nil {
		return nil, nil, nil, err
	}
	cfg.Storage.Driver = config.DriverMemory

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	name := filepath.Base(path)
	sess := session.New("cli")
	sess.BeginProcessing([]string{name})
	res, err := components.Indexer.Process(ctx, []models.Upload{{Name: name, ContentType: "application/pdf", Data: data}}, nil)
	if err != nil {
		components.Close()
		return nil, nil, nil, fmt.Errorf("process %s: %w", name, err)
	}
	if err := sess.MarkReady(res.Documents, res.Index, res.Chars, res.Chunks); err != nil {
		components.Close()
		return nil, nil, nil, err
	}
	logger.Debug("document ready", zap.String("file", name), zap.Int("chunks", res.Chunks))
	return sess, components, logger, nil
}
