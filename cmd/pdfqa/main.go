// Package main is the pdfqa CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfqa/internal/completion"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/embedding"
	"github.com/hyperjump/pdfqa/internal/extract"
	"github.com/hyperjump/pdfqa/internal/indexer"
	"github.com/hyperjump/pdfqa/internal/rag"
	"github.com/hyperjump/pdfqa/internal/session"
	"github.com/hyperjump/pdfqa/pkg/utils"
)

var version = "dev"

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfqa",
	Short: "Ask questions about PDF documents and summarize them",
	Long: `pdfqa answers questions about uploaded PDFs using retrieval-augmented generation
and produces tone-controlled summaries. It runs as a web application, a Telegram bot,
or as one-shot commands.

Environment variables (names are configurable):
  OPENROUTER_API_KEY  chat completion API key (required)
  TELEGRAM_TOKEN      Telegram bot token (bot and serve)
  OPENAI_API_KEY      embedding API key (embedding.provider: openai)`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pdfqa version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is empty it uses config.yaml in the current
// directory if one exists, otherwise the built-in defaults.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger shared by every subcommand.
func setup(name string) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug, name)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

// requireEnv returns the value of each named variable, failing on the first one unset.
func requireEnv(names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v := os.Getenv(name)
		if v == "" {
			return nil, fmt.Errorf("%s is not set; export it or add it to .env", name)
		}
		values[name] = v
	}
	return values, nil
}

// Components holds the pipeline shared by the front-ends.
type Components struct {
	Embedder embedding.Embedder
	Indexer  *indexer.Indexer
	RAG      *rag.Service
	Store    session.Store
	Locker   *session.Locker
}

// Close releases the store and embedder.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	env, err := requireEnv(cfg.Completion.APIKeyEnv)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	c := &Components{Embedder: emb, Locker: session.NewLocker()}

	chunker := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	c.Indexer = indexer.NewIndexer(emb, chunker,
		indexer.WithLogger(logger),
		indexer.WithTopK(cfg.Retrieval.TopK),
		indexer.WithExtractor(extract.NewExtractor(extract.WithLogger(logger))),
	)

	llm, err := completion.New(completion.Options{
		Endpoint: cfg.Completion.Endpoint,
		Model:    cfg.Completion.Model,
		APIKey:   env[cfg.Completion.APIKeyEnv],
		Timeout:  cfg.Completion.Timeout,
		Referer:  cfg.Completion.Referer,
		Title:    cfg.Completion.Title,
	}, completion.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create completion client: %w", err)
	}
	c.RAG = rag.NewService(c.Indexer, llm, rag.WithLogger(logger), rag.WithTopK(cfg.Retrieval.TopK))

	store, err := session.Open(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	c.Store = store

	logger.Info("components initialized",
		zap.String("embedding", cfg.Embedding.Provider),
		zap.Int("dimensions", emb.Dimensions()),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("model", llm.Model()),
	)
	return c, nil
}
