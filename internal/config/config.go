// Package config provides configuration loading and structs for pdfqa.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Bot        BotConfig        `yaml:"bot"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Completion CompletionConfig `yaml:"completion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BotConfig holds Telegram bot settings.
type BotConfig struct {
	TokenEnv        string        `yaml:"token_env"`
	MaxFileBytes    int64         `yaml:"max_file_bytes"`
	SummaryMaxChars int           `yaml:"summary_max_chars"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// StorageConfig selects the session store backend.
type StorageConfig struct {
	Driver         string `yaml:"driver"`
	DatabasePath   string `yaml:"database_path"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
}

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
)

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider    string       `yaml:"provider"`
	Dimensions  int          `yaml:"dimensions"`
	ModelPath   string       `yaml:"model_path"`
	LibraryPath string       `yaml:"library_path"`
	MaxTokens   int          `yaml:"max_tokens"`
	CacheSize   int          `yaml:"cache_size"`
	OpenAI      OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
}

// ChunkingConfig holds chunker settings, in code points.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// CompletionConfig holds the chat-completion backend settings.
type CompletionConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	Referer   string        `yaml:"referer"`
	Title     string        `yaml:"title"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		configDir = filepath.Dir(path)
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Validate reports settings that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Embedding.Provider {
	case ProviderHashing, ProviderONNX, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == ProviderONNX && c.Embedding.ModelPath == "" {
		return errors.New("embedding.model_path is required for the onnx provider")
	}
	if c.Chunking.ChunkOverlap < 0 {
		return errors.New("chunking.chunk_overlap must not be negative")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
