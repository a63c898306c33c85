package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}
	if cfg.Bot.TokenEnv == "" {
		cfg.Bot.TokenEnv = "TELEGRAM_TOKEN"
	}
	if cfg.Bot.MaxFileBytes == 0 {
		cfg.Bot.MaxFileBytes = 20 << 20
	}
	if cfg.Bot.SummaryMaxChars == 0 {
		cfg.Bot.SummaryMaxChars = 4000
	}
	if cfg.Bot.PollTimeout == 0 {
		cfg.Bot.PollTimeout = 60 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/pdfqa/sessions.db"
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.RedisKeyPrefix == "" {
		cfg.Storage.RedisKeyPrefix = "pdfqa:session:"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHashing
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAI.Model == "" {
		cfg.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.OpenAI.APIKeyEnv == "" {
		cfg.Embedding.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.OpenAI.BatchSize == 0 {
		cfg.Embedding.OpenAI.BatchSize = 128
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Completion.Endpoint == "" {
		cfg.Completion.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "meta-llama/llama-3.3-8b-instruct:free"
	}
	if cfg.Completion.APIKeyEnv == "" {
		cfg.Completion.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Completion.Timeout == 0 {
		cfg.Completion.Timeout = 60 * time.Second
	}
	if cfg.Completion.Referer == "" {
		cfg.Completion.Referer = "https://github.com/abdul183/PDF-SUMMARIZATION---QA"
	}
	if cfg.Completion.Title == "" {
		cfg.Completion.Title = "PDF Q&A Tool"
	}
}
