package config

import (
	"time"

	"github.com/vietddude/labeler/internal/infra/checkpoint"
	redisclient "github.com/vietddude/labeler/internal/infra/redis"
	"github.com/vietddude/labeler/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Input      InputConfig        `yaml:"input"`
	Output     OutputConfig       `yaml:"output"`
	Classifier ClassifierConfig   `yaml:"classifier"`
	Categories []CategoryConfig   `yaml:"categories"`
	Limits     LimitsConfig       `yaml:"limits"`
	Checkpoint checkpoint.Config  `yaml:"checkpoint"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// InputConfig describes the record source.
type InputConfig struct {
	Path    string        `yaml:"path"`
	Sheet   string        `yaml:"sheet"` // xlsx only; empty = first sheet
	Columns ColumnMapping `yaml:"columns"`
}

// ColumnMapping maps logical record fields to source column names.
type ColumnMapping struct {
	ID   string `yaml:"id"`
	Year string `yaml:"year"`
	Text string `yaml:"text"`
}

// OutputConfig describes the output sink.
type OutputConfig struct {
	Path    string   `yaml:"path"`
	Header  []string `yaml:"header"`
	Summary *bool    `yaml:"summary"` // nil = true
}

// SummaryEnabled reports whether the summary report is produced after a run.
func (o OutputConfig) SummaryEnabled() bool {
	return o.Summary == nil || *o.Summary
}

// ClassifierConfig holds the classification service settings.
type ClassifierConfig struct {
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	SystemPrompt     string        `yaml:"system_prompt"`
	UserPrompt       string        `yaml:"user_prompt"` // must contain {text}
	Temperature      float32       `yaml:"temperature"`
	TopP             float32       `yaml:"top_p"`
	FrequencyPenalty float32       `yaml:"frequency_penalty"`
	MaxTokens        int           `yaml:"max_tokens"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	MaxTextLength    int           `yaml:"max_text_length"`
}

// CategoryConfig maps a reply label to a score. Order matters for parsing.
type CategoryConfig struct {
	Label string `yaml:"label"`
	Score int    `yaml:"score"`
}

// LimitsConfig holds concurrency, rate and retry limits.
type LimitsConfig struct {
	MaxWorkers        int           `yaml:"max_workers"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	RateLimitWait     time.Duration `yaml:"rate_limit_wait"` // used when 429 has no Retry-After
	MaxReasonLength   int           `yaml:"max_reason_length"`
}

// ServerConfig holds HTTP server settings. Port 0 disables the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
