package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/labeler/internal/infra/checkpoint"
)

// TextPlaceholder marks where the record text goes in the user prompt.
const TextPlaceholder = "{text}"

const (
	defaultURL   = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	defaultModel = "glm-4-air"

	defaultSystemPrompt = `以下文本是一家上市公司业绩说明会记录的高管回答。你是一名经济学家。仅根据此文本，回答问题。
宏观经济认知的分析维度：
    - 管理层明示或可能暗示表述的宏观经济环境判断
    - 对国家政策、市场、行业的趋势感知、预测和分析
    - 经济指标（GDP、CPI等）的预期表述
请严格按以下规则处理：
    1. 分类选项（程度递增）：负面、中性、正面、无相关信息。
    2. 输出格式：分类结果: 解释原因（50字内）`

	defaultUserPrompt = "该回答对于宏观经济状态认知态度如何（注意：不是公司自身经营状况，不要因为企业困难反向过度推断和联想），请严格按照以下输出格式：分类结果: 解释原因：\n{text}"
)

// DefaultCategories is the label set used when none is configured.
var DefaultCategories = []CategoryConfig{
	{Label: "正面", Score: 1},
	{Label: "中性", Score: 0},
	{Label: "负面", Score: -1},
	{Label: "无相关信息", Score: 0},
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, applies defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with defaults.
func (c *AppConfig) ApplyDefaults() {
	if c.Input.Columns.ID == "" {
		c.Input.Columns.ID = "uid"
	}
	if c.Input.Columns.Year == "" {
		c.Input.Columns.Year = "year"
	}
	if c.Input.Columns.Text == "" {
		c.Input.Columns.Text = "acntet"
	}
	if len(c.Output.Header) == 0 {
		c.Output.Header = []string{"id", "year", "text", "score", "reason"}
	}

	cl := &c.Classifier
	if cl.URL == "" {
		cl.URL = defaultURL
	}
	if cl.Model == "" {
		cl.Model = defaultModel
	}
	if cl.SystemPrompt == "" {
		cl.SystemPrompt = defaultSystemPrompt
	}
	if cl.UserPrompt == "" {
		cl.UserPrompt = defaultUserPrompt
	}
	if cl.Temperature == 0 {
		cl.Temperature = 0.1
	}
	if cl.TopP == 0 {
		cl.TopP = 0.9
	}
	if cl.FrequencyPenalty == 0 {
		cl.FrequencyPenalty = 0.2
	}
	if cl.MaxTokens == 0 {
		cl.MaxTokens = 100
	}
	if cl.ConnectTimeout == 0 {
		cl.ConnectTimeout = 10 * time.Second
	}
	if cl.ReadTimeout == 0 {
		cl.ReadTimeout = 30 * time.Second
	}
	if cl.MaxTextLength == 0 {
		cl.MaxTextLength = 4000
	}

	if len(c.Categories) == 0 {
		c.Categories = append([]CategoryConfig(nil), DefaultCategories...)
	}

	l := &c.Limits
	if l.MaxWorkers == 0 {
		l.MaxWorkers = 30
	}
	if l.MaxConcurrent == 0 {
		l.MaxConcurrent = 30
	}
	if l.RequestsPerSecond == 0 {
		l.RequestsPerSecond = 5
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 7
	}
	if l.BackoffBase == 0 {
		l.BackoffBase = time.Second
	}
	if l.RateLimitWait == 0 {
		l.RateLimitWait = 5 * time.Second
	}
	if l.MaxReasonLength == 0 {
		l.MaxReasonLength = 200
	}

	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = checkpoint.BackendFile
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks values that have no sensible default.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := validateURL(c.Classifier.URL); err != nil {
		errs = append(errs, err)
	}
	if !strings.Contains(c.Classifier.UserPrompt, TextPlaceholder) {
		errs = append(errs, fmt.Errorf("classifier.user_prompt must contain %s", TextPlaceholder))
	}
	if len(c.Output.Header) != 5 {
		errs = append(errs, fmt.Errorf("output.header must have 5 columns, got %d", len(c.Output.Header)))
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat.Label) == "" {
			errs = append(errs, errors.New("categories: empty label"))
			continue
		}
		if seen[cat.Label] {
			errs = append(errs, fmt.Errorf("categories: duplicate label %q", cat.Label))
		}
		seen[cat.Label] = true
		if cat.Score < -1 || cat.Score > 1 {
			errs = append(errs, fmt.Errorf("categories: score for %q must be -1, 0 or 1", cat.Label))
		}
	}

	l := c.Limits
	if l.MaxWorkers < 1 || l.MaxConcurrent < 1 {
		errs = append(errs, errors.New("limits: max_workers and max_concurrent must be positive"))
	}
	if l.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("limits: requests_per_second must be positive"))
	}
	if l.MaxRetries < 1 {
		errs = append(errs, errors.New("limits: max_retries must be at least 1"))
	}

	switch c.Checkpoint.Backend {
	case checkpoint.BackendFile, checkpoint.BackendRedis, checkpoint.BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", c.Checkpoint.Backend))
	}
	if c.Checkpoint.Backend == checkpoint.BackendRedis && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required for the redis checkpoint backend"))
	}
	if c.Checkpoint.Backend == checkpoint.BackendPostgres && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required for the postgres checkpoint backend"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateIO checks the paths a run needs. Flags may override them after
// Load, so this is separate from Validate.
func (c *AppConfig) ValidateIO() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		return errors.New("input.path is required")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return errors.New("output.path is required")
	}
	if c.Input.Path == c.Output.Path {
		return errors.New("input.path and output.path must differ")
	}
	return nil
}

// CheckpointSettings returns the checkpoint config with the file path and
// key derived from the output path when not set explicitly.
func (c *AppConfig) CheckpointSettings() checkpoint.Config {
	cp := c.Checkpoint
	if cp.Path == "" {
		cp.Path = c.Output.Path + ".checkpoint"
	}
	if cp.Key == "" {
		cp.Key = "labeler:checkpoint:" + c.Output.Path
	}
	return cp
}

// validateURL accepts absolute http(s) URLs with a host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("classifier.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("classifier.url: %q is not an http(s) URL", raw)
	}
	return nil
}
