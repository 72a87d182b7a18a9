package model

import "time"

// Config holds the full runtime configuration. Defaults here, overridden
// by ~/.veridica/config.yaml, VERIDICA_* env vars, then CLI flags.
type Config struct {
	DataDir string        `yaml:"data_dir" mapstructure:"data_dir"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Verify  VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Chunker ChunkerConfig `yaml:"chunker" mapstructure:"chunker"`
	Queue   QueueConfig   `yaml:"queue" mapstructure:"queue"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the reasoning-call provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds, per call
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"` // transport retry budget
}

// VerifyConfig bounds the claim-verification fan-out and selects the
// entailment judge: "llm" (default) or "lexical" for offline runs.
type VerifyConfig struct {
	Judge             string  `yaml:"judge" mapstructure:"judge"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// HTTPConfig configures outbound fetching (URL ingestion).
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// ChunkerConfig controls how source text is split into chunks.
type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars" mapstructure:"max_chars"`
	Overlap  int `yaml:"overlap" mapstructure:"overlap"`
}

// QueueConfig configures the asynq transport for background jobs.
type QueueConfig struct {
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB     int    `yaml:"redis_db" mapstructure:"redis_db"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP status API.
type ServerConfig struct {
	Addr         string   `yaml:"addr" mapstructure:"addr"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"` // empty = stderr only
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     60,
			MaxTokens:   2000,
			Temperature: 0.2,
			MaxAttempts: 3,
		},
		Verify: VerifyConfig{
			Judge:             "llm",
			Workers:           4,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Veridica/0.1 (+https://github.com/ppiankov/veridica)",
			MaxBodyBytes: 2_000_000,
		},
		Chunker: ChunkerConfig{
			MaxChars: 1200,
			Overlap:  150,
		},
		Queue: QueueConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 4,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
