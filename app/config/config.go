package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log           Log           `yaml:"log"`
	HTTP          HTTP          `yaml:"http"`
	DB            DB            `yaml:"db"`
	Redis         Redis         `yaml:"redis"`
	OpenAI        OpenAI        `yaml:"openai"`
	Qdrant        Qdrant        `yaml:"qdrant"`
	Qualification Qualification `yaml:"qualification"`
	Timeouts      Timeouts      `yaml:"timeouts"`
	Company       Company       `yaml:"company"`
	Tracing       Tracing       `yaml:"tracing"`
}

type Log struct {
	// Minimum console log level: debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type HTTP struct {
	// Listen address of the chat API
	Listen string `yaml:"listen" example:":8080" validate:"required"`
}

type DB struct {
	// Database driver: postgres or sqlite
	Driver string `yaml:"driver" example:"postgres" validate:"oneof=postgres sqlite"`
	// Postgres username
	User string `yaml:"user" example:"postgres"`
	// Postgres password
	Pass string `yaml:"pass"`
	// Postgres host
	Host string `yaml:"host" example:"localhost:5432"`
	// Postgres database name
	Database string `yaml:"database" example:"leadagent"`
	// SQLite database file, used when driver is sqlite
	Path string `yaml:"path" example:"data/leadagent.db"`
}

type Redis struct {
	// Redis address for the distributed session lock, empty means in-process locking
	Addr string `yaml:"addr" example:"localhost:6379"`
	// Redis password
	Password string `yaml:"password"`
	// Lock key prefix
	Prefix string `yaml:"prefix" example:"leadagent:lock:"`
	// Lock expiration, must exceed the longest turn
	LockTTL time.Duration `yaml:"lock_ttl" example:"90s"`
}

type OpenAI struct {
	Extraction ModelConfig    `yaml:"extraction" validate:"required"`
	Reply      ModelConfig    `yaml:"reply" validate:"required"`
	Embedding  EmbeddingModel `yaml:"embedding"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"0.7" validate:"gte=0,lte=2"`
	// Completion token limit
	MaxTokens int `yaml:"max_tokens" example:"400" validate:"gt=0"`
}

type EmbeddingModel struct {
	// OpenAI base url, defaults to the reply model's
	BaseURL string `yaml:"base_url"`
	// OpenAI token, defaults to the reply model's
	Token string `yaml:"token"`
	// Embedding model
	Model string `yaml:"model" example:"text-embedding-3-small"`
	// Number of cached query embeddings
	CacheSize int `yaml:"cache_size" example:"10" validate:"gt=0"`
}

type Qdrant struct {
	// Qdrant URL, empty disables knowledge search
	URL string `yaml:"url" example:"http://localhost:6333" validate:"omitempty,url"`
	// Qdrant API key
	APIKey string `yaml:"api_key"`
	// Knowledge collection name
	Collection string `yaml:"collection" example:"knowledge" validate:"required_with=URL"`
}

type Qualification struct {
	// Minimum similarity for product guide matches
	SimilarityThreshold float32 `yaml:"similarity_threshold" example:"0.65" validate:"gt=0,lte=1"`
	// Minimum probability for the sales notification
	NotifyThreshold int `yaml:"notify_threshold" example:"40" validate:"gte=0,lte=100"`
	// Message count after which the conversation is softly closed
	MaxMessages int `yaml:"max_messages" example:"10" validate:"gt=0"`
}

type Timeouts struct {
	Extraction time.Duration `yaml:"extraction" example:"15s" validate:"gt=0"`
	Generation time.Duration `yaml:"generation" example:"25s" validate:"gt=0"`
	Search     time.Duration `yaml:"search" example:"5s" validate:"gt=0"`
}

type Company struct {
	// Company name used in prompts and greetings
	Name string `yaml:"name" example:"NexWebs" validate:"required"`
	// Assistant persona name
	Assistant string `yaml:"assistant" example:"Artur" validate:"required"`
}

type Tracing struct {
	// Enable OpenTelemetry tracing
	Enabled bool `yaml:"enabled"`
	// Exporter: stdout or otlp
	Exporter string `yaml:"exporter" example:"otlp" validate:"omitempty,oneof=stdout otlp"`
	// OTLP HTTP endpoint (host:port)
	Endpoint string `yaml:"endpoint" example:"localhost:4318"`
	// Use plain HTTP for the OTLP exporter
	Insecure bool `yaml:"insecure"`
	// Sample ratio between 0 and 1
	SampleRatio float64 `yaml:"sample_ratio" example:"0.1" validate:"gte=0,lte=1"`
}

func Load() (*Config, error) {
	return LoadFile(defaultPath)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(result *Config) {
	if result.Log.Level == "" {
		result.Log.Level = "debug"
	}

	if result.HTTP.Listen == "" {
		result.HTTP.Listen = ":8080"
	}

	if result.DB.Driver == "" {
		result.DB.Driver = "postgres"
	}
	if result.DB.User == "" {
		result.DB.User = "postgres"
	}
	if result.DB.Pass == "" {
		result.DB.Pass = "postgres"
	}
	if result.DB.Host == "" {
		result.DB.Host = "localhost:5432"
	}
	if result.DB.Database == "" {
		result.DB.Database = "leadagent"
	}
	if result.DB.Path == "" {
		result.DB.Path = "data/leadagent.db"
	}

	if result.Redis.Prefix == "" {
		result.Redis.Prefix = "leadagent:lock:"
	}
	if result.Redis.LockTTL == 0 {
		result.Redis.LockTTL = 90 * time.Second
	}

	if result.OpenAI.Extraction.MaxTokens == 0 {
		result.OpenAI.Extraction.MaxTokens = 200
	}
	if result.OpenAI.Reply.MaxTokens == 0 {
		result.OpenAI.Reply.MaxTokens = 400
	}
	if result.OpenAI.Reply.Temperature == 0 {
		result.OpenAI.Reply.Temperature = 0.7
	}

	emb := &result.OpenAI.Embedding
	if emb.BaseURL == "" {
		emb.BaseURL = result.OpenAI.Reply.BaseURL
	}
	if emb.Token == "" {
		emb.Token = result.OpenAI.Reply.Token
	}
	if emb.Model == "" {
		emb.Model = "text-embedding-3-small"
	}
	if emb.CacheSize == 0 {
		emb.CacheSize = 10
	}

	if result.Qdrant.Collection == "" {
		result.Qdrant.Collection = "knowledge"
	}

	q := &result.Qualification
	if q.SimilarityThreshold == 0 {
		q.SimilarityThreshold = 0.65
	}
	if q.NotifyThreshold == 0 {
		q.NotifyThreshold = 40
	}
	if q.MaxMessages == 0 {
		q.MaxMessages = 10
	}

	if result.Timeouts.Extraction == 0 {
		result.Timeouts.Extraction = 15 * time.Second
	}
	if result.Timeouts.Generation == 0 {
		result.Timeouts.Generation = 25 * time.Second
	}
	if result.Timeouts.Search == 0 {
		result.Timeouts.Search = 5 * time.Second
	}

	if result.Company.Name == "" {
		result.Company.Name = "NexWebs"
	}
	if result.Company.Assistant == "" {
		result.Company.Assistant = "Artur"
	}

	if result.Tracing.Exporter == "" {
		result.Tracing.Exporter = "stdout"
	}
	if result.Tracing.SampleRatio == 0 {
		result.Tracing.SampleRatio = 0.1
	}
}
