package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Milvus    MilvusConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	LLM       LLMConfig
	Translate TranslateConfig
	Ingest    IngestConfig
	Chat      ChatConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

func (c MilvusConfig) Configured() bool {
	return c.Endpoint != ""
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type LLMConfig struct {
	APIKey         string
	Model          string
	VisionModel    string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

func (c LLMConfig) Configured() bool {
	return c.APIKey != ""
}

type TranslateConfig struct {
	Endpoint string
	APIKey   string
}

func (c TranslateConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MinChunkLen     int
	EmbedDelayMs    int
	UpsertBatchSize int
	SentenceSnap    bool
	MaxFileBytes    int
}

type ChatConfig struct {
	TopK          int
	HistoryWindow int
	MaxMessageLen int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/farmrag")

	viper.SetEnvPrefix("FARM_RAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("milvus.endpoint", "")
	viper.SetDefault("milvus.collectionName", "farm_schemes")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/farmrag.db")

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.visionModel", "gpt-4o-mini")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("translate.endpoint", "")
	viper.SetDefault("translate.apiKey", "")

	viper.SetDefault("ingest.chunkSize", 1000)
	viper.SetDefault("ingest.chunkOverlap", 100)
	viper.SetDefault("ingest.minChunkLen", 50)
	viper.SetDefault("ingest.embedDelayMs", 100)
	viper.SetDefault("ingest.upsertBatchSize", 100)
	viper.SetDefault("ingest.sentenceSnap", false)
	viper.SetDefault("ingest.maxFileBytes", 5242880)

	viper.SetDefault("chat.topK", 5)
	viper.SetDefault("chat.historyWindow", 6)
	viper.SetDefault("chat.maxMessageLen", 5000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
