// Package config holds the immutable service configuration, built once at
// startup from defaults, an optional YAML file and environment variables
// (highest precedence).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

type ElasticsearchConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	TimeoutS  int    `yaml:"timeout"`
}

type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	CloudHost string `yaml:"cloud_host"`
	APIKey    string `yaml:"api_key"`
	UseCloud  bool   `yaml:"use_cloud"`
	TimeoutS  int    `yaml:"timeout"`
}

type FileserverConfig struct {
	InternalBase string `yaml:"internal_base"`
	PublicBase   string `yaml:"public_base"`
}

type RetrieverConfig struct {
	TopK         int     `yaml:"top_k"`
	FinalK       int     `yaml:"final_k"`
	BM25Weight   float64 `yaml:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
}

type RAGConfig struct {
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	DefaultTopK int           `yaml:"default_top_k"`
	ChunkSize   int           `yaml:"chunk_size"`
	ChunkDelay  time.Duration `yaml:"chunk_delay"`
}

type CourseConfig struct {
	RetrieverTopK      int           `yaml:"retriever_top_k"`
	EnhancerIterations int           `yaml:"enhancer_iterations"`
	EnhancerTopK       int           `yaml:"enhancer_top_k"`
	Heartbeat          time.Duration `yaml:"heartbeat"`
	MaxTokens          int           `yaml:"max_tokens"`
	Deadline           time.Duration `yaml:"deadline"`
}

type QCMConfig struct {
	RetrieverTopK int           `yaml:"retriever_top_k"`
	AnswerTopK    int           `yaml:"answer_top_k"`
	MaxQuestions  int           `yaml:"max_questions"`
	MaxTokens     int           `yaml:"max_tokens"`
	Deadline      time.Duration `yaml:"deadline"`
}

type AuthConfig struct {
	// Tokens is a comma-separated list of "token:user_id:display_name".
	Tokens string `yaml:"tokens"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server          ServerConfig        `yaml:"server"`
	Qdrant          QdrantConfig        `yaml:"qdrant"`
	Elasticsearch   ElasticsearchConfig `yaml:"elasticsearch"`
	Embedding       EmbeddingConfig     `yaml:"embedding"`
	LLM             LLMConfig           `yaml:"llm"`
	Fileserver      FileserverConfig    `yaml:"fileserver"`
	Retriever       RetrieverConfig     `yaml:"retriever"`
	RAG             RAGConfig           `yaml:"rag"`
	Course          CourseConfig        `yaml:"course"`
	QCM             QCMConfig           `yaml:"qcm"`
	Auth            AuthConfig          `yaml:"auth"`
	Log             LogConfig           `yaml:"log"`
	CollectionsFile string              `yaml:"collections_file"`
}

// SetDefaults fills zero-valued fields with the service defaults.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = "http://localhost:9200"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "embeddinggemma"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.TimeoutS == 0 {
		c.Embedding.TimeoutS = 30
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.CloudHost == "" {
		c.LLM.CloudHost = "https://ollama.com"
	}
	if c.LLM.TimeoutS == 0 {
		c.LLM.TimeoutS = 60
	}
	if c.Fileserver.InternalBase == "" {
		c.Fileserver.InternalBase = "http://localhost:7700"
	}
	if c.Fileserver.PublicBase == "" {
		c.Fileserver.PublicBase = c.Fileserver.InternalBase
	}
	if c.Retriever.TopK == 0 {
		c.Retriever.TopK = 15
	}
	if c.Retriever.FinalK == 0 {
		c.Retriever.FinalK = 5
	}
	if c.Retriever.BM25Weight == 0 && c.Retriever.VectorWeight == 0 {
		c.Retriever.BM25Weight = 0.5
		c.Retriever.VectorWeight = 0.5
	}
	if c.RAG.Model == "" {
		c.RAG.Model = "gpt-oss:20b"
	}
	if c.RAG.Temperature == 0 {
		c.RAG.Temperature = 0.7
	}
	if c.RAG.MaxTokens == 0 {
		c.RAG.MaxTokens = 4096
	}
	if c.RAG.DefaultTopK == 0 {
		c.RAG.DefaultTopK = 30
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 5
	}
	if c.RAG.ChunkDelay == 0 {
		c.RAG.ChunkDelay = 10 * time.Millisecond
	}
	if c.Course.RetrieverTopK == 0 {
		c.Course.RetrieverTopK = 5
	}
	if c.Course.EnhancerIterations == 0 {
		c.Course.EnhancerIterations = 3
	}
	if c.Course.EnhancerTopK == 0 {
		c.Course.EnhancerTopK = 5
	}
	if c.Course.Heartbeat == 0 {
		c.Course.Heartbeat = 10 * time.Second
	}
	if c.Course.MaxTokens == 0 {
		c.Course.MaxTokens = 8000
	}
	if c.Course.Deadline == 0 {
		c.Course.Deadline = 10 * time.Minute
	}
	if c.QCM.RetrieverTopK == 0 {
		c.QCM.RetrieverTopK = 15
	}
	if c.QCM.AnswerTopK == 0 {
		c.QCM.AnswerTopK = 5
	}
	if c.QCM.MaxQuestions == 0 {
		c.QCM.MaxQuestions = 50
	}
	if c.QCM.MaxTokens == 0 {
		c.QCM.MaxTokens = 8000
	}
	if c.QCM.Deadline == 0 {
		c.QCM.Deadline = 5 * time.Minute
	}
	if c.Auth.Tokens == "" {
		c.Auth.Tokens = "dev-token-123:user_1:Developer"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "simple"
	}
	if c.CollectionsFile == "" {
		c.CollectionsFile = "collections.json"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if sum := c.Retriever.BM25Weight + c.Retriever.VectorWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("retriever weights must sum to 1, got %.3f", sum)
	}
	if c.Retriever.BM25Weight < 0 || c.Retriever.VectorWeight < 0 {
		return fmt.Errorf("retriever weights must be non-negative")
	}
	if c.Retriever.FinalK < 1 {
		return fmt.Errorf("retriever final_k must be >= 1")
	}
	if c.Retriever.TopK < c.Retriever.FinalK {
		return fmt.Errorf("retriever top_k (%d) must be >= final_k (%d)", c.Retriever.TopK, c.Retriever.FinalK)
	}
	if c.RAG.DefaultTopK < 1 || c.RAG.DefaultTopK > 100 {
		return fmt.Errorf("rag default_top_k must be in [1, 100]")
	}
	if c.LLM.UseCloud && c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required when use_cloud is set")
	}
	return nil
}

// Load builds the configuration. A .env file in the working directory is
// honored if present; yamlPath may be empty.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "HOST")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Qdrant.Host, "QDRANT_HOST")
	setInt(&c.Qdrant.Port, "QDRANT_PORT")
	setString(&c.Qdrant.APIKey, "QDRANT_API_KEY")
	setBool(&c.Qdrant.UseTLS, "QDRANT_USE_TLS")
	setString(&c.Elasticsearch.URL, "ELASTICSEARCH_URL")
	setString(&c.Elasticsearch.Username, "ELASTICSEARCH_USERNAME")
	setString(&c.Elasticsearch.Password, "ELASTICSEARCH_PASSWORD")
	setString(&c.Embedding.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.Embedding.Model, "EMBED_MODEL")
	setInt(&c.Embedding.Dimension, "EMBED_DIMENSION")
	setString(&c.LLM.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.LLM.CloudHost, "OLLAMA_CLOUD_HOST")
	setString(&c.LLM.APIKey, "OLLAMA_API_KEY")
	setBool(&c.LLM.UseCloud, "USE_CLOUD_LLM")
	setString(&c.Fileserver.InternalBase, "FILESERVER_URL")
	setString(&c.Fileserver.PublicBase, "FILESERVER_PUBLIC_URL")
	setInt(&c.Retriever.TopK, "RETRIEVER_TOP_K")
	setInt(&c.Retriever.FinalK, "RETRIEVER_FINAL_K")
	setFloat(&c.Retriever.BM25Weight, "RETRIEVER_BM25_WEIGHT")
	setFloat(&c.Retriever.VectorWeight, "RETRIEVER_VECTOR_WEIGHT")
	setString(&c.RAG.Model, "RAG_MODEL")
	setFloat(&c.RAG.Temperature, "RAG_TEMPERATURE")
	setInt(&c.RAG.DefaultTopK, "RAG_DEFAULT_TOP_K")
	setInt(&c.RAG.ChunkSize, "RAG_CHUNK_SIZE")
	setDurationMS(&c.RAG.ChunkDelay, "RAG_CHUNK_DELAY_MS")
	setInt(&c.Course.RetrieverTopK, "COURSE_RETRIEVER_TOP_K")
	setInt(&c.Course.EnhancerIterations, "COURSE_ENHANCER_ITERATIONS")
	setInt(&c.Course.EnhancerTopK, "COURSE_ENHANCER_TOP_K")
	setInt(&c.QCM.RetrieverTopK, "QCM_RETRIEVER_TOP_K")
	setInt(&c.QCM.AnswerTopK, "QCM_ANSWER_TOP_K")
	setString(&c.Auth.Tokens, "AUTH_TOKENS")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.CollectionsFile, "COLLECTIONS_FILE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setDurationMS(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}
