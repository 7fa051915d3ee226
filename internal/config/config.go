package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ModulestoreConfig selects and configures the course document store.
type ModulestoreConfig struct {
	Type  string       `yaml:"type"`
	Mongo *MongoConfig `yaml:"mongo,omitempty"`
}

// MongoConfig contains connection details for the split document store.
type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Hash   *HashEmbedderConfig   `yaml:"hash,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
}

// HashEmbedderConfig configures the local feature-hashing embedder.
type HashEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// GeneratorConfig selects and configures the answer generation provider.
type GeneratorConfig struct {
	Type       string               `yaml:"type"`
	Gemini     *GeminiConfig        `yaml:"gemini,omitempty"`
	Extractive *ExtractiveGenConfig `yaml:"extractive,omitempty"`
}

// GeminiConfig holds configuration for the Gemini generation client.
type GeminiConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ExtractiveGenConfig configures the local extractive fallback generator.
type ExtractiveGenConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// ChunkerConfig configures how cleaned block text is split into chunks.
type ChunkerConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// IndexConfig tunes the offline extraction and indexing run.
type IndexConfig struct {
	CourseConcurrency          int  `yaml:"course_concurrency"`
	EmbedBatchSize             int  `yaml:"embed_batch_size"`
	MinBlockChars              int  `yaml:"min_block_chars"`
	PreserveDuplicatePositions bool `yaml:"preserve_duplicate_positions"`
}

// QueryConfig tunes the online question-answering path.
type QueryConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// AppConfig is the root application configuration structure. It is read
// once at startup and immutable for the run's duration.
type AppConfig struct {
	Modulestore ModulestoreConfig `yaml:"modulestore"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Index       IndexConfig       `yaml:"index"`
	Query       QueryConfig       `yaml:"query"`
	LogMode     string            `yaml:"log_mode"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/edurag/config.yaml.
// If neither exists, it writes defaults to ~/.config/edurag/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that would fail at runtime. These are
// fatal before any work starts.
func Validate(cfg *AppConfig) error {
	switch cfg.Modulestore.Type {
	case "mongo":
		if cfg.Modulestore.Mongo == nil || cfg.Modulestore.Mongo.URI == "" {
			return errors.New("modulestore: mongo uri is required")
		}
	case "memory", "":
	default:
		return fmt.Errorf("modulestore: unknown type %q", cfg.Modulestore.Type)
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil || q.URL == "" {
			return errors.New("vector_store: qdrant url is required")
		}
		if q.Collection == "" {
			return errors.New("vector_store: qdrant collection is required")
		}
	case "memory", "":
	default:
		return fmt.Errorf("vector_store: unknown type %q", cfg.VectorStore.Type)
	}
	switch cfg.Embedder.Type {
	case "openai", "hash", "":
	default:
		return fmt.Errorf("embedder: unknown type %q", cfg.Embedder.Type)
	}
	switch cfg.Generator.Type {
	case "gemini", "extractive", "":
	default:
		return fmt.Errorf("generator: unknown type %q", cfg.Generator.Type)
	}
	if cfg.Chunker.OverlapChars >= cfg.Chunker.MaxChars {
		return fmt.Errorf("chunker: overlap_chars (%d) must be smaller than max_chars (%d)",
			cfg.Chunker.OverlapChars, cfg.Chunker.MaxChars)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "edurag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Modulestore: ModulestoreConfig{
			Type:  "mongo",
			Mongo: &MongoConfig{URI: "mongodb://localhost:27017", Database: "openedx"},
		},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: &QdrantConfig{URL: "http://localhost:6333", Collection: "openedx_courses"},
		},
		Embedder:  EmbedderConfig{Type: "hash"},
		Generator: GeneratorConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Modulestore.Mongo != nil {
		if cfg.Modulestore.Mongo.Database == "" {
			cfg.Modulestore.Mongo.Database = "openedx"
		}
		if cfg.Modulestore.Mongo.TimeoutSecs == 0 {
			cfg.Modulestore.Mongo.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "openedx_courses"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
		if cfg.VectorStore.Qdrant.MaxRetries == 0 {
			cfg.VectorStore.Qdrant.MaxRetries = 3
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.Dimension == 0 {
			o.Dimension = 1536
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
	if cfg.Embedder.Type == "hash" || cfg.Embedder.Type == "" {
		if cfg.Embedder.Hash == nil {
			cfg.Embedder.Hash = &HashEmbedderConfig{}
		}
		if cfg.Embedder.Hash.Dimension == 0 {
			cfg.Embedder.Hash.Dimension = 384
		}
	}
	if cfg.Generator.Type == "gemini" {
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiConfig{}
		}
		g := cfg.Generator.Gemini
		if g.BaseURL == "" {
			g.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gemini-2.5-flash"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 60
		}
		if g.MaxRetries == 0 {
			g.MaxRetries = 3
		}
	}
	if cfg.Generator.Type == "extractive" || cfg.Generator.Type == "" {
		if cfg.Generator.Extractive == nil {
			cfg.Generator.Extractive = &ExtractiveGenConfig{}
		}
		if cfg.Generator.Extractive.MaxSentences == 0 {
			cfg.Generator.Extractive.MaxSentences = 5
		}
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1200
	}
	if cfg.Chunker.OverlapChars == 0 {
		cfg.Chunker.OverlapChars = 200
	}
	if cfg.Index.CourseConcurrency == 0 {
		cfg.Index.CourseConcurrency = 4
	}
	if cfg.Index.EmbedBatchSize == 0 {
		cfg.Index.EmbedBatchSize = 32
	}
	if cfg.Index.MinBlockChars == 0 {
		cfg.Index.MinBlockChars = 50
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 10
	}
	if cfg.Query.MaxContextChars == 0 {
		cfg.Query.MaxContextChars = 12000
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}
}
