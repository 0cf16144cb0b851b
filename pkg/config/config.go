// Package config loads the immutable per-invocation configuration from a
// YAML file. The database endpoint and collection name are required; all
// other keys have defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEmbeddingModel = "all-mpnet-base-v2"
	DefaultChatModel      = "gpt-3.5-turbo"
	DefaultChunkSize      = 500
	DefaultChunkOverlap   = 20
	DefaultFileType       = "pdf"
	DefaultStore          = StorePostgres
	DefaultStorePath      = "ragctl-db"
	DefaultDatabaseUser   = "postgres"
	DefaultDatabaseName   = "postgres"
)

// Supported store backends.
const (
	StorePostgres = "postgres"
	StoreChromem  = "chromem"
)

// ErrMissingKey is returned when a required configuration key is absent.
var ErrMissingKey = errors.New("missing required config key")

// Database describes the vector database endpoint.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Config is the full tool configuration, loaded once and never mutated.
type Config struct {
	Database       Database `yaml:"database"`
	Collection     string   `yaml:"collection"`
	Store          string   `yaml:"store"`
	StorePath      string   `yaml:"store_path"`
	EmbeddingModel string   `yaml:"embedding_model"`
	ChatModel      string   `yaml:"chat_model"`
	ChunkSize      int      `yaml:"chunk_size"`

	// ChunkOverlap is a pointer so an explicit 0 in the file is
	// distinguishable from an absent key.
	ChunkOverlap *int   `yaml:"chunk_overlap"`
	FileType     string `yaml:"file_type"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap == nil {
		overlap := DefaultChunkOverlap
		c.ChunkOverlap = &overlap
	}
	if c.FileType == "" {
		c.FileType = DefaultFileType
	}
	if c.Database.User == "" {
		c.Database.User = DefaultDatabaseUser
	}
	if c.Database.Name == "" {
		c.Database.Name = DefaultDatabaseName
	}
}

func (c *Config) validate() error {
	if c.Collection == "" {
		return fmt.Errorf("%w: collection", ErrMissingKey)
	}

	switch c.Store {
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("%w: database.host", ErrMissingKey)
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("%w: database.port", ErrMissingKey)
		}
	case StoreChromem:
		// Embedded backend needs no endpoint.
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store)
	}

	if *c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap (%d) must not be negative", *c.ChunkOverlap)
	}
	if *c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", *c.ChunkOverlap, c.ChunkSize)
	}

	return nil
}
