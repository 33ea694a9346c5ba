// Package config loads YAML configuration for the moss CLI and tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the moss CLI configuration.
type Config struct {
	Project Project       `yaml:"project"`
	API     APIConfig     `yaml:"api"`
	Index   IndexConfig   `yaml:"index"`
	Docs    DocsConfig    `yaml:"docs"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Logging LoggingConfig `yaml:"logging"`
}

// Project holds Moss project credentials.
type Project struct {
	ID  string `yaml:"id"`
	Key string `yaml:"key"`
}

// APIConfig holds API endpoint settings.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"` // empty = production endpoint
	TimeoutSec int    `yaml:"timeout_sec"`
}

// IndexConfig holds the default index settings for CLI commands.
type IndexConfig struct {
	Name  string   `yaml:"name"`
	Model string   `yaml:"model"` // e.g. moss-minilm; empty = service default
	TopK  int      `yaml:"top_k"`
	Alpha *float64 `yaml:"alpha"`
}

// DocsConfig holds docs-search indexer settings.
type DocsConfig struct {
	Dir          string `yaml:"dir"`           // markdown tree to index
	IndexName    string `yaml:"index_name"`    // target Moss index
	ManifestPath string `yaml:"manifest_path"` // sqlite sync manifest
	MaxChunkLen  int    `yaml:"max_chunk_len"` // characters per chunk
}

// OpenAIConfig holds settings for samples that bring their own embeddings
// or run the RAG chat loop.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = 60
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 5
	}
	if c.Docs.ManifestPath == "" {
		c.Docs.ManifestPath = ".moss-docs.db"
	}
	if c.Docs.MaxChunkLen <= 0 {
		c.Docs.MaxChunkLen = 1600
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Project.ID == "" || c.Project.Key == "" {
		return fmt.Errorf("project.id and project.key are required (set MOSS_PROJECT_ID / MOSS_PROJECT_KEY)")
	}
	if c.Index.Alpha != nil && (*c.Index.Alpha < 0 || *c.Index.Alpha > 1) {
		return fmt.Errorf("index.alpha must be within [0, 1], got %v", *c.Index.Alpha)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
