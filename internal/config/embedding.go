package config

import "fmt"

// EmbeddingConfig defines the embedding provider used for the semantic video index.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`   // Provider type: "jina"
	Model      string `mapstructure:"model"`      // Model name/ID
	APIKey     string `mapstructure:"api_key"`    // API key (JINA_API_KEY)
	BaseURL    string `mapstructure:"base_url"`   // Override for the provider endpoint
	Dimensions int    `mapstructure:"dimensions"` // Embedding vector dimensions
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding: provider is required")
	}
	if c.Provider != "jina" {
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding: api_key is required (set directly or via JINA_API_KEY)")
	}
	return nil
}
