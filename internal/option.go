package internal

import "github.com/starford/ansuz/internal/embedding"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	embedder embedding.Embedder
	mcpMode  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithEmbedder overrides the embedding provider built from the configuration.
func WithEmbedder(e embedding.Embedder) Option {
	return func(a *application) {
		a.embedder = e
	}
}

// WithMCPMode makes Run serve the MCP protocol on stdio instead of HTTP.
func WithMCPMode(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
