package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

// OpenAI is an Embedder backed by the OpenAI embeddings API.
type OpenAI struct {
	apiKey     string
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI embedding provider for the given model.
func NewOpenAI(apiKey, model string) *OpenAI {
	dim := 1536 // text-embedding-3-small / ada-002
	if model == "text-embedding-3-large" {
		dim = 3072
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		baseURL: openAIEmbeddingsURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Dimension returns the model's vector dimension.
func (p *OpenAI) Dimension() int {
	return p.dim
}

// Embed generates an embedding for text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"input": text,
		"model": p.model,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: call openai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: openai status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty response")
	}
	return result.Data[0].Embedding, nil
}
