package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const DefaultOllamaURL = "http://localhost:11434"

var _ Provider = (*Ollama)(nil)

// Ollama talks to a local Ollama server's native embedding endpoint.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllama builds a client. An empty baseURL means DefaultOllamaURL; a nil
// httpClient means http.DefaultClient.
func NewOllama(baseURL, model string, httpClient *http.Client) (*Ollama, error) {
	if model == "" {
		return nil, errors.New("embed: ollama model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}, nil
}

func (o *Ollama) ModelID() string { return o.model }

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.call(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed: ollama: %w", err)
	}
	return vecs[0], nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := o.call(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: ollama batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed: ollama batch: expected %d vectors, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

func (o *Ollama) call(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, errors.New("empty embeddings in response")
	}
	return out.Embeddings, nil
}
