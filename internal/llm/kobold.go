package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const generatePath = "/api/v1/generate"

var _ Generator = (*Kobold)(nil)

// Kobold is a client for the KoboldCpp / KoboldAI United generate API.
type Kobold struct {
	baseURL    string
	params     Params
	httpClient *http.Client
}

type generateRequest struct {
	MaxContextLength int     `json:"max_context_length"`
	MaxLength        int     `json:"max_length"`
	Prompt           string  `json:"prompt"`
	RepPen           float64 `json:"rep_pen"`
	Temperature      float64 `json:"temperature"`
	// StoppingStrings is a JSON array encoded as a string, which is what the
	// server has always been sent.
	StoppingStrings string `json:"stopping_strings"`
}

type generateResponse struct {
	Results []struct {
		Text *string `json:"text"`
	} `json:"results"`
}

func NewKobold(baseURL string, params Params, httpClient *http.Client) (*Kobold, error) {
	if baseURL == "" {
		return nil, errors.New("llm: kobold base url must not be empty")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Kobold{
		baseURL:    strings.TrimRight(baseURL, "/"),
		params:     params,
		httpClient: httpClient,
	}, nil
}

func (k *Kobold) Generate(ctx context.Context, prompt string) (string, error) {
	stop, err := json.Marshal(k.params.Stop)
	if err != nil {
		return "", fmt.Errorf("llm: encode stopping strings: %w", err)
	}
	if k.params.Stop == nil {
		stop = []byte("[]")
	}

	body, err := json.Marshal(generateRequest{
		MaxContextLength: k.params.MaxContextLength,
		MaxLength:        k.params.MaxLength,
		Prompt:           prompt,
		RepPen:           k.params.RepPen,
		Temperature:      k.params.Temperature,
		StoppingStrings:  string(stop),
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: POST %s: %w", generatePath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, truncate(raw, 200))
	}

	return ParseReply(raw)
}

// ParseReply extracts results[0].text from a generate response body.
func ParseReply(raw []byte) (string, error) {
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if len(out.Results) == 0 {
		return "", fmt.Errorf("%w: no results", ErrBadResponse)
	}
	if out.Results[0].Text == nil {
		return "", fmt.Errorf("%w: results[0] has no text", ErrBadResponse)
	}
	return *out.Results[0].Text, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
