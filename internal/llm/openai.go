package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var _ Generator = (*OpenAI)(nil)

// OpenAI sends the raw prompt to an OpenAI-compatible /v1/completions
// endpoint (llama.cpp server, vLLM, KoboldCpp's compatibility layer).
type OpenAI struct {
	client openai.Client
	model  string
	params Params
}

func NewOpenAI(baseURL, apiKey, model string, params Params, httpClient *http.Client) (*OpenAI, error) {
	if model == "" {
		return nil, errors.New("llm: openai model must not be empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		params: params,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(o.model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
		MaxTokens:   openai.Int(int64(o.params.MaxLength)),
		Temperature: openai.Float(o.params.Temperature),
	}
	if len(o.params.Stop) > 0 {
		req.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: o.params.Stop}
	}

	resp, err := o.client.Completions.New(ctx, req)
	if err != nil {
		if isTransport(err) {
			return "", fmt.Errorf("llm: completion: %w", err)
		}
		return "", fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	return resp.Choices[0].Text, nil
}

// isTransport reports whether err means the server was never reached or the
// call was abandoned. Anything else (status errors, undecodable bodies) is a
// bad response.
func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return false
	}
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}
