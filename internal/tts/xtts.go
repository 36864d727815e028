// Package tts turns reply text into speech through an XTTS HTTP server.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultSpeakerWav = "1"
	defaultLanguage   = "en"
)

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tts: status %d: %s", e.Code, e.Body)
}

// XTTS posts text to a single synthesis URL and receives WAV bytes.
type XTTS struct {
	url        string
	speakerWav string
	language   string
	httpClient *http.Client
}

type Option func(*XTTS)

func WithSpeakerWav(s string) Option {
	return func(x *XTTS) { x.speakerWav = s }
}

func WithLanguage(lang string) Option {
	return func(x *XTTS) { x.language = lang }
}

func WithHTTPClient(c *http.Client) Option {
	return func(x *XTTS) { x.httpClient = c }
}

type synthRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

func NewXTTS(url string, opts ...Option) (*XTTS, error) {
	if url == "" {
		return nil, errors.New("tts: url must not be empty")
	}
	x := &XTTS{
		url:        url,
		speakerWav: defaultSpeakerWav,
		language:   defaultLanguage,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(x)
	}
	return x, nil
}

// Synthesize returns the WAV file the server produced for text.
func (x *XTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	data, err := json.Marshal(synthRequest{
		Text:       text,
		SpeakerWav: x.speakerWav,
		Language:   x.language,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
