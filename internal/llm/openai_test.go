package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "text_completion",
			"created": 1,
			"model": "local",
			"choices": [{"index": 0, "text": " Sure!", "finish_reason": "stop", "logprobs": null}]
		}`))
	}))
	defer srv.Close()

	params := DefaultParams()
	params.Stop = []string{"User:"}
	o, err := NewOpenAI(srv.URL+"/v1/", "none", "local", params, nil)
	require.NoError(t, err)

	reply, err := o.Generate(context.Background(), "PROMPT")
	require.NoError(t, err)
	assert.Equal(t, " Sure!", reply)
	assert.Equal(t, "PROMPT", got["prompt"])
	assert.EqualValues(t, 256, got["max_tokens"])
}

func TestOpenAI_StatusIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(srv.URL+"/v1/", "none", "local", DefaultParams(), nil)
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"text_completion","created":1,"model":"local","choices":[]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(srv.URL+"/v1/", "none", "local", DefaultParams(), nil)
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestOpenAI_MalformedJSONIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": oops`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(srv.URL+"/v1/", "none", "local", DefaultParams(), nil)
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestOpenAI_UnreachableIsNotBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/v1/"
	srv.Close()

	o, err := NewOpenAI(base, "none", "local", DefaultParams(), nil)
	require.NoError(t, err)

	_, err = o.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadResponse)
}
