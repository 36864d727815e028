package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	got, err := ParseReply([]byte(`{"results":[{"text":"It's March 3rd!"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "It's March 3rd!", got)

	got, err = ParseReply([]byte(`{"results":[{"text":""}]}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{
		`{}`,
		`not json`,
		`{"results":[]}`,
		`{"results":[{"txt":"x"}]}`,
		`{"results":{"text":"x"}}`,
		``,
	} {
		_, err := ParseReply([]byte(bad))
		assert.ErrorIs(t, err, ErrBadResponse, bad)
	}
}

func TestKobold_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"text":" Hi there!"}]}`))
	}))
	defer srv.Close()

	params := DefaultParams()
	params.Stop = []string{"User:", "Sophie:"}
	k, err := NewKobold(srv.URL+"/", params, nil)
	require.NoError(t, err)

	reply, err := k.Generate(context.Background(), "PROMPT")
	require.NoError(t, err)
	assert.Equal(t, " Hi there!", reply)

	assert.Equal(t, "PROMPT", got["prompt"])
	assert.EqualValues(t, 6000, got["max_context_length"])
	assert.EqualValues(t, 256, got["max_length"])
	assert.InDelta(t, 1.1, got["rep_pen"], 1e-9)
	assert.InDelta(t, 0.5, got["temperature"], 1e-9)
	assert.Equal(t, `["User:","Sophie:"]`, got["stopping_strings"])
}

func TestKobold_BadStatusIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	k, err := NewKobold(srv.URL, DefaultParams(), nil)
	require.NoError(t, err)

	_, err = k.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.ErrorContains(t, err, "503")
}

func TestKobold_NetworkErrorIsNotBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	k, err := NewKobold(url, DefaultParams(), nil)
	require.NoError(t, err)

	_, err = k.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadResponse))
}

func TestNewKobold_RequiresURL(t *testing.T) {
	_, err := NewKobold("", DefaultParams(), nil)
	assert.Error(t, err)
}
