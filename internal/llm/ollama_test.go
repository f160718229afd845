package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSendsJSONRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: `{"score": 80, "summary": "ok"}`}})
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL+"/", "llama3")
	reply, err := c.Score(context.Background(), "rate this")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80, "summary": "ok"}`, reply)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "rate this", got.Messages[1].Content)
}

func TestChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaChat(srv.URL, "missing").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestScoreHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewOllamaChat(srv.URL, "slow").Score(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","size":4700000000},{"name":"nomic-embed-text:v1.5","size":274000000}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.True(t, HasModel(models, "llama3"))
	assert.True(t, HasModel(models, "nomic-embed-text:v1.5"))
	assert.False(t, HasModel(models, "nomic-embed-text"))
	assert.Equal(t, "4.4 GB", FormatSize(models[0].Size))
	assert.Equal(t, "261 MB", FormatSize(models[1].Size))
}
