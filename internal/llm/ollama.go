package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const scoreSystemPrompt = "You review source files. Reply with a single line of JSON and nothing else."

// OllamaChat calls the Ollama /api/chat endpoint for generative responses.
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaChat creates a chat client targeting the given Ollama instance and model.
func NewOllamaChat(baseURL, model string) *OllamaChat {
	return &OllamaChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Model returns the configured model name.
func (c *OllamaChat) Model() string { return c.model }

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Generate sends a conversation to Ollama and returns the assistant's response.
func (c *OllamaChat) Generate(ctx context.Context, messages []Message) (string, error) {
	return c.chat(ctx, chatRequest{Model: c.model, Messages: messages})
}

// Score asks the model to rate a file. The prompt is expected to request a
// one-line JSON object; the raw reply is returned for the caller to parse.
func (c *OllamaChat) Score(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, chatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: scoreSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Format:  "json",
		Options: map[string]any{"temperature": 0},
	})
}

func (c *OllamaChat) chat(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	return result.Message.Content, nil
}

// ModelInfo describes a model returned by /api/tags.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels queries the Ollama /api/tags endpoint and returns available models.
func ListModels(ctx context.Context, baseURL string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama /api/tags returned %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return result.Models, nil
}

// HasModel reports whether name is among models. A missing ":tag" matches
// ":latest".
func HasModel(models []ModelInfo, name string) bool {
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	for _, m := range models {
		if m.Name == name {
			return true
		}
	}
	return false
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	}
	return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
}
