package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatMessage is one role-tagged turn sent to the model backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaClient talks to an Ollama-compatible model backend: chat
// completion (buffered and NDJSON streaming), embeddings, and the
// running-model listing used by the health check.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Complete(ctx context.Context, model string, messages []ChatMessage, numCtx int) (string, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if numCtx > 0 {
		reqBody["options"] = map[string]interface{}{"num_ctx": numCtx}
	}

	raw, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse chat json failed: %w", err)
	}
	return parsed.Message.Content, nil
}

// StreamComplete invokes onChunk for every content fragment in arrival
// order and returns the concatenated response. A non-nil error from
// onChunk aborts the stream.
func (c *OllamaClient) StreamComplete(
	ctx context.Context,
	model string,
	messages []ChatMessage,
	numCtx int,
	onChunk func(chunk string) error,
) (string, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
	if numCtx > 0 {
		reqBody["options"] = map[string]interface{}{"num_ctx": numCtx}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat stream request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build chat stream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat stream status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done bool `json:"done"`
		}
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if err := onChunk(chunk.Message.Content); err != nil {
				return "", err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan chat stream failed: %w", err)
	}
	return full.String(), nil
}

// Embed returns the embedding vector for one text.
func (c *OllamaClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return vectors[0], nil
}

func (c *OllamaClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := c.post(ctx, "/api/embed", map[string]interface{}{
		"model": model,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embed json failed: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}

// ListRunningModels returns the identifiers of models currently loaded
// on the backend.
func (c *OllamaClient) ListRunningModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ps", nil)
	if err != nil {
		return nil, fmt.Errorf("build ps request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ps request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ps response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ps response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Models []struct {
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse ps json failed: %w", err)
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Model)
	}
	return names, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("response status %d from %s: %s", resp.StatusCode, path, string(raw))
	}
	return raw, nil
}
