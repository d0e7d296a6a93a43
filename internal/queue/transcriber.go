package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transcriber converts a page's ink into text. The real provider lives
// outside this process; failure is an opaque error with a message.
type Transcriber interface {
	Transcribe(ctx context.Context, pageID string) (string, error)
}

// TranscriberFunc adapts a function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, pageID string) (string, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, pageID string) (string, error) {
	return f(ctx, pageID)
}

// HTTPTranscriber posts the page identifier to an external transcription
// service and returns the text it responds with.
type HTTPTranscriber struct {
	URL    string
	Client *http.Client
}

// NewHTTPTranscriber creates an HTTPTranscriber with a sane request timeout.
func NewHTTPTranscriber(url string) *HTTPTranscriber {
	return &HTTPTranscriber{
		URL:    url,
		Client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Transcribe implements Transcriber.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, pageID string) (string, error) {
	body, err := json.Marshal(map[string]string{"pageId": pageID})
	if err != nil {
		return "", fmt.Errorf("transcribe: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcribe: provider returned %d: %s", resp.StatusCode, snippet)
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	return out.Content, nil
}
