package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"

	scanBufferInitial = 64 * 1024
	scanBufferMax     = 1024 * 1024
)

// AuthError marks an upstream credential rejection.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Message
}

// Client wraps the HTTP client for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Anthropic HTTP client.
func NewClient(cfg Config) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// Anthropic Messages API request structures.
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is the decoded shape of one SSE data payload. Only the fields
// the adapter consumes are mapped.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamResult is one decoded result from the Messages stream.
type StreamResult struct {
	Delta        string
	InputTokens  int
	OutputTokens int
	Done         bool
	Err          error
}

// Stream sends a streaming Messages request. Credential rejections surface
// synchronously as *AuthError; other non-2xx statuses as plain errors.
func (c *Client) Stream(ctx context.Context, req messagesRequest) (<-chan StreamResult, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key is not configured")
	}

	req.Stream = true

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+messagesPath,
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	//nolint:bodyclose // Response body is closed in processStream goroutine
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &AuthError{Message: upstreamMessage(body, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	results := make(chan StreamResult)
	go c.processStream(resp, results)

	return results, nil
}

// processStream reads the SSE body and forwards decoded results. It always
// ends with either a Done result or an Err result; a body that runs out
// before message_stop is reported as an error, not a completion.
func (c *Client) processStream(resp *http.Response, results chan<- StreamResult) {
	defer close(results)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, scanBufferInitial), scanBufferMax)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			results <- StreamResult{Err: fmt.Errorf("failed to decode stream event: %w", err)}
			return
		}

		switch event.Type {
		case "message_start":
			results <- StreamResult{InputTokens: event.Message.Usage.InputTokens}
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				results <- StreamResult{Delta: event.Delta.Text}
			}
		case "message_delta":
			results <- StreamResult{OutputTokens: event.Usage.OutputTokens}
		case "message_stop":
			results <- StreamResult{Done: true}
			return
		case "error":
			results <- StreamResult{Err: decodeStreamError(event)}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		results <- StreamResult{Err: fmt.Errorf("stream read failed: %w", err)}
		return
	}
	// The loop only falls through when the body ended without a message_stop
	// or error event. Treating that as success would settle a truncated
	// response silently.
	results <- StreamResult{Err: errors.New("stream ended before message_stop")}
}

func decodeStreamError(event streamEvent) error {
	if event.Error.Type == "authentication_error" {
		return &AuthError{Message: event.Error.Message}
	}
	return fmt.Errorf("upstream error (%s): %s", event.Error.Type, event.Error.Message)
}

// upstreamMessage pulls the error message out of an Anthropic error body,
// falling back to the HTTP status.
func upstreamMessage(body []byte, status int) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("status %d", status)
}
