package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"recipic/internal/llm"
)

// DefaultBaseURL is the Cerebras OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.cerebras.ai/v1"

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4 << 10

// Client is a client for an OpenAI-compatible chat completions API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

// NewClient creates a new client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:     apiKey,
	}
}

// Complete sends a chat completion request and returns the decoded response.
func (c *Client) Complete(ctx context.Context, chatReq llm.ChatRequest) (*llm.Completion, error) {
	reqBytes, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.ProviderError{StatusCode: resp.StatusCode, Body: errorMessage(body)}
	}

	var completion llm.Completion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, llm.ErrNoChoices
	}

	return &completion, nil
}

// errorMessage extracts error.message from an OpenAI-style error body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(body)
}
