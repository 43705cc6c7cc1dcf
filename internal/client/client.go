// Package client talks to the recipic HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"recipic/internal/recipe"
)

// Client is a recipic API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// UploadResult is the server's encoding of an uploaded photo.
type UploadResult struct {
	DataURL   string `json:"dataUrl"`
	ImageHash string `json:"imageHash"`
}

// New creates a Client for the server at baseURL. A nil httpClient gets a
// one-minute timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Upload sends an image file and returns it as a data URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/image/upload", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload failed: %s", errorText(resp.StatusCode, respBody))
	}

	var out UploadResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

// Generate posts req to the image endpoint when it carries an image and to
// the text endpoint otherwise. Failure envelopes are returned as results;
// the error is reserved for transport problems.
func (c *Client) Generate(ctx context.Context, req recipe.GenerationRequest) (recipe.Result, error) {
	path := "/api/text/generate"
	if req.HasImage() {
		path = "/api/image/analyze"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return recipe.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return recipe.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return recipe.Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return recipe.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var res recipe.Result
	if err := json.Unmarshal(body, &res); err != nil {
		if resp.StatusCode == http.StatusOK {
			return recipe.Result{}, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		res = recipe.Result{}
	}
	if !res.Success {
		if res.Kind == "" {
			res.Kind = kindForStatus(resp.StatusCode)
		}
		if res.Error == "" {
			res.Error = errorText(resp.StatusCode, body)
		}
	}
	return res, nil
}

func kindForStatus(status int) recipe.FailureKind {
	switch status {
	case http.StatusBadRequest:
		return recipe.KindInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return recipe.KindTimeout
	}
	return recipe.KindProviderError
}

// errorText prefers the "error" field of a JSON body.
func errorText(status int, body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("server returned status %d: %s", status, text)
}
