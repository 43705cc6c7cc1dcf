package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"recipic/internal/llm"
	"recipic/internal/upload"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// maxImageBytes bounds remote images fetched for a prompt.
const maxImageBytes = 10 << 20

var (
	// ErrBlocked is returned when every candidate came back without content.
	ErrBlocked = errors.New("gemini returned no content")
	// ErrForbiddenAddress is returned when a remote image resolves to a
	// loopback, private or link-local address.
	ErrForbiddenAddress = errors.New("image host address is not allowed")
)

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Client is a client for the Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	httpClient *http.Client
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:     client,
		model:      model,
		httpClient: newImageHTTPClient(),
	}, nil
}

// newImageHTTPClient returns the client used to download remote images. It
// only dials public addresses, checked after DNS resolution and on every
// redirect, and ignores proxy settings.
func newImageHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: refuseInternal}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || sharedAddressSpace.Contains(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ip)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Complete runs the chat request against Gemini and maps the candidates to
// OpenAI-style choices. The model named in req is ignored; Gemini serves
// every request with the configured model.
func (c *Client) Complete(ctx context.Context, req llm.ChatRequest) (*llm.Completion, error) {
	system, parts, err := buildPrompt(ctx, req.Messages, c.fetchImage)
	if err != nil {
		return nil, err
	}

	model := c.client.GenerativeModel(c.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.N > 1 {
		model.SetCandidateCount(int32(req.N))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, err
	}

	return toCompletion(c.model, resp)
}

// buildPrompt flattens chat messages into Gemini parts. System messages become
// the system instruction; image URLs are resolved to inline image data.
func buildPrompt(ctx context.Context, messages []llm.Message, fetch func(context.Context, string) (string, []byte, error)) (string, []genai.Part, error) {
	var system []string
	var parts []genai.Part

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content.String())
			continue
		}
		if msg.Content.Parts == nil {
			if msg.Content.Text != "" {
				parts = append(parts, genai.Text(msg.Content.Text))
			}
			continue
		}
		for _, p := range msg.Content.Parts {
			switch {
			case p.Type == "text" && p.Text != "":
				parts = append(parts, genai.Text(p.Text))
			case p.Type == "image_url" && p.ImageURL != nil:
				mime, data, err := resolveImage(ctx, p.ImageURL.URL, fetch)
				if err != nil {
					return "", nil, err
				}
				parts = append(parts, genai.ImageData(imageFormat(mime), data))
			}
		}
	}

	if len(parts) == 0 {
		return "", nil, fmt.Errorf("empty prompt for Gemini")
	}
	return strings.Join(system, "\n\n"), parts, nil
}

func resolveImage(ctx context.Context, url string, fetch func(context.Context, string) (string, []byte, error)) (string, []byte, error) {
	if upload.IsDataURL(url) {
		return upload.ParseDataURL(url)
	}
	if fetch == nil {
		return "", nil, fmt.Errorf("cannot fetch remote image %q", url)
	}
	return fetch(ctx, url)
}

// imageFormat converts "image/png" to the "png" format name genai expects.
func imageFormat(mime string) string {
	return strings.TrimPrefix(mime, "image/")
}

func (c *Client) fetchImage(ctx context.Context, rawURL string) (string, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", nil, fmt.Errorf("unsupported image URL %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	mime, _, _ = strings.Cut(mime, ";")
	return mime, data, nil
}

func toCompletion(model string, resp *genai.GenerateContentResponse) (*llm.Completion, error) {
	if len(resp.Candidates) == 0 {
		return nil, llm.ErrNoChoices
	}

	completion := &llm.Completion{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}

	for i, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var text []string
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text = append(text, string(t))
			}
		}
		completion.Choices = append(completion.Choices, llm.Choice{
			Index:        i,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: llm.TextContent(strings.Join(text, ""))},
			FinishReason: strings.ToLower(strings.TrimPrefix(cand.FinishReason.String(), "FinishReason")),
		})
	}

	if len(completion.Choices) == 0 {
		return nil, ErrBlocked
	}

	if resp.UsageMetadata != nil {
		completion.Usage = &llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return completion, nil
}
