package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 // seconds
)

// GeminiConfig configures the generation backend client. Loaded once at
// startup from the instance profile.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // request timeout in seconds

	// RequestsPerSecond caps outbound generateContent calls across the
	// whole process (primary and title calls share the budget).
	// Zero disables the limiter.
	RequestsPerSecond float64
}

// Result is a normalized generation response: the extracted text plus the
// backend's raw envelope for callers that need it.
type Result struct {
	Text string
	Raw  json.RawMessage
}

// Invoker issues one generation call with a persona configuration.
// Implementations perform no retries; retry policy belongs to callers.
type Invoker interface {
	GenerateContent(ctx context.Context, segments []Segment, persona Persona) (*Result, error)
}

// GeminiClient is the REST client for the generateContent endpoint.
type GeminiClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
}

// NewGeminiClient creates a generation backend client from configuration.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &GeminiClient{
		httpClient: newHTTPClient(),
		limiter:    limiter,
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
		timeout:    time.Duration(timeout) * time.Second,
	}
}

// Wire types for the generateContent request body.
type generatePart struct {
	Text       string              `json:"text,omitempty"`
	InlineData *generateInlineData `json:"inlineData,omitempty"`
	FileData   *generateFileData   `json:"fileData,omitempty"`
}

type generateInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type generateFileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []generateContent `json:"contents"`
	SystemInstruction *generateContent  `json:"systemInstruction,omitempty"`
	SafetySettings    []SafetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

// GenerateContent sends the assembled segments with the persona's system
// instruction and safety settings, and normalizes the response envelope.
// Any transport or backend error surfaces as a single error carrying the
// backend's message; no retries here.
func (c *GeminiClient) GenerateContent(ctx context.Context, segments []Segment, persona Persona) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("generation backend: rate wait: %w", err)
		}
	}

	parts := make([]generatePart, 0, len(segments))
	for _, seg := range segments {
		switch {
		case seg.InlineData != nil:
			parts = append(parts, generatePart{InlineData: &generateInlineData{
				MIMEType: seg.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(seg.InlineData),
			}})
		case seg.FileURI != "":
			parts = append(parts, generatePart{FileData: &generateFileData{
				MIMEType: seg.MIMEType,
				FileURI:  seg.FileURI,
			}})
		default:
			parts = append(parts, generatePart{Text: seg.Text})
		}
	}

	reqBody := generateRequest{
		Contents: []generateContent{{Role: "user", Parts: parts}},
		SystemInstruction: &generateContent{
			Parts: []generatePart{{Text: persona.SystemInstruction}},
		},
		SafetySettings: persona.SafetySettings,
		GenerationConfig: &generationConfig{
			Temperature:     persona.Temperature,
			MaxOutputTokens: persona.MaxOutputTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("generation backend: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("generation backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generation backend: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation backend: %s", backendErrorMessage(resp.StatusCode, body))
	}

	text := ExtractText(body)
	slog.Debug("generation call completed",
		"persona", persona.Name,
		"model", c.model,
		"text_length", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{Text: text, Raw: json.RawMessage(body)}, nil
}

// backendErrorMessage pulls the human-readable message out of a backend
// error body, falling back to the status code when the body is opaque.
func backendErrorMessage(status int, body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
