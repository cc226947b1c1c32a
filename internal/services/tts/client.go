package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"finpod/internal/services"
)

const (
	serviceName        = "tts"
	defaultBaseURL     = "https://api.openai.com/v1/audio/speech"
	defaultHTTPTimeout = 180 * time.Second

	// MaxInputRunes is the largest input the speech endpoint accepts per request.
	MaxInputRunes = 4096
)

// Config captures synthesizer settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Voice          string
	Format         string
	Speed          float64
	TimeoutSeconds int
}

// Voice selects how a script is read.
type Voice struct {
	Name   string
	Format string
	Speed  float64
}

// Client calls the speech endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	chunkRunes int
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithChunkRunes lowers the per-request input size.
func WithChunkRunes(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= MaxInputRunes {
			c.chunkRunes = n
		}
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		chunkRunes: MaxInputRunes,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize renders text to audio and writes it to w. Nothing is written
// unless every chunk succeeds.
func (c *Client) Synthesize(ctx context.Context, text string, voice Voice, w io.Writer) (int64, error) {
	if c.cfg.APIKey == "" {
		return 0, services.Wrap(services.ErrConfiguration, serviceName, "synthesize", "api key required", nil)
	}
	chunks := SplitText(text, c.chunkRunes)
	if len(chunks) == 0 {
		return 0, services.Wrap(services.ErrValidation, serviceName, "synthesize", "script is empty", nil)
	}
	if voice.Name == "" {
		voice.Name = c.cfg.Voice
	}
	if voice.Format == "" {
		voice.Format = c.cfg.Format
	}
	if voice.Speed == 0 {
		voice.Speed = c.cfg.Speed
	}

	if len(chunks) > 1 && !joinable(voice.Format) {
		return 0, services.Wrap(services.ErrValidation, serviceName, "synthesize",
			fmt.Sprintf("format %q cannot join %d chunks; use mp3, opus, or aac", voice.Format, len(chunks)), nil)
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := c.synthesizeChunk(ctx, chunk, voice, &audio); err != nil {
			return 0, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return audio.WriteTo(w)
}

// joinable reports whether responses in format stay playable when appended.
// Container formats such as wav carry one header per response.
func joinable(format string) bool {
	switch strings.ToLower(format) {
	case "", "mp3", "opus", "aac", "pcm":
		return true
	}
	return false
}

func (c *Client) synthesizeChunk(ctx context.Context, input string, voice Voice, dst *bytes.Buffer) error {
	encoded, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          input,
		Voice:          voice.Name,
		ResponseFormat: voice.Format,
		Speed:          voice.Speed,
	})
	if err != nil {
		return services.Wrap(services.ErrPermanent, serviceName, "encode", "request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, serviceName, "request", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.TransportError(serviceName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &services.HTTPStatusError{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	n, err := dst.ReadFrom(resp.Body)
	if err != nil {
		return services.TransportError(serviceName, err)
	}
	if n == 0 {
		return services.Wrap(services.ErrTransient, serviceName, "decode", "empty audio response", nil)
	}
	return nil
}

// SplitText breaks text into chunks of at most limit runes, preferring
// paragraph breaks, then sentence ends, then spaces.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MaxInputRunes
	}
	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := splitPoint(text, limit)
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// splitPoint returns a byte offset no further than limit runes into text.
func splitPoint(text string, limit int) int {
	window := text
	runes := 0
	for i := range text {
		if runes == limit {
			window = text[:i]
			break
		}
		runes++
	}
	if idx := strings.LastIndex(window, "\n\n"); idx > len(window)/2 {
		return idx + 2
	}
	best := -1
	for _, end := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, end); idx > best {
			best = idx
		}
	}
	if best > len(window)/2 {
		return best + 2
	}
	if idx := strings.LastIndexAny(window, " \n"); idx > 0 {
		return idx + 1
	}
	return len(window)
}
