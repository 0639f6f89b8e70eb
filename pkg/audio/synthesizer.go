// Package audio pre-renders node prompts into audio assets and writes them back to the graph.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"

	DefaultModel = "tts-1"
	DefaultVoice = "alloy"

	defaultSynthesisHTTPTimeout = 30 * time.Second
	maxAudioBytes               = 10 << 20
)

var ErrEmptyText = errors.New("nothing to synthesize")

// SynthesisRequest is one piece of text to speak.
type SynthesisRequest struct {
	Text     string
	Voice    string
	Language string
}

// Clip is synthesized audio ready to be stored.
type Clip struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*Clip, error)
}

// SynthesisError is returned by synthesizers. Temporary errors are retried.
type SynthesisError struct {
	StatusCode int
	Message    string
	Err        error
	Retryable  bool
}

func (e *SynthesisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("synthesis failed with status %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("synthesis failed: %s: %v", e.Message, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

func (e *SynthesisError) Temporary() bool {
	return e.Retryable
}

// IsTemporary reports whether err is worth another attempt. Timeouts are.
func IsTemporary(err error) bool {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr.Retryable
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// OpenAISynthesizer talks to an OpenAI compatible /audio/speech endpoint.
type OpenAISynthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type OpenAIOption func(*OpenAISynthesizer)

func WithBaseURL(url string) OpenAIOption {
	return func(s *OpenAISynthesizer) {
		s.baseURL = url
	}
}

func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(s *OpenAISynthesizer) {
		s.client = client
	}
}

func WithModel(model string) OpenAIOption {
	return func(s *OpenAISynthesizer) {
		s.model = model
	}
}

func NewOpenAISynthesizer(apiKey string, opts ...OpenAIOption) *OpenAISynthesizer {
	s := &OpenAISynthesizer{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		model:   DefaultModel,
		client:  &http.Client{Timeout: defaultSynthesisHTTPTimeout},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type openAIRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*Clip, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	body, err := json.Marshal(openAIRequest{
		Model:          s.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+openAITTSEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Message: "request failed", Err: err, Retryable: true}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, &SynthesisError{Message: "failed to read audio", Err: err, Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{
			StatusCode: resp.StatusCode,
			Message:    string(data),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return &Clip{Data: data, ContentType: contentType, Extension: ".mp3"}, nil
}
