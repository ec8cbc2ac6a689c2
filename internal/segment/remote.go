package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corpusforge/docrefine/internal/document"
)

// Remote splitter error conditions surfaced to the stage.
var (
	// ErrInputTooLarge means a paragraph exceeded the capability's input limit.
	ErrInputTooLarge = errors.New("segment: input too large for sentence capability")
	// ErrUnsupportedLanguage means the capability has no model for the
	// requested language tag.
	ErrUnsupportedLanguage = errors.New("segment: language not supported by sentence capability")
)

// RemoteSplitter calls a served sentence-boundary model over HTTP. The
// service contract is POST {base}/v1/segment with {"text","language"} and a
// {"sentences":[...]} response.
type RemoteSplitter struct {
	httpClient *http.Client
	baseURL    string
}

// RemoteConfig holds remote splitter settings.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewRemoteSplitter creates a RemoteSplitter.
func NewRemoteSplitter(cfg RemoteConfig) (*RemoteSplitter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("segment: remote splitter base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteSplitter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}, nil
}

type segmentRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type segmentResponse struct {
	Sentences []string `json:"sentences"`
	Error     string   `json:"error,omitempty"`
}

// Split sends one paragraph-sized unit to the capability.
func (s *RemoteSplitter) Split(ctx context.Context, text string, lang document.Language) ([]string, error) {
	body, err := json.Marshal(segmentRequest{Text: text, Language: string(lang)})
	if err != nil {
		return nil, fmt.Errorf("segment: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/segment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("segment: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segment: sentence capability unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestEntityTooLarge:
		return nil, ErrInputTooLarge
	case http.StatusUnprocessableEntity:
		return nil, ErrUnsupportedLanguage
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("segment: sentence capability returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("segment: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("segment: sentence capability error: %s", parsed.Error)
	}
	return parsed.Sentences, nil
}
