package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/slidenode/internal/config"
	"github.com/local/slidenode/internal/metrics"
)

// Client is a provider-agnostic model gateway. Provider "mock" answers
// deterministically without network access.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
}

func New(cfg config.LLMConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// ExtractFacts asks the model for up to 8 slide-ready facts from one
// chunk. Retries up to MaxRetries times on any failure.
func (c *Client) ExtractFacts(ctx context.Context, chunkID, text string) ([]FactCandidate, error) {
	if c.cfg.Provider == "mock" {
		return mockExtract(chunkID, text), nil
	}

	system, user := factPrompt(text)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		raw, err := c.callRaw(ctx, system, user)
		if err != nil {
			lastErr = err
			continue
		}
		items, err := parseFacts(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > 8 {
			items = items[:8]
		}
		facts := make([]FactCandidate, 0, len(items))
		for i, item := range items {
			facts = append(facts, FactCandidate{
				FactID:     fmt.Sprintf("f_%s_%d", chunkID, i+1),
				ChunkID:    chunkID,
				Statement:  strings.TrimSpace(item.Statement),
				FactType:   item.FactType,
				Importance: item.Importance,
			})
		}
		if len(facts) == 0 {
			lastErr = fmt.Errorf("LLM_OUTPUT_INVALID: no facts returned")
			continue
		}
		return facts, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("LLM_OUTPUT_INVALID: unknown llm failure")
	}
	return nil, lastErr
}

// BuildOutline organizes facts into a slide deck outline. Facts the model
// leaves out are appended to the last subsection so coverage never drops
// silently.
func (c *Client) BuildOutline(ctx context.Context, facts []FactCandidate, language string) (Outline, error) {
	if c.cfg.Provider == "mock" {
		return mockOutline(facts), nil
	}

	system, user := outlinePrompt(facts, language)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		raw, err := c.callRaw(ctx, system, user)
		if err != nil {
			lastErr = err
			continue
		}
		outline, err := parseOutline(raw, len(facts))
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("outline attempt failed")
			continue
		}
		appendUnusedFacts(&outline, len(facts))
		return outline, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("LLM_OUTPUT_INVALID: outline generation failed")
	}
	return Outline{}, lastErr
}

// WriteAnnotations produces one speaker note per subsection. Failures
// degrade to empty notes instead of failing the job.
func (c *Client) WriteAnnotations(ctx context.Context, sections []SectionDraft, language string) []string {
	total := 0
	for _, s := range sections {
		total += len(s.Subsections)
	}
	if c.cfg.Provider == "mock" {
		notes := make([]string, total)
		for i := range notes {
			notes[i] = "Key concepts and their implications."
		}
		return notes
	}

	system, user := annotationPrompt(sections, language, total)

	raw, err := c.callRaw(ctx, system, user)
	if err == nil {
		if notes, perr := parseAnnotations(raw, total); perr == nil {
			return notes
		} else {
			err = perr
		}
	}
	log.Warn().Err(err).Msg("annotation writing failed, falling back to empty notes")
	return make([]string, total)
}

func appendUnusedFacts(outline *Outline, factCount int) {
	if len(outline.Sections) == 0 {
		return
	}
	used := make(map[int]bool)
	for _, sec := range outline.Sections {
		for _, sub := range sec.Subsections {
			for _, idx := range sub.FactIndices {
				used[idx] = true
			}
		}
	}
	var unused []int
	for i := 0; i < factCount; i++ {
		if !used[i] {
			unused = append(unused, i)
		}
	}
	if len(unused) == 0 {
		return
	}
	sort.Ints(unused)
	lastSec := &outline.Sections[len(outline.Sections)-1]
	lastSub := &lastSec.Subsections[len(lastSec.Subsections)-1]
	lastSub.FactIndices = append(lastSub.FactIndices, unused...)
}

// ---- transport ----

func (c *Client) callRaw(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	var content string
	var err error
	if c.cfg.Provider == "anthropic" {
		content, err = c.callAnthropic(ctx, system, user)
	} else {
		content, err = c.callOpenAI(ctx, system, user)
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ObserveProvider(c.cfg.Provider, c.cfg.Model, result, time.Since(start))
	return content, err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) callOpenAI(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("LLM_OUTPUT_INVALID: missing llm api key")
	}

	payload := struct {
		Model       string        `json:"model"`
		Temperature float64       `json:"temperature"`
		Messages    []chatMessage `json:"messages"`
	}{
		Model:       c.cfg.Model,
		Temperature: 0.1,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	body, err := c.post(ctx, url, payload, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("LLM_OUTPUT_INVALID: bad response json: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) callAnthropic(ctx context.Context, system, user string) (string, error) {
	token := c.cfg.AnthropicAuthToken
	if token == "" {
		token = c.cfg.APIKey
	}
	if token == "" {
		return "", fmt.Errorf("LLM_OUTPUT_INVALID: missing anthropic auth token")
	}

	payload := struct {
		Model       string        `json:"model"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
		System      string        `json:"system"`
		Messages    []chatMessage `json:"messages"`
	}{
		Model:       c.cfg.Model,
		MaxTokens:   1200,
		Temperature: 0.1,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: user}},
	}

	url := strings.TrimRight(c.cfg.AnthropicBaseURL, "/") + "/v1/messages"
	body, err := c.post(ctx, url, payload, map[string]string{
		"x-api-key":         token,
		"anthropic-version": c.cfg.AnthropicVersion,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("LLM_OUTPUT_INVALID: bad response json: %w", err)
	}
	var parts []string
	for _, b := range parsed.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// post sends JSON and returns the body. Non-2xx responses become
// LLM_API_ERROR with a truncated body snippet.
func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM_API_ERROR (transport): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("LLM_API_ERROR (%d): %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(resp.Body)
}
