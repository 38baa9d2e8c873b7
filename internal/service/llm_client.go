package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// LLMClient talks to the external generation sidecar. Generation is streamed;
// refinement is a single bounded response consumed by the edit engine.
type LLMClient interface {
	StreamGenerate(ctx context.Context, projectID, userID, prompt, model string) (io.ReadCloser, error)
	Refine(ctx context.Context, projectID, userID, numberedHTML, instruction string) (string, error)
}

type llmClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewLLMClient creates the HTTP client for the generation sidecar. apiKey may
// be empty when the sidecar runs without authentication (local development).
func NewLLMClient(baseURL, apiKey string, logger zerolog.Logger) LLMClient {
	return &llmClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			// No timeout for streaming - rely on context cancellation instead.
		},
		logger: logger.With().Str("service", "LLMClient").Logger(),
	}
}

type generateRequest struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
}

func (c *llmClient) StreamGenerate(ctx context.Context, projectID, userID, prompt, model string) (io.ReadCloser, error) {
	reqBody := generateRequest{
		ProjectID: projectID,
		UserID:    userID,
		Prompt:    prompt,
		Model:     model,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s/generate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request to LLM service: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from LLM service")
			return nil, fmt.Errorf("llm service returned status %d", resp.StatusCode)
		}

		errorMsg := string(bodyBytes)
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", errorMsg).
			Msg("LLM service returned error")

		return nil, fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, errorMsg)
	}

	return resp.Body, nil
}

type refineRequest struct {
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Document    string `json:"document"`
	Instruction string `json:"instruction"`
}

type refineResponse struct {
	Response string `json:"response"`
}

func (c *llmClient) Refine(ctx context.Context, projectID, userID, numberedHTML, instruction string) (string, error) {
	reqBody := refineRequest{
		ProjectID:   projectID,
		UserID:      userID,
		Document:    numberedHTML,
		Instruction: instruction,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s/refine", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request to LLM service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out refineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding refine response: %w", err)
	}
	return out.Response, nil
}

// ParseSSEChunk reads one "data: {...}" event from an SSE stream and returns
// the decoded JSON object. io.EOF signals a cleanly closed stream.
func ParseSSEChunk(reader *bufio.Reader) (map[string]interface{}, error) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return nil, io.EOF
		}
		var chunk map[string]interface{}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decoding SSE chunk: %w", err)
		}
		return chunk, nil
	}
}
