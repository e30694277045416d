package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-mini"
	maxRetries           = 3
	initialRetryDelay    = 1 * time.Second
	backoffFactor        = 2.0
)

// OpenAIClient implements Client for OpenAI's Chat Completions API.
// It tracks cumulative token usage and can enforce a token budget.
type OpenAIClient struct {
	APIKey  string
	Model   string
	BaseURL string

	// Temperature passed with every request (0 uses the provider default)
	Temperature float64

	// BudgetTokens caps cumulative total tokens; 0 means unlimited.
	// When the budget is spent, requests fail with *BudgetError.
	BudgetTokens int64

	client *http.Client

	mu    sync.Mutex
	usage Usage
}

// NewOpenAIClient creates a new OpenAI completion client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		APIKey:  apiKey,
		Model:   defaultModel,
		BaseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Usage returns the cumulative token usage for this client.
func (o *OpenAIClient) Usage() Usage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.usage
}

// checkBudget refuses the request when the token budget is already spent.
func (o *OpenAIClient) checkBudget() error {
	if o.BudgetTokens <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.usage.TotalTokens >= o.BudgetTokens {
		return &BudgetError{SpentTokens: o.usage.TotalTokens, BudgetTokens: o.BudgetTokens}
	}
	return nil
}

func (o *OpenAIClient) recordUsage(resp *openAIResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.usage.PromptTokens += resp.Usage.PromptTokens
	o.usage.CompletionTokens += resp.Usage.CompletionTokens
	o.usage.TotalTokens += resp.Usage.TotalTokens
	o.usage.Requests++
}

// Complete sends a prompt to the Chat Completions API and returns the response.
// Transient failures (429, 5xx, network) are retried with exponential backoff
// and jitter; everything else fails immediately.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := o.checkBudget(); err != nil {
		return "", err
	}

	var lastErr error
	delay := initialRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Jitter: random value between 0.5x and 1.5x of delay
			jitter := delay/2 + time.Duration(rand.Int63n(int64(delay)))
			select {
			case <-time.After(jitter):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay = time.Duration(float64(delay) * backoffFactor)
		}

		result, err := o.makeRequest(ctx, prompt)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return "", err
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// CompleteWithSchema sends a prompt and unmarshals the JSON response into out
func (o *OpenAIClient) CompleteWithSchema(ctx context.Context, prompt string, out any) error {
	response, err := o.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeInto(response, out)
}

func (o *OpenAIClient) makeRequest(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model:       o.Model,
		Temperature: o.Temperature,
		Messages: []message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Retry on 429 (rate limit) and 5xx errors
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &retryableError{err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))}
		}
		if resp.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(string(body)), "model") {
			return "", &ModelNotFoundError{Model: o.Model}
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		if apiResp.Error.Code == "model_not_found" {
			return "", &ModelNotFoundError{Model: o.Model}
		}
		return "", fmt.Errorf("OpenAI API error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	o.recordUsage(&apiResp)

	return apiResp.Choices[0].Message.Content, nil
}

// retryableError indicates an error that should be retried
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func shouldRetry(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}
