package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionResponse(content string, totalTokens int64) openAIResponse {
	resp := openAIResponse{}
	resp.Choices = []struct {
		Message message `json:"message"`
	}{
		{Message: message{Role: "assistant", Content: content}},
	}
	resp.Usage.PromptTokens = totalTokens / 2
	resp.Usage.CompletionTokens = totalTokens - totalTokens/2
	resp.Usage.TotalTokens = totalTokens
	return resp
}

func TestOpenAIComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization header: got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type header: got %s", r.Header.Get("Content-Type"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("Test response from LLM", 42))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL

	result, err := client.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result != "Test response from LLM" {
		t.Errorf("Result: got %q", result)
	}

	usage := client.Usage()
	if usage.TotalTokens != 42 {
		t.Errorf("TotalTokens: got %d, want 42", usage.TotalTokens)
	}
	if usage.Requests != 1 {
		t.Errorf("Requests: got %d, want 1", usage.Requests)
	}
}

func TestOpenAIComplete_RetriesOn500(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("recovered", 10))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Complete(ctx, "test prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result != "recovered" {
		t.Errorf("Result: got %q", result)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
}

func TestOpenAIComplete_NoRetryOn400(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad request"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL

	_, err := client.Complete(context.Background(), "test prompt")
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("400 should not be retried, got %d requests", calls)
	}
}

func TestOpenAIComplete_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"message": "The model does not exist", "code": "model_not_found"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL
	client.Model = "no-such-model"

	_, err := client.Complete(context.Background(), "test prompt")
	var notFound *ModelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected *ModelNotFoundError, got %T: %v", err, err)
	}
	if notFound.Model != "no-such-model" {
		t.Errorf("Model: got %q", notFound.Model)
	}
}

func TestOpenAIComplete_BudgetExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("ok", 100))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL
	client.BudgetTokens = 100

	// First request fits within the budget
	if _, err := client.Complete(context.Background(), "p"); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	// Budget is now spent; second request must be refused locally
	_, err := client.Complete(context.Background(), "p")
	var budgetErr *BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("Expected *BudgetError, got %T: %v", err, err)
	}
	if budgetErr.SpentTokens != 100 {
		t.Errorf("SpentTokens: got %d, want 100", budgetErr.SpentTokens)
	}
}

func TestCompleteWithSchema_Unmarshal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("```json\n{\"name\": \"Ana\", \"age\": \"30\"}\n```", 5))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL

	var out struct {
		Name string `json:"name"`
		Age  string `json:"age"`
	}
	if err := client.CompleteWithSchema(context.Background(), "p", &out); err != nil {
		t.Fatalf("CompleteWithSchema failed: %v", err)
	}
	if out.Name != "Ana" || out.Age != "30" {
		t.Errorf("Decoded: got %+v", out)
	}
}

func TestCompleteWithSchema_SchemaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("this is not JSON at all", 5))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key")
	client.BaseURL = server.URL

	var out map[string]string
	err := client.CompleteWithSchema(context.Background(), "p", &out)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected *SchemaError, got %T: %v", err, err)
	}
	if !strings.Contains(schemaErr.Raw, "not JSON") {
		t.Errorf("SchemaError.Raw should carry the model output, got %q", schemaErr.Raw)
	}
}

func TestStripMarkdownCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownCodeFence(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
