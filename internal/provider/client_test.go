package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(Options{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test", Timeout: 2 * time.Second})
}

func TestCompleteToolCall(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cmpl-1","model":"gpt-test","choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"report","arguments":"{\"score\":7}"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	})

	resp, err := c.Complete(context.Background(), Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "rate it"}},
		Tool:     &Tool{Name: "report", Parameters: json.RawMessage(`{"type":"object"}`)},
		User:     "user-1",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if string(resp.Result()) != `{"score":7}` {
		t.Fatalf("Result = %s", resp.Result())
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}

	if got.Model != "gpt-test" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "report" || got.ToolChoice == nil {
		t.Fatalf("tool not forced: %+v", got)
	}
}

func TestCompleteText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"cmpl-2","choices":[{"message":{"role":"assistant","content":"Looks steady."}}]}`)
	})
	resp, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if string(resp.Result()) != `{"text":"Looks steady."}` {
		t.Fatalf("Result = %s", resp.Result())
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", 429, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`, ErrRateLimited},
		{"quota via 429", 429, `{"error":{"message":"no credit","code":"insufficient_quota"}}`, ErrQuotaExceeded},
		{"payment required", 402, `{"error":{"message":"pay up"}}`, ErrQuotaExceeded},
		{"server error", 500, `oops`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Complete(context.Background(), Request{})
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if perr.StatusCode != tt.status {
				t.Fatalf("StatusCode = %d, want %d", perr.StatusCode, tt.status)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.want == nil && (errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded)) {
				t.Fatalf("generic failure classified as %v", err)
			}
		})
	}
}

func TestCompleteRejectsBadToolArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"tool_calls":[{"function":{"name":"report","arguments":"{not json"}}]}}]}`)
	})
	if _, err := c.Complete(context.Background(), Request{}); err == nil {
		t.Fatalf("expected an error for invalid tool arguments")
	}
}

func TestCompleteCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
