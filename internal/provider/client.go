// Package provider calls the upstream AI completion API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Client produces one completion. Implementations must not retry.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool forces a structured answer: the provider must call it and the call's
// arguments become the result.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type Request struct {
	System    string
	Messages  []Message
	Tool      *Tool
	MaxTokens int

	// User is forwarded for provider-side abuse tracking.
	User string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	ID    string
	Model string

	// Text is the plain answer when no tool was called.
	Text string

	// Arguments is the JSON object passed to the tool, when one was called.
	Arguments json.RawMessage

	Usage Usage
}

// Result is the value handed back to callers: the tool arguments when
// present, otherwise {"text": ...}.
func (r Response) Result() json.RawMessage {
	if len(r.Arguments) > 0 {
		return r.Arguments
	}
	out, _ := json.Marshal(map[string]string{"text": r.Text})
	return out
}

// Options configures an OpenAI-compatible client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAI talks to any endpoint implementing the OpenAI chat completions API.
type OpenAI struct {
	http    *fasthttp.Client
	url     string
	apiKey  string
	model   string
	timeout time.Duration
}

func NewOpenAI(opts Options) *OpenAI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		http: &fasthttp.Client{
			Name:                "advisorgate",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		url:     strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey:  opts.APIKey,
		model:   opts.Model,
		timeout: timeout,
	}
}

func (c *OpenAI) Complete(ctx context.Context, in Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	body, err := json.Marshal(c.buildRequest(in))
	if err != nil {
		return Response{}, fmt.Errorf("encode completion request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return Response{}, &Error{Message: "request timed out", Err: err}
		}
		return Response{}, &Error{Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return Response{}, classify(status, resp.Body())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Response{}, &Error{StatusCode: status, Message: "malformed completion response", Err: err}
	}
	return out.toResponse()
}

func (c *OpenAI) buildRequest(in Request) chatRequest {
	req := chatRequest{
		Model:     c.model,
		MaxTokens: in.MaxTokens,
		User:      in.User,
	}
	if in.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: in.System})
	}
	for _, m := range in.Messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if in.Tool != nil {
		req.Tools = []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        in.Tool.Name,
				Description: in.Tool.Description,
				Parameters:  in.Tool.Parameters,
			},
		}}
		req.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": in.Tool.Name},
		}
	}
	return req
}

// Wire types for the chat completions API.

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice any           `json:"tool_choice,omitempty"`
	MaxTokens  int           `json:"max_tokens,omitempty"`
	User       string        `json:"user,omitempty"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (r chatResponse) toResponse() (Response, error) {
	if len(r.Choices) == 0 {
		return Response{}, &Error{Message: "no choices in completion response"}
	}
	msg := r.Choices[0].Message
	out := Response{ID: r.ID, Model: r.Model, Text: msg.Content, Usage: r.Usage}

	if len(msg.ToolCalls) > 0 {
		args := json.RawMessage(msg.ToolCalls[0].Function.Arguments)
		if !json.Valid(args) {
			return Response{}, &Error{Message: "tool call arguments are not valid JSON"}
		}
		out.Arguments = args
	}
	return out, nil
}
