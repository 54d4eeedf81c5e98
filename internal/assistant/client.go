// Package assistant talks to an OpenAI-compatible chat completions endpoint and
// turns the streamed answer into a typed envelope: either reply text or a request
// to hand the conversation to a human.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EscalationTool is the function the model calls to request a human operator.
const EscalationTool = "escalate_to_operator"

// Failures returned by Reply. All of them mean "no automated reply".
var (
	ErrRateLimited      = errors.New("assistant: rate limited")
	ErrQuotaExhausted   = errors.New("assistant: quota exhausted")
	ErrIncompleteStream = errors.New("assistant: stream ended before terminal marker")
	ErrUnavailable      = errors.New("assistant: unavailable")
)

// FailureClass names an assistant error for operator logs and metrics.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrIncompleteStream):
		return "incomplete_stream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}

// Turn is one role-tagged entry of the conversation sent to the model.
type Turn struct {
	Role    domain.ConversationRole
	Content string
}

// Envelope is the structured answer. Reply is nil when the model escalated or
// produced no text.
type Envelope struct {
	Reply    *string
	Escalate bool
	Reason   string
}

// Config holds the endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is an OpenAI-compatible streaming client.
type Client struct {
	httpClient *http.Client
	cfg        Config
	persona    Persona
}

// NewClient constructs a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(httpClient *http.Client, cfg Config, persona Persona) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{httpClient: httpClient, cfg: cfg, persona: persona.withDefaults()}
}

// Persona returns the persona the client prompts with.
func (c *Client) Persona() Persona {
	return c.persona
}

// Reply sends the conversation and reads the streamed answer to the end. Partial
// text is discarded unless the stream reaches its terminal marker.
func (c *Client) Reply(ctx context.Context, turns []Turn) (*Envelope, error) {
	body, err := json.Marshal(c.buildRequest(turns))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return readStream(resp.Body)
}

func statusError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(detail))
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
}

func (c *Client) buildRequest(turns []Turn) chatRequest {
	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: c.persona.SystemPrompt})
	for _, turn := range turns {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	return chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
		Tools: []chatTool{{
			Type: "function",
			Function: chatToolDefinition{
				Name:        EscalationTool,
				Description: c.persona.EscalationHint,
				Parameters:  json.RawMessage(`{"type":"object","properties":{"reason":{"type":"string","description":"Why a human is needed."}}}`),
			},
		}},
	}
}

// readStream accumulates content deltas and escalation tool calls until "data: [DONE]".
func readStream(body io.Reader) (*Envelope, error) {
	scanner := newSSEScanner(body)

	var (
		text      strings.Builder
		escalate  bool
		arguments strings.Builder
	)

	for scanner.Next() {
		data := scanner.Event().Data
		if data == "[DONE]" {
			return buildEnvelope(text.String(), escalate, arguments.String()), nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("%w: malformed chunk: %v", ErrIncompleteStream, err)
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			return nil, classifyStreamError(chunk.Error)
		}

		for _, choice := range chunk.Choices {
			text.WriteString(choice.Delta.Content)
			for _, call := range choice.Delta.ToolCalls {
				if call.Function.Name == EscalationTool {
					escalate = true
				}
				if escalate {
					arguments.WriteString(call.Function.Arguments)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteStream, err)
	}
	return nil, ErrIncompleteStream
}

func buildEnvelope(text string, escalate bool, arguments string) *Envelope {
	if escalate {
		var args struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal([]byte(arguments), &args)
		return &Envelope{Escalate: true, Reason: args.Reason}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &Envelope{}
	}
	return &Envelope{Reply: &text}
}

func classifyStreamError(e *streamError) error {
	code := fmt.Sprint(e.Code)
	switch {
	case code == "rate_limit_exceeded" || code == "429" || e.Type == "rate_limit_error":
		return fmt.Errorf("%w: %s", ErrRateLimited, e.Message)
	case code == "insufficient_quota" || code == "402":
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, e.Message)
	default:
		return fmt.Errorf("%w: stream error: %s", ErrUnavailable, e.Message)
	}
}

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string             `json:"type"`
	Function chatToolDefinition `json:"function"`
}

type chatToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int `json:"index"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *streamError `json:"error"`
}

type streamError struct {
	Type    string `json:"type"`
	Code    any    `json:"code"`
	Message string `json:"message"`
}
