package transport

import (
	"encoding/json"
	"strings"
)

type CompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

type CompletionResponse struct {
	ID         string      `json:"id"`
	Model      string      `json:"model"`
	Content    []RespBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      UsageInfo   `json:"usage"`
}

type RespBlock struct {
	Type     string `json:"type"` // "text" | "thinking"
	Text     string `json:"text"`
	Thinking string `json:"thinking"`
}

type UsageInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Text concatenates the text blocks of the response. Inline reasoning
// markers are left in place for the reasoning parser to split.
func (r *CompletionResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
