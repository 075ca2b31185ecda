package model

import "time"

// EventStatus is the outcome of a single provider call.
type EventStatus string

// Event statuses.
const (
	EventSuccess EventStatus = "success"
	EventError   EventStatus = "error"
)

// GenerationEvent records one provider call for telemetry.
type GenerationEvent struct {
	ID             string       `json:"id"`
	Provider       ProviderKind `json:"provider"`
	Model          string       `json:"model"`
	Operation      string       `json:"operation"`
	ControlID      string       `json:"control_id"`
	Attempt        int          `json:"attempt"`
	Prompt         string       `json:"prompt"`
	Response       string       `json:"response,omitempty"`
	PromptTokens   int          `json:"prompt_tokens"`
	ResponseTokens int          `json:"response_tokens"`
	CostUSD        float64      `json:"cost_usd"`
	LatencyMs      int64        `json:"latency_ms"`
	Status         EventStatus  `json:"status"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
