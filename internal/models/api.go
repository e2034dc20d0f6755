package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocket / pub-sub message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Queue job payloads

type GapScanJob struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
}

type EmailJob struct {
	ID      uuid.UUID `json:"id"`
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`

	// Kind-specific fields; unused ones stay zero.
	StrikeCount  int        `json:"strike_count,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Until        *time.Time `json:"until,omitempty"`
	ExpectedTime *time.Time `json:"expected_time,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
