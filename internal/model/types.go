package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}

// ValidationReport is the data payload of `plan validate`.
type ValidationReport struct {
	IsValid       bool   `json:"is_valid"`
	Error         string `json:"error,omitempty"`
	Steps         int    `json:"steps"`
	InitialToken  string `json:"initial_token,omitempty"`
	InitialAmount string `json:"initial_amount,omitempty"`
}

// ExecutionSummary is the per-row payload of `exec list`.
type ExecutionSummary struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	CurrentStep int    `json:"current_step"`
	Steps       int    `json:"steps"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
