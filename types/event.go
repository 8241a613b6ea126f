package types

import "time"

// RunEventType identifies what happened during a pipeline run
type RunEventType string

const (
	EventProviderFailed   RunEventType = "provider_failed"
	EventProviderFallback RunEventType = "provider_fallback"
	EventAssetNoData      RunEventType = "asset_no_data"
	EventRunCompleted     RunEventType = "run_completed"
	EventRunAborted       RunEventType = "run_aborted"
)

// RunEvent is emitted by the pipeline for observers such as the notification feed
type RunEvent struct {
	Type     RunEventType `json:"type"`
	Asset    string       `json:"asset,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Message  string       `json:"message"`
	Err      error        `json:"-"`
	At       time.Time    `json:"at"`
}

// RunEventHandler receives run events. Handlers must be safe for concurrent use.
type RunEventHandler func(event RunEvent)
