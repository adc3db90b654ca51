package model

import "time"

type EventKind string

const (
	EventAssetCreated EventKind = "created"
	EventAssetUpdated EventKind = "updated"
	EventAssetStatus  EventKind = "status"
	EventAssetEdited  EventKind = "edited"
)

// AssetEvent notifies subscribers a record changed.
type AssetEvent struct {
	Kind      EventKind   `json:"kind"`
	Hostname  string      `json:"hostname"`
	Status    AssetStatus `json:"status,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
