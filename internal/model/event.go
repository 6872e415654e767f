package model

import "time"

// ChangeAction classifies a change event emitted after a repository write.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeEvent is the ephemeral message fanned out to realtime subscribers.
// It is never persisted. Version increases per document so subscribers can
// discard stale or duplicate messages.
type ChangeEvent struct {
	Action     ChangeAction `json:"action"`
	DocumentID string       `json:"document_id"`
	FolderID   string       `json:"folder_id"`
	Snapshot   Document     `json:"snapshot"`
	Timestamp  time.Time    `json:"timestamp"`
	Version    int64        `json:"version"`
}
