package notifier

import (
	"time"

	"docingest/internal/model"
	"docingest/internal/repository"
)

// actionFor maps repository operations onto subscriber-facing actions.
func actionFor(op repository.Op) model.ChangeAction {
	switch op {
	case repository.OpInsert:
		return model.ActionCreated
	case repository.OpModify:
		return model.ActionUpdated
	case repository.OpRemove:
		return model.ActionDeleted
	}
	return model.ChangeAction(op)
}

// NewEvent normalizes a repository change into the ephemeral ChangeEvent.
func NewEvent(c repository.Change) model.ChangeEvent {
	return model.ChangeEvent{
		Action:     actionFor(c.Op),
		DocumentID: c.Document.ID,
		FolderID:   c.Document.FolderID,
		Snapshot:   c.Document,
		Timestamp:  time.Now().UTC(),
		Version:    c.Document.Version,
	}
}

// wireEnvelope is the broadcast format consumed by the realtime gateway
// and, ultimately, by browser clients.
type wireEnvelope struct {
	Action string   `json:"action"`
	Data   wireData `json:"data"`
}

type wireData struct {
	FileID    string         `json:"fileId"`
	FolderID  string         `json:"folderId"`
	UserID    string         `json:"userId"`
	EventType string         `json:"eventType"`
	File      model.Document `json:"file"`
	Timestamp time.Time      `json:"timestamp"`
}

// WireMessage shapes a ChangeEvent for the wire:
// {action: file_created|file_updated|file_deleted,
//  data: {fileId, folderId, userId, eventType: INSERT|MODIFY|REMOVE, file, timestamp}}.
func WireMessage(e model.ChangeEvent) any {
	var action, eventType string
	switch e.Action {
	case model.ActionCreated:
		action, eventType = "file_created", string(repository.OpInsert)
	case model.ActionUpdated:
		action, eventType = "file_updated", string(repository.OpModify)
	case model.ActionDeleted:
		action, eventType = "file_deleted", string(repository.OpRemove)
	}
	return wireEnvelope{
		Action: action,
		Data: wireData{
			FileID:    e.DocumentID,
			FolderID:  e.FolderID,
			UserID:    e.Snapshot.OwnerID,
			EventType: eventType,
			File:      e.Snapshot,
			Timestamp: e.Timestamp,
		},
	}
}
