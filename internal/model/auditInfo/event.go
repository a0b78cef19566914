package auditInfo

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionShare    Action = "share"
	ActionView     Action = "view"
	ActionDelete   Action = "delete"
)

// Event is one append-only audit record. FileID may be nil for events that
// outlive their file (the delete event itself, for instance).
type Event struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   uint32         `json:"actor_id"`
	Action    Action         `json:"action"`
	FileID    *uuid.UUID     `json:"file_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func New(actorID uint32, action Action, fileID *uuid.UUID, details map[string]any) *Event {
	return &Event{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		FileID:    fileID,
		Details:   details,
		Timestamp: time.Now(),
	}
}
