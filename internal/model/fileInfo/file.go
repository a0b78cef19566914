package fileInfo

import (
	"time"

	"github.com/google/uuid"
)

// File is the metadata record for a stored object. The bytes themselves live
// behind StorageKey in object storage; this record never changes owner.
type File struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uint32    `json:"owner_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}
