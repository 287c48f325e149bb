package collab

import "time"

// Archive is the final state of a destroyed session, handed to the snapshot
// store. It is never loaded back into a live session.
type Archive struct {
	SessionID  string
	Name       string
	Content    string
	Version    uint64
	CreatedAt  time.Time
	ArchivedAt time.Time
	Reason     string
}

const (
	ReasonEmpty   = "empty"
	ReasonIdle    = "idle"
	ReasonDeleted = "deleted"
)
