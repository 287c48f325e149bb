// Package presence contains participant identity, colour and cursor bookkeeping.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package presence

import (
	"collab-lab/domain/delta"
	"time"
)

// Participant is one connected editor of a session.
// It is only mutated by messages originating from that participant.
type Participant struct {
	ID          string
	DisplayName string
	Color       Color
	Cursor      *delta.Position
	Selection   *delta.Range
	JoinedAt    time.Time
	LastSeenAt  time.Time
}

func NewParticipant(id, displayName string, color Color, now time.Time) *Participant {
	return &Participant{
		ID:          id,
		DisplayName: displayName,
		Color:       color,
		JoinedAt:    now,
		LastSeenAt:  now,
	}
}

// SetCursor replaces the previous cursor. Last write wins.
func (p *Participant) SetCursor(pos delta.Position, now time.Time) {
	p.Cursor = &pos
	p.LastSeenAt = now
}

// SetSelection replaces the previous selection. Last write wins.
func (p *Participant) SetSelection(r delta.Range, now time.Time) {
	p.Selection = &r
	p.LastSeenAt = now
}

func (p *Participant) Seen(now time.Time) {
	p.LastSeenAt = now
}
