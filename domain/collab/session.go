// Package collab holds the state of one collaboratively edited document.
//
// A Session is the single point of serialisation for its document and
// participants: every mutation runs under the session mutex and never performs
// I/O. Mutations return the frames to deliver as Outbound values; delivering
// them is the caller's job, after the lock is released.
package collab

import (
	"collab-lab/domain/delta"
	"collab-lab/domain/event"
	"collab-lab/domain/presence"
	"collab-lab/errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

type State int

const (
	StateActive State = iota
	StateEmpty
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEmpty:
		return "empty"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Audience int

const (
	// Everyone delivers to every participant.
	Everyone Audience = iota
	// Others delivers to every participant except ParticipantID.
	Others
	// Only delivers to ParticipantID alone.
	Only
)

type Outbound struct {
	Audience      Audience
	ParticipantID string
	Message       event.Message
}

// Summary is what a listing may reveal about a session: no content, no identities.
type Summary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Session struct {
	mu             sync.RWMutex
	id             string
	name           string
	createdAt      time.Time
	lastActivityAt time.Time
	state          State
	participants   map[string]*presence.Participant
	order          []string
	content        string
	version        uint64
	applied        uint64
	now            func() time.Time
}

func NewSession(id, name string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()
	return &Session{
		id:             id,
		name:           name,
		createdAt:      at,
		lastActivityAt: at,
		state:          StateActive,
		participants:   make(map[string]*presence.Participant),
		now:            func() time.Time { return now().UTC() },
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivityAt
}

// Document returns the committed content and version.
func (s *Session) Document() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content, s.version
}

func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		ID:               s.id,
		Name:             s.name,
		ParticipantCount: len(s.participants),
		CreatedAt:        s.createdAt,
	}
}

func (s *Session) ParticipantIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Snapshot builds a session_state frame. forID fills yourUserId and may be empty.
func (s *Session) Snapshot(forID string) event.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(forID)
}

func (s *Session) snapshotLocked(forID string) event.SessionState {
	return event.SessionState{
		SessionID:  s.id,
		Name:       s.name,
		YourUserID: forID,
		Participants: lo.Map(s.order, func(id string, _ int) event.ParticipantView {
			return event.NewParticipantView(s.participants[id])
		}),
		Document: event.DocumentView{Content: s.content, Version: s.version},
	}
}

// Touch records inbound activity from participantID.
func (s *Session) Touch(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.lastActivityAt = now
	if p, ok := s.participants[participantID]; ok {
		p.Seen(now)
	}
}

// Join adds a participant, assigns its colour and returns the snapshot for
// the joiner plus the user_joined notice for everybody else.
func (s *Session) Join(participantID, displayName string, preferred presence.Color) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil, errors.ErrSessionClosed
	}
	if _, ok := s.participants[participantID]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrParticipantExists, participantID)
	}

	held := lo.Map(s.order, func(id string, _ int) presence.Color { return s.participants[id].Color })
	color := presence.AssignPreferredColor(held, preferred)

	now := s.now()
	p := presence.NewParticipant(participantID, displayName, color, now)
	s.participants[participantID] = p
	s.order = append(s.order, participantID)
	s.lastActivityAt = now

	return []Outbound{
		{Audience: Only, ParticipantID: participantID, Message: s.snapshotLocked(participantID)},
		{Audience: Others, ParticipantID: participantID, Message: event.UserJoined{User: event.NewParticipantView(p)}},
	}, nil
}

// Leave removes a participant. The returned bool reports whether the session
// is now empty.
func (s *Session) Leave(participantID string) ([]Outbound, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[participantID]; !ok {
		return nil, len(s.participants) == 0, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, participantID)
	}
	delete(s.participants, participantID)
	s.order = lo.Without(s.order, participantID)
	s.lastActivityAt = s.now()

	empty := len(s.participants) == 0
	if empty && s.state == StateActive {
		s.state = StateEmpty
	}
	return []Outbound{
		{Audience: Others, ParticipantID: participantID, Message: event.UserLeft{UserID: participantID}},
	}, empty, nil
}

// ApplyEdit applies op to the current content, whatever version the client
// based it on. Every other participant's cursor and selection is moved
// across the edit.
func (s *Session) ApplyEdit(participantID string, baseVersion uint64, op delta.Operation) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return nil, errors.ErrSessionClosed
	}
	editor, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, participantID)
	}

	before := s.content
	after, err := delta.Apply(before, op)
	if err != nil {
		return nil, err
	}

	now := s.now()
	s.content = after
	s.version++
	s.applied++
	s.lastActivityAt = now
	editor.Seen(now)

	for _, id := range s.order {
		if id == participantID {
			continue
		}
		p := s.participants[id]
		if p.Cursor != nil {
			moved := delta.TransformPosition(*p.Cursor, before, after, op)
			p.Cursor = &moved
		}
		if p.Selection != nil {
			moved := delta.TransformRange(*p.Selection, before, after, op)
			p.Selection = &moved
		}
	}

	return []Outbound{{
		Audience:      Others,
		ParticipantID: participantID,
		Message: event.DocumentEdit{
			UserID:      participantID,
			BaseVersion: baseVersion,
			Operation:   op,
			Version:     s.version,
		},
	}}, nil
}

func (s *Session) UpdateCursor(participantID string, pos delta.Position) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, participantID)
	}
	now := s.now()
	p.SetCursor(pos, now)
	s.lastActivityAt = now

	return []Outbound{{
		Audience:      Others,
		ParticipantID: participantID,
		Message:       event.CursorUpdate{UserID: participantID, Line: pos.Line, Column: pos.Column},
	}}, nil
}

func (s *Session) UpdateSelection(participantID string, r delta.Range) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, participantID)
	}
	now := s.now()
	p.SetSelection(r, now)
	s.lastActivityAt = now

	return []Outbound{{
		Audience:      Others,
		ParticipantID: participantID,
		Message:       event.SelectionUpdate{UserID: participantID, Start: r.Start, End: r.End},
	}}, nil
}

// Chat fans a message out to the other participants. Only activity changes.
func (s *Session) Chat(participantID, text, language string) ([]Outbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrParticipantNotFound, participantID)
	}
	now := s.now()
	p.Seen(now)
	s.lastActivityAt = now

	return []Outbound{{
		Audience:      Others,
		ParticipantID: participantID,
		Message: event.ChatMessage{
			UserID:    participantID,
			UserName:  p.DisplayName,
			UserColor: p.Color,
			Message:   text,
			Language:  language,
			Timestamp: &now,
		},
	}}, nil
}

// CheckInvariants verifies the version counter matches the number of edits applied.
func (s *Session) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.version != s.applied {
		return fmt.Errorf("%w: version %d, %d edits applied", errors.ErrInvariantViolation, s.version, s.applied)
	}
	if len(s.order) != len(s.participants) {
		return fmt.Errorf("%w: %d ordered participants, %d in map", errors.ErrInvariantViolation, len(s.order), len(s.participants))
	}
	return nil
}

// Resync returns a fresh session_state for every participant.
func (s *Session) Resync() []Outbound {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.order, func(id string, _ int) Outbound {
		return Outbound{Audience: Only, ParticipantID: id, Message: s.snapshotLocked(id)}
	})
}

// IdleFor reports how long the session has seen no inbound activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastActivityAt)
}

// Destroy moves the session to its terminal state and returns the archive
// record of its final document.
func (s *Session) Destroy(reason string) Archive {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDestroyed
	return Archive{
		SessionID:  s.id,
		Name:       s.name,
		Content:    s.content,
		Version:    s.version,
		CreatedAt:  s.createdAt,
		ArchivedAt: s.now(),
		Reason:     reason,
	}
}
