// Package event defines the frames exchanged with realtime clients.
//
// Message is a closed set: only types declared in this package satisfy it.
// Frames a client may send additionally implement Inbound and are dispatched
// through InboundVisitor, so a new inbound kind cannot be added without every
// visitor handling it.
package event

import (
	"collab-lab/domain/delta"
	"collab-lab/domain/presence"
	"time"
)

type MessageType string

const (
	CursorUpdateType    MessageType = "cursor_update"
	SelectionUpdateType MessageType = "selection_update"
	DocumentEditType    MessageType = "document_edit"
	ChatMessageType     MessageType = "chat_message"
	UserJoinedType      MessageType = "user_joined"
	UserLeftType        MessageType = "user_left"
	SessionStateType    MessageType = "session_state"
	PingType            MessageType = "ping"
	PongType            MessageType = "pong"
	ErrorType           MessageType = "error"
)

type Message interface {
	Type() MessageType
	sealed()
}

// CursorUpdate is sent by a client without UserID and echoed to the others with it.
type CursorUpdate struct {
	UserID string `json:"userId,omitempty"`
	Line   int    `json:"line" validate:"gte=0"`
	Column int    `json:"column" validate:"gte=0"`
}

type SelectionUpdate struct {
	UserID string         `json:"userId,omitempty"`
	Start  delta.Position `json:"start"`
	End    delta.Position `json:"end"`
}

// DocumentEdit carries one operation. BaseVersion is the version the client
// computed the operation against; Version is set by the server on broadcast.
type DocumentEdit struct {
	UserID      string          `json:"userId,omitempty"`
	BaseVersion uint64          `json:"baseVersion,omitempty"`
	Operation   delta.Operation `json:"operation"`
	Version     uint64          `json:"version,omitempty"`
}

type ChatMessage struct {
	UserID    string         `json:"userId,omitempty"`
	UserName  string         `json:"userName,omitempty"`
	UserColor presence.Color `json:"userColor,omitempty"`
	Message   string         `json:"message" validate:"required,max=4000"`
	Language  string         `json:"language,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

type UserJoined struct {
	User ParticipantView `json:"user"`
}

type UserLeft struct {
	UserID string `json:"userId"`
}

// SessionState is the full snapshot sent on join and on resynchronisation.
type SessionState struct {
	SessionID    string            `json:"sessionId"`
	Name         string            `json:"name"`
	YourUserID   string            `json:"yourUserId,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Document     DocumentView      `json:"document"`
}

type Ping struct{}

type Pong struct{}

type Error struct {
	Message string `json:"message"`
	// Resync tells the client its local document must be replaced by the
	// session_state that follows.
	Resync bool `json:"resync,omitempty"`
}

type ParticipantView struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Color       presence.Color  `json:"color"`
	Cursor      *delta.Position `json:"cursor,omitempty"`
	Selection   *delta.Range    `json:"selection,omitempty"`
}

type DocumentView struct {
	Content string `json:"content"`
	Version uint64 `json:"version"`
}

func NewParticipantView(p *presence.Participant) ParticipantView {
	return ParticipantView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Color:       p.Color,
		Cursor:      p.Cursor,
		Selection:   p.Selection,
	}
}

func (CursorUpdate) Type() MessageType    { return CursorUpdateType }
func (SelectionUpdate) Type() MessageType { return SelectionUpdateType }
func (DocumentEdit) Type() MessageType    { return DocumentEditType }
func (ChatMessage) Type() MessageType     { return ChatMessageType }
func (UserJoined) Type() MessageType      { return UserJoinedType }
func (UserLeft) Type() MessageType        { return UserLeftType }
func (SessionState) Type() MessageType    { return SessionStateType }
func (Ping) Type() MessageType            { return PingType }
func (Pong) Type() MessageType            { return PongType }
func (Error) Type() MessageType           { return ErrorType }

func (CursorUpdate) sealed()    {}
func (SelectionUpdate) sealed() {}
func (DocumentEdit) sealed()    {}
func (ChatMessage) sealed()     {}
func (UserJoined) sealed()      {}
func (UserLeft) sealed()        {}
func (SessionState) sealed()    {}
func (Ping) sealed()            {}
func (Pong) sealed()            {}
func (Error) sealed()           {}
