package event

// Inbound is a message a client is allowed to send.
type Inbound interface {
	Message
	Accept(v InboundVisitor) error
}

// InboundVisitor handles every inbound message kind.
type InboundVisitor interface {
	VisitCursorUpdate(m CursorUpdate) error
	VisitSelectionUpdate(m SelectionUpdate) error
	VisitDocumentEdit(m DocumentEdit) error
	VisitChatMessage(m ChatMessage) error
	VisitPing(m Ping) error
	VisitPong(m Pong) error
}

func (m CursorUpdate) Accept(v InboundVisitor) error    { return v.VisitCursorUpdate(m) }
func (m SelectionUpdate) Accept(v InboundVisitor) error { return v.VisitSelectionUpdate(m) }
func (m DocumentEdit) Accept(v InboundVisitor) error    { return v.VisitDocumentEdit(m) }
func (m ChatMessage) Accept(v InboundVisitor) error     { return v.VisitChatMessage(m) }
func (m Ping) Accept(v InboundVisitor) error            { return v.VisitPing(m) }
func (m Pong) Accept(v InboundVisitor) error            { return v.VisitPong(m) }
