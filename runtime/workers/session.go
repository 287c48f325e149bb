package workers

import (
	"collab-lab/contract"
	"collab-lab/domain/collab"
	"collab-lab/domain/delta"
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/observability"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

const defaultArchiveTimeout = 5 * time.Second

type SessionWorkerOptions struct {
	CommandBufferSize int
	// Strict panics on invariant violations instead of resynchronising everyone.
	Strict         bool
	ArchiveTimeout time.Duration
}

// SessionWorker is the only goroutine mutating its session. Commands are
// processed one at a time in arrival order, which is the whole ordering
// guarantee of a session.
type SessionWorker struct {
	session  *collab.Session
	commands chan command
	stopped  chan struct{}
	stopOnce sync.Once
	sinks    map[string]contract.EventSink
	archive  contract.SnapshotStore
	filter   contract.ChatFilter
	release  func(w *SessionWorker)
	options  SessionWorkerOptions
	log      *slog.Logger
}

func NewSessionWorker(
	session *collab.Session,
	archive contract.SnapshotStore,
	filter contract.ChatFilter,
	release func(w *SessionWorker),
	options SessionWorkerOptions,
	log *slog.Logger,
) *SessionWorker {
	if options.ArchiveTimeout <= 0 {
		options.ArchiveTimeout = defaultArchiveTimeout
	}
	return &SessionWorker{
		session:  session,
		commands: make(chan command, max(options.CommandBufferSize, 0)),
		stopped:  make(chan struct{}),
		sinks:    make(map[string]contract.EventSink),
		archive:  archive,
		filter:   filter,
		release:  release,
		options:  options,
		log:      log.With("session_id", session.ID()),
	}
}

type command interface{ isCommand() }

type joinCommand struct {
	req   contract.JoinRequest
	reply chan error
}

type leaveCommand struct {
	participantID string
	reply         chan error
}

type inboundCommand struct {
	participantID string
	msg           event.Inbound
}

type evictCommand struct {
	reason  string
	message string
}

func (joinCommand) isCommand()    {}
func (leaveCommand) isCommand()   {}
func (inboundCommand) isCommand() {}
func (evictCommand) isCommand()   {}

func (w *SessionWorker) ID() string                   { return w.session.ID() }
func (w *SessionWorker) Session() *collab.Session     { return w.session }
func (w *SessionWorker) Snapshot() event.SessionState { return w.session.Snapshot("") }
func (w *SessionWorker) Summary() collab.Summary      { return w.session.Summary() }

// Stopped is closed once the worker will not process any further command.
func (w *SessionWorker) Stopped() <-chan struct{} { return w.stopped }

func (w *SessionWorker) Join(ctx context.Context, req contract.JoinRequest) error {
	reply := make(chan error, 1)
	if err := w.submit(ctx, joinCommand{req: req, reply: reply}); err != nil {
		return err
	}
	return w.await(ctx, reply)
}

func (w *SessionWorker) Leave(ctx context.Context, participantID string) error {
	reply := make(chan error, 1)
	if err := w.submit(ctx, leaveCommand{participantID: participantID, reply: reply}); err != nil {
		return err
	}
	return w.await(ctx, reply)
}

func (w *SessionWorker) Dispatch(ctx context.Context, participantID string, msg event.Inbound) error {
	return w.submit(ctx, inboundCommand{participantID: participantID, msg: msg})
}

// Evict destroys the session. Attached connections get message as a terminal
// error frame before being closed.
func (w *SessionWorker) Evict(ctx context.Context, reason, message string) error {
	err := w.submit(ctx, evictCommand{reason: reason, message: message})
	if errors.Is(err, errors.ErrSessionClosed) {
		return nil
	}
	return err
}

func (w *SessionWorker) submit(ctx context.Context, cmd command) error {
	select {
	case <-w.stopped:
		return errors.ErrSessionClosed
	default:
	}
	select {
	case w.commands <- cmd:
		return nil
	case <-w.stopped:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SessionWorker) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-w.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return errors.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SessionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping session worker")
			w.destroy(ctx, "shutdown", "server shutting down")
			return ctx.Err()
		case cmd := <-w.commands:
			if done := w.handle(ctx, cmd); done {
				return nil
			}
		}
	}
}

// handle processes one command and reports whether the session is over.
func (w *SessionWorker) handle(ctx context.Context, cmd command) bool {
	switch c := cmd.(type) {
	case joinCommand:
		out, err := w.session.Join(c.req.ParticipantID, c.req.DisplayName, c.req.Color)
		if err != nil {
			c.reply <- err
			return false
		}
		w.sinks[c.req.ParticipantID] = c.req.Sink
		c.reply <- nil
		w.log.Info("Participant joined", "participant_id", c.req.ParticipantID, "name", c.req.DisplayName)
		w.deliver(ctx, out)

	case leaveCommand:
		out, empty, err := w.session.Leave(c.participantID)
		c.reply <- err
		if sink, ok := w.sinks[c.participantID]; ok {
			delete(w.sinks, c.participantID)
			sink.Close()
		}
		if err != nil {
			return false
		}
		w.log.Info("Participant left", "participant_id", c.participantID)
		w.deliver(ctx, out)
		if empty {
			w.release(w)
			w.destroy(ctx, collab.ReasonEmpty, "")
			return true
		}

	case inboundCommand:
		w.session.Touch(c.participantID)
		handler := inboundHandler{ctx: ctx, worker: w, participantID: c.participantID}
		if err := c.msg.Accept(handler); err != nil {
			w.log.Debug("Inbound message ignored", "participant_id", c.participantID,
				"type", c.msg.Type(), "error", err)
		}

	case evictCommand:
		w.destroy(ctx, c.reason, c.message)
		return true
	}

	w.verify(ctx)
	return false
}

// verify checks session invariants after every command. A violation is a bug:
// strict mode fails loudly, otherwise every participant is resynchronised.
func (w *SessionWorker) verify(ctx context.Context) {
	err := w.session.CheckInvariants()
	if err == nil {
		return
	}
	if w.options.Strict {
		panic(err)
	}
	w.log.Error("Session invariant violated, resynchronising participants", "error", err)
	w.deliver(ctx, w.session.Resync())
}

func (w *SessionWorker) destroy(ctx context.Context, reason, message string) {
	defer w.stopOnce.Do(func() { close(w.stopped) })

	archive := w.session.Destroy(reason)
	for _, id := range lo.Keys(w.sinks) {
		sink := w.sinks[id]
		if message != "" {
			_ = sink.Consume(ctx, event.Error{Message: message})
		}
		sink.Close()
		delete(w.sinks, id)
	}
	observability.SessionsDestroyed.WithLabelValues(reason).Inc()
	w.log.Info("Session destroyed", "reason", reason, "version", archive.Version)

	if w.archive == nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.options.ArchiveTimeout)
	defer cancel()
	if err := w.archive.Save(archiveCtx, archive); err != nil {
		observability.SnapshotWrites.WithLabelValues("error").Inc()
		w.log.Warn("Failed to archive session", "error", err)
		return
	}
	observability.SnapshotWrites.WithLabelValues("ok").Inc()
}

// deliver routes frames to connection sinks. It never blocks: a sink that
// fails to accept a frame tears its own connection down.
func (w *SessionWorker) deliver(ctx context.Context, out []collab.Outbound) {
	for _, o := range out {
		for _, id := range w.recipients(o) {
			sink, ok := w.sinks[id]
			if !ok {
				continue
			}
			if err := sink.Consume(ctx, o.Message); err != nil {
				observability.DroppedFrames.Inc()
				w.log.Warn("Failed to deliver frame", "participant_id", id, "type", o.Message.Type(), "error", err)
			}
		}
	}
}

func (w *SessionWorker) recipients(o collab.Outbound) []string {
	switch o.Audience {
	case collab.Only:
		return []string{o.ParticipantID}
	case collab.Others:
		return lo.Without(w.session.ParticipantIDs(), o.ParticipantID)
	default:
		return w.session.ParticipantIDs()
	}
}

type inboundHandler struct {
	ctx           context.Context
	worker        *SessionWorker
	participantID string
}

func (h inboundHandler) VisitCursorUpdate(m event.CursorUpdate) error {
	out, err := h.worker.session.UpdateCursor(h.participantID, delta.Position{Line: m.Line, Column: m.Column})
	if err != nil {
		return err
	}
	h.worker.deliver(h.ctx, out)
	return nil
}

func (h inboundHandler) VisitSelectionUpdate(m event.SelectionUpdate) error {
	out, err := h.worker.session.UpdateSelection(h.participantID, delta.Range{Start: m.Start, End: m.End})
	if err != nil {
		return err
	}
	h.worker.deliver(h.ctx, out)
	return nil
}

func (h inboundHandler) VisitDocumentEdit(m event.DocumentEdit) error {
	w := h.worker
	out, err := w.session.ApplyEdit(h.participantID, m.BaseVersion, m.Operation)
	if errors.Is(err, errors.ErrMalformedOperation) {
		observability.EditsRejected.Inc()
		w.log.Debug("Edit rejected, resynchronising sender", "participant_id", h.participantID, "error", err)
		w.deliver(h.ctx, []collab.Outbound{
			{Audience: collab.Only, ParticipantID: h.participantID, Message: event.Error{Message: err.Error(), Resync: true}},
			{Audience: collab.Only, ParticipantID: h.participantID, Message: w.session.Snapshot(h.participantID)},
		})
		return nil
	}
	if err != nil {
		return err
	}

	observability.EditsApplied.Inc()
	if edit, ok := out[0].Message.(event.DocumentEdit); ok && m.BaseVersion+1 != edit.Version {
		// Last applied wins: the operation is replayed on the current content.
		observability.StaleEdits.Inc()
		w.log.Debug("Edit based on an older version", "participant_id", h.participantID,
			"base_version", m.BaseVersion, "version", edit.Version)
	}
	w.deliver(h.ctx, out)
	return nil
}

func (h inboundHandler) VisitChatMessage(m event.ChatMessage) error {
	content, language := m.Message, ""
	if h.worker.filter != nil {
		content, language = h.worker.filter.Filter(m.Message)
	}
	out, err := h.worker.session.Chat(h.participantID, content, language)
	if err != nil {
		return err
	}
	h.worker.deliver(h.ctx, out)
	return nil
}

func (h inboundHandler) VisitPing(event.Ping) error {
	h.worker.deliver(h.ctx, []collab.Outbound{{Audience: collab.Only, ParticipantID: h.participantID, Message: event.Pong{}}})
	return nil
}

// VisitPong has nothing left to do: activity was recorded on receipt.
func (h inboundHandler) VisitPong(event.Pong) error {
	return nil
}
