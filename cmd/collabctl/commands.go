package main

import (
	"collab-lab/domain/collab"
	"collab-lab/domain/event"
	"collab-lab/domain/presence"
	"collab-lab/repositories"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func heading(text string) string {
	return color.New(color.BgBlack, color.FgGreen).Render(text)
}

// swatch renders a participant name in its session colour.
func swatch(c presence.Color, name string) string {
	return color.HEX(string(c)).Sprint("● " + name)
}

func listSessions(ctx context.Context, client apiClient, out io.Writer) error {
	sessions, err := client.Sessions(ctx)
	if err != nil {
		return err
	}
	table := newTable(out, "ID", "Name", "Participants", "Created")
	for _, s := range sessions {
		table.Append([]string{s.ID, s.Name, strconv.Itoa(s.ParticipantCount), s.CreatedAt.Local().Format(time.DateTime)})
	}
	table.Render()
	return nil
}

func showSession(ctx context.Context, client apiClient, id string, out io.Writer) error {
	state, err := client.Session(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, heading(fmt.Sprintf(" %s (%s) version %d ", state.Name, state.SessionID, state.Document.Version)))

	table := newTable(out, "Participant", "ID", "Cursor", "Selection")
	for _, p := range state.Participants {
		table.Append([]string{swatch(p.Color, p.DisplayName), p.ID, formatCursor(p), formatSelection(p)})
	}
	table.Render()

	fmt.Fprintln(out)
	fmt.Fprintln(out, state.Document.Content)
	return nil
}

func formatCursor(p event.ParticipantView) string {
	if p.Cursor == nil {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Cursor.Line, p.Cursor.Column)
}

func formatSelection(p event.ParticipantView) string {
	if p.Selection == nil {
		return "-"
	}
	return fmt.Sprintf("%d:%d-%d:%d", p.Selection.Start.Line, p.Selection.Start.Column, p.Selection.End.Line, p.Selection.End.Column)
}

// tailSession joins as an observer and prints every frame until interrupted
// or the server closes the session.
func tailSession(ctx context.Context, client apiClient, id, user string, out io.Writer) error {
	conn, err := client.Dial(ctx, id, user)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}()

	names := map[string]event.ParticipantView{}
	who := func(userID string) string {
		if p, ok := names[userID]; ok {
			return swatch(p.Color, p.DisplayName)
		}
		return userID
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		msg, err := event.Decode(data)
		if err != nil {
			fmt.Fprintf(out, "? %s\n", data)
			continue
		}

		stamp := time.Now().Format(time.TimeOnly)
		switch m := msg.(type) {
		case event.Ping:
			pong, _ := event.Encode(event.Pong{})
			if err := conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return err
			}
		case event.SessionState:
			for _, p := range m.Participants {
				names[p.ID] = p
			}
			fmt.Fprintf(out, "%s %s %d participant(s), version %d\n", stamp, heading(" "+m.Name+" "), len(m.Participants), m.Document.Version)
		case event.UserJoined:
			names[m.User.ID] = m.User
			fmt.Fprintf(out, "%s + %s\n", stamp, who(m.User.ID))
		case event.UserLeft:
			fmt.Fprintf(out, "%s - %s\n", stamp, who(m.UserID))
			delete(names, m.UserID)
		case event.DocumentEdit:
			fmt.Fprintf(out, "%s %s v%d %s\n", stamp, who(m.UserID), m.Version, m.Operation)
		case event.CursorUpdate:
			fmt.Fprintf(out, "%s %s cursor %d:%d\n", stamp, who(m.UserID), m.Line, m.Column)
		case event.SelectionUpdate:
			fmt.Fprintf(out, "%s %s selection %d:%d-%d:%d\n", stamp, who(m.UserID), m.Start.Line, m.Start.Column, m.End.Line, m.End.Column)
		case event.ChatMessage:
			fmt.Fprintf(out, "%s %s: %s\n", stamp, who(m.UserID), m.Message)
		case event.Error:
			fmt.Fprintf(out, "%s %s\n", stamp, color.Red.Sprint("error: "+m.Message))
		}
	}
}

func listSnapshots(ctx context.Context, client apiClient, dbPath, id string, out io.Writer) error {
	var (
		snapshots []snapshot
		err       error
	)
	if dbPath != "" {
		snapshots, err = readBadgerSnapshots(ctx, dbPath, id)
	} else if id != "" {
		var s snapshot
		s, err = client.Snapshot(ctx, id)
		snapshots = []snapshot{s}
	} else {
		snapshots, err = client.Snapshots(ctx)
	}
	if err != nil {
		return err
	}

	if id != "" && len(snapshots) == 1 && snapshots[0].Content != nil {
		s := snapshots[0]
		fmt.Fprintln(out, heading(fmt.Sprintf(" %s (%s) version %d, %s ", s.Name, s.SessionID, s.Version, s.Reason)))
		fmt.Fprintln(out, *s.Content)
		return nil
	}

	table := newTable(out, "ID", "Name", "Version", "Length", "Reason", "Archived")
	for _, s := range snapshots {
		table.Append([]string{s.SessionID, s.Name, strconv.FormatUint(s.Version, 10), strconv.Itoa(s.Length), s.Reason, s.ArchivedAt.Local().Format(time.DateTime)})
	}
	table.Render()
	return nil
}

// readBadgerSnapshots opens the archive read-only, so it works next to a running collabd.
func readBadgerSnapshots(ctx context.Context, path, id string) ([]snapshot, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repository := repositories.NewSnapshotRepository(db, slog.New(slog.DiscardHandler))
	if id != "" {
		archive, err := repository.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return []snapshot{{
			SessionID: archive.SessionID, Name: archive.Name, Version: archive.Version, Reason: archive.Reason,
			Length: len([]rune(archive.Content)), CreatedAt: archive.CreatedAt, ArchivedAt: archive.ArchivedAt,
			Content: &archive.Content,
		}}, nil
	}

	archives, err := repository.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(archives, func(a collab.Archive, _ int) snapshot {
		return snapshot{
			SessionID: a.SessionID, Name: a.Name, Version: a.Version, Reason: a.Reason,
			Length: len([]rune(a.Content)), CreatedAt: a.CreatedAt, ArchivedAt: a.ArchivedAt,
		}
	}), nil
}
