package httpapi

import (
	"collab-lab/domain/collab"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

type snapshotView struct {
	SessionID  string    `json:"sessionId"`
	Name       string    `json:"name"`
	Version    uint64    `json:"version"`
	Reason     string    `json:"reason"`
	Length     int       `json:"length"`
	CreatedAt  time.Time `json:"createdAt"`
	ArchivedAt time.Time `json:"archivedAt"`
	Content    *string   `json:"content,omitempty"`
}

func toSnapshotView(a collab.Archive, withContent bool) snapshotView {
	v := snapshotView{
		SessionID:  a.SessionID,
		Name:       a.Name,
		Version:    a.Version,
		Reason:     a.Reason,
		Length:     utf8.RuneCountInString(a.Content),
		CreatedAt:  a.CreatedAt,
		ArchivedAt: a.ArchivedAt,
	}
	if withContent {
		v.Content = &a.Content
	}
	return v
}

func toSnapshotViews(archives []collab.Archive) []snapshotView {
	return lo.Map(archives, func(a collab.Archive, _ int) snapshotView {
		return toSnapshotView(a, false)
	})
}
