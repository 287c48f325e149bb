// Package delta computes, applies and reasons about text changes.
// Every function here is pure: no I/O, no shared state.
// Lengths and offsets are counted in runes so they line up with editor columns.
package delta

import (
	"collab-lab/errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Segment is one step of an Operation. Exactly one field is set.
type Segment struct {
	Retain int    `json:"retain,omitempty"`
	Insert string `json:"insert,omitempty"`
	Delete int    `json:"delete,omitempty"`
}

// Operation is an ordered list of segments covering the base text end to end.
type Operation []Segment

func Retain(n int) Segment       { return Segment{Retain: n} }
func Insert(text string) Segment { return Segment{Insert: text} }
func Delete(n int) Segment       { return Segment{Delete: n} }

// Kind returns the segment kind, or an error when zero or several fields are set.
func (s Segment) Kind() (Kind, error) {
	var kinds []Kind
	if s.Retain != 0 {
		kinds = append(kinds, KindRetain)
	}
	if s.Insert != "" {
		kinds = append(kinds, KindInsert)
	}
	if s.Delete != 0 {
		kinds = append(kinds, KindDelete)
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("%w: segment must hold exactly one of retain, insert, delete", errors.ErrMalformedOperation)
	}
	if s.Retain < 0 || s.Delete < 0 {
		return "", fmt.Errorf("%w: negative segment length", errors.ErrMalformedOperation)
	}
	return kinds[0], nil
}

// Validate checks every segment is well formed.
func (op Operation) Validate() error {
	for i, s := range op {
		if _, err := s.Kind(); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return nil
}

// BaseLen is the number of runes the operation consumes (retained + deleted).
func (op Operation) BaseLen() int {
	n := 0
	for _, s := range op {
		n += s.Retain + s.Delete
	}
	return n
}

// TargetLen is the number of runes the operation produces (retained + inserted).
func (op Operation) TargetLen() int {
	n := 0
	for _, s := range op {
		n += s.Retain + len([]rune(s.Insert))
	}
	return n
}

// IsNoop reports whether applying op leaves any base text unchanged.
func (op Operation) IsNoop() bool {
	for _, s := range op {
		if s.Insert != "" || s.Delete != 0 {
			return false
		}
	}
	return true
}

func (op Operation) String() string {
	parts := make([]string, 0, len(op))
	for _, s := range op {
		switch {
		case s.Retain != 0:
			parts = append(parts, fmt.Sprintf("retain(%d)", s.Retain))
		case s.Insert != "":
			parts = append(parts, fmt.Sprintf("insert(%q)", s.Insert))
		case s.Delete != 0:
			parts = append(parts, fmt.Sprintf("delete(%d)", s.Delete))
		}
	}
	return strings.Join(parts, " ")
}

// Apply replays op against base. It fails with ErrMalformedOperation when the
// retained and deleted lengths do not add up to the length of base.
func Apply(base string, op Operation) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	src := []rune(base)

	var b strings.Builder
	b.Grow(len(base))
	pos := 0
	for i, s := range op {
		switch {
		case s.Retain != 0:
			if s.Retain > len(src)-pos {
				return "", overrun(i, len(src))
			}
			b.WriteString(string(src[pos : pos+s.Retain]))
			pos += s.Retain
		case s.Delete != 0:
			if s.Delete > len(src)-pos {
				return "", overrun(i, len(src))
			}
			pos += s.Delete
		case s.Insert != "":
			b.WriteString(s.Insert)
		}
	}
	if pos != len(src) {
		return "", fmt.Errorf("%w: operation spans %d runes, document has %d",
			errors.ErrMalformedOperation, pos, len(src))
	}
	return b.String(), nil
}

func overrun(segment, length int) error {
	return fmt.Errorf("%w: segment %d runs past the end of a %d rune document",
		errors.ErrMalformedOperation, segment, length)
}
