package delta

import (
	"collab-lab/errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff_RoundTrip(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name string
		old  string
		new  string
	}{
		{name: "Both empty", old: "", new: ""},
		{name: "Insert into empty", old: "", new: "hello"},
		{name: "Delete everything", old: "hello", new: ""},
		{name: "Identical", old: "same text", new: "same text"},
		{name: "Append", old: "hello", new: "hello world"},
		{name: "Prepend", old: "world", new: "hello world"},
		{name: "Middle replacement", old: "the quick fox", new: "the slow fox"},
		{name: "Repeated characters", old: "aaaa", new: "aa"},
		{name: "Multi line", old: "line one\nline two", new: "line one\nline 2\nline three"},
		{name: "Unicode", old: "un été", new: "un hiver été"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Diff(tt.old, tt.new)
			got, err := Apply(tt.old, op)
			req.NoError(err)
			req.Equal(tt.new, got, "op=%s", op)
		})
	}
}

func TestDiff_RoundTripRandom(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("ab\né ")

	randomText := func() string {
		n := rng.Intn(12)
		out := make([]rune, n)
		for i := range out {
			out[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(out)
	}

	for i := 0; i < 2000; i++ {
		a, b := randomText(), randomText()
		got, err := Apply(a, Diff(a, b))
		req.NoError(err)
		req.Equal(b, got, "a=%q b=%q", a, b)
	}
}

func TestDiff_Deterministic(t *testing.T) {
	req := require.New(t)
	first := Diff("the quick fox", "the slow fox")
	second := Diff("the quick fox", "the slow fox")
	req.Equal(first, second)
	req.Equal(Operation{Retain(4), Delete(5), Insert("slow"), Retain(4)}, first)
}

func TestDiff_EmptyWhenUnchanged(t *testing.T) {
	req := require.New(t)
	req.Equal(Operation{Retain(5)}, Diff("hello", "hello"))
	req.Empty(Diff("", ""))
}

func TestApply_MalformedOperation(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name string
		base string
		op   Operation
	}{
		{name: "Too short", base: "hello", op: Operation{Retain(3)}},
		{name: "Too long", base: "hi", op: Operation{Retain(2), Delete(1)}},
		{name: "Empty segment", base: "hi", op: Operation{{}, Retain(2)}},
		{name: "Two fields set", base: "hi", op: Operation{{Retain: 1, Insert: "x"}, Retain(1)}},
		{name: "Negative length", base: "hi", op: Operation{Retain(-1), Retain(3)}},
		{name: "Retain lengths wrapping around", base: "ab", op: Operation{Retain(math.MaxInt), Retain(math.MaxInt), Retain(4)}},
		{name: "Delete lengths wrapping around", base: "ab", op: Operation{Delete(math.MaxInt), Delete(math.MaxInt), Retain(4)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.base, tt.op)
			req.ErrorIs(err, errors.ErrMalformedOperation)
		})
	}
}

func TestApply_InsertAtStart(t *testing.T) {
	req := require.New(t)
	got, err := Apply("", Operation{Insert("hello")})
	req.NoError(err)
	req.Equal("hello", got)
}

func TestTransformCursor_DeleteRange(t *testing.T) {
	req := require.New(t)

	// Given a 20 character document where [5,10) is deleted
	op := Operation{Retain(5), Delete(5), Retain(10)}

	// Then offsets before the edit are unchanged
	req.Equal(3, TransformCursor(3, op))
	// And offsets inside the deleted span collapse to its start
	req.Equal(5, TransformCursor(7, op))
	req.Equal(5, TransformCursor(5, op))
	// And offsets after the edit shift back by the deleted length
	req.Equal(5, TransformCursor(10, op))
	req.Equal(10, TransformCursor(15, op))
	req.Equal(15, TransformCursor(20, op))
}

func TestTransformCursor_Insert(t *testing.T) {
	req := require.New(t)
	op := Operation{Retain(5), Insert("abc"), Retain(5)}

	req.Equal(4, TransformCursor(4, op))
	req.Equal(8, TransformCursor(5, op))
	req.Equal(10, TransformCursor(7, op))
}

func TestTransformCursor_Replace(t *testing.T) {
	req := require.New(t)
	op := Diff("0123456789", "01XY89")

	req.Equal(1, TransformCursor(1, op))
	req.Equal(2, TransformCursor(5, op))
	req.Equal(4, TransformCursor(8, op))
	req.Equal(6, TransformCursor(10, op))
}

func TestTransformCursor_NeverNegative(t *testing.T) {
	req := require.New(t)
	req.Equal(0, TransformCursor(-3, Operation{Delete(2)}))
	req.Equal(0, TransformCursor(1, Operation{Delete(2)}))
}

func TestPosition_OffsetConversion(t *testing.T) {
	req := require.New(t)
	text := "ab\ncde\n\nf"

	tests := []struct {
		pos    Position
		offset int
	}{
		{Position{0, 0}, 0},
		{Position{0, 2}, 2},
		{Position{1, 0}, 3},
		{Position{1, 3}, 6},
		{Position{2, 0}, 7},
		{Position{3, 1}, 9},
	}
	for _, tt := range tests {
		req.Equal(tt.offset, OffsetOf(text, tt.pos), "pos=%+v", tt.pos)
		req.Equal(tt.pos, PositionOf(text, tt.offset), "offset=%d", tt.offset)
	}

	// Out of range positions are clamped
	req.Equal(2, OffsetOf(text, Position{0, 40}))
	req.Equal(9, OffsetOf(text, Position{12, 0}))
	req.Equal(Position{3, 1}, PositionOf(text, 100))
}

func TestTransformPosition_AcrossLines(t *testing.T) {
	req := require.New(t)
	before := "hello\nworld"
	after := "hi\nhello\nworld"
	op := Diff(before, after)

	got := TransformPosition(Position{Line: 1, Column: 2}, before, after, op)
	req.Equal(Position{Line: 2, Column: 2}, got)

	sel := TransformRange(Range{Start: Position{0, 1}, End: Position{1, 3}}, before, after, op)
	req.Equal(Range{Start: Position{1, 1}, End: Position{2, 3}}, sel)
}

func TestOperation_Lengths(t *testing.T) {
	req := require.New(t)
	op := Operation{Retain(2), Insert("été"), Delete(4), Retain(1)}
	req.Equal(7, op.BaseLen())
	req.Equal(6, op.TargetLen())
	req.False(op.IsNoop())
	req.True(Operation{Retain(3)}.IsNoop())
	req.Equal(`retain(2) insert("été") delete(4) retain(1)`, op.String())
}
