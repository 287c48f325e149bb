package delta

// Position is a zero-based line/column pair. Columns count runes.
type Position struct {
	Line   int `json:"line" validate:"gte=0"`
	Column int `json:"column" validate:"gte=0"`
}

// Range is a selection between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// OffsetOf converts p into a rune offset within text, clamping positions that
// fall past the end of a line or of the document.
func OffsetOf(text string, p Position) int {
	line, col, offset := 0, 0, 0
	for _, r := range text {
		if line == p.Line && col == p.Column {
			return offset
		}
		if r == '\n' {
			if line == p.Line {
				return offset
			}
			line++
			col = 0
		} else {
			col++
		}
		offset++
	}
	return offset
}

// PositionOf converts a rune offset into a position, clamping to the end of text.
func PositionOf(text string, offset int) Position {
	var p Position
	i := 0
	for _, r := range text {
		if i >= offset {
			break
		}
		if r == '\n' {
			p.Line++
			p.Column = 0
		} else {
			p.Column++
		}
		i++
	}
	return p
}
