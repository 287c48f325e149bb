package delta

// TransformCursor returns where offset ends up once op has been applied by
// someone else.
//
// Offsets before the edit are unchanged, offsets inside a deleted span
// collapse to the start of the span and offsets after the edit shift by the
// net number of inserted runes. A cursor sitting exactly where text is
// inserted is pushed past the insertion.
func TransformCursor(offset int, op Operation) int {
	if offset < 0 {
		offset = 0
	}
	consumed, shift := 0, 0
	for _, s := range op {
		switch {
		case s.Retain != 0:
			if offset < consumed+s.Retain {
				return offset + shift
			}
			consumed += s.Retain
		case s.Delete != 0:
			if offset < consumed+s.Delete {
				return consumed + shift
			}
			consumed += s.Delete
			shift -= s.Delete
		case s.Insert != "":
			shift += len([]rune(s.Insert))
		}
	}
	if moved := offset + shift; moved > 0 {
		return moved
	}
	return 0
}

// TransformRange transforms both ends of r. Positions are read against
// before and written against after.
func TransformRange(r Range, before, after string, op Operation) Range {
	return Range{
		Start: TransformPosition(r.Start, before, after, op),
		End:   TransformPosition(r.End, before, after, op),
	}
}

// TransformPosition is TransformCursor for line/column positions.
func TransformPosition(p Position, before, after string, op Operation) Position {
	return PositionOf(after, TransformCursor(OffsetOf(before, p), op))
}
