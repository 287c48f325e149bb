package presence

import "github.com/samber/lo"

type Color string

// Palette is the fixed set of display colours handed out to participants.
var Palette = []Color{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

// IsPaletteColor reports whether c belongs to the palette.
func IsPaletteColor(c Color) bool {
	return lo.Contains(Palette, c)
}

// AssignColor picks the palette entry with the smallest index not present in
// held. Once every entry is taken colours are reused by rotation.
func AssignColor(held []Color) Color {
	taken := lo.SliceToMap(held, func(c Color) (Color, struct{}) { return c, struct{}{} })
	for _, c := range Palette {
		if _, ok := taken[c]; !ok {
			return c
		}
	}
	return Palette[len(held)%len(Palette)]
}

// AssignPreferredColor honours preferred when it is a palette entry nobody
// holds yet, and falls back to AssignColor otherwise.
func AssignPreferredColor(held []Color, preferred Color) Color {
	if preferred != "" && IsPaletteColor(preferred) && !lo.Contains(held, preferred) {
		return preferred
	}
	return AssignColor(held)
}
