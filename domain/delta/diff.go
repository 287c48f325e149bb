package delta

// Diff describes how to turn oldText into newText.
//
// It trims the common prefix and suffix and replaces whatever is left in the
// middle. The result is deterministic but not LCS-minimal.
func Diff(oldText, newText string) Operation {
	a, b := []rune(oldText), []rune(newText)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	var op Operation
	if prefix > 0 {
		op = append(op, Retain(prefix))
	}
	if deleted := len(a) - prefix - suffix; deleted > 0 {
		op = append(op, Delete(deleted))
	}
	if inserted := b[prefix : len(b)-suffix]; len(inserted) > 0 {
		op = append(op, Insert(string(inserted)))
	}
	if suffix > 0 {
		op = append(op, Retain(suffix))
	}
	return op
}
