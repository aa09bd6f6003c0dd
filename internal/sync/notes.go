package sync

import "strings"

// notesMarker is the section header marking user-editable notes. The match
// is deliberately a substring search: a deeper heading such as "### Notes"
// also contains the marker and matches, and the first occurrence wins even
// when the marker appears at multiple depths. Existing vaults depend on this
// behavior; do not tighten it.
const notesMarker = "## Notes\n\n"

// ExtractNotes recovers the free-text Notes section from a rendered
// document. The capture runs from the first marker occurrence up to the next
// second-level section header, the next link-style line, or end of text,
// and is whitespace-trimmed. found is false when no marker exists.
func ExtractNotes(doc string) (notes string, found bool) {
	i := strings.Index(doc, notesMarker)
	if i < 0 {
		return "", false
	}
	rest := doc[i+len(notesMarker):]

	end := len(rest)
	if j := strings.Index(rest, "\n## "); j >= 0 && j < end {
		end = j
	}
	if j := strings.Index(rest, "\n["); j >= 0 && j < end {
		end = j
	}
	return strings.TrimSpace(rest[:end]), true
}
