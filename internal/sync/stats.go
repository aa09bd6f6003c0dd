package sync

import (
	"fmt"
	"strings"
	"time"
)

// Stats aggregates the counters of one reconciliation pass. Produced fresh
// each pass and never persisted beyond the summary message.
type Stats struct {
	Created          int
	Updated          int
	Skipped          int
	NotesPushed      int
	TagExcluded      int
	TagIncluded      int
	HighlightSkipped int
	Removals         Dispositions
}

// Synced is the number of bookmarks actually written this pass.
func (s Stats) Synced() int {
	return s.Created + s.Updated
}

// Result is the terminal outcome of one pass.
type Result struct {
	Message     string
	Stats       Stats
	CompletedAt time.Time
}

// BuildSyncMessage assembles the human-readable pass summary. Clause order
// is fixed; zero-count clauses are omitted; wording switches to singular
// exactly when a count is 1.
func BuildSyncMessage(st Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully synced %d %s", st.Synced(), pluralize(st.Synced(), "bookmark", "bookmarks"))

	clause(&sb, st.Skipped, "skipped %d unchanged %s", "file", "files")
	clause(&sb, st.NotesPushed, "pushed %d %s to Karakeep", "note", "notes")
	clause(&sb, st.TagExcluded, "excluded %d %s by tag", "bookmark", "bookmarks")
	clause(&sb, st.TagIncluded, "included %d %s by tag", "bookmark", "bookmarks")
	clause(&sb, st.HighlightSkipped, "skipped %d %s without highlights", "bookmark", "bookmarks")
	clause(&sb, st.Removals.Deleted, "deleted %d %s", "file", "files")
	clause(&sb, st.Removals.Moved, "moved %d %s", "file", "files")
	clause(&sb, st.Removals.Tagged, "tagged %d %s", "file", "files")
	clause(&sb, st.Removals.ArchivedHandled, "handled %d archived %s", "bookmark", "bookmarks")

	return sb.String()
}

func clause(sb *strings.Builder, n int, format, singular, plural string) {
	if n == 0 {
		return
	}
	sb.WriteString(", ")
	fmt.Fprintf(sb, format, n, pluralize(n, singular, plural))
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
