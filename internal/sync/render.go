package sync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/markvault/ksync/internal/karakeep"
	"github.com/markvault/ksync/internal/vault"
)

// yamlSpecial are the characters that force a value into a block scalar.
// The set must stay exactly as-is: documents already in vaults were written
// with it, and byte-compatibility across passes is what makes the
// skip-unchanged comparison work.
const yamlSpecial = ":#{}[],&*?|<>=!%@`"

// EscapeYAML renders a frontmatter scalar value. Values containing a
// newline or any character from yamlSpecial become a literal block scalar
// with every line indented two spaces; values containing a double quote are
// single-quoted unescaped; values containing a single quote or
// leading/trailing whitespace are double-quoted with internal double quotes
// backslash-escaped; anything else is emitted verbatim. The empty string
// renders as "" so an empty note survives the round trip as a string.
func EscapeYAML(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, yamlSpecial+"\n") {
		lines := strings.Split(value, "\n")
		return "|\n  " + strings.Join(lines, "\n  ")
	}
	if strings.Contains(value, `"`) {
		return "'" + value + "'"
	}
	if strings.Contains(value, "'") || value != strings.TrimSpace(value) {
		return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return value
}

// EscapeLinkPath wraps a Markdown link target in angle brackets when it
// contains a space or bracket-like characters.
func EscapeLinkPath(path string) string {
	if strings.ContainsAny(path, " <>[](){}") {
		return "<" + path + ">"
	}
	return path
}

// EscapeTag renders one entry of the frontmatter tag list. Internal
// whitespace becomes a hyphen, then the tag is always quoted: double quotes
// normally, single quotes when the tag itself contains a double quote.
func EscapeTag(tag string) string {
	t := whitespaceRun.ReplaceAllString(tag, "-")
	if strings.Contains(t, `"`) {
		return "'" + t + "'"
	}
	return `"` + t + `"`
}

// RenderInput carries everything the renderer needs; rendering is a pure
// function of it.
type RenderInput struct {
	Bookmark *karakeep.Bookmark
	// Title is the resolved display title.
	Title string
	// Highlights are rendered in ascending start-offset order. Pass nil
	// when highlight rendering is disabled.
	Highlights []karakeep.Highlight
	// Embeds are resolved image/asset targets (vault-relative paths or
	// remote URLs), already policy-gated by the caller.
	Embeds []string
	// RemoteURL is the canonical remote view of the bookmark.
	RemoteURL string
}

// Render serializes one reconciled bookmark into its persisted document
// text: structured header, title heading, embeds, Summary, Description,
// Highlights, the always-present Notes section, and trailing links.
func Render(in RenderInput) string {
	b := in.Bookmark
	note := ""
	if b.Note != nil {
		note = *b.Note
	}

	fm := &vault.Frontmatter{
		BookmarkID:   b.ID,
		URL:          b.Content.URL,
		Title:        in.Title,
		Date:         b.CreatedAt,
		Modified:     b.ModifiedAt,
		Tags:         SanitizeTags(b.TagNames()),
		Note:         &note,
		OriginalNote: &note,
	}
	if b.Summary != nil {
		fm.Summary = *b.Summary
	}
	if len(in.Embeds) > 0 {
		fm.Image = in.Embeds[0]
	}

	var sb strings.Builder
	sb.WriteString(RenderFrontmatter(fm))
	sb.WriteString("\n# " + in.Title + "\n")

	for _, embed := range in.Embeds {
		sb.WriteString("\n![](" + EscapeLinkPath(embed) + ")\n")
	}

	if fm.Summary != "" {
		sb.WriteString("\n## Summary\n\n" + fm.Summary + "\n")
	}
	if b.Content.Description != "" {
		sb.WriteString("\n## Description\n\n" + b.Content.Description + "\n")
	}

	if len(in.Highlights) > 0 {
		sb.WriteString("\n## Highlights\n\n")
		highlights := make([]karakeep.Highlight, len(in.Highlights))
		copy(highlights, in.Highlights)
		sort.SliceStable(highlights, func(i, j int) bool {
			return highlights[i].StartOffset < highlights[j].StartOffset
		})
		for i, h := range highlights {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "> [%s] %s (%s)\n", h.Color, h.Text, createdDate(h.CreatedAt))
			if h.Note != "" {
				sb.WriteString("\n*" + h.Note + "*\n")
			}
		}
	}

	sb.WriteString("\n## Notes\n\n" + note + "\n")

	if b.Content.Type == karakeep.ContentLink && b.Content.URL != "" {
		sb.WriteString("\n[Original](" + EscapeLinkPath(b.Content.URL) + ")\n")
	}
	sb.WriteString("\n[Open in Karakeep](" + EscapeLinkPath(in.RemoteURL) + ")\n")

	return sb.String()
}

// RenderFrontmatter serializes the structured header, delimiters included,
// in the fixed field order the document format specifies.
func RenderFrontmatter(fm *vault.Frontmatter) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	writeScalar(&sb, "bookmark_id", fm.BookmarkID)
	if fm.URL != "" {
		writeScalar(&sb, "url", fm.URL)
	}
	writeScalar(&sb, "title", fm.Title)
	writeScalar(&sb, "date", fm.Date)
	if fm.Modified != "" {
		writeScalar(&sb, "modified", fm.Modified)
	}
	if len(fm.Tags) == 0 {
		sb.WriteString("tags: []\n")
	} else {
		sb.WriteString("tags:\n")
		for _, tag := range fm.Tags {
			sb.WriteString("  - " + EscapeTag(tag) + "\n")
		}
	}
	writeScalar(&sb, "note", deref(fm.Note))
	if fm.OriginalNote != nil {
		writeScalar(&sb, "original_note", *fm.OriginalNote)
	}
	if fm.Summary != "" {
		writeScalar(&sb, "summary", fm.Summary)
	}
	if fm.Image != "" {
		writeScalar(&sb, "image", fm.Image)
	}
	sb.WriteString("---\n")
	return sb.String()
}

func writeScalar(sb *strings.Builder, key, value string) {
	sb.WriteString(key + ": " + EscapeYAML(value) + "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
