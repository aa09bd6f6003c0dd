package sync

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/markvault/ksync/internal/karakeep"
)

// maxTextTitleLen caps titles derived from text content.
const maxTextTitleLen = 100

// ResolveTitle derives a non-empty, deterministic display title for a
// bookmark. Priority: explicit bookmark title, then the content variant's
// own title, then a structural fallback built from the identifier and
// creation date.
func ResolveTitle(b *karakeep.Bookmark) string {
	if b.Title != nil && strings.TrimSpace(*b.Title) != "" {
		return strings.TrimSpace(*b.Title)
	}

	switch b.Content.Type {
	case karakeep.ContentLink:
		if b.Content.Title != "" {
			return b.Content.Title
		}
		if t := titleFromURL(b.Content.URL); t != "" {
			return t
		}
	case karakeep.ContentText:
		if t := titleFromText(b.Content.Text); t != "" {
			return t
		}
	case karakeep.ContentAsset:
		if b.Content.FileName != "" {
			if t := stripExtension(b.Content.FileName); t != "" {
				return t
			}
		}
		if b.Content.SourceURL != "" {
			if t := titleFromURL(b.Content.SourceURL); t != "" {
				return t
			}
		}
	}

	return fmt.Sprintf("Bookmark-%s-%s", b.ID, createdDate(b.CreatedAt))
}

// titleFromText takes the first line of text content, truncating to
// maxTextTitleLen characters with a trailing ellipsis.
func titleFromText(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	runes := []rune(line)
	if len(runes) <= maxTextTitleLen {
		return line
	}
	return string(runes[:maxTextTitleLen-3]) + "..."
}

// titleFromURL derives a readable title from a URL: the last non-empty path
// segment with its extension stripped and separators turned into spaces,
// falling back to the hostname without a leading "www.". If the URL does not
// parse at all, the raw string is returned.
func titleFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" {
			continue
		}
		seg = stripExtension(seg)
		seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
		if seg = strings.TrimSpace(seg); seg != "" {
			return seg
		}
		break
	}

	return strings.TrimPrefix(u.Hostname(), "www.")
}

// stripExtension removes the substring after the last dot. A leading dot is
// not treated as an extension.
func stripExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// createdDate renders the ISO calendar date of an opaque RFC3339 timestamp.
// Unparseable timestamps yield the zero date so the fallback title stays
// deterministic.
func createdDate(ts string) string {
	return parseTimestamp(ts).Format("2006-01-02")
}

// parseTimestamp parses an opaque remote timestamp, returning the zero time
// when it does not parse.
func parseTimestamp(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	return time.Time{}
}
