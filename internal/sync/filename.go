package sync

import (
	"regexp"
	"strings"
	"time"
)

// maxBaseNameLen bounds the sanitized title part of a file name. With the
// 10-character date prefix, separator, and a 3-character extension the whole
// path component stays near 50 characters.
const maxBaseNameLen = 36

var (
	fileHostile = regexp.MustCompile(`[\\/:*?"<>|]|\s+`)
	dashRun     = regexp.MustCompile(`-{2,}`)
)

// BuildFileName turns a title and creation timestamp into a
// collision-resistant, length-bounded file name of the form
// "YYYY-MM-DD-sanitized-title" (no extension). Truncation prefers a hyphen
// word boundary when the cut would land past the midpoint of a word.
func BuildFileName(title string, createdAt time.Time) string {
	date := createdAt.Format("2006-01-02")

	s := fileHostile.ReplaceAllString(title, "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = truncateAtWord(s, maxBaseNameLen)
	s = strings.TrimRight(s, "-")

	if s == "" {
		return date
	}
	return date + "-" + s
}

// truncateAtWord shortens s to at most max runes. When the cut point has
// already consumed more than half of the hyphen-delimited word it lands in,
// the cut moves back to the preceding hyphen; otherwise the word is cut
// mid-way.
func truncateAtWord(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max])
	i := strings.LastIndexByte(cut, '-')
	if i <= 0 {
		return cut
	}

	rest := string(runes[max:])
	wordEnd := len(runes)
	if j := strings.IndexByte(rest, '-'); j >= 0 {
		wordEnd = max + len([]rune(rest[:j]))
	}
	wordStart := len([]rune(cut[:i])) + 1
	wordLen := wordEnd - wordStart
	consumed := max - wordStart

	if wordLen > 0 && consumed*2 > wordLen {
		return cut[:i]
	}
	return cut
}
