package sync

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	invalidTagRun = regexp.MustCompile(`[^A-Za-z0-9_/-]+`)
	numericOnly   = regexp.MustCompile(`^[0-9/_-]+$`)
)

// SanitizeTag normalizes arbitrary text into a valid vault tag token.
// Returns ok=false when nothing usable remains.
//
// Purely numeric results (digits, optionally mixed with the separators
// / - _) get a "tag-" prefix so the token always carries at least one
// non-numeric, non-separator character.
func SanitizeTag(tag string) (string, bool) {
	t := strings.TrimSpace(tag)
	if t == "" {
		return "", false
	}
	t = whitespaceRun.ReplaceAllString(t, "-")
	t = invalidTagRun.ReplaceAllString(t, "")
	if t == "" {
		return "", false
	}
	if numericOnly.MatchString(t) {
		t = "tag-" + t
	}
	return t, true
}

// SanitizeTags filters a tag list, preserving order and dropping entries
// that do not sanitize to a valid token.
func SanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t, ok := SanitizeTag(tag); ok {
			out = append(out, t)
		}
	}
	return out
}

// ExcludeReason explains why the tag filter rejected a bookmark.
type ExcludeReason string

const (
	// ReasonMissingIncludedTag means a non-empty include list matched none
	// of the bookmark's tags.
	ReasonMissingIncludedTag ExcludeReason = "missing_included_tag"
	// ReasonExcludedTag means one of the bookmark's tags is on the exclude
	// list.
	ReasonExcludedTag ExcludeReason = "excluded_tag"
)

// EvaluateTagFilter decides whether a bookmark is included by the configured
// tag lists. The include check runs first and its verdict dominates: a
// favorite bypasses the exclude list but never the include list. Comparison
// is case-folded.
func EvaluateTagFilter(bookmarkTags, includeList, excludeList []string, favorite bool) (bool, ExcludeReason) {
	tags := make(map[string]bool, len(bookmarkTags))
	for _, t := range bookmarkTags {
		tags[strings.ToLower(t)] = true
	}

	if len(includeList) > 0 {
		matched := false
		for _, t := range includeList {
			if tags[strings.ToLower(t)] {
				matched = true
				break
			}
		}
		if !matched {
			return false, ReasonMissingIncludedTag
		}
	}

	if !favorite && len(excludeList) > 0 {
		for _, t := range excludeList {
			if tags[strings.ToLower(t)] {
				return false, ReasonExcludedTag
			}
		}
	}

	return true, ""
}
