package vault

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the typed structured header persisted at the top of every
// synced document. Note and OriginalNote are pointers so a missing field can
// be told apart from an empty one; OriginalNote is the reference note that
// anchors local-edit conflict detection.
type Frontmatter struct {
	BookmarkID   string   `yaml:"bookmark_id"`
	URL          string   `yaml:"url,omitempty"`
	Title        string   `yaml:"title"`
	Date         string   `yaml:"date"`
	Modified     string   `yaml:"modified,omitempty"`
	Tags         []string `yaml:"tags"`
	Note         *string  `yaml:"note"`
	OriginalNote *string  `yaml:"original_note"`
	Summary      string   `yaml:"summary,omitempty"`
	Image        string   `yaml:"image,omitempty"`
}

const delimiter = "---\n"

// SplitFrontmatter separates a document into its raw header text (between
// the --- delimiters, excluding them) and the body that follows the closing
// delimiter. ok is false when the document has no frontmatter block.
func SplitFrontmatter(content string) (header, body string, ok bool) {
	if !strings.HasPrefix(content, delimiter) {
		return "", "", false
	}
	rest := content[len(delimiter):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", "", false
	}
	header = rest[:end+1]
	body = rest[end+1:]
	// Drop the closing delimiter line itself.
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return header, body, true
}

// ParseFrontmatter decodes the structured header of a document.
// Documents without a header return ok=false and no error; a header that
// exists but cannot be decoded is an error.
func ParseFrontmatter(content string) (*Frontmatter, bool, error) {
	header, _, ok := SplitFrontmatter(content)
	if !ok {
		return nil, false, nil
	}
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, true, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return &fm, true, nil
}
