package sync

import "testing"

func TestSanitizeTag(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", "golang", "golang", true},
		{"preserved chars", "a_b/c-d", "a_b/c-d", true},
		{"whitespace to hyphen", "machine learning", "machine-learning", true},
		{"whitespace run collapses", "a \t b", "a-b", true},
		{"invalid chars stripped", "c++!", "c", true},
		{"unicode stripped", "café", "caf", true},
		{"empty", "", "", false},
		{"only whitespace", "   ", "", false},
		{"only invalid", "!!!", "", false},
		{"numeric gets prefix", "2024", "tag-2024", true},
		{"numeric with separators", "2024/01", "tag-2024/01", true},
		{"separators only", "---", "tag----", true},
		{"digit and letter", "3d", "3d", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SanitizeTag(tt.in)
			if ok != tt.ok {
				t.Fatalf("SanitizeTag(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("SanitizeTag(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTagIdempotent(t *testing.T) {
	inputs := []string{"golang", "machine learning", "2024", "c++", "a_b/c-d", "  x  "}
	for _, in := range inputs {
		once, ok := SanitizeTag(in)
		if !ok {
			continue
		}
		twice, ok := SanitizeTag(once)
		if !ok || twice != once {
			t.Errorf("SanitizeTag not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestSanitizeTags(t *testing.T) {
	got := SanitizeTags([]string{"go", "", "!!!", "deep learning", "42"})
	want := []string{"go", "deep-learning", "tag-42"}
	if len(got) != len(want) {
		t.Fatalf("SanitizeTags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SanitizeTags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEvaluateTagFilter(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		include  []string
		exclude  []string
		favorite bool
		want     bool
		reason   ExcludeReason
	}{
		{"no lists includes", []string{"a"}, nil, nil, false, true, ""},
		{"include match", []string{"go", "news"}, []string{"go"}, nil, false, true, ""},
		{"include miss", []string{"news"}, []string{"go"}, nil, false, false, ReasonMissingIncludedTag},
		{"exclude match", []string{"nsfw"}, nil, []string{"nsfw"}, false, false, ReasonExcludedTag},
		{"exclude miss", []string{"go"}, nil, []string{"nsfw"}, false, true, ""},
		{"favorite bypasses exclude", []string{"nsfw"}, nil, []string{"nsfw"}, true, true, ""},
		{"favorite does not bypass include", []string{"news"}, []string{"go"}, nil, true, false, ReasonMissingIncludedTag},
		{"include dominates exclude", []string{"news"}, []string{"go"}, []string{"news"}, true, false, ReasonMissingIncludedTag},
		{"case folded include", []string{"Go"}, []string{"gO"}, nil, false, true, ""},
		{"case folded exclude", []string{"NSFW"}, nil, []string{"nsfw"}, false, false, ReasonExcludedTag},
		{"no tags with include list", nil, []string{"go"}, nil, false, false, ReasonMissingIncludedTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := EvaluateTagFilter(tt.tags, tt.include, tt.exclude, tt.favorite)
			if got != tt.want {
				t.Fatalf("EvaluateTagFilter = %v, want %v", got, tt.want)
			}
			if reason != tt.reason {
				t.Errorf("reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}
