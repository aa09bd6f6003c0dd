package sync

import (
	"context"

	"github.com/markvault/ksync/internal/karakeep"
	"github.com/markvault/ksync/internal/vault"
)

// RemoteStore is the remote bookmark API surface the reconciliation engine
// consumes. *karakeep.Client implements it; tests substitute fakes.
type RemoteStore interface {
	// ListBookmarks fetches one page of the bookmark listing.
	ListBookmarks(ctx context.Context, opts karakeep.ListOptions) (karakeep.Page, error)

	// UpdateNote partially updates a bookmark, replacing its note field.
	UpdateNote(ctx context.Context, id, note string) error

	// ListHighlights fetches every highlight across all bookmarks.
	ListHighlights(ctx context.Context) ([]karakeep.Highlight, error)

	// DownloadAsset fetches the binary content of an asset.
	DownloadAsset(ctx context.Context, id string) ([]byte, error)

	// AssetURL constructs the remote URL for an asset identifier.
	AssetURL(id string) string

	// BookmarkURL returns the canonical remote view of a bookmark.
	BookmarkURL(id string) string
}

// VaultStore is the local document storage surface the engine consumes.
// *vault.Store implements it. Paths are vault-relative with forward slashes.
type VaultStore interface {
	Exists(rel string) bool
	Read(rel string) (string, error)
	Write(rel, content string) error
	WriteBinary(rel string, data []byte) error
	Delete(rel string) error
	Rename(oldRel, newRel string) error
	List(dir string) ([]string, error)
	Frontmatter(rel string) (*vault.Frontmatter, error)
}
