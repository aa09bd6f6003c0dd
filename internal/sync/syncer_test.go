package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/markvault/ksync/internal/karakeep"
	"github.com/markvault/ksync/internal/vault"
)

// fakeRemote is an in-memory RemoteStore. Bookmarks holds the full remote
// collection; the archived flag drives the active/unfiltered listing split.
type fakeRemote struct {
	bookmarks  []karakeep.Bookmark
	highlights []karakeep.Highlight
	assets     map[string][]byte

	pushedNotes map[string]string
	listErr     error
	updateErr   error
}

func newFakeRemote(bookmarks ...karakeep.Bookmark) *fakeRemote {
	return &fakeRemote{
		bookmarks:   bookmarks,
		assets:      make(map[string][]byte),
		pushedNotes: make(map[string]string),
	}
}

func (f *fakeRemote) ListBookmarks(ctx context.Context, opts karakeep.ListOptions) (karakeep.Page, error) {
	if f.listErr != nil {
		return karakeep.Page{}, f.listErr
	}
	var page karakeep.Page
	for _, b := range f.bookmarks {
		if opts.Archived != nil && b.Archived != *opts.Archived {
			continue
		}
		if opts.Favourited != nil && b.Favourited != *opts.Favourited {
			continue
		}
		page.Bookmarks = append(page.Bookmarks, b)
	}
	return page, nil
}

func (f *fakeRemote) UpdateNote(ctx context.Context, id, note string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.pushedNotes[id] = note
	for i := range f.bookmarks {
		if f.bookmarks[i].ID == id {
			n := note
			f.bookmarks[i].Note = &n
		}
	}
	return nil
}

func (f *fakeRemote) ListHighlights(ctx context.Context) ([]karakeep.Highlight, error) {
	return f.highlights, nil
}

func (f *fakeRemote) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	data, ok := f.assets[id]
	if !ok {
		return nil, fmt.Errorf("no such asset %s", id)
	}
	return data, nil
}

func (f *fakeRemote) AssetURL(id string) string {
	return "https://kk.example/api/v1/assets/" + id
}

func (f *fakeRemote) BookmarkURL(id string) string {
	return "https://kk.example/dashboard/preview/" + id
}

// fakeVault is an in-memory VaultStore keyed by vault-relative path.
type fakeVault struct {
	files map[string]string
}

func newFakeVault() *fakeVault {
	return &fakeVault{files: make(map[string]string)}
}

func (f *fakeVault) Exists(rel string) bool {
	_, ok := f.files[rel]
	return ok
}

func (f *fakeVault) Read(rel string) (string, error) {
	content, ok := f.files[rel]
	if !ok {
		return "", fmt.Errorf("no such file %s", rel)
	}
	return content, nil
}

func (f *fakeVault) Write(rel, content string) error {
	f.files[rel] = content
	return nil
}

func (f *fakeVault) WriteBinary(rel string, data []byte) error {
	f.files[rel] = string(data)
	return nil
}

func (f *fakeVault) Delete(rel string) error {
	delete(f.files, rel)
	return nil
}

func (f *fakeVault) Rename(oldRel, newRel string) error {
	content, ok := f.files[oldRel]
	if !ok {
		return fmt.Errorf("no such file %s", oldRel)
	}
	f.files[newRel] = content
	delete(f.files, oldRel)
	return nil
}

func (f *fakeVault) List(dir string) ([]string, error) {
	var out []string
	for p := range f.files {
		if strings.HasPrefix(p, dir+"/") && strings.HasSuffix(p, ".md") {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeVault) Frontmatter(rel string) (*vault.Frontmatter, error) {
	content, err := f.Read(rel)
	if err != nil {
		return nil, err
	}
	fm, _, err := vault.ParseFrontmatter(content)
	return fm, err
}

func testPolicy() Policy {
	return Policy{
		SyncFolder:        "Karakeep",
		ArchiveFolder:     "Karakeep/Archive",
		DeletedFolder:     "Karakeep/Deleted",
		AttachmentsFolder: "Karakeep/attachments",
		UpdateExisting:    true,
		SyncNotesUpstream: true,
		SyncHighlights:    true,
		DeletedTag:        "karakeep-deleted",
		ArchivedTag:       "karakeep-archived",
	}
}

func newTestSyncer(t *testing.T, remote *fakeRemote, v *fakeVault, p Policy) *Syncer {
	t.Helper()
	return New(remote, v, p, Options{
		HasCredentials: true,
		BackfillDelay:  10 * time.Millisecond,
	})
}

func articleBookmark() karakeep.Bookmark {
	return karakeep.Bookmark{
		ID:        "bk1",
		CreatedAt: "2024-01-15T10:00:00Z",
		Title:     strPtr("my article"),
		Note:      strPtr("remember this"),
		Content: karakeep.Content{
			Type: karakeep.ContentLink,
			URL:  "https://example.com/article",
		},
	}
}

const articlePath = "Karakeep/2024-01-15-my-article.md"

func TestRunCreatesDocument(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Message != "Successfully synced 1 bookmark" {
		t.Errorf("message = %q", res.Message)
	}
	if !v.Exists(articlePath) {
		t.Fatalf("document not created; vault has %v", keys(v))
	}
	if !strings.Contains(v.files[articlePath], "bookmark_id: bk1") {
		t.Error("document missing bookmark id")
	}
}

func TestRunSkipsUnchanged(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Message != "Successfully synced 0 bookmarks, skipped 1 unchanged file" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunNoCredentials(t *testing.T) {
	s := New(newFakeRemote(), newFakeVault(), testPolicy(), Options{HasCredentials: false})
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestRunSingleFlight(t *testing.T) {
	remote := newFakeRemote()
	s := newTestSyncer(t, remote, newFakeVault(), testPolicy())
	if !s.begin() {
		t.Fatal("begin failed on idle syncer")
	}
	defer s.end()

	if _, err := s.Run(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("err = %v, want ErrSyncInProgress", err)
	}
}

func TestRunRecoversAfterFailure(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	s := newTestSyncer(t, remote, newFakeVault(), testPolicy())

	remote.listErr = errors.New("remote down")
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("Run should fail while the remote is down")
	}

	remote.listErr = nil
	if _, err := s.Run(context.Background()); err != nil {
		t.Errorf("Run after recovery: %v", err)
	}
}

func TestRunEvents(t *testing.T) {
	var events []EventType
	remote := newFakeRemote(articleBookmark())
	s := New(remote, newFakeVault(), testPolicy(), Options{
		HasCredentials: true,
		OnEvent:        func(ev Event) { events = append(events, ev.Type) },
	})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 2 || events[0] != EventSyncStarted || events[1] != EventSyncComplete {
		t.Errorf("events = %v", events)
	}
}

func TestRunTagFilterCounts(t *testing.T) {
	inc := articleBookmark()
	inc.Tags = []karakeep.Tag{{Name: "keep"}}
	exc := karakeep.Bookmark{
		ID:        "bk2",
		CreatedAt: "2024-02-01T00:00:00Z",
		Title:     strPtr("other"),
		Content:   karakeep.Content{Type: karakeep.ContentLink, URL: "https://example.com/o"},
	}
	p := testPolicy()
	p.IncludeTags = []string{"keep"}

	remote := newFakeRemote(inc, exc)
	s := newTestSyncer(t, remote, newFakeVault(), p)
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.TagExcluded != 1 || res.Stats.TagIncluded != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Message != "Successfully synced 1 bookmark, excluded 1 bookmark by tag, included 1 bookmark by tag" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunOnlyWithHighlights(t *testing.T) {
	withHL := articleBookmark()
	without := karakeep.Bookmark{
		ID:        "bk2",
		CreatedAt: "2024-02-01T00:00:00Z",
		Title:     strPtr("no highlights"),
		Content:   karakeep.Content{Type: karakeep.ContentLink, URL: "https://example.com/o"},
	}
	p := testPolicy()
	p.OnlyWithHighlights = true

	remote := newFakeRemote(withHL, without)
	remote.highlights = []karakeep.Highlight{
		{ID: "h1", BookmarkID: "bk1", StartOffset: 0, Color: "yellow", Text: "hl", CreatedAt: "2024-01-16T00:00:00Z"},
	}
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, p)
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Created != 1 || res.Stats.HighlightSkipped != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if !strings.Contains(v.files[articlePath], "> [yellow] hl (2024-01-16)") {
		t.Error("highlight not rendered")
	}
}

func TestRunPushesEditedNote(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Simulate a local edit of the Notes section.
	edited := strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\nedited locally\n", 1)
	v.files[articlePath] = edited

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if remote.pushedNotes["bk1"] != "edited locally" {
		t.Errorf("pushed note = %q", remote.pushedNotes["bk1"])
	}
	if res.Stats.NotesPushed != 1 || res.Stats.Updated != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	// The rewritten document carries the pushed value in both header
	// fields, so the next pass sees no conflict.
	doc := v.files[articlePath]
	if !strings.Contains(doc, "note: edited locally\n") || !strings.Contains(doc, "original_note: edited locally\n") {
		t.Errorf("header not updated:\n%s", doc)
	}

	res, err = s.Run(context.Background())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if res.Stats.NotesPushed != 0 || res.Stats.Skipped != 1 {
		t.Errorf("third pass stats = %+v", res.Stats)
	}
}

func TestRunRemoteNoteWinsWhenLocalUnchanged(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	remote.bookmarks[0].Note = strPtr("changed remotely")
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(remote.pushedNotes) != 0 {
		t.Errorf("unexpected push: %v", remote.pushedNotes)
	}
	if res.Stats.Updated != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if !strings.Contains(v.files[articlePath], "## Notes\n\nchanged remotely\n") {
		t.Error("remote note not adopted")
	}
}

func TestRunLegacyDocumentDefersHeaderRewrite(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	// A document written before the reference-note field existed: same
	// layout, but no original_note in the header.
	legacy := `---
bookmark_id: bk1
url: |
  https://example.com/article
title: my article
date: |
  2024-01-15T10:00:00Z
tags: []
note: remember this
---

# my article

## Notes

edited before upgrade

[Open in Karakeep](https://kk.example/dashboard/preview/bk1)
`
	v.files[articlePath] = legacy

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if remote.pushedNotes["bk1"] != "edited before upgrade" {
		t.Errorf("pushed note = %q", remote.pushedNotes["bk1"])
	}
	if res.Stats.NotesPushed != 1 || res.Stats.Updated != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
	// The document body is untouched during the pass; the header rewrite
	// happens behind the quiet window.
	if v.files[articlePath] != legacy {
		t.Error("legacy document rewritten during the pass")
	}

	time.Sleep(100 * time.Millisecond)
	doc := v.files[articlePath]
	if !strings.Contains(doc, "original_note: edited before upgrade\n") {
		t.Errorf("reference note not backfilled:\n%s", doc)
	}
	if !strings.Contains(doc, "## Notes\n\nedited before upgrade\n") {
		t.Error("notes body must survive the backfill")
	}
}

func TestRunDeletesRemovedBookmark(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.SyncDeletions = true
	p.DeletionAction = ActionDelete
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	remote.bookmarks = nil
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if v.Exists(articlePath) {
		t.Error("document should be deleted")
	}
	if res.Message != "Successfully synced 0 bookmarks, deleted 1 file" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunMovesArchivedBookmark(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.ExcludeArchived = true
	p.HandleArchived = true
	p.ArchivedAction = ActionMove
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	remote.bookmarks[0].Archived = true
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	moved := path.Join(p.ArchiveFolder, "2024-01-15-my-article.md")
	if !v.Exists(moved) {
		t.Fatalf("document not moved; vault has %v", keys(v))
	}
	if v.Exists(articlePath) {
		t.Error("source document still present")
	}
	if res.Message != "Successfully synced 0 bookmarks, handled 1 archived bookmark" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunMoveIsIdempotent(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.ExcludeArchived = true
	p.HandleArchived = true
	p.ArchivedAction = ActionMove
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	remote.bookmarks[0].Archived = true
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	moved := path.Join(p.ArchiveFolder, "2024-01-15-my-article.md")
	if !v.Exists(moved) {
		t.Fatalf("document not moved; vault has %v", keys(v))
	}

	// Further passes over unchanged state leave the relocated document
	// alone: no rename, no fresh suffix, no removal clause.
	for pass := 3; pass <= 4; pass++ {
		res, err := s.Run(context.Background())
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if res.Message != "Successfully synced 0 bookmarks" {
			t.Errorf("pass %d message = %q", pass, res.Message)
		}
		if !v.Exists(moved) {
			t.Errorf("pass %d lost the archived document; vault has %v", pass, keys(v))
		}
		if v.Exists(path.Join(p.ArchiveFolder, "2024-01-15-my-article-1.md")) {
			t.Errorf("pass %d re-moved the archived document", pass)
		}
	}
}

func TestRunDeletedFolderIsTerminal(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.SyncDeletions = true
	p.DeletionAction = ActionMove
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	remote.bookmarks = nil
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	moved := path.Join(p.DeletedFolder, "2024-01-15-my-article.md")
	if !v.Exists(moved) {
		t.Fatalf("document not moved; vault has %v", keys(v))
	}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if res.Message != "Successfully synced 0 bookmarks" {
		t.Errorf("third pass message = %q", res.Message)
	}
	if !v.Exists(moved) || v.Exists(path.Join(p.DeletedFolder, "2024-01-15-my-article-1.md")) {
		t.Errorf("third pass disturbed the relocated document; vault has %v", keys(v))
	}
}

func TestRunMoveCollisionSuffix(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.SyncDeletions = true
	p.DeletionAction = ActionMove
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	// Occupy the target path.
	occupied := path.Join(p.DeletedFolder, "2024-01-15-my-article.md")
	if err := v.Write(occupied, "already here"); err != nil {
		t.Fatal(err)
	}

	remote.bookmarks = nil
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	suffixed := path.Join(p.DeletedFolder, "2024-01-15-my-article-1.md")
	if !v.Exists(suffixed) {
		t.Errorf("collision suffix missing; vault has %v", keys(v))
	}
	if v.files[occupied] != "already here" {
		t.Error("occupied target overwritten")
	}
}

func TestRunTagsDeletedBookmark(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	p.SyncDeletions = true
	p.DeletionAction = ActionTag
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	remote.bookmarks = nil
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	doc := v.files[articlePath]
	if !strings.Contains(doc, `- "karakeep-deleted"`) {
		t.Errorf("deleted tag missing:\n%s", doc)
	}
	if !strings.Contains(doc, "## Notes\n\nremember this\n") {
		t.Error("body lost during tag rewrite")
	}
	if res.Message != "Successfully synced 0 bookmarks, tagged 1 file" {
		t.Errorf("message = %q", res.Message)
	}

	// Tagging is idempotent across passes.
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if strings.Count(v.files[articlePath], `- "karakeep-deleted"`) != 1 {
		t.Error("tag duplicated")
	}
}

func TestRunSameFileNameSharesPath(t *testing.T) {
	// Two bookmarks whose titles and creation dates build the same file
	// name share one document; the later one wins the update path. No
	// suffix is invented on create.
	first := articleBookmark()
	second := articleBookmark()
	second.ID = "bk2"
	second.Note = strPtr("other note")

	remote := newFakeRemote(first, second)
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Created != 1 || res.Stats.Updated != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(v.files) != 1 {
		t.Fatalf("want exactly one document, vault has %v", keys(v))
	}
	if !strings.Contains(v.files[articlePath], "bookmark_id: bk2") {
		t.Error("later bookmark should own the shared path")
	}
}

func TestRunDownloadsAssets(t *testing.T) {
	b := articleBookmark()
	b.Content.ImageAssetID = "a1"
	remote := newFakeRemote(b)
	remote.assets["a1"] = []byte{0x89, 'P', 'N', 'G'}
	v := newFakeVault()
	p := testPolicy()
	p.DownloadAssets = true
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assetPath := "Karakeep/attachments/2024-01-15-my-article-a1.png"
	if !v.Exists(assetPath) {
		t.Fatalf("asset not downloaded; vault has %v", keys(v))
	}
	if !strings.Contains(v.files[articlePath], "![]("+assetPath+")") {
		t.Error("local asset not embedded")
	}
}

func TestRunAssetDownloadDegradesToRemoteURL(t *testing.T) {
	b := articleBookmark()
	b.Content.ImageAssetID = "missing"
	remote := newFakeRemote(b)
	v := newFakeVault()
	p := testPolicy()
	p.DownloadAssets = true
	s := newTestSyncer(t, remote, v, p)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(v.files[articlePath], "![](https://kk.example/api/v1/assets/missing)") {
		t.Error("remote asset URL not embedded on download failure")
	}
}

func keys(v *fakeVault) []string {
	out := make([]string, 0, len(v.files))
	for p := range v.files {
		out = append(out, p)
	}
	return out
}
