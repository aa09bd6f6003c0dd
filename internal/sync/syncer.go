package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	gosync "sync"
	"time"

	"github.com/markvault/ksync/internal/karakeep"
	"github.com/markvault/ksync/internal/logger"
	"github.com/markvault/ksync/internal/vault"
)

// ErrSyncInProgress is returned when a pass is rejected because another one
// is already running. Overlapping triggers are rejected, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrNoAPIKey is returned when a pass is aborted before any I/O because no
// remote credential is configured.
var ErrNoAPIKey = errors.New("Karakeep API key not configured")

// DefaultBackfillDelay is the quiet window before a pushed note value is
// confirmed into the original_note header field.
const DefaultBackfillDelay = 5 * time.Second

// EventType tags a sync lifecycle event.
type EventType string

const (
	EventSyncStarted  EventType = "sync_started"
	EventSyncComplete EventType = "sync_complete"
	EventSyncFailed   EventType = "sync_failed"
	EventNotePushed   EventType = "note_pushed"
)

// Event is a sync lifecycle notification, consumed by the dashboard.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Options carries optional Syncer wiring.
type Options struct {
	// HasCredentials is false when no API key is configured; passes then
	// abort before any I/O.
	HasCredentials bool
	// StatePath, when set, is where pass outcomes are recorded.
	StatePath string
	// BackfillDelay overrides DefaultBackfillDelay.
	BackfillDelay time.Duration
	// OnEvent, when set, receives lifecycle events.
	OnEvent func(Event)
	// Logger defaults to a no-op logger.
	Logger logger.Logger
}

// Syncer is the reconciliation driver. One Syncer owns the "sync in
// progress" state: at most one pass runs at a time and a second invocation
// is rejected with ErrSyncInProgress rather than queued.
type Syncer struct {
	remote RemoteStore
	vault  VaultStore
	policy Policy
	log    logger.Logger

	hasCredentials bool
	statePath      string
	backfillDelay  time.Duration
	onEvent        func(Event)

	mu       gosync.Mutex
	syncing  bool
	lastSync time.Time

	backfillMu gosync.Mutex
	backfills  map[string]*time.Timer
}

// New creates a reconciliation driver.
func New(remote RemoteStore, v VaultStore, policy Policy, opts Options) *Syncer {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	delay := opts.BackfillDelay
	if delay <= 0 {
		delay = DefaultBackfillDelay
	}
	return &Syncer{
		remote:         remote,
		vault:          v,
		policy:         policy,
		log:            log,
		hasCredentials: opts.HasCredentials,
		statePath:      opts.StatePath,
		backfillDelay:  delay,
		onEvent:        opts.OnEvent,
		backfills:      make(map[string]*time.Timer),
	}
}

// Policy returns the policy this driver runs with.
func (s *Syncer) Policy() Policy {
	return s.policy
}

// LastSync returns the completion time of the most recent successful pass,
// zero if none completed yet.
func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Run executes one reconciliation pass. Every invocation produces exactly
// one terminal outcome: a Result on success, or an error (including the
// distinct ErrSyncInProgress and ErrNoAPIKey cases). Writes committed before
// a failure are not rolled back.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	if !s.hasCredentials {
		return nil, ErrNoAPIKey
	}
	if !s.begin() {
		return nil, ErrSyncInProgress
	}
	defer s.end()

	s.emit(EventSyncStarted, "sync started")
	res, err := s.runPass(ctx)
	if err != nil {
		s.emit(EventSyncFailed, err.Error())
		s.saveState(nil, err)
		return nil, err
	}

	s.mu.Lock()
	s.lastSync = res.CompletedAt
	s.mu.Unlock()

	s.emit(EventSyncComplete, res.Message)
	s.saveState(res, nil)
	return res, nil
}

func (s *Syncer) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return false
	}
	s.syncing = true
	return true
}

func (s *Syncer) end() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}

func (s *Syncer) emit(typ EventType, msg string) {
	if s.onEvent != nil {
		s.onEvent(Event{Type: typ, Message: msg, Time: time.Now()})
	}
}

// runPass is the single linear traversal of one pass.
func (s *Syncer) runPass(ctx context.Context) (*Result, error) {
	var stats Stats

	localIDs, localByID, err := s.enumerateLocal()
	if err != nil {
		return nil, err
	}
	s.log.Infof("found %d synced documents in vault", len(localIDs))

	activeIDs, archivedIDs, err := s.fetchRemoteSets(ctx)
	if err != nil {
		return nil, err
	}

	highlightsBy := s.fetchHighlights(ctx)

	opts := karakeep.ListOptions{}
	if s.policy.ExcludeArchived {
		f := false
		opts.Archived = &f
	}
	if s.policy.OnlyFavorites {
		t := true
		opts.Favourited = &t
	}
	err = s.eachBookmark(ctx, opts, func(b *karakeep.Bookmark) error {
		return s.reconcile(ctx, b, highlightsBy, &stats)
	})
	if err != nil {
		return nil, err
	}

	instructions := ClassifyRemovals(localIDs, activeIDs, archivedIDs, s.policy)
	for _, in := range instructions {
		if err := s.applyRemoval(in, localByID[in.BookmarkID]); err != nil {
			s.log.Warnf("removal of %s failed: %v", in.BookmarkID, err)
		}
	}
	stats.Removals = CountDispositions(instructions)

	return &Result{
		Message:     BuildSyncMessage(stats),
		Stats:       stats,
		CompletedAt: time.Now(),
	}, nil
}

// enumerateLocal builds the id -> path map from the vault's sync folder.
// Documents without a structured header (or without a bookmark id) are
// ignored, not errors.
func (s *Syncer) enumerateLocal() ([]string, map[string]string, error) {
	docs, err := s.vault.List(s.policy.SyncFolder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate vault: %w", err)
	}

	var ids []string
	byID := make(map[string]string, len(docs))
	for _, doc := range docs {
		if s.underRemovalFolder(doc) {
			continue
		}
		fm, err := s.vault.Frontmatter(doc)
		if err != nil {
			s.log.Warnf("skipping %s: %v", doc, err)
			continue
		}
		if fm == nil || fm.BookmarkID == "" {
			continue
		}
		if prev, dup := byID[fm.BookmarkID]; dup {
			s.log.Warnf("duplicate documents for bookmark %s: %s and %s, keeping %s",
				fm.BookmarkID, prev, doc, prev)
			continue
		}
		byID[fm.BookmarkID] = doc
		ids = append(ids, fm.BookmarkID)
	}
	return ids, byID, nil
}

// underRemovalFolder reports whether a document already lives in the archive
// or deleted folder. Relocation is terminal: such documents are never
// candidates for another disposition, even when those folders nest inside the
// sync folder and a recursive enumeration walks them.
func (s *Syncer) underRemovalFolder(doc string) bool {
	for _, folder := range []string{s.policy.ArchiveFolder, s.policy.DeletedFolder} {
		if folder != "" && strings.HasPrefix(doc, folder+"/") {
			return true
		}
	}
	return false
}

// fetchRemoteSets fetches the remote collection twice: once restricted to
// active bookmarks and once unrestricted. The listing API only exposes an
// active/not-active axis, so the archived set is derived from the
// difference plus the archived flag.
func (s *Syncer) fetchRemoteSets(ctx context.Context) (active, archived map[string]struct{}, err error) {
	active = make(map[string]struct{})
	f := false
	err = s.eachBookmark(ctx, karakeep.ListOptions{Archived: &f}, func(b *karakeep.Bookmark) error {
		active[b.ID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch active bookmarks: %w", err)
	}

	archived = make(map[string]struct{})
	err = s.eachBookmark(ctx, karakeep.ListOptions{}, func(b *karakeep.Bookmark) error {
		if _, live := active[b.ID]; !live && b.Archived {
			archived[b.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch full bookmark set: %w", err)
	}
	return active, archived, nil
}

// fetchHighlights bulk-fetches highlights grouped by bookmark id. A failure
// degrades to zero highlights for everyone instead of aborting the pass.
func (s *Syncer) fetchHighlights(ctx context.Context) map[string][]karakeep.Highlight {
	byBookmark := make(map[string][]karakeep.Highlight)
	if !s.policy.SyncHighlights && !s.policy.OnlyWithHighlights {
		return byBookmark
	}

	highlights, err := s.remote.ListHighlights(ctx)
	if err != nil {
		s.log.Warnf("highlight fetch failed, continuing without highlights: %v", err)
		return byBookmark
	}
	for _, h := range highlights {
		byBookmark[h.BookmarkID] = append(byBookmark[h.BookmarkID], h)
	}
	return byBookmark
}

// eachBookmark pages through a bookmark listing, invoking fn per bookmark.
func (s *Syncer) eachBookmark(ctx context.Context, opts karakeep.ListOptions, fn func(*karakeep.Bookmark) error) error {
	cursor := ""
	for {
		opts.Cursor = cursor
		page, err := s.remote.ListBookmarks(ctx, opts)
		if err != nil {
			return err
		}
		for i := range page.Bookmarks {
			if err := fn(&page.Bookmarks[i]); err != nil {
				return err
			}
		}
		if page.NextCursor == nil || *page.NextCursor == "" {
			return nil
		}
		cursor = *page.NextCursor
	}
}

// reconcile processes one bookmark from the filtered traversal: filters,
// create-or-update, and the note conflict algorithm.
func (s *Syncer) reconcile(ctx context.Context, b *karakeep.Bookmark, highlightsBy map[string][]karakeep.Highlight, stats *Stats) error {
	if s.policy.OnlyWithHighlights && len(highlightsBy[b.ID]) == 0 {
		stats.HighlightSkipped++
		return nil
	}

	include, reason := EvaluateTagFilter(b.TagNames(), s.policy.IncludeTags, s.policy.ExcludeTags, b.Favourited)
	if !include {
		stats.TagExcluded++
		s.log.Debugf("excluding %s: %s", b.ID, reason)
		return nil
	}
	if len(s.policy.IncludeTags) > 0 {
		stats.TagIncluded++
	}

	title := ResolveTitle(b)
	base := BuildFileName(title, parseTimestamp(b.CreatedAt))
	docPath := path.Join(s.policy.SyncFolder, base+".md")

	var highlights []karakeep.Highlight
	if s.policy.SyncHighlights {
		highlights = highlightsBy[b.ID]
	}

	if !s.vault.Exists(docPath) {
		content := Render(RenderInput{
			Bookmark:   b,
			Title:      title,
			Highlights: highlights,
			Embeds:     s.resolveEmbeds(ctx, b, base),
			RemoteURL:  s.remote.BookmarkURL(b.ID),
		})
		if err := s.vault.Write(docPath, content); err != nil {
			return err
		}
		stats.Created++
		s.log.Infof("created %s", docPath)
		return nil
	}

	if !s.policy.UpdateExisting {
		stats.Skipped++
		return nil
	}

	existing, err := s.vault.Read(docPath)
	if err != nil {
		return err
	}
	fm, _, err := vault.ParseFrontmatter(existing)
	if err != nil {
		s.log.Warnf("%s: %v", docPath, err)
	}
	if fm != nil && fm.BookmarkID != "" && fm.BookmarkID != b.ID {
		s.log.Debugf("filename collision at %s: document belongs to %s, reconciling %s over it",
			docPath, fm.BookmarkID, b.ID)
	}

	currentNotes, hasNotes := ExtractNotes(existing)
	remoteNote := deref(b.Note)

	if fm != nil && fm.OriginalNote == nil {
		// Legacy document: no reference note to diff against. A differing
		// Notes section is pushed upstream, and the reference-note backfill
		// is deferred behind a quiet window instead of written here.
		if hasNotes && s.policy.SyncNotesUpstream &&
			strings.TrimSpace(currentNotes) != strings.TrimSpace(remoteNote) {
			if err := s.pushNote(ctx, b, currentNotes, stats); err != nil {
				s.log.Warnf("note push for %s failed: %v", b.ID, err)
			} else {
				s.scheduleBackfill(docPath, currentNotes)
				return nil
			}
		}
	} else if fm != nil && fm.OriginalNote != nil {
		ref := *fm.OriginalNote
		if hasNotes && s.policy.SyncNotesUpstream &&
			strings.TrimSpace(currentNotes) != strings.TrimSpace(ref) &&
			strings.TrimSpace(currentNotes) != strings.TrimSpace(remoteNote) {
			// Push first, then re-render with the pushed value below. The
			// ordering keeps the next pass from seeing a phantom conflict.
			if err := s.pushNote(ctx, b, currentNotes, stats); err != nil {
				s.log.Warnf("note push for %s failed: %v", b.ID, err)
			}
		}
	}

	content := Render(RenderInput{
		Bookmark:   b,
		Title:      title,
		Highlights: highlights,
		Embeds:     s.resolveEmbeds(ctx, b, base),
		RemoteURL:  s.remote.BookmarkURL(b.ID),
	})
	if content != existing {
		if err := s.vault.Write(docPath, content); err != nil {
			return err
		}
		stats.Updated++
		s.log.Infof("updated %s", docPath)
	} else {
		stats.Skipped++
	}
	return nil
}

// pushNote writes a locally-edited note upstream and adopts it in-memory so
// the subsequent render uses the pushed value.
func (s *Syncer) pushNote(ctx context.Context, b *karakeep.Bookmark, notes string, stats *Stats) error {
	if err := s.remote.UpdateNote(ctx, b.ID, notes); err != nil {
		return err
	}
	n := notes
	b.Note = &n
	stats.NotesPushed++
	s.emit(EventNotePushed, fmt.Sprintf("pushed note for %s", b.ID))
	return nil
}

// resolveEmbeds resolves image/asset embed targets for a bookmark,
// downloading assets into the attachments folder when policy asks for it.
// Individual download failures degrade to the remote asset URL.
func (s *Syncer) resolveEmbeds(ctx context.Context, b *karakeep.Bookmark, base string) []string {
	assetID := b.Content.ImageAssetID
	if assetID == "" {
		assetID = b.Content.ScreenshotAssetID
	}
	if assetID == "" && b.Content.Type == karakeep.ContentAsset && b.Content.AssetType == "image" {
		assetID = b.Content.AssetID
	}

	var embeds []string
	switch {
	case assetID != "" && s.policy.DownloadAssets:
		rel := path.Join(s.policy.AttachmentsFolder, base+"-"+assetID+".png")
		if local := s.downloadAsset(ctx, assetID, rel); local != "" {
			embeds = append(embeds, local)
		} else {
			embeds = append(embeds, s.remote.AssetURL(assetID))
		}
	case assetID != "":
		embeds = append(embeds, s.remote.AssetURL(assetID))
	case b.Content.ImageURL != "":
		embeds = append(embeds, b.Content.ImageURL)
	}
	return embeds
}

// downloadAsset fetches an asset into the vault unless it is already there.
// Returns the vault-relative path, or "" when the download failed.
func (s *Syncer) downloadAsset(ctx context.Context, assetID, rel string) string {
	if s.vault.Exists(rel) {
		return rel
	}
	data, err := s.remote.DownloadAsset(ctx, assetID)
	if err != nil {
		s.log.Warnf("asset download %s failed, embedding remote URL: %v", assetID, err)
		return ""
	}
	if err := s.vault.WriteBinary(rel, data); err != nil {
		s.log.Warnf("failed to store asset %s: %v", assetID, err)
		return ""
	}
	return rel
}

// applyRemoval executes one classifier instruction.
func (s *Syncer) applyRemoval(in RemovalInstruction, docPath string) error {
	if docPath == "" {
		return fmt.Errorf("no document for bookmark %s", in.BookmarkID)
	}
	switch in.Action {
	case ActionDelete:
		s.log.Infof("deleting %s (%s)", docPath, in.Reason)
		return s.vault.Delete(docPath)
	case ActionMove:
		target := s.relocationTarget(in, docPath)
		s.log.Infof("moving %s to %s (%s)", docPath, target, in.Reason)
		return s.vault.Rename(docPath, target)
	case ActionTag:
		tag := s.policy.removalTag(in.Reason)
		s.log.Infof("tagging %s with %s (%s)", docPath, tag, in.Reason)
		return s.addTag(docPath, tag)
	}
	return nil
}

// relocationTarget picks the destination path for a move disposition,
// resolving name collisions with an incrementing numeric suffix before the
// extension.
func (s *Syncer) relocationTarget(in RemovalInstruction, docPath string) string {
	folder := s.policy.removalFolder(in.Reason)
	name := path.Base(docPath)
	target := path.Join(folder, name)
	if !s.vault.Exists(target) {
		return target
	}
	stem := strings.TrimSuffix(name, ".md")
	for n := 1; ; n++ {
		candidate := path.Join(folder, fmt.Sprintf("%s-%d.md", stem, n))
		if !s.vault.Exists(candidate) {
			return candidate
		}
	}
}

// addTag appends a tag to a document's header tag list, deduplicated,
// rewriting only the header.
func (s *Syncer) addTag(docPath, tag string) error {
	content, err := s.vault.Read(docPath)
	if err != nil {
		return err
	}
	fm, has, err := vault.ParseFrontmatter(content)
	if err != nil {
		return err
	}
	if !has || fm == nil {
		return fmt.Errorf("%s has no frontmatter", docPath)
	}
	for _, t := range fm.Tags {
		if t == tag {
			return nil
		}
	}
	fm.Tags = append(fm.Tags, tag)

	_, body, _ := vault.SplitFrontmatter(content)
	return s.vault.Write(docPath, RenderFrontmatter(fm)+body)
}
