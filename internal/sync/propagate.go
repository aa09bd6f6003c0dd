package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/markvault/ksync/internal/vault"
)

// PropagateLocalEdit handles one observed local document modification:
// if the document's Notes section no longer matches its reference note, the
// new text is pushed upstream and the reference-note backfill is scheduled.
// The caller is expected to debounce rapid modifications before invoking
// this; the backfill carries its own second quiet window.
func (s *Syncer) PropagateLocalEdit(ctx context.Context, docPath string) error {
	if !s.policy.SyncNotesUpstream {
		return nil
	}

	content, err := s.vault.Read(docPath)
	if err != nil {
		return err
	}
	fm, has, err := vault.ParseFrontmatter(content)
	if err != nil {
		return err
	}
	if !has || fm == nil || fm.BookmarkID == "" {
		return nil
	}

	notes, found := ExtractNotes(content)
	if !found {
		return nil
	}

	ref := ""
	switch {
	case fm.OriginalNote != nil:
		ref = *fm.OriginalNote
	case fm.Note != nil:
		ref = *fm.Note
	}
	if strings.TrimSpace(notes) == strings.TrimSpace(ref) {
		return nil
	}

	if err := s.remote.UpdateNote(ctx, fm.BookmarkID, notes); err != nil {
		return fmt.Errorf("failed to push note for %s: %w", fm.BookmarkID, err)
	}
	s.log.Infof("pushed edited note for %s", fm.BookmarkID)
	s.emit(EventNotePushed, fmt.Sprintf("pushed note for %s", fm.BookmarkID))

	s.scheduleBackfill(docPath, notes)
	return nil
}

// scheduleBackfill arms the delayed, confirm-before-write update of the
// reference-note field. A newer schedule for the same document supersedes a
// pending one.
func (s *Syncer) scheduleBackfill(docPath, notes string) {
	s.backfillMu.Lock()
	defer s.backfillMu.Unlock()

	if t, ok := s.backfills[docPath]; ok {
		t.Stop()
	}
	s.backfills[docPath] = time.AfterFunc(s.backfillDelay, func() {
		s.backfillMu.Lock()
		delete(s.backfills, docPath)
		s.backfillMu.Unlock()

		if err := s.backfillOriginalNote(docPath, notes); err != nil {
			s.log.Warnf("reference note backfill for %s failed: %v", docPath, err)
		}
	})
}

// CancelBackfills stops any pending reference-note writes. Called on
// shutdown.
func (s *Syncer) CancelBackfills() {
	s.backfillMu.Lock()
	defer s.backfillMu.Unlock()
	for docPath, t := range s.backfills {
		t.Stop()
		delete(s.backfills, docPath)
	}
}

// backfillOriginalNote writes the pushed note value into the note and
// original_note header fields, re-validating first that the Notes section
// has not changed again in the interim. Last write wins within the window;
// nothing is merged.
func (s *Syncer) backfillOriginalNote(docPath, expected string) error {
	content, err := s.vault.Read(docPath)
	if err != nil {
		return err
	}
	current, found := ExtractNotes(content)
	if !found || strings.TrimSpace(current) != strings.TrimSpace(expected) {
		// Notes moved on; a fresher push/backfill owns this document now.
		return nil
	}

	fm, has, err := vault.ParseFrontmatter(content)
	if err != nil {
		return err
	}
	if !has || fm == nil {
		return nil
	}

	n := expected
	fm.Note = &n
	fm.OriginalNote = &n

	_, body, _ := vault.SplitFrontmatter(content)
	return s.vault.Write(docPath, RenderFrontmatter(fm)+body)
}
