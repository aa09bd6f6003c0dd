package sync

import (
	"context"
	"strings"
	"testing"
	"time"
)

func seedDocument(t *testing.T, remote *fakeRemote, v *fakeVault, s *Syncer) {
	t.Helper()
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("seed Run: %v", err)
	}
	if !v.Exists(articlePath) {
		t.Fatal("seed document missing")
	}
}

func TestPropagateLocalEdit(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())
	seedDocument(t, remote, v, s)

	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\nfresh thought\n", 1)

	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}
	if remote.pushedNotes["bk1"] != "fresh thought" {
		t.Errorf("pushed note = %q", remote.pushedNotes["bk1"])
	}

	// The reference note catches up after the quiet window.
	time.Sleep(100 * time.Millisecond)
	doc := v.files[articlePath]
	if !strings.Contains(doc, "original_note: fresh thought\n") {
		t.Errorf("reference note not backfilled:\n%s", doc)
	}
	if !strings.Contains(doc, "note: fresh thought\n") {
		t.Errorf("note field not backfilled:\n%s", doc)
	}
}

func TestPropagateLocalEditUnchangedIsNoop(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())
	seedDocument(t, remote, v, s)

	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}
	if len(remote.pushedNotes) != 0 {
		t.Errorf("unexpected push: %v", remote.pushedNotes)
	}
}

func TestPropagateLocalEditDisabledByPolicy(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	p := testPolicy()
	s := newTestSyncer(t, remote, v, p)
	seedDocument(t, remote, v, s)

	p.SyncNotesUpstream = false
	s2 := newTestSyncer(t, remote, v, p)
	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\nchanged\n", 1)

	if err := s2.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}
	if len(remote.pushedNotes) != 0 {
		t.Errorf("push despite disabled policy: %v", remote.pushedNotes)
	}
}

func TestPropagateLocalEditNonDocument(t *testing.T) {
	remote := newFakeRemote()
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())

	v.files["Karakeep/scratch.md"] = "# Just a note\n\n## Notes\n\nnot synced\n"
	if err := s.PropagateLocalEdit(context.Background(), "Karakeep/scratch.md"); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}
	if len(remote.pushedNotes) != 0 {
		t.Errorf("pushed for a document without frontmatter: %v", remote.pushedNotes)
	}
}

func TestBackfillSupersededByNewerEdit(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())
	seedDocument(t, remote, v, s)

	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\nfirst edit\n", 1)
	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("first edit: %v", err)
	}

	// A second edit lands inside the quiet window.
	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nfirst edit\n", "## Notes\n\nsecond edit\n", 1)
	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("second edit: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	doc := v.files[articlePath]
	if !strings.Contains(doc, "original_note: second edit\n") {
		t.Errorf("backfill should reflect the newest edit:\n%s", doc)
	}
	if strings.Contains(doc, "original_note: first edit\n") {
		t.Error("stale backfill applied")
	}
}

func TestBackfillAbortsWhenNotesMovedOn(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())
	seedDocument(t, remote, v, s)

	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\npushed value\n", 1)
	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}

	// The Notes section changes again without a propagation call, so the
	// pending backfill no longer matches and must not write.
	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\npushed value\n", "## Notes\n\nnewer unpushed\n", 1)

	time.Sleep(100 * time.Millisecond)
	if strings.Contains(v.files[articlePath], "original_note: pushed value\n") {
		t.Error("backfill wrote a stale value")
	}
}

func TestCancelBackfills(t *testing.T) {
	remote := newFakeRemote(articleBookmark())
	v := newFakeVault()
	s := newTestSyncer(t, remote, v, testPolicy())
	seedDocument(t, remote, v, s)

	v.files[articlePath] = strings.Replace(v.files[articlePath],
		"## Notes\n\nremember this\n", "## Notes\n\nabandoned\n", 1)
	if err := s.PropagateLocalEdit(context.Background(), articlePath); err != nil {
		t.Fatalf("PropagateLocalEdit: %v", err)
	}
	s.CancelBackfills()

	time.Sleep(100 * time.Millisecond)
	if strings.Contains(v.files[articlePath], "original_note: abandoned\n") {
		t.Error("cancelled backfill still ran")
	}
}
