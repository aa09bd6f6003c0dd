package sync

// RemovalAction is the disposition applied to a local document whose remote
// counterpart disappeared or was archived.
type RemovalAction string

const (
	// ActionDelete removes the local document.
	ActionDelete RemovalAction = "delete"
	// ActionMove relocates the document into a configured folder.
	ActionMove RemovalAction = "move"
	// ActionTag adds a configured tag to the document's tag list.
	ActionTag RemovalAction = "tag"
	// ActionIgnore leaves the document untouched.
	ActionIgnore RemovalAction = "ignore"
)

// RemovalReason records why a document was classified for removal handling.
type RemovalReason string

const (
	// ReasonDeleted means the bookmark is gone from the remote entirely.
	ReasonDeleted RemovalReason = "deleted"
	// ReasonArchived means the bookmark still exists remotely but is
	// archived.
	ReasonArchived RemovalReason = "archived"
)

// RemovalInstruction is one classifier verdict for a local document.
type RemovalInstruction struct {
	BookmarkID string
	Action     RemovalAction
	Reason     RemovalReason
}

// ClassifyRemovals decides a disposition for each local bookmark id against
// the remote active and archived id sets. Instructions come out in localIDs
// order. Ids present in the active set never produce an instruction,
// regardless of archived-set membership. When both policy switches are off
// the whole scan is skipped.
func ClassifyRemovals(localIDs []string, activeIDs, archivedIDs map[string]struct{}, p Policy) []RemovalInstruction {
	if !p.SyncDeletions && !p.HandleArchived {
		return nil
	}

	var instructions []RemovalInstruction
	for _, id := range localIDs {
		if _, live := activeIDs[id]; live {
			continue
		}
		if _, archived := archivedIDs[id]; archived {
			if p.HandleArchived && p.ArchivedAction != ActionIgnore {
				instructions = append(instructions, RemovalInstruction{
					BookmarkID: id,
					Action:     p.ArchivedAction,
					Reason:     ReasonArchived,
				})
			}
			continue
		}
		if p.SyncDeletions && p.DeletionAction != ActionIgnore {
			instructions = append(instructions, RemovalInstruction{
				BookmarkID: id,
				Action:     p.DeletionAction,
				Reason:     ReasonDeleted,
			})
		}
	}
	return instructions
}

// Dispositions breaks removal instructions down for the pass summary.
// Archived-reason instructions count as handled regardless of which concrete
// action policy chose for them.
type Dispositions struct {
	Deleted         int
	Moved           int
	Tagged          int
	ArchivedHandled int
}

// CountDispositions tallies instructions into summary buckets. Every
// instruction lands in exactly one bucket.
func CountDispositions(instructions []RemovalInstruction) Dispositions {
	var d Dispositions
	for _, in := range instructions {
		if in.Reason == ReasonArchived {
			d.ArchivedHandled++
			continue
		}
		switch in.Action {
		case ActionDelete:
			d.Deleted++
		case ActionMove:
			d.Moved++
		case ActionTag:
			d.Tagged++
		}
	}
	return d
}
