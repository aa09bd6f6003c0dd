package sync

// Policy is the per-pass sync configuration. It is read-only during a pass;
// nothing in it is persisted per-item.
type Policy struct {
	// Folder layout inside the vault.
	SyncFolder        string
	ArchiveFolder     string
	DeletedFolder     string
	AttachmentsFolder string

	// Listing filters.
	ExcludeArchived bool
	OnlyFavorites   bool
	IncludeTags     []string
	ExcludeTags     []string

	// Update behavior.
	UpdateExisting    bool
	SyncNotesUpstream bool

	// Removal handling.
	SyncDeletions  bool
	DeletionAction RemovalAction
	HandleArchived bool
	ArchivedAction RemovalAction
	DeletedTag     string
	ArchivedTag    string

	// Extras.
	OnlyWithHighlights bool
	SyncHighlights     bool
	DownloadAssets     bool
}

// removalFolder returns the relocation target folder for a removal reason.
func (p Policy) removalFolder(reason RemovalReason) string {
	if reason == ReasonArchived {
		return p.ArchiveFolder
	}
	return p.DeletedFolder
}

// removalTag returns the tag literal applied for a removal reason.
func (p Policy) removalTag(reason RemovalReason) string {
	if reason == ReasonArchived {
		return p.ArchivedTag
	}
	return p.DeletedTag
}
