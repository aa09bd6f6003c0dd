package karakeep

// ContentType discriminates the bookmark content variant.
type ContentType string

const (
	// ContentLink is a saved URL with optional page metadata.
	ContentLink ContentType = "link"
	// ContentText is a free-text bookmark.
	ContentText ContentType = "text"
	// ContentAsset is an uploaded file (pdf, image, ...).
	ContentAsset ContentType = "asset"
	// ContentUnknown is any variant tag this client does not recognize.
	ContentUnknown ContentType = "unknown"
)

// Content is the tagged content variant of a bookmark. Only the fields
// belonging to the active Type are meaningful; the server omits the rest.
type Content struct {
	Type ContentType `json:"type"`

	// link fields
	URL                    string `json:"url,omitempty"`
	Title                  string `json:"title,omitempty"`
	Description            string `json:"description,omitempty"`
	ImageURL               string `json:"imageUrl,omitempty"`
	ImageAssetID           string `json:"imageAssetId,omitempty"`
	ScreenshotAssetID      string `json:"screenshotAssetId,omitempty"`
	FullPageArchiveAssetID string `json:"fullPageArchiveAssetId,omitempty"`
	VideoAssetID           string `json:"videoAssetId,omitempty"`

	// text fields
	Text string `json:"text,omitempty"`

	// asset fields
	AssetType string `json:"assetType,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// Tag is a tag attached to a bookmark, with its attachment origin.
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AttachedBy string `json:"attachedBy,omitempty"` // "ai" or "human"
}

// Asset is an auxiliary asset reference on a bookmark.
type Asset struct {
	ID        string `json:"id"`
	AssetType string `json:"assetType,omitempty"`
}

// Bookmark is a remote bookmark snapshot. Identifiers and timestamps are
// opaque strings at this boundary; optional fields may be missing.
//
// The snapshot is treated as immutable during a pass, except that Note may
// be overwritten in-memory to propagate a detected local edit within the
// same pass.
type Bookmark struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"createdAt"`
	ModifiedAt string  `json:"modifiedAt,omitempty"`
	Title      *string `json:"title"`
	Archived   bool    `json:"archived"`
	Favourited bool    `json:"favourited"`
	Note       *string `json:"note"`
	Summary    *string `json:"summary"`
	Tags       []Tag   `json:"tags"`
	Content    Content `json:"content"`
	Assets     []Asset `json:"assets,omitempty"`
}

// TagNames returns the bookmark's tag names in attachment order.
func (b *Bookmark) TagNames() []string {
	names := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Highlight is a read-only text highlight on a bookmark.
type Highlight struct {
	ID          string `json:"id"`
	BookmarkID  string `json:"bookmarkId"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Color       string `json:"color"` // yellow, red, green, blue
	Text        string `json:"text"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// Page is one page of a paginated bookmark listing.
type Page struct {
	Bookmarks  []Bookmark `json:"bookmarks"`
	NextCursor *string    `json:"nextCursor"`
}

// HighlightPage is one page of a paginated highlight listing.
type HighlightPage struct {
	Highlights []Highlight `json:"highlights"`
	NextCursor *string     `json:"nextCursor"`
}

// ListOptions are the filters accepted by the bookmark listing endpoint.
// Nil pointers leave the corresponding axis unfiltered.
type ListOptions struct {
	Archived   *bool
	Favourited *bool
	Cursor     string
	Limit      int
}
