package extract

// Schema describes where the fields of a starred-repository listing live in
// the page markup. Selectors are goquery (CSS) selectors evaluated relative
// to the container, except Container itself which is evaluated on the
// document.
type Schema struct {
	// Version identifies the page layout this schema was written against.
	Version string

	// Container holds every entry and the pagination control.
	Container string

	// Entry matches one repository block inside the container.
	Entry string

	// TitleLink is the anchor carrying the repository name and href.
	TitleLink string

	// Description and Language are optional per entry.
	Description string
	Language    string

	// Pagination locates the pagination control inside the container.
	Pagination string

	// NextLabel is the visible text of the "next page" anchor.
	NextLabel string

	// CursorParam is the query parameter of the next-page href that
	// carries the cursor.
	CursorParam string
}

// SchemaV1 matches the GitHub profile "stars" tab layout.
var SchemaV1 = Schema{
	Version:     "v1",
	Container:   "#user-starred-repos",
	Entry:       ".col-12.d-block.width-full.py-4.border-bottom.color-border-muted",
	TitleLink:   "h3 a",
	Description: `p[itemprop="description"]`,
	Language:    `span[itemprop="programmingLanguage"]`,
	Pagination:  `div.paginate-container [data-test-selector="pagination"]`,
	NextLabel:   "Next",
	CursorParam: "after",
}

// DefaultSchema returns the schema used when none is configured.
func DefaultSchema() Schema {
	return SchemaV1
}
