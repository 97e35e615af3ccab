// Package pagination drives the cursor-paginated stars listing to
// completion.
//
// The listing exposes no page count: each page carries at most one "Next"
// control whose href holds the cursor of the following page. The driver
// fetches a page, extracts its records and cursor, appends the records and
// repeats with the new cursor until a page has none.
//
// Example usage:
//
//	driver := pagination.NewDriver(fetcher, extractor, pagination.DefaultConfig())
//	repos, err := driver.CollectAll(ctx, "octocat")
//
// The driver:
//   - Rejects an empty user name before any request is made
//   - Fetches pages strictly one after another
//   - Preserves record order within and across pages
//   - Returns no records at all when any page fails
//   - Optionally stops at MaxPages, and always on a repeated cursor
package pagination
