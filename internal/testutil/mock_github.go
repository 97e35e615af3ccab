// Package testutil provides testing utilities for the star exporter.
package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// StarredRepo describes one entry rendered by ListingPage.
type StarredRepo struct {
	Owner       string
	Name        string
	Description string
	Language    string

	// NoLink renders the entry without its title anchor.
	NoLink bool
}

// Href returns the relative link rendered for the repository.
func (r StarredRepo) Href() string {
	return "/" + r.Owner + "/" + r.Name
}

// Title returns the title text as the extractor reads it.
func (r StarredRepo) Title() string {
	return r.Owner + " /" + r.Name
}

// ListingPage renders a stars tab page. An empty next renders the "Next"
// control disabled, as the last page does.
func ListingPage(user string, repos []StarredRepo, next string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><title>Stars</title></head><body>\n")
	sb.WriteString(`<div id="user-starred-repos">` + "\n")

	for _, repo := range repos {
		sb.WriteString(`<div class="col-12 d-block width-full py-4 border-bottom color-border-muted">` + "\n")
		if !repo.NoLink {
			fmt.Fprintf(&sb, "<div class=\"d-inline-block mb-1\"><h3>\n<a href=\"%s\">\n<span class=\"text-normal\">%s / </span>%s\n</a>\n</h3></div>\n",
				html.EscapeString(repo.Href()), html.EscapeString(repo.Owner), html.EscapeString(repo.Name))
		}
		if repo.Description != "" {
			fmt.Fprintf(&sb, "<div class=\"py-1\"><p itemprop=\"description\" class=\"d-inline-block col-9 color-fg-muted pr-4\">\n  %s\n</p></div>\n",
				html.EscapeString(repo.Description))
		}
		sb.WriteString(`<div class="f6 color-fg-muted mt-2">`)
		if repo.Language != "" {
			fmt.Fprintf(&sb, `<span class="ml-0 mr-3"><span class="repo-language-color"></span> <span itemprop="programmingLanguage">%s</span></span>`,
				html.EscapeString(repo.Language))
		}
		sb.WriteString("</div>\n</div>\n")
	}

	sb.WriteString(`<div class="paginate-container"><div class="BtnGroup" data-test-selector="pagination">`)
	sb.WriteString(`<span class="btn btn-outline BtnGroup-item" disabled="disabled">Previous</span>`)
	if next != "" {
		q := url.Values{"after": {next}, "tab": {"stars"}}
		fmt.Fprintf(&sb, `<a rel="nofollow" class="btn btn-outline BtnGroup-item" href="https://github.com/%s?%s">Next</a>`,
			html.EscapeString(user), html.EscapeString(q.Encode()))
	} else {
		sb.WriteString(`<span class="btn btn-outline BtnGroup-item" disabled="disabled">Next</span>`)
	}
	sb.WriteString("</div></div>\n</div>\n</body></html>\n")

	return sb.String()
}

// MockPage is one page served by MockGitHub.
type MockPage struct {
	Repos []StarredRepo
	Next  string
}

// MockGitHub serves a scripted stars listing for a single user.
type MockGitHub struct {
	server *httptest.Server
	user   string

	mu       sync.Mutex
	pages    map[string]MockPage
	statuses map[string][]int
	etags    bool
	requests []*http.Request

	conditional int
}

// NewMockGitHub creates a listing server for user. Pages are keyed by the
// cursor that requests them; the first page has the empty cursor.
func NewMockGitHub(user string) *MockGitHub {
	m := &MockGitHub{
		user:     user,
		pages:    make(map[string]MockPage),
		statuses: make(map[string][]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the server root.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// SetPage registers the page returned for cursor.
func (m *MockGitHub) SetPage(cursor string, page MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[cursor] = page
}

// SetPages registers a chain of pages linked by generated cursors.
func (m *MockGitHub) SetPages(pages ...[]StarredRepo) {
	cursor := ""
	for i, repos := range pages {
		next := ""
		if i < len(pages)-1 {
			next = fmt.Sprintf("Y3Vyc29yOnY%d", i+1)
		}
		m.SetPage(cursor, MockPage{Repos: repos, Next: next})
		cursor = next
	}
}

// SetStatusSequence makes the next len(codes) requests for cursor answer
// with the given status codes before the page is served. A 200 in the
// sequence serves the page.
func (m *MockGitHub) SetStatusSequence(cursor string, codes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[cursor] = append([]int(nil), codes...)
}

// EnableETags makes the server send ETags and honour If-None-Match.
func (m *MockGitHub) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// RequestCount returns the number of requests received.
func (m *MockGitHub) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockGitHub) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditional
}

// Requests returns a copy of the received requests.
func (m *MockGitHub) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

func (m *MockGitHub) handle(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("after")

	m.mu.Lock()
	m.requests = append(m.requests, r.Clone(r.Context()))
	status := http.StatusOK
	if seq := m.statuses[cursor]; len(seq) > 0 {
		status = seq[0]
		m.statuses[cursor] = seq[1:]
	}
	page, found := m.pages[cursor]
	etags := m.etags
	if r.Header.Get("If-None-Match") != "" {
		m.conditional++
	}
	m.mu.Unlock()

	if strings.Trim(r.URL.Path, "/") != m.user || r.URL.Query().Get("tab") != "stars" {
		http.NotFound(w, r)
		return
	}

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if !found {
		http.NotFound(w, r)
		return
	}

	if etags {
		etag := fmt.Sprintf(`W/"%s-%d"`, cursor, len(page.Repos))
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ListingPage(m.user, page.Repos, page.Next)))
}
