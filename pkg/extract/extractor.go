// Package extract turns one page of the starred-repository listing into
// records and the cursor of the following page.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMalformedPage is returned when the page body cannot be treated as markup
// at all. A page without the listing container is not malformed.
var ErrMalformedPage = errors.New("malformed page")

// Repo is one starred repository as shown on the listing.
type Repo struct {
	Title       string
	URL         string
	Description string
	Language    string
}

// Page is the outcome of extracting a single listing page.
type Page struct {
	// Repos are in document order.
	Repos []Repo

	// Next is the cursor of the following page, valid only if HasNext.
	Next    string
	HasNext bool
}

// Extractor applies a Schema to listing pages.
type Extractor struct {
	schema Schema
	base   *url.URL
	logger zerolog.Logger
}

// New creates an extractor that resolves repository links against siteURL.
func New(siteURL string, schema Schema) (*Extractor, error) {
	base, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("site url must be absolute (got %q)", siteURL)
	}
	if schema.Container == "" || schema.Entry == "" || schema.TitleLink == "" {
		return nil, fmt.Errorf("schema %q is incomplete", schema.Version)
	}

	return &Extractor{
		schema: schema,
		base:   base,
		logger: log.With().Str("component", "extractor").Str("schema", schema.Version).Logger(),
	}, nil
}

// Schema returns the schema in use.
func (e *Extractor) Schema() Schema {
	return e.schema
}

// Extract parses markup into records and the next-page cursor.
func (e *Extractor) Extract(markup []byte) (Page, error) {
	if err := checkMarkup(markup); err != nil {
		return Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	container := doc.Find(e.schema.Container).First()
	if container.Length() == 0 {
		e.logger.Debug().Str("container", e.schema.Container).Msg("Listing container not found")
		return Page{}, nil
	}

	var page Page
	container.Find(e.schema.Entry).Each(func(i int, entry *goquery.Selection) {
		page.Repos = append(page.Repos, e.extractRepo(i, entry))
	})

	page.Next, page.HasNext = e.nextCursor(container)

	e.logger.Debug().
		Int("repos", len(page.Repos)).
		Bool("has_next", page.HasNext).
		Str("cursor", page.Next).
		Msg("Page extracted")

	return page, nil
}

func (e *Extractor) extractRepo(index int, entry *goquery.Selection) Repo {
	var repo Repo

	link := entry.Find(e.schema.TitleLink).First()
	if link.Length() == 0 {
		e.logger.Warn().Int("entry", index).Msg("Entry has no title link")
	} else {
		repo.Title = strippedText(link)
		if href, ok := link.Attr("href"); ok {
			repo.URL = e.resolve(href)
		}
	}

	if e.schema.Description != "" {
		if p := entry.Find(e.schema.Description).First(); p.Length() > 0 {
			repo.Description = strippedText(p)
		}
	}

	if e.schema.Language != "" {
		if span := entry.Find(e.schema.Language).First(); span.Length() > 0 {
			repo.Language = strippedText(span)
		}
	}

	return repo
}

// nextCursor reports the cursor carried by the "next" anchor of the
// pagination control, if any.
func (e *Extractor) nextCursor(container *goquery.Selection) (string, bool) {
	if e.schema.Pagination == "" {
		return "", false
	}

	pagination := container.Find(e.schema.Pagination).First()
	if pagination.Length() == 0 {
		return "", false
	}

	next := pagination.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strippedText(a) == e.schema.NextLabel
	}).First()
	if next.Length() == 0 {
		return "", false
	}

	href, ok := next.Attr("href")
	if !ok || href == "" {
		return "", false
	}

	target, err := url.Parse(href)
	if err != nil {
		e.logger.Warn().Err(err).Str("href", href).Msg("Unparsable next-page href")
		return "", false
	}

	cursor := target.Query().Get(e.schema.CursorParam)
	if cursor == "" {
		return "", false
	}
	return cursor, true
}

func (e *Extractor) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		e.logger.Warn().Err(err).Str("href", href).Msg("Unparsable repository href")
		return ""
	}
	return e.base.ResolveReference(ref).String()
}

// checkMarkup rejects bodies that no HTML parser should be asked to read.
func checkMarkup(markup []byte) error {
	if len(bytes.TrimSpace(markup)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPage)
	}
	if !utf8.Valid(markup) || bytes.IndexByte(markup, 0) >= 0 {
		return fmt.Errorf("%w: body is not text", ErrMalformedPage)
	}
	return nil
}

// strippedText concatenates every descendant text node with surrounding
// whitespace removed, so "owner / <span>repo</span>" reads "owner /repo".
func strippedText(sel *goquery.Selection) string {
	var sb strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				sb.WriteString(strings.TrimSpace(child.Text()))
			case "#comment", "script", "style":
			default:
				walk(child)
			}
		})
	}
	walk(sel)
	return sb.String()
}
