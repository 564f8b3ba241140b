// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/corpus-engine/internal/httputil"
	"github.com/pdiddy/corpus-engine/internal/token"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// openAlexWorksBase is the OpenAlex works listing endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

const (
	// worksFilter restricts the listing to open-access articles with
	// full text, so candidate URLs point at downloadable PDFs rather
	// than paywalled landing pages.
	worksFilter = "type:article,is_oa:true,has_fulltext:true"

	// worksSelect trims responses to the fields the pipeline reads.
	worksSelect = "id,title,publication_date,publication_year,best_oa_location,cited_by_count"

	// titleMaxLen rejects degenerate titles that would bloat the corpus.
	titleMaxLen = 500
)

// Source pages through the OpenAlex works listing with cursor pagination.
type Source struct {
	Client    *http.Client
	Policy    httputil.Policy
	UserAgent string
	PerPage   int
}

// Page is one fetched page of the listing. An empty NextCursor means the
// source is exhausted.
type Page struct {
	Works      []openAlexWork
	NextCursor string
}

// FetchPage requests the page at cursor. Transient failures are retried
// per the source policy; only context cancellation or a malformed
// response surfaces as an error.
func (s *Source) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	perPage := s.PerPage
	if perPage <= 0 {
		perPage = 25
	}

	params := url.Values{
		"filter":   {worksFilter},
		"cursor":   {cursor},
		"per-page": {strconv.Itoa(perPage)},
		"select":   {worksSelect},
	}
	reqURL := openAlexWorksBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating page request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Policy.Do(ctx, s.Client, req)
	if err != nil {
		return nil, fmt.Errorf("works listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("works listing returned HTTP %d", resp.StatusCode)
	}

	var wr worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing works listing: %w", err)
	}

	return &Page{Works: wr.Results, NextCursor: wr.Meta.NextCursor}, nil
}

// Validate turns a raw work into a Candidate. It reports false when the
// record is rejected: empty or oversized title, missing or relative PDF
// URL, absent ranking signal, or no derivable publication year. Rejected
// works consume no document id.
func Validate(w openAlexWork) (types.Candidate, bool) {
	if w.Title == "" || len(w.Title) > titleMaxLen {
		return types.Candidate{}, false
	}

	pdfURL := w.BestOALocation.PDFURL
	u, err := url.Parse(pdfURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return types.Candidate{}, false
	}

	if w.CitedByCount == nil {
		return types.Candidate{}, false
	}

	year := publicationYear(w)
	if year == 0 {
		return types.Candidate{}, false
	}

	return types.Candidate{
		ExternalID:      w.ID,
		Title:           w.Title,
		SourceURL:       pdfURL,
		PublicationYear: year,
		Ranking:         types.RankingSignal{CitedByCount: *w.CitedByCount},
		TitleTokens:     token.Tokenize(w.Title),
	}, true
}

// publicationYear derives a year from the publication date, falling back
// to the bare year field.
func publicationYear(w openAlexWork) int {
	if len(w.PublicationDate) >= 4 {
		if y, err := strconv.Atoi(w.PublicationDate[:4]); err == nil && y > 0 {
			return y
		}
	}
	if w.PublicationYear > 0 {
		return w.PublicationYear
	}
	return 0
}

// OpenAlex API JSON structures.
type worksResponse struct {
	Meta    worksMeta      `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type worksMeta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
}

type openAlexWork struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	PublicationDate string             `json:"publication_date"`
	PublicationYear int                `json:"publication_year"`
	BestOALocation  openAlexOALocation `json:"best_oa_location"`

	// Pointer distinguishes "zero citations" from "signal absent";
	// absent signals reject the candidate.
	CitedByCount *int `json:"cited_by_count"`
}

type openAlexOALocation struct {
	PDFURL string `json:"pdf_url"`
}
