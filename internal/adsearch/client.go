// Package adsearch is a client for the marketplace search endpoint used to
// measure advertising pressure on a search phrase. One call returns the total
// result count, the classifier preset, the normalized query, and the product
// list whose entries are tagged by placement type.
package adsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Placement tags carried by products[].log.tp. Entries tagged "b" are
// auto-campaign placements, "c" are auction placements.
const (
	tagAuto    = "b"
	tagAuction = "c"
)

// Result is the decoded search response, reduced to the fields the
// enrichment task consumes.
type Result struct {
	Total    int `json:"total"`
	Metadata struct {
		PresetID  int    `json:"presetId"`
		NormQuery string `json:"normquery"`
	} `json:"metadata"`
	Products []Product `json:"products"`
}

// Product is one search hit; only the placement log matters here.
type Product struct {
	Log struct {
		TP string `json:"tp"`
	} `json:"log"`
}

// CountPlacements tallies the auto and auction placements in the result.
func (r *Result) CountPlacements() (auto, auction int) {
	for _, p := range r.Products {
		switch p.Log.TP {
		case tagAuto:
			auto++
		case tagAuction:
			auction++
		}
	}
	return auto, auction
}

// Client calls the external search endpoint. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against baseURL with a per-call timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Search fetches metrics for one phrase. The parameter template (locale,
// currency, pagination, sort, spell-check suppression) is fixed; only the
// query varies. Values mirror the upstream endpoint's contract.
func (c *Client) Search(ctx context.Context, phrase string) (*Result, error) {
	q := url.Values{}
	q.Set("appType", "1")
	q.Set("curr", "rub")
	q.Set("dest", "-1257786")
	q.Set("locale", "ru")
	q.Set("page", "1")
	q.Set("resultset", "catalog")
	q.Set("sort", "popular")
	q.Set("suppressSpellcheck", "true")
	q.Set("query", phrase)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search call: unexpected status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
