// Package dataaccess implements the data-access collaborator of spec.md
// §6: fetching template source, batch media info, and invoking a
// non-native extension's own wikitext-to-HTML parser.
//
// Grounded on the teacher's httpcall.go (github.com/dpotapov/go-pages):
// the same "build a request, fire it, decode the typed JSON response"
// shape, generalized from a single polling CHTML component into three
// named RPCs against a MediaWiki-style action API.
package dataaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nikolas/parsoid/internal/siteconfig"
)

// ParsedWikitext is the result of asking the data-access collaborator to
// run wikitext through a non-native extension's own parser (spec.md §6:
// "parseWikitext(pageConfig, source) → { html, modules, modulestyles,
// modulescripts, categories }").
type ParsedWikitext struct {
	HTML           string   `json:"html"`
	Modules        []string `json:"modules"`
	ModuleStyles   []string `json:"modulestyles"`
	ModuleScripts  []string `json:"modulescripts"`
	Categories     map[string]string `json:"categories"`
}

// MediaInfo is one entry of a batch media-info lookup.
type MediaInfo struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	MIME      string `json:"mime"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Thumburl  string `json:"thumburl"`
	Missing   bool   `json:"missing"`
}

// PageExists is one entry of a batch page-existence lookup, used by the
// (optional) red-link annotation pass (spec.md §4.7 pass 22).
type PageExists struct {
	Title  string `json:"title"`
	Exists bool   `json:"exists"`
}

// DataAccess is the full collaborator surface the pipeline depends on.
type DataAccess interface {
	// FetchTemplateSource returns the wikitext source of the template (or
	// other transcludable page) named title.
	FetchTemplateSource(ctx context.Context, title string) (string, error)

	// ParseWikitext asks an external parser (e.g. the real MediaWiki
	// parser) to render src for pc, used as the fallback for
	// unrecognized extension tags (spec.md §4.2).
	ParseWikitext(ctx context.Context, pc siteconfig.PageConfig, src string) (*ParsedWikitext, error)

	// FetchMediaInfo batch-fetches media metadata for the given file
	// titles.
	FetchMediaInfo(ctx context.Context, titles []string) (map[string]MediaInfo, error)

	// FetchPageExistence batch-fetches existence for the given page
	// titles, for red-link annotation.
	FetchPageExistence(ctx context.Context, titles []string) (map[string]PageExists, error)
}

// HTTPClient is the concrete DataAccess backed by a MediaWiki-style action
// API reachable over HTTP.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

var _ DataAccess = (*HTTPClient)(nil)

// NewHTTPClient builds an HTTPClient pointed at baseURL (e.g.
// "https://en.wikipedia.org/w/api.php").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) FetchTemplateSource(ctx context.Context, title string) (string, error) {
	var out struct {
		Source string `json:"source"`
	}
	if err := c.call(ctx, "raw", url.Values{"title": {title}}, &out); err != nil {
		return "", fmt.Errorf("fetch template source for %q: %w", title, err)
	}
	return out.Source, nil
}

func (c *HTTPClient) ParseWikitext(ctx context.Context, pc siteconfig.PageConfig, src string) (*ParsedWikitext, error) {
	var out ParsedWikitext
	vals := url.Values{
		"title": {pc.Title},
		"text":  {src},
	}
	if err := c.call(ctx, "parse", vals, &out); err != nil {
		return nil, fmt.Errorf("parse wikitext for %q: %w", pc.Title, err)
	}
	return &out, nil
}

func (c *HTTPClient) FetchMediaInfo(ctx context.Context, titles []string) (map[string]MediaInfo, error) {
	var out struct {
		Items map[string]MediaInfo `json:"items"`
	}
	vals := url.Values{}
	for _, t := range titles {
		vals.Add("titles", t)
	}
	if err := c.call(ctx, "imageinfo", vals, &out); err != nil {
		return nil, fmt.Errorf("fetch media info: %w", err)
	}
	return out.Items, nil
}

func (c *HTTPClient) FetchPageExistence(ctx context.Context, titles []string) (map[string]PageExists, error) {
	var out struct {
		Items map[string]PageExists `json:"items"`
	}
	vals := url.Values{}
	for _, t := range titles {
		vals.Add("titles", t)
	}
	if err := c.call(ctx, "exists", vals, &out); err != nil {
		return nil, fmt.Errorf("fetch page existence: %w", err)
	}
	return out.Items, nil
}

func (c *HTTPClient) call(ctx context.Context, action string, vals url.Values, out any) error {
	vals.Set("action", action)
	vals.Set("format", "json")

	reqURL := c.BaseURL + "?" + vals.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, action)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
