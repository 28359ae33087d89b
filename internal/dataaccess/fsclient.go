package dataaccess

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/nikolas/parsoid/internal/siteconfig"
)

// FSClient is a DataAccess backed by a filesystem of ".wikitext" files,
// one per transcludable page, named by title with namespace-as-directory
// (e.g. "Template/Echo.wikitext" for the page "Template:Echo"). It has no
// non-native-extension parser, so ParseWikitext reports ErrUnsupported.
// FetchMediaInfo only checks that a file exists for each title: it reports
// Missing or a path URL, with no MIME type or dimensions.
//
// Grounded on the teacher's asset.go AssetRegistry: a name, routed by
// extension/prefix, resolved against an fs.FS.
type FSClient struct {
	FS fs.FS
}

var _ DataAccess = (*FSClient)(nil)

// ErrUnsupported is returned by FSClient operations that have no
// filesystem-backed equivalent.
var ErrUnsupported = fmt.Errorf("dataaccess: unsupported by FSClient")

func NewFSClient(fsys fs.FS) *FSClient {
	return &FSClient{FS: fsys}
}

func titleToPath(title string) string {
	title = strings.ReplaceAll(title, ":", "/")
	title = strings.ReplaceAll(title, " ", "_")
	return path.Clean(title) + ".wikitext"
}

func (c *FSClient) FetchTemplateSource(ctx context.Context, title string) (string, error) {
	p := titleToPath(title)
	b, err := fs.ReadFile(c.FS, p)
	if err != nil {
		return "", fmt.Errorf("fetch template source for %q: %w", title, err)
	}
	return string(b), nil
}

func (c *FSClient) ParseWikitext(ctx context.Context, pc siteconfig.PageConfig, src string) (*ParsedWikitext, error) {
	return nil, ErrUnsupported
}

func (c *FSClient) FetchMediaInfo(ctx context.Context, titles []string) (map[string]MediaInfo, error) {
	out := make(map[string]MediaInfo, len(titles))
	for _, t := range titles {
		p := titleToPath(t)
		if _, err := fs.Stat(c.FS, p); err != nil {
			out[t] = MediaInfo{Title: t, Missing: true}
			continue
		}
		out[t] = MediaInfo{Title: t, URL: "/" + p}
	}
	return out, nil
}

func (c *FSClient) FetchPageExistence(ctx context.Context, titles []string) (map[string]PageExists, error) {
	out := make(map[string]PageExists, len(titles))
	for _, t := range titles {
		p := titleToPath(t)
		_, err := fs.Stat(c.FS, p)
		out[t] = PageExists{Title: t, Exists: err == nil}
	}
	return out, nil
}
