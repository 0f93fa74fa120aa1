package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/resolver"
)

// HTTPClient is the built-in Client implementation: it speaks the
// HTTPS archive-index protocol every registry in this ecosystem exposes
// regardless of what format the package's own project uses locally --
// a per-name JSON version index plus one GET per rockspec. No pack repo
// vendors an HTTP client library (no resty/sling equivalent turned up
// anywhere in the retrieval set), and this is the same bare
// "http.Client, context-bound request, read the body" shape
// internal/fetch's own registry-archive download already uses, so this
// stays on net/http rather than introducing a client library with no
// precedent in the corpus.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient returns an HTTPClient against baseURL with a bounded
// per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

// indexEntry is the wire shape of one line in a name's version index.
type indexEntry struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

func (c *HTTPClient) get(ctx context.Context, parts ...string) ([]byte, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing registry base url %s", c.BaseURL)
	}
	u.Path = path.Join(append([]string{u.Path}, parts...)...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", u)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "requesting %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("requesting %s: unexpected status %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ListVersions fetches <base>/<name>/index.json, the per-package version
// index every registry publishes.
func (c *HTTPClient) ListVersions(name resolver.PackageName) ([]Entry, error) {
	body, err := c.get(context.Background(), string(name.Normalize()), "index.json")
	if err != nil {
		return nil, errors.Wrapf(err, "listing versions of %s", name)
	}

	var raw []indexEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding version index for %s", name)
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		v, err := resolver.ParsePackageVersion(r.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing version %q for %s", r.Version, name)
		}
		entries = append(entries, Entry{Name: name, Version: v, Source: r.Source})
	}
	return entries, nil
}

// Search fetches <base>/search.json?q=<query>, a flat list of matching
// package names.
func (c *HTTPClient) Search(query string) ([]resolver.PackageName, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing registry base url %s", c.BaseURL)
	}
	u.Path = path.Join(u.Path, "search.json")
	u.RawQuery = url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", u)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "searching %q", query)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("searching %q: unexpected status %s", query, resp.Status)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, errors.Wrapf(err, "decoding search results for %q", query)
	}
	out := make([]resolver.PackageName, len(names))
	for i, n := range names {
		out[i] = resolver.PackageName(n)
	}
	return out, nil
}

// FetchRockspec fetches <base>/<name>/<name>-<version>.rockspec, the raw
// legacy rockspec document for one exact version.
func (c *HTTPClient) FetchRockspec(name resolver.PackageName, version resolver.PackageVersion) ([]byte, error) {
	normalized := string(name.Normalize())
	filename := normalized + "-" + version.String() + ".rockspec"
	body, err := c.get(context.Background(), normalized, filename)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching rockspec for %s %s", name, version)
	}
	return body, nil
}
