package tic80

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cartkeep/internal/collection"
	"cartkeep/internal/naming"
	"cartkeep/internal/services"
)

// DefaultBaseURL is the production tic80.com endpoint.
const DefaultBaseURL = "https://tic80.com"

// DefaultCategories lists the catalog directories mirrored by default, in
// fetch order.
var DefaultCategories = []string{
	"Games", "WIP", "Demoscene", "Livecoding", "Music", "Tech", "Tools",
}

// Client fetches cartridge snapshots from the tic80.com API.
type Client struct {
	baseURL    string
	categories []string
	userAgent  string
	httpClient *http.Client
}

var _ services.Adapter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCategories overrides the catalog directories to fetch.
func WithCategories(categories []string) Option {
	return func(c *Client) {
		if len(categories) > 0 {
			c.categories = categories
		}
	}
}

// New creates a tic80.com client.
func New(baseURL, userAgent string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		categories: DefaultCategories,
		userAgent:  strings.TrimSpace(userAgent),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Provider identifies the adapter.
func (c *Client) Provider() collection.Provider { return collection.ProviderTIC80 }

// dirEntryPattern matches one entry of the directory API response, which is
// a Lua-style table literal rather than JSON:
//
//	{name = "Foo", hash = "ab12...", id = 123, filename = "foo.tic"},
var dirEntryPattern = regexp.MustCompile(
	`\{\s*name\s*=\s*"([\s\S]*?)",\s*hash\s*=\s*"(.*?)",\s*id\s*=\s*(\d+),\s*filename\s*=\s*"(.*?)"\s*\}`)

// FetchSnapshot lists every catalog category and returns the combined
// point-in-time snapshot. A category listed twice keeps its first entry.
func (c *Client) FetchSnapshot(ctx context.Context) (*collection.Snapshot, error) {
	snap := &collection.Snapshot{Provider: collection.ProviderTIC80}
	seen := make(map[string]struct{})

	for _, category := range c.categories {
		entries, err := c.fetchCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if _, dup := seen[entry.ProviderID]; dup {
				continue
			}
			seen[entry.ProviderID] = struct{}{}
			snap.Records = append(snap.Records, entry)
		}
	}
	return snap, nil
}

func (c *Client) fetchCategory(ctx context.Context, category string) ([]collection.SourceRecord, error) {
	endpoint := fmt.Sprintf("%s/api?fn=dir&path=%s", c.baseURL, url.QueryEscape("play/"+category))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnreachable, "tic80", "list category", category, err)
	}

	matches := dirEntryPattern.FindAllStringSubmatch(body, -1)
	records := make([]collection.SourceRecord, 0, len(matches))
	for _, m := range matches {
		name, hash, id, filename := m[1], m[2], m[3], m[4]
		records = append(records, collection.SourceRecord{
			ProviderID:  id,
			Title:       naming.SanitizeTitle(name),
			Category:    category,
			Fingerprint: strings.ToLower(hash),
			DownloadURL: fmt.Sprintf("%s/cart/%s/%s", c.baseURL, strings.ToLower(hash), filename),
			CoverURL:    fmt.Sprintf("%s/cart/%s/cover.gif", c.baseURL, strings.ToLower(hash)),
		})
	}
	return records, nil
}

var (
	addedPattern   = regexp.MustCompile(`(?is)added:.*?class="date"\s+value="(\d+)"`)
	updatedPattern = regexp.MustCompile(`(?is)updated:.*?class="date"\s+value="(\d+)"`)
	authorPattern  = regexp.MustCompile(`(?i)made by\s*([^<\n]+)`)
	descPattern    = regexp.MustCompile(`(?is)<meta\s+name="description"\s+content="(.*?)"`)
)

// Enrich fills play-page metadata (author, description, timestamps) into a
// record. Best-effort: the snapshot stays valid without it, filenames just
// lose their date component.
func (c *Client) Enrich(ctx context.Context, rec *collection.Record) error {
	if rec.Provider != collection.ProviderTIC80 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/play?cart=%s", c.baseURL, url.QueryEscape(rec.ProviderID))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tic80", "fetch play page", rec.ProviderID, err)
	}

	if m := addedPattern.FindStringSubmatch(body); m != nil {
		if ms, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			rec.PublishedAt = ms / 1000
		}
	}
	if m := updatedPattern.FindStringSubmatch(body); m != nil {
		if ms, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			rec.UpdatedAt = ms / 1000
		}
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.PublishedAt
	}
	if m := authorPattern.FindStringSubmatch(body); m != nil {
		rec.Author = strings.TrimSpace(m[1])
	}
	if m := descPattern.FindStringSubmatch(body); m != nil && rec.Description == "" {
		rec.Description = strings.TrimSpace(m[1])
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
