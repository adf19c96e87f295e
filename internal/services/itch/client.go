package itch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cartkeep/internal/collection"
	"cartkeep/internal/naming"
	"cartkeep/internal/services"
)

// DefaultBaseURL is the production itch.io endpoint.
const DefaultBaseURL = "https://itch.io"

// browsePaths lists the search feeds combined into one snapshot. Entries
// seen in an earlier feed win.
var browsePaths = []string{
	"made-with-tic-80/platform-web",
	"platform-web/tag-tic-80",
	"platform-web/tag-tic",
}

// minGameID filters out low itch ids, which are known false positives in
// the TIC-80 search feeds.
const minGameID = 10000

// Client fetches cartridge snapshots from itch.io search feeds.
type Client struct {
	baseURL    string
	headerFile string
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

// New creates an itch.io client. headerFile points at the operator-captured
// request headers used to pass the site's bot challenge.
func New(baseURL, headerFile string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headerFile: headerFile,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Provider identifies the adapter.
func (c *Client) Provider() collection.Provider { return collection.ProviderItch }

// pageEnvelope is the JSON wrapper around one search result page.
type pageEnvelope struct {
	NumItems int    `json:"num_items"`
	Content  string `json:"content"`
}

// feedDates carries the per-page-URL timestamps pulled from the RSS feeds.
type feedDates struct {
	published int64
	updated   int64
}

var (
	gameCellPattern = regexp.MustCompile(`(?s)<div[^>]+class="[^"]*game_cell[^"]*"[^>]+data-game_id="(\d+)".*?</div>\s*</div>\s*</div>`)
	titlePattern    = regexp.MustCompile(`(?s)class="game_title"[^>]*>\s*<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	authorPattern   = regexp.MustCompile(`(?s)class="game_author"[^>]*>\s*<a[^>]*>(.*?)</a>`)
	descPattern     = regexp.MustCompile(`(?s)class="game_text"[^>]*>(.*?)</div>`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)

	// Game pages embed the playable cartridge inside an itch.zone player
	// frame; the frame's index.html names the cart file in its player
	// arguments.
	iframePattern   = regexp.MustCompile(`https?://html(?:-classic)?\.itch\.zone/html/[\d-]+(?:/[^/"'\\]*)?/`)
	cartArgsPattern = regexp.MustCompile(`(?i)arguments\s*:\s*\[\s*['"]([^'"]+\.tic)['"]`)
)

// FetchSnapshot walks every search feed page and returns the combined
// snapshot. Missing or rejected operator headers surface as a
// needs-manual-input error; the caller resolves that out-of-band and
// retries.
func (c *Client) FetchSnapshot(ctx context.Context) (*collection.Snapshot, error) {
	headers, err := c.loadHeaders()
	if err != nil {
		return nil, err
	}

	dates := make(map[string]feedDates)
	for _, path := range browsePaths {
		if err := c.collectFeedDates(ctx, path, headers, dates); err != nil {
			return nil, err
		}
	}

	snap := &collection.Snapshot{Provider: collection.ProviderItch}
	seen := make(map[string]struct{})

	for _, path := range browsePaths {
		for page := 1; ; page++ {
			endpoint := fmt.Sprintf("%s/games/%s?page=%d&format=json", c.baseURL, path, page)
			body, err := c.get(ctx, endpoint, headers)
			if err != nil {
				return nil, err
			}

			var envelope pageEnvelope
			if err := json.Unmarshal([]byte(body), &envelope); err != nil {
				return nil, services.Wrap(services.ErrValidation, "itch", "decode page", endpoint, err)
			}
			if strings.TrimSpace(envelope.Content) == "" || envelope.NumItems == 0 {
				break
			}

			for _, rec := range parseGameCells(envelope.Content, dates) {
				if _, dup := seen[rec.ProviderID]; dup {
					continue
				}
				seen[rec.ProviderID] = struct{}{}
				snap.Records = append(snap.Records, rec)
			}
		}
	}
	return snap, nil
}

// Enrich resolves the record's cartridge download URL by scraping its game
// page. The search listings name no cart file; the cart sits inside the
// page's embedded player frame, so resolution costs one or two extra page
// fetches per record and runs only when the URL is still missing.
func (c *Client) Enrich(ctx context.Context, rec *collection.Record) error {
	if rec.Provider != collection.ProviderItch || strings.TrimSpace(rec.DownloadURL) != "" {
		return nil
	}
	page := strings.TrimSpace(rec.PageURL)
	if page == "" {
		return nil
	}
	headers, err := c.loadHeaders()
	if err != nil {
		return err
	}
	body, err := c.get(ctx, page, headers)
	if err != nil {
		return err
	}

	frames := iframePattern.FindAllString(body, -1)
	sort.Strings(frames)
	var last string
	for _, frame := range frames {
		if frame == last {
			continue
		}
		last = frame
		cartURL, err := c.resolveCartInFrame(ctx, frame, headers)
		if err != nil {
			if errors.Is(err, services.ErrNeedsManualInput) {
				return err
			}
			continue
		}
		rec.DownloadURL = cartURL
		return nil
	}
	return services.Wrap(services.ErrValidation, "itch", "resolve cart",
		page+": no embedded player frame found", nil)
}

// resolveCartInFrame fetches the player frame's index.html and returns the
// cart URL it references. Frames conventionally serve the cart beside the
// page, so a frame without explicit player arguments falls back to that.
func (c *Client) resolveCartInFrame(ctx context.Context, frame string, headers map[string]string) (string, error) {
	base := strings.TrimRight(frame, "/") + "/"
	body, err := c.get(ctx, base+"index.html", headers)
	if err != nil {
		return "", err
	}
	if m := cartArgsPattern.FindStringSubmatch(body); m != nil {
		resolved, err := resolveRef(base, m[1])
		if err == nil {
			return resolved, nil
		}
	}
	return base + "cart.tic", nil
}

func resolveRef(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// rssFeed models the slice of the itch RSS feed the adapter needs.
type rssFeed struct {
	Channel struct {
		Items []struct {
			Link       string `xml:"link"`
			PubDate    string `xml:"pubDate"`
			UpdateDate string `xml:"updateDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (c *Client) collectFeedDates(ctx context.Context, path string, headers map[string]string, dates map[string]feedDates) error {
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/games/%s.xml?page=%d", c.baseURL, path, page)
		body, err := c.get(ctx, endpoint, headers)
		if err != nil {
			return err
		}

		var feed rssFeed
		if err := xml.Unmarshal([]byte(body), &feed); err != nil {
			return services.Wrap(services.ErrValidation, "itch", "decode feed", endpoint, err)
		}
		if len(feed.Channel.Items) == 0 {
			return nil
		}
		for _, item := range feed.Channel.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			dates[link] = feedDates{
				published: parseRFC2822(item.PubDate),
				updated:   parseRFC2822(item.UpdateDate),
			}
		}
	}
}

func parseGameCells(content string, dates map[string]feedDates) []collection.SourceRecord {
	var records []collection.SourceRecord
	for _, cell := range gameCellPattern.FindAllStringSubmatch(content, -1) {
		id, err := strconv.ParseInt(cell[1], 10, 64)
		if err != nil || id < minGameID {
			continue
		}

		block := cell[0]
		var page, title, author, desc string
		if m := titlePattern.FindStringSubmatch(block); m != nil {
			page = strings.TrimSpace(m[1])
			title = naming.SanitizeTitle(stripTags(m[2]))
		}
		if m := authorPattern.FindStringSubmatch(block); m != nil {
			author = strings.TrimSpace(stripTags(m[1]))
		}
		if m := descPattern.FindStringSubmatch(block); m != nil {
			desc = strings.TrimSpace(stripTags(m[1]))
		}

		ts := dates[page]
		updated := ts.updated
		if updated == 0 {
			updated = ts.published
		}

		// The itch fingerprint is a revision token, not a content hash:
		// the newest known timestamp stands in for the page's version.
		records = append(records, collection.SourceRecord{
			ProviderID:  strconv.FormatInt(id, 10),
			Title:       title,
			Author:      author,
			Description: desc,
			Category:    "Itch",
			PageURL:     page,
			Fingerprint: fingerprintFor(ts.published, updated),
			PublishedAt: ts.published,
			UpdatedAt:   updated,
		})
	}
	return records
}

func fingerprintFor(published, updated int64) string {
	ts := updated
	if ts == 0 {
		ts = published
	}
	if ts == 0 {
		return ""
	}
	return "rev-" + strconv.FormatInt(ts, 10)
}

func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

func parseRFC2822(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, "Mon, 02 Jan 2006 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix()
		}
	}
	return 0
}

// loadHeaders reads the operator-captured request headers. Lines look like
// "Name: value"; comment lines start with '#'.
func (c *Client) loadHeaders() (map[string]string, error) {
	data, err := os.ReadFile(c.headerFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNeedsManualInput, "itch", "load request headers",
				fmt.Sprintf("capture browser headers into %s", c.headerFile), nil)
		}
		return nil, services.Wrap(services.ErrProviderUnreachable, "itch", "load request headers", c.headerFile, err)
	}

	headers := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	if len(headers) == 0 {
		return nil, services.Wrap(services.ErrNeedsManualInput, "itch", "load request headers",
			fmt.Sprintf("no usable headers in %s", c.headerFile), nil)
	}
	return headers, nil
}

func (c *Client) get(ctx context.Context, endpoint string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProviderUnreachable, "itch", "fetch", endpoint, err)
	}
	defer resp.Body.Close()

	// A challenge response means the captured headers expired; the
	// operator has to solve it in a browser and re-capture.
	if resp.Header.Get("cf-mitigated") == "challenge" || resp.StatusCode == http.StatusForbidden {
		return "", services.Wrap(services.ErrNeedsManualInput, "itch", "fetch",
			"bot challenge rejected the captured headers; re-capture and retry", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrProviderUnreachable, "itch", "fetch",
			fmt.Sprintf("%s: unexpected status %s", endpoint, resp.Status), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", services.Wrap(services.ErrProviderUnreachable, "itch", "read response", endpoint, err)
	}
	return string(body), nil
}
