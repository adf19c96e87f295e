package itch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"cartkeep/internal/collection"
	"cartkeep/internal/services"
	"cartkeep/internal/services/itch"
	"cartkeep/internal/testsupport"
)

const feedXML = `<rss><channel>
<item>
  <link>https://nightcoder.itch.io/night-drive</link>
  <pubDate>Tue, 14 Nov 2023 22:13:20 GMT</pubDate>
  <updateDate>Sat, 01 Jun 2024 00:00:00 GMT</updateDate>
</item>
</channel></rss>`

const emptyFeedXML = `<rss><channel></channel></rss>`

const pageHTML = `<div class="game_cell" data-game_id="123456">
  <div class="game_title"><a href="https://nightcoder.itch.io/night-drive">Night <strong>Drive</strong></a></div>
  <div class="game_author"><a href="https://nightcoder.itch.io">nightcoder</a></div>
  <div class="game_text">A moody racer.</div>
</div></div></div>
<div class="game_cell" data-game_id="500">
  <div class="game_title"><a href="https://someone.itch.io/ancient">Ancient</a></div>
  <div class="game_author"><a href="https://someone.itch.io">someone</a></div>
  <div class="game_text">Too old to be real.</div>
</div></div></div>`

func headerFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "itch_headers.txt")
	testsupport.WriteFile(t, path, []byte(content))
	return path
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "cf_clearance=abc" {
			http.Error(w, "missing captured headers", http.StatusForbidden)
			return
		}
		firstPage := r.URL.Query().Get("page") == "1"
		firstFeed := strings.Contains(r.URL.Path, "made-with-tic-80")
		if strings.HasSuffix(r.URL.Path, ".xml") {
			if firstPage && firstFeed {
				_, _ = w.Write([]byte(feedXML))
			} else {
				_, _ = w.Write([]byte(emptyFeedXML))
			}
			return
		}
		if firstPage && firstFeed {
			env := `{"num_items": 2, "content": ` + jsonQuote(pageHTML) + `}`
			_, _ = w.Write([]byte(env))
		} else {
			_, _ = w.Write([]byte(`{"num_items": 0, "content": ""}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// jsonQuote escapes an HTML fragment for embedding as a JSON string value.
func jsonQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}

func TestFetchSnapshotParsesFeedsAndCells(t *testing.T) {
	server := newServer(t)
	headers := headerFile(t, "# captured from the browser\nCookie: cf_clearance=abc\n")
	client := itch.New(server.URL, headers, itch.WithHTTPClient(server.Client()))

	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if snap.Provider != collection.ProviderItch {
		t.Fatalf("wrong provider: %q", snap.Provider)
	}
	// The low-id cell is a known feed false positive and must be dropped.
	if len(snap.Records) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(snap.Records), snap.Records)
	}

	rec := snap.Records[0]
	if rec.ProviderID != "123456" {
		t.Fatalf("wrong id: %q", rec.ProviderID)
	}
	if rec.Title != "Night Drive" {
		t.Fatalf("markup not stripped from title: %q", rec.Title)
	}
	if rec.Author != "nightcoder" || rec.Description != "A moody racer." {
		t.Fatalf("cell metadata not parsed: %+v", rec)
	}
	if rec.PublishedAt != 1700000000 || rec.UpdatedAt != 1717200000 {
		t.Fatalf("feed dates not joined in: %+v", rec)
	}
	if rec.Fingerprint != "rev-1717200000" {
		t.Fatalf("revision fingerprint = %q", rec.Fingerprint)
	}
	if rec.PageURL != "https://nightcoder.itch.io/night-drive" {
		t.Fatalf("page url not carried: %q", rec.PageURL)
	}
}

func TestFetchSnapshotNeedsHeaderCapture(t *testing.T) {
	client := itch.New("https://itch.invalid", filepath.Join(t.TempDir(), "absent.txt"))
	_, err := client.FetchSnapshot(context.Background())
	if !errors.Is(err, services.ErrNeedsManualInput) {
		t.Fatalf("missing header file must need manual input, got %v", err)
	}

	empty := headerFile(t, "# nothing captured yet\n")
	client = itch.New("https://itch.invalid", empty)
	_, err = client.FetchSnapshot(context.Background())
	if !errors.Is(err, services.ErrNeedsManualInput) {
		t.Fatalf("header file without entries must need manual input, got %v", err)
	}
}

func TestFetchSnapshotDetectsExpiredHeaders(t *testing.T) {
	server := newServer(t)
	headers := headerFile(t, "Cookie: cf_clearance=stale\n")
	client := itch.New(server.URL, headers, itch.WithHTTPClient(server.Client()))

	_, err := client.FetchSnapshot(context.Background())
	if !errors.Is(err, services.ErrNeedsManualInput) {
		t.Fatalf("a rejected challenge must need manual input, got %v", err)
	}
}

func TestFetchSnapshotDetectsBotChallengeHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-mitigated", "challenge")
		_, _ = w.Write([]byte("checking your browser"))
	}))
	defer server.Close()

	headers := headerFile(t, "Cookie: cf_clearance=abc\n")
	client := itch.New(server.URL, headers, itch.WithHTTPClient(server.Client()))

	_, err := client.FetchSnapshot(context.Background())
	if !errors.Is(err, services.ErrNeedsManualInput) {
		t.Fatalf("cf-mitigated challenge must need manual input, got %v", err)
	}
}

// rewriteHost routes every request to the test server while keeping the
// request path, so pages may reference itch.zone player frames the way the
// live site does.
type rewriteHost struct {
	target string
}

func (r rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	target, err := url.Parse(r.target)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newFrameServer(t *testing.T, gameHTML, frameHTML string) *itch.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/night-drive":
			_, _ = w.Write([]byte(gameHTML))
		case "/html/9872446/index-only/index.html":
			_, _ = w.Write([]byte(frameHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	headers := headerFile(t, "Cookie: cf_clearance=abc\n")
	httpClient := &http.Client{Transport: rewriteHost{target: server.URL}}
	return itch.New(server.URL, headers, itch.WithHTTPClient(httpClient))
}

func TestEnrichResolvesCartFromPlayerFrame(t *testing.T) {
	gameHTML := `<html><iframe src="https://html.itch.zone/html/9872446/index-only/index.html"></iframe></html>`
	frameHTML := `<script>TIC80({ arguments: ["cart/night-drive.tic"] })</script>`
	client := newFrameServer(t, gameHTML, frameHTML)

	rec := &collection.Record{
		Provider:   collection.ProviderItch,
		ProviderID: "123456",
		PageURL:    "https://nightcoder.itch.io/night-drive",
	}
	if err := client.Enrich(context.Background(), rec); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	want := "https://html.itch.zone/html/9872446/index-only/cart/night-drive.tic"
	if rec.DownloadURL != want {
		t.Fatalf("cart url = %q, want %q", rec.DownloadURL, want)
	}
}

func TestEnrichFallsBackToConventionalCartName(t *testing.T) {
	gameHTML := `<html><iframe src="https://html.itch.zone/html/9872446/index-only/index.html"></iframe></html>`
	frameHTML := `<script>boot()</script>`
	client := newFrameServer(t, gameHTML, frameHTML)

	rec := &collection.Record{
		Provider:   collection.ProviderItch,
		ProviderID: "123456",
		PageURL:    "https://nightcoder.itch.io/night-drive",
	}
	if err := client.Enrich(context.Background(), rec); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	want := "https://html.itch.zone/html/9872446/index-only/cart.tic"
	if rec.DownloadURL != want {
		t.Fatalf("cart url = %q, want %q", rec.DownloadURL, want)
	}
}

func TestEnrichLeavesResolvedRecordsAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request for %s", r.URL)
	}))
	defer server.Close()

	headers := headerFile(t, "Cookie: cf_clearance=abc\n")
	client := itch.New(server.URL, headers, itch.WithHTTPClient(server.Client()))

	rec := &collection.Record{
		Provider:    collection.ProviderItch,
		ProviderID:  "123456",
		PageURL:     server.URL + "/night-drive",
		DownloadURL: "https://html.itch.zone/html/1/cart.tic",
	}
	if err := client.Enrich(context.Background(), rec); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if rec.DownloadURL != "https://html.itch.zone/html/1/cart.tic" {
		t.Fatalf("resolved url must be kept: %q", rec.DownloadURL)
	}
}

func TestEnrichRejectsPageWithoutPlayerFrame(t *testing.T) {
	client := newFrameServer(t, `<html><p>downloads only</p></html>`, "")

	rec := &collection.Record{
		Provider:   collection.ProviderItch,
		ProviderID: "123456",
		PageURL:    "https://nightcoder.itch.io/night-drive",
	}
	err := client.Enrich(context.Background(), rec)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("a page without a player frame must fail validation, got %v", err)
	}
}
