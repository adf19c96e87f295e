package syncexec

import (
	"context"
	"fmt"
	"image/gif"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Downloader fetches a URL and streams the body to w.
type Downloader func(ctx context.Context, url string, w io.Writer) error

type downloader struct {
	fetch    Downloader
	gateways []string // hosts tried in order for ipfs:// sources
}

func newDownloader(userAgent string) *downloader {
	client := &http.Client{Timeout: 5 * time.Minute}
	return &downloader{
		fetch: func(ctx context.Context, url string, w io.Writer) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if userAgent != "" {
				req.Header.Set("User-Agent", userAgent)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %s", resp.Status)
			}
			_, err = io.Copy(w, resp.Body)
			return err
		},
	}
}

// ipfsScheme prefixes planner source URLs for content-addressed ROMs. The
// planner stays gateway-agnostic; resolution happens here.
const ipfsScheme = "ipfs://"

// fetchToTemp downloads url into a hidden temp file inside dir and returns
// its path. The temp file never becomes visible at a destination path; a
// failed or cancelled download leaves nothing but the temp file, which the
// caller removes. ipfs:// sources are tried against each configured gateway
// until one delivers.
func (d *downloader) fetchToTemp(ctx context.Context, url, dir string) (string, error) {
	if cid, ok := strings.CutPrefix(url, ipfsScheme); ok {
		return d.fetchIPFSToTemp(ctx, cid, dir)
	}
	return d.fetchURLToTemp(ctx, url, dir)
}

func (d *downloader) fetchURLToTemp(ctx context.Context, url, dir string) (string, error) {
	tmp, err := os.CreateTemp(dir, ".cartkeep-dl-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := d.fetch(ctx, url, tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, nil
}

func (d *downloader) fetchIPFSToTemp(ctx context.Context, cid, dir string) (string, error) {
	if len(d.gateways) == 0 {
		return "", fmt.Errorf("ipfs source %s: no gateways configured", cid)
	}
	var lastErr error
	for _, gateway := range d.gateways {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		url := gatewayURL(gateway, cid)
		path, err := d.fetchURLToTemp(ctx, url, dir)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("ipfs source %s: all gateways failed: %w", cid, lastErr)
}

func gatewayURL(gateway, cid string) string {
	gateway = strings.TrimRight(gateway, "/")
	if !strings.Contains(gateway, "://") {
		gateway = "https://" + gateway
	}
	return gateway + "/ipfs/" + cid
}

// convertGIFToPNG re-encodes a downloaded GIF as PNG in a sibling temp file
// and returns its path. Input that is not a GIF passes through untouched.
func convertGIFToPNG(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	img, err := gif.Decode(in)
	if err != nil {
		// Some covers are already PNG despite the .gif source URL.
		return path, nil
	}

	out, err := os.CreateTemp(filepath.Dir(path), ".cartkeep-png-*")
	if err != nil {
		return "", err
	}
	outPath := out.Name()
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		_ = os.Remove(outPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}
