// Package fetcher clips images from web pages: it finds the most
// representative image on a page and downloads its bytes for upload.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	maxPageSize  = 5 * 1024 * 1024
	maxImageSize = 20 * 1024 * 1024
)

// Image is a downloaded image payload.
type Image struct {
	Data     []byte
	MIMEType string
	Source   string // resolved image URL
}

// Fetcher clips images from pages.
type Fetcher struct {
	http *http.Client
}

func New() *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: 30 * time.Second}}
}

// Clip fetches a page, picks its primary image (og:image when
// present, the first inline image otherwise), and downloads it. When
// the URL points directly at an image it is downloaded as-is.
func (f *Fetcher) Clip(ctx context.Context, rawURL string) (*Image, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		return readImage(resp, u.String())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	imgURL := findPrimaryImage(string(body))
	if imgURL == "" {
		return nil, fmt.Errorf("no image found on page")
	}
	resolved, err := resolveRef(u, imgURL)
	if err != nil {
		return nil, err
	}

	imgResp, err := f.get(ctx, resolved)
	if err != nil {
		return nil, err
	}
	defer imgResp.Body.Close()

	return readImage(imgResp, resolved)
}

// IsURL checks if a string looks like a URL.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "muse/1.0 (inspiration-board)")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

func readImage(resp *http.Response, source string) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image at %s", source)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	return &Image{Data: data, MIMEType: mimeType, Source: source}, nil
}

func normalizeURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "www.") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return u, nil
}

func resolveRef(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image URL %q: %w", ref, err)
	}
	return base.ResolveReference(refURL).String(), nil
}

// findPrimaryImage parses HTML and returns the best image candidate:
// the og:image meta tag when present, otherwise the first <img> src.
func findPrimaryImage(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var ogImage, firstImg string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var property, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "property", "name":
						property = a.Val
					case "content":
						content = a.Val
					}
				}
				if (property == "og:image" || property == "twitter:image") && ogImage == "" {
					ogImage = content
				}
			case "img":
				if firstImg == "" {
					for _, a := range n.Attr {
						if a.Key == "src" && a.Val != "" && !strings.HasPrefix(a.Val, "data:") {
							firstImg = a.Val
							break
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if ogImage != "" {
		return ogImage
	}
	return firstImg
}
