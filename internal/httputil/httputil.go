// Package httputil holds HTTP plumbing shared by the downloader.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ContentHashHeader is the transport-level content hash header checked before
// a body is downloaded.
const ContentHashHeader = "X-Content-Hash"

// NewClient returns the HTTP client used for archive downloads.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Get issues a plain GET for the full resource.
func Get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// ErrRangeNotSupported indicates the server answered a byte-range request
// with something other than 206 Partial Content.
var ErrRangeNotSupported = errors.New("server does not support range requests")

// GetRange issues a byte-range GET starting at offset. The server must answer
// with 206 Partial Content for the resume to be usable.
func GetRange(ctx context.Context, client *http.Client, rawURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("resume from offset %d got status %d: %w", offset, resp.StatusCode, ErrRangeNotSupported)
	}
	return resp, nil
}

// StrongETag extracts a strong ETag value from the response, stripped of
// quotes. Weak validators (W/"...") are not content hashes and yield "".
func StrongETag(resp *http.Response) string {
	tag := resp.Header.Get("ETag")
	if tag == "" || strings.HasPrefix(tag, "W/") {
		return ""
	}
	return strings.Trim(tag, `"`)
}

// ContentHash returns the transport content-hash header, if present.
func ContentHash(resp *http.Response) string {
	return resp.Header.Get(ContentHashHeader)
}

// IsTrustedHost reports whether the URL's host is, or is a subdomain of,
// the configured trusted hash-token origin.
func IsTrustedHost(rawURL, trustedHost string) bool {
	if trustedHost == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == trustedHost || strings.HasSuffix(host, "."+trustedHost)
}

// IsSuccess reports whether the status code is in the 2xx range.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
