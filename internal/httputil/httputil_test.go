package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStrongETagStripsQuotes(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Etag": []string{`"ABC123"`}}}
	if got := StrongETag(resp); got != "ABC123" {
		t.Fatalf("StrongETag = %q, want ABC123", got)
	}
}

func TestStrongETagRejectsWeakValidator(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Etag": []string{`W/"ABC123"`}}}
	if got := StrongETag(resp); got != "" {
		t.Fatalf("weak validator should yield empty tag, got %q", got)
	}
}

func TestIsTrustedHost(t *testing.T) {
	cases := []struct {
		url     string
		trusted string
		want    bool
	}{
		{"https://fixes.s3.amazonaws.com/a.zip", "s3.amazonaws.com", true},
		{"https://s3.amazonaws.com/a.zip", "s3.amazonaws.com", true},
		{"https://evil-s3.amazonaws.com.example.org/a.zip", "s3.amazonaws.com", false},
		{"https://example.org/a.zip", "s3.amazonaws.com", false},
		{"https://example.org/a.zip", "", false},
	}
	for _, c := range cases {
		if got := IsTrustedHost(c.url, c.trusted); got != c.want {
			t.Errorf("IsTrustedHost(%q, %q) = %v, want %v", c.url, c.trusted, got, c.want)
		}
	}
}

func TestGetRangeRequiresPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "full body")
	}))
	defer srv.Close()

	_, err := GetRange(context.Background(), srv.Client(), srv.URL, 4)
	if !errors.Is(err, ErrRangeNotSupported) {
		t.Fatalf("err = %v, want ErrRangeNotSupported", err)
	}
}

func TestGetRangeSendsRangeHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=4-" {
			t.Errorf("Range header = %q, want bytes=4-", got)
		}
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, "tail")
	}))
	defer srv.Close()

	resp, err := GetRange(context.Background(), srv.Client(), srv.URL, 4)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "tail" {
		t.Fatalf("body = %q, want tail", body)
	}
}

func TestNewClientAppliesTimeout(t *testing.T) {
	c := NewClient(3 * time.Second)
	if c.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", c.Timeout)
	}
}

func TestIsSuccess(t *testing.T) {
	for code, want := range map[int]bool{200: true, 206: true, 299: true, 199: false, 301: false, 404: false, 500: false} {
		if got := IsSuccess(code); got != want {
			t.Errorf("IsSuccess(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestContentHashHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(ContentHashHeader, "ABC123")
	if got := ContentHash(resp); !strings.EqualFold(got, "abc123") {
		t.Fatalf("ContentHash = %q", got)
	}
}
