// Package download fetches remote archives to local disk with resumable
// streaming and content-hash verification.
package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/fix"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/httputil"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/logging"
	"github.com/BigBuildBench/fgsfds-Steam-Superheater/internal/progress"
)

var log = logging.L("download")

// tempSuffix marks the sibling file a download streams into before the final
// rename.
const tempSuffix = ".temp"

// Outcome is the downloader's result, consumed immediately by the installer.
type Outcome struct {
	Kind      fix.ResultKind
	LocalPath string
	Message   string
}

// Options tunes a Downloader.
type Options struct {
	Timeout time.Duration
	// TrustedHashHost is the origin whose strong ETag values are treated as
	// content hashes for the pre-download check.
	TrustedHashHost string
	// ResumeMaxRetries caps how many times a faulted body copy is resumed.
	ResumeMaxRetries int
	// ProgressStepBytes is the copy-loop checkpoint interval for progress
	// reporting.
	ProgressStepBytes int64
}

// Downloader fetches a remote resource to a local path.
type Downloader struct {
	client           *http.Client
	trustedHashHost  string
	resumeMaxRetries int
	progressStep     int64
}

// New creates a Downloader.
func New(opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.ResumeMaxRetries <= 0 {
		opts.ResumeMaxRetries = 5
	}
	if opts.ProgressStepBytes <= 0 {
		opts.ProgressStepBytes = 256 * 1024
	}
	return &Downloader{
		client:           httputil.NewClient(opts.Timeout),
		trustedHashHost:  opts.TrustedHashHost,
		resumeMaxRetries: opts.ResumeMaxRetries,
		progressStep:     opts.ProgressStepBytes,
	}
}

// Download fetches url into destPath. The body streams into a sibling
// ".temp" file which is renamed to destPath only on full success. If
// expectedHash is non-empty it is checked against transport metadata before
// the body is read and recomputed over the final file afterwards.
func (d *Downloader) Download(ctx context.Context, url, destPath, expectedHash string, tracker *progress.Tracker) Outcome {
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	tempPath := destPath + tempSuffix
	// A temp file from an earlier attempt is not trusted; start clean.
	os.Remove(tempPath)

	resp, err := httputil.Get(ctx, d.client, url)
	if err != nil {
		if ctx.Err() != nil {
			return failure(fix.Cancelled, ctx.Err())
		}
		return failure(fix.ConnectionError, err)
	}
	defer resp.Body.Close()

	if !httputil.IsSuccess(resp.StatusCode) {
		return Outcome{Kind: fix.ConnectionError, Message: "download failed with status " + resp.Status}
	}

	verified := false
	if expectedHash != "" {
		ok, match := precheckHash(resp, url, d.trustedHashHost, expectedHash)
		if ok && !match {
			return Outcome{Kind: fix.HashMismatchError, Message: "remote content hash does not match expected " + expectedHash}
		}
		verified = ok
	}

	tmp, err := os.Create(tempPath)
	if err != nil {
		return failure(fix.GenericError, err)
	}

	total := resp.ContentLength
	tracker.BeginPhase(progress.PhaseDownloading)
	defer tracker.EndPhase()

	written, err := d.copyBody(ctx, tmp, resp.Body, 0, total, tracker)
	if err != nil {
		if ctx.Err() != nil {
			tmp.Close()
			os.Remove(tempPath)
			return failure(fix.Cancelled, ctx.Err())
		}
		// Transient stream fault. Resume from the current temp length with a
		// new byte-range request, bounded by exponential backoff.
		log.Warn("body copy interrupted", "url", url, "written", written, logging.KeyError, err)
		err = d.resume(ctx, url, tmp, total, tracker)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			os.Remove(tempPath)
			return failure(fix.Cancelled, ctx.Err())
		}
		if errors.Is(err, httputil.ErrRangeNotSupported) {
			return failure(fix.ConnectionError, err)
		}
		return failure(fix.GenericError, err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return failure(fix.GenericError, err)
	}

	if expectedHash != "" && !verified {
		actual, err := HashFile(destPath)
		if err != nil {
			return failure(fix.GenericError, err)
		}
		if !HashEqual(actual, expectedHash) {
			// The file stays in place; disposal is the caller's decision.
			return Outcome{
				Kind:      fix.HashMismatchError,
				LocalPath: destPath,
				Message:   "downloaded file hash " + actual + " does not match expected " + expectedHash,
			}
		}
	}

	log.Info("download complete", "url", url, "path", destPath)
	return Outcome{Kind: fix.Success, LocalPath: destPath}
}

func failure(kind fix.ResultKind, err error) Outcome {
	return Outcome{Kind: kind, Message: err.Error()}
}

// precheckHash compares expectedHash against transport metadata. The first
// return value reports whether a comparison was possible at all; the second
// whether it matched. A strong ETag from the trusted origin is compared
// case-sensitively; the generic content-hash header case-insensitively.
func precheckHash(resp *http.Response, url, trustedHost, expectedHash string) (ok, match bool) {
	if httputil.IsTrustedHost(url, trustedHost) {
		if tag := httputil.StrongETag(resp); tag != "" {
			return true, tag == expectedHash
		}
	}
	if header := httputil.ContentHash(resp); header != "" {
		return true, HashEqual(header, expectedHash)
	}
	return false, false
}

// copyBody streams body into w starting at offset, reporting progress at
// fixed byte-count checkpoints. Returns the absolute number of bytes present
// in w afterwards, which is also the resume offset on failure.
func (d *Downloader) copyBody(ctx context.Context, w io.Writer, body io.Reader, offset, total int64, tracker *progress.Tracker) (int64, error) {
	buf := make([]byte, 32*1024)
	written := offset
	lastReport := offset

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if written-lastReport >= d.progressStep {
				tracker.Report(written, total)
				lastReport = written
			}
		}
		if rerr == io.EOF {
			tracker.Report(written, total)
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// resume re-requests the remainder of the resource until the copy completes,
// the retry budget is exhausted, or ctx is cancelled.
func (d *Downloader) resume(ctx context.Context, url string, tmp *os.File, total int64, tracker *progress.Tracker) error {
	attempt := func() error {
		off, err := tmp.Seek(0, io.SeekEnd)
		if err != nil {
			return backoff.Permanent(err)
		}

		log.Debug("resuming download", "url", url, "offset", off)
		resp, err := httputil.GetRange(ctx, d.client, url, off)
		if err != nil {
			if errors.Is(err, httputil.ErrRangeNotSupported) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if _, err := d.copyBody(ctx, tmp, resp.Body, off, total, tracker); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.resumeMaxRetries)),
		ctx,
	)
	return backoff.Retry(attempt, bo)
}
