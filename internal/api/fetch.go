package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperlens/internal/httputil"
	"paperlens/internal/util"
)

const defaultFetchTimeout = 30 * time.Second

var arxivAbsRe = regexp.MustCompile(`^(https?://(?:www\.)?arxiv\.org)/abs/`)

// fetchError carries the HTTP status a failed remote fetch maps to.
type fetchError struct {
	status int
	err    error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// resolvePDFURL turns arXiv abstract pages into their PDF links and
// rejects anything that is not an absolute http(s) URL.
func resolvePDFURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url must be an absolute http(s) url: %w", util.ErrValidation)
	}
	raw = arxivAbsRe.ReplaceAllString(raw, "$1/pdf/")
	if strings.Contains(raw, "arxiv.org/pdf/") && !strings.HasSuffix(raw, ".pdf") {
		raw += ".pdf"
	}
	return raw, nil
}

// fetchPDF downloads a PDF into dstDir and returns its path and a display
// filename. The whole download is bounded by timeout and maxBytes.
func fetchPDF(ctx context.Context, client *http.Client, rawURL, dstDir string, timeout time.Duration, maxBytes int64) (string, string, error) {
	pdfURL, err := resolvePDFURL(rawURL)
	if err != nil {
		return "", "", err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build fetch request: %w", util.ErrValidation)
	}
	req.Header.Set("User-Agent", "paperlens/1.0")
	req.Header.Set("Accept", "application/pdf")
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", "", &fetchError{status: http.StatusRequestTimeout, err: fmt.Errorf("fetch pdf timed out: %w", err)}
		}
		return "", "", &fetchError{status: http.StatusBadGateway, err: fmt.Errorf("fetch pdf: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &fetchError{status: http.StatusBadRequest, err: fmt.Errorf("fetch pdf: upstream status %d", resp.StatusCode)}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.Contains(mediaType, "pdf") && mediaType != "application/octet-stream" {
		return "", "", &fetchError{status: http.StatusBadRequest, err: fmt.Errorf("url does not point to a pdf (content type %q)", mediaType)}
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", "", err
	}
	p, err := savePDF(dstDir, resp.Body, maxBytes)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", "", &fetchError{status: http.StatusRequestTimeout, err: fmt.Errorf("fetch pdf timed out: %w", err)}
		}
		return "", "", err
	}
	return p, displayName(resp.Request.URL), nil
}

func displayName(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return u.Host + ".pdf"
	}
	if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base += ".pdf"
	}
	return base
}

var errTooLarge = errors.New("pdf exceeds size limit")

// savePDF copies at most maxBytes from src into a uuid-named file in
// dstDir. The file appears under its final name only once fully written.
func savePDF(dstDir string, src io.Reader, maxBytes int64) (string, error) {
	tmp, err := os.CreateTemp(dstDir, "upload-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	n, err := io.Copy(tmp, io.LimitReader(src, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > maxBytes {
		return "", &fetchError{status: http.StatusRequestEntityTooLarge, err: errTooLarge}
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dstDir, uuid.NewString()+".pdf")
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}
