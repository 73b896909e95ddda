package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
)

// ErrBodyTooLarge is wrapped in the transport failure returned for a page
// larger than max_body_bytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Fetcher retrieves a single article page with a browser-like header profile.
type Fetcher struct {
	client       *http.Client
	headers      map[string]string
	referer      string
	retries      int
	retryBackoff time.Duration
	maxBodyBytes int64
}

// New creates a fetcher from the fetch section of the config.
func New(cfg config.Fetch) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		headers:      cfg.Headers,
		referer:      cfg.Referer,
		retries:      cfg.Retries,
		retryBackoff: cfg.RetryBackoff,
		maxBodyBytes: maxBody,
	}
}

// Fetch issues a GET for rawURL and returns the decoded document.
// Only transport failures are retried, and only when retries are configured.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*article.RawDocument, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, article.TransportError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * f.retryBackoff
			log.Printf("Retrying %s in %s (attempt %d/%d)", target, wait, attempt+1, f.retries+1)
			select {
			case <-ctx.Done():
				return nil, article.TransportError(ctx.Err())
			case <-time.After(wait):
			}
		}

		doc, err := f.fetchOnce(ctx, target)
		if err == nil {
			doc.RequestURL = strings.TrimSpace(rawURL)
			return doc, nil
		}
		lastErr = err
		if article.KindOf(err) != article.KindTransport || errors.Is(err, ErrBodyTooLarge) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, target *url.URL) (*article.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, article.TransportError(fmt.Errorf("building request: %w", err))
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Referer", f.refererFor(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, article.TransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, article.HTTPError(resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, article.TransportError(fmt.Errorf("reading body: %w", err))
	}
	if int64(len(raw)) > f.maxBodyBytes {
		return nil, article.TransportError(fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodyBytes))
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := decodeBody(raw, contentType)
	if err != nil {
		return nil, article.TransportError(fmt.Errorf("decoding body: %w", err))
	}

	return &article.RawDocument{
		RequestURL:  target.String(),
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (f *Fetcher) refererFor(target *url.URL) string {
	if f.referer != "" {
		return f.referer
	}
	return target.Scheme + "://" + target.Host + "/"
}

// decodeBody converts the response to UTF-8 using the declared or sniffed charset.
func decodeBody(raw []byte, contentType string) ([]byte, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(utf8Reader)
}

func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: not absolute", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	return u, nil
}
