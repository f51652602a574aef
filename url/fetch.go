package url

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const userAgent = "rendercore"

// Response is a fetched body with its headers. Header names are lower case.
type Response struct {
	Status int
	Header map[string]string
	Body   []byte
}

// Fetcher loads the body behind a URL. referrer is the page that asked for
// it, or nil. A non-empty payload makes an HTTP request a POST.
type Fetcher interface {
	Fetch(ctx context.Context, u *URL, referrer *URL, payload string) (*Response, error)
}

// SchemeFetcher dispatches on the URL scheme.
type SchemeFetcher map[string]Fetcher

func (s SchemeFetcher) Fetch(ctx context.Context, u *URL, referrer *URL, payload string) (*Response, error) {
	f, ok := s[u.Scheme()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme())
	}
	return f.Fetch(ctx, u, referrer, payload)
}

// NewDefaultFetcher serves http, https and file URLs.
func NewDefaultFetcher(log *zap.Logger) SchemeFetcher {
	httpFetcher := NewHTTPFetcher(nil, log)
	return SchemeFetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
		"file":  NewFileFetcher(log),
	}
}

type cookie struct {
	value  string
	params map[string]string
}

// HTTPFetcher fetches over net/http and keeps one cookie per host. A
// SameSite=Lax cookie is withheld from cross-site POSTs.
type HTTPFetcher struct {
	client *http.Client
	log    *zap.Logger

	mu  sync.Mutex
	jar map[string]cookie
}

func NewHTTPFetcher(client *http.Client, log *zap.Logger) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPFetcher{client: client, log: log.Named("fetch"), jar: map[string]cookie{}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, u *URL, referrer *URL, payload string) (*Response, error) {
	method := http.MethodGet
	var body io.Reader
	if payload != "" {
		method = http.MethodPost
		body = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if payload != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	}
	if c, ok := f.cookieFor(u, referrer, method); ok {
		req.Header.Set("Cookie", c)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	header := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			header[strings.ToLower(name)] = values[0]
		}
	}
	if setCookie, ok := header["set-cookie"]; ok {
		f.storeCookie(u.Host(), setCookie)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	f.log.Debug("Fetched", zap.Stringer("url", u), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(content)))
	return &Response{Status: resp.StatusCode, Header: header, Body: content}, nil
}

func (f *HTTPFetcher) cookieFor(u, referrer *URL, method string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.jar[u.Host()]
	if !ok {
		return "", false
	}
	if referrer != nil && c.params["samesite"] == "lax" && method != http.MethodGet {
		return c.value, u.Host() == referrer.Host()
	}
	return c.value, true
}

func (f *HTTPFetcher) storeCookie(host, header string) {
	value, rest, _ := strings.Cut(header, ";")
	params := map[string]string{}
	for param := range strings.SplitSeq(rest, ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		key, v, found := strings.Cut(param, "=")
		if !found {
			v = "true"
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(strings.TrimSpace(v))
	}
	f.mu.Lock()
	f.jar[host] = cookie{value: strings.TrimSpace(value), params: params}
	f.mu.Unlock()
}

// FileFetcher reads file URLs from the local disk.
type FileFetcher struct {
	log *zap.Logger
}

func NewFileFetcher(log *zap.Logger) *FileFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileFetcher{log: log.Named("fetch")}
}

func (f *FileFetcher) Fetch(ctx context.Context, u *URL, _ *URL, _ string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(u.Path())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	f.log.Debug("Read file", zap.String("path", u.Path()), zap.Int("bytes", len(content)))
	return &Response{Status: http.StatusOK, Header: map[string]string{}, Body: content}, nil
}
