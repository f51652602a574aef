package url

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *URL {
	t.Helper()
	u, err := NewURL(raw)
	require.NoError(t, err)
	return u
}

func TestScheme(t *testing.T) {
	if u := mustURL(t, "http://example.com/path"); u.scheme != "http" {
		t.Errorf("Expected scheme 'http', got '%s'", u.scheme)
	}
	if u := mustURL(t, "HTTPS://example.com/path"); u.scheme != "https" {
		t.Errorf("Expected scheme 'https', got '%s'", u.scheme)
	}
}

func TestDefaultPort(t *testing.T) {
	if u := mustURL(t, "http://example.com/path"); u.port != 80 {
		t.Errorf("Expected default port 80 for HTTP, got %d", u.port)
	}
	if u := mustURL(t, "https://example.com/path"); u.port != 443 {
		t.Errorf("Expected default port 443 for HTTPS, got %d", u.port)
	}
}

func TestCustomPort(t *testing.T) {
	u := mustURL(t, "http://example.com:8080/path")
	if u.port != 8080 {
		t.Errorf("Expected port 8080, got %d", u.port)
	}
	assert.Equal(t, "http://example.com:8080/path", u.String())
}

func TestInvalidURLs(t *testing.T) {
	for _, raw := range []string{"http://example.com:invalid/path", "invalid-url", "", "http:///nohost"} {
		if _, err := NewURL(raw); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
	_, err := NewURL("ftp://example.com/path")
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))
}

func TestPath(t *testing.T) {
	tests := map[string]string{
		"http://example.com/path/to/resource": "/path/to/resource",
		"http://example.com":                  "/",
		"http://example.com/path/":            "/path/",
		"http://example.com/search?q=go":      "/search?q=go",
		"file:///tmp/page.html":               "/tmp/page.html",
	}
	for raw, want := range tests {
		assert.Equal(t, want, mustURL(t, raw).path, raw)
	}
}

func TestResolve(t *testing.T) {
	base := mustURL(t, "http://example.com/dir/page.html")
	tests := map[string]string{
		"other.html":               "http://example.com/dir/other.html",
		"/root.css":                "http://example.com/root.css",
		"../up.html":               "http://example.com/up.html",
		"//cdn.example.org/lib.js": "http://cdn.example.org/lib.js",
		"https://secure.test/x":    "https://secure.test/x",
		"#top":                     "http://example.com/dir/page.html",
	}
	for link, want := range tests {
		got, err := base.Resolve(link)
		require.NoError(t, err, link)
		assert.Equal(t, want, got.String(), link)
	}
}

func TestOrigin(t *testing.T) {
	a := mustURL(t, "http://example.com/a")
	b := mustURL(t, "http://example.com:80/b")
	c := mustURL(t, "https://example.com/a")
	assert.Equal(t, "http://example.com:80", a.Origin())
	assert.True(t, a.SameOrigin(b))
	assert.False(t, a.SameOrigin(c))
	assert.False(t, a.SameOrigin(nil))
}

func TestHTTPFetch(t *testing.T) {
	var gotCookie, gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Security-Policy", "default-src http://example.com")
		w.Header().Set("Set-Cookie", "session=abc; SameSite=Lax")
		_, _ = w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), nil)
	u := mustURL(t, srv.URL+"/page")

	resp, err := f.Fetch(context.Background(), u, nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "<html>hi</html>", string(resp.Body))
	assert.Equal(t, "default-src http://example.com", resp.Header["content-security-policy"])
	assert.Empty(t, gotCookie)
	assert.Equal(t, http.MethodGet, gotMethod)

	_, err = f.Fetch(context.Background(), u, u, "name=1")
	require.NoError(t, err)
	assert.Equal(t, "session=abc", gotCookie, "same-site POST carries the cookie")
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "name=1", gotBody)

	other := mustURL(t, "http://elsewhere.test/")
	_, err = f.Fetch(context.Background(), u, other, "name=2")
	require.NoError(t, err)
	assert.Empty(t, gotCookie, "lax cookie withheld from cross-site POST")
}

func TestFileFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>local</p>"), 0o644))

	f := NewDefaultFetcher(nil)
	resp, err := f.Fetch(context.Background(), mustURL(t, "file://"+path), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "<p>local</p>", string(resp.Body))

	_, err = f.Fetch(context.Background(), mustURL(t, "file://"+path+".missing"), nil, "")
	assert.Error(t, err)
}
