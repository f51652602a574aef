package browser

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rendercore/font"
	"rendercore/html"
	"rendercore/layout"
	"rendercore/task"
	"rendercore/url"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const origin = "http://test.example"

var testFonts = font.NewCache(nil)

type page struct {
	body   string
	header map[string]string
}

// fakeFetcher serves pages from memory and records what was asked for.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]page
	requests []string
}

func newFakeFetcher(pages map[string]page) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(ctx context.Context, u *url.URL, referrer *url.URL, payload string) (*url.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, u.String())
	p, ok := f.pages[u.String()]
	if !ok {
		return nil, fmt.Errorf("404 not found: %s", u)
	}
	header := p.header
	if header == nil {
		header = map[string]string{}
	}
	return &url.Response{Status: 200, Header: header, Body: []byte(p.body)}, nil
}

func (f *fakeFetcher) requested(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == u {
			return true
		}
	}
	return false
}

type capture struct {
	mu     sync.Mutex
	frames []*image.NRGBA
}

func (c *capture) Present(frame *image.NRGBA, _ *CommitData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, imaging.Clone(frame))
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *capture) last() *image.NRGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[len(c.frames)-1]
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.NewURL(raw)
	require.NoError(t, err)
	return u
}

func newTestBrowser(t *testing.T, pages map[string]page) (*Browser, *fakeFetcher, *capture) {
	t.Helper()
	fetcher := newFakeFetcher(pages)
	frames := &capture{}
	b := NewBrowser(Options{
		ViewportWidth:  400,
		ViewportHeight: 300,
		FrameInterval:  100 * time.Millisecond,
		Fonts:          testFonts,
		Fetcher:        fetcher,
	}, frames, nil)
	t.Cleanup(b.Stop)
	return b, fetcher, frames
}

func load(t *testing.T, b *Browser, raw string) {
	t.Helper()
	require.NoError(t, b.Load(context.Background(), mustURL(t, raw)))
}

// render runs one render on the content thread and waits for it.
func render(t *testing.T, tab *Tab) {
	t.Helper()
	require.NoError(t, tab.do(context.Background(), "render", func() error {
		tab.Render()
		return nil
	}))
}

func inspect(t *testing.T, tab *Tab, fn func(doc *html.Node, box *layout.Box)) {
	t.Helper()
	require.NoError(t, tab.RunTask(context.Background(), fn))
}

func findNode(root *html.Node, tag string) *html.Node {
	for _, n := range html.TreeToList(root) {
		if n.Tag() == tag {
			return n
		}
	}
	return nil
}

func boxFor(root *layout.Box, match func(b *layout.Box) bool) *layout.Box {
	for _, b := range layout.TreeToList(root) {
		if match(b) {
			return b
		}
	}
	return nil
}

func TestLoadRenderAndPresent(t *testing.T) {
	b, _, frames := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<p style="background-color: red">Hello World</p>`},
	})
	load(t, b, origin+"/")
	assert.True(t, b.Tab().NeedsRender(), "navigation asks for a render")

	for i := 0; i < 100 && frames.count() == 0; i++ {
		require.NoError(t, b.Tick())
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, frames.count())
	assert.False(t, b.Tab().NeedsRender())

	commit := b.Tab().Commit()
	require.NotNil(t, commit)
	assert.Equal(t, origin+"/", commit.URL.String())
	require.NotNil(t, commit.Scroll)
	assert.Zero(t, *commit.Scroll)
	assert.NotEmpty(t, commit.DisplayList)

	var docHeight float64
	inspect(t, b.Tab(), func(_ *html.Node, box *layout.Box) { docHeight = box.Height })
	assert.Equal(t, math.Ceil(docHeight+2*layout.VSTEP), commit.Height)

	frame := frames.last()
	assert.Equal(t, image.Rect(0, 0, 400, 300), frame.Bounds())
	r, g, _, _ := frame.At(400-int(layout.HSTEP)-3, int(layout.VSTEP)+2).RGBA()
	assert.Equal(t, uint32(0xffff), r, "paragraph background is red")
	assert.Zero(t, g)

	require.NoError(t, b.Tick())
	assert.Equal(t, 1, frames.count(), "nothing new to draw")
}

func TestStylesheetsAreJoinedBeforeFirstRender(t *testing.T) {
	b, fetcher, _ := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<html><head>
			<link rel="stylesheet" href="a.css">
			<link rel="stylesheet" href="missing.css">
			<link rel="stylesheet" href="b.css">
			</head><body><p>x</p><span>y</span></body></html>`},
		origin + "/a.css": {body: "p { color: red } span { color: green }"},
		origin + "/b.css": {body: "span { color: blue }"},
	})
	load(t, b, origin+"/")
	assert.True(t, fetcher.requested(origin+"/missing.css"))

	render(t, b.Tab())
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, "red", findNode(doc, "p").Style["color"])
		assert.Equal(t, "blue", findNode(doc, "span").Style["color"], "later sheets win")
	})
}

func TestContentSecurityPolicyBlocksStylesheets(t *testing.T) {
	b, fetcher, _ := newTestBrowser(t, map[string]page{
		origin + "/": {
			body:   `<html><head><link rel="stylesheet" href="http://cdn.example/s.css"></head><body><p>x</p></body></html>`,
			header: map[string]string{"content-security-policy": "default-src " + origin},
		},
		"http://cdn.example/s.css": {body: "p { color: red }"},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())

	assert.False(t, fetcher.requested("http://cdn.example/s.css"))
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, "black", findNode(doc, "p").Style["color"])
	})
}

func TestDefaultStyleSheet(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<p><a href="/x">link</a> <b>bold</b></p>`},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, "blue", findNode(doc, "a").Style["color"])
		assert.Equal(t, "bold", findNode(doc, "b").Style["font-weight"])
	})
}

func TestStyleErrorDoesNotPublish(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<p style="font-size: huge">x</p>`},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())
	assert.Nil(t, b.Tab().Commit())
	assert.False(t, b.Tab().needsDraw.Load())
}

func TestClickFocusesInputAndTypes(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<p><input value="old"></p>`},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())

	var input *layout.Box
	inspect(t, b.Tab(), func(_ *html.Node, box *layout.Box) {
		input = boxFor(box, func(b *layout.Box) bool { return b.Kind == layout.KindInput })
	})
	require.NotNil(t, input)

	b.Click(input.X+1, input.Y+1)
	for _, r := range "hey" {
		b.Key(r)
	}
	b.Key('\b')
	b.Key('\n')

	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		node := findNode(doc, "input")
		assert.True(t, node.IsFocused())
		value, _ := node.Attribute("value")
		assert.Equal(t, "he", value)
	})
	assert.True(t, b.Tab().NeedsRender())

	render(t, b.Tab())
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, "1px solid black", findNode(doc, "input").Style["outline"], "focused inputs match :focus")
	})

	b.Click(1, 1)
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.False(t, findNode(doc, "input").IsFocused(), "clicking elsewhere blurs")
	})
}

func TestClickFollowsLink(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/":     {body: `<p>go <a href="/next">there</a></p>`},
		origin + "/next": {body: `<p>arrived</p>`},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())

	var word *layout.Box
	inspect(t, b.Tab(), func(_ *html.Node, box *layout.Box) {
		word = boxFor(box, func(b *layout.Box) bool { return b.Word == "there" })
	})
	require.NotNil(t, word)

	b.Click(word.X+1, word.Y+1)
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, origin+"/next", b.Tab().url.String())
		assert.Equal(t, `"arrived"`, findNode(doc, "p").Children[0].String())
	})

	require.NoError(t, b.Tab().GoBack(context.Background()))
	inspect(t, b.Tab(), func(*html.Node, *layout.Box) {
		assert.Equal(t, origin+"/", b.Tab().url.String())
	})
}

func TestScrollIsClamped(t *testing.T) {
	b, _, frames := newTestBrowser(t, map[string]page{
		origin + "/": {body: strings.Repeat("<p>line</p>", 100)},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())
	require.NoError(t, b.Tick())
	require.Equal(t, 1, frames.count())

	height := b.Tab().Commit().Height
	require.Greater(t, height, 300.0)

	b.ScrollDown()
	assert.Equal(t, DefaultScrollStep, b.ScrollPosition())
	b.Scroll(1e6)
	assert.Equal(t, height-300, b.ScrollPosition())
	require.NoError(t, b.Tick())
	assert.Equal(t, 2, frames.count(), "scrolling redraws without a render")
	assert.False(t, b.Tab().NeedsRender())

	b.Scroll(-1e9)
	assert.Zero(t, b.ScrollPosition())
}

func TestOpacityTransitionAnimatesPerFrame(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/": {body: `<div style="opacity: 1; transition: opacity 400ms">fade</div>`},
	})
	load(t, b, origin+"/")
	render(t, b.Tab())

	require.NoError(t, b.Tab().RunScript(context.Background(), "fade", func(s *ScriptContext) error {
		divs, err := s.QuerySelectorAll("div")
		if err != nil {
			return err
		}
		return s.SetAttribute(divs[0], "style", "opacity: 0; transition: opacity 400ms")
	}))

	opacity := func() string {
		var v string
		inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) { v = findNode(doc, "div").Style["opacity"] })
		return v
	}
	var got []string
	for range 4 {
		render(t, b.Tab())
		got = append(got, opacity())
	}
	assert.Equal(t, []string{"0.75", "0.5", "0.25", "0"}, got)
	assert.False(t, b.Tab().NeedsRender(), "a finished transition stops asking for frames")
}

func TestRunDrawsUntilCancelled(t *testing.T) {
	fetcher := newFakeFetcher(map[string]page{origin + "/": {body: "<p>hi</p>"}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBrowser(Options{FrameInterval: time.Millisecond, Fonts: testFonts, Fetcher: fetcher},
		PresenterFunc(func(frame *image.NRGBA, commit *CommitData) error {
			assert.Equal(t, DefaultWidth, frame.Bounds().Dx())
			assert.Equal(t, DefaultHeight, frame.Bounds().Dy())
			cancel()
			return nil
		}), nil)
	defer b.Stop()

	load(t, b, origin+"/")
	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, b.Tab().Commit())
}

func TestNavigationFailsQueuedTasks(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{
		origin + "/":      {body: "<p>first</p>"},
		origin + "/other": {body: "<p>second</p>"},
	})
	load(t, b, origin+"/")
	tab := b.Tab()
	other := mustURL(t, origin+"/other")

	started := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		held <- tab.RunTask(context.Background(), func(*html.Node, *layout.Box) {
			close(started)
			<-release
		})
	}()
	<-started

	var ran atomic.Bool
	queued := make(chan error, 1)
	go func() {
		queued <- tab.RunTask(context.Background(), func(*html.Node, *layout.Box) { ran.Store(true) })
	}()
	require.Eventually(t, func() bool { return tab.runner.Pending() == 1 }, 5*time.Second, time.Millisecond)

	loaded := make(chan error, 1)
	go func() { loaded <- b.Load(context.Background(), other) }()

	select {
	case err := <-queued:
		assert.ErrorIs(t, err, task.ErrDropped)
	case <-time.After(5 * time.Second):
		t.Fatal("queued task was never released")
	}
	close(release)
	require.NoError(t, <-held)
	require.NoError(t, <-loaded)
	assert.False(t, ran.Load())

	inspect(t, tab, func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, `"second"`, findNode(doc, "p").Children[0].String())
	})
}

func TestClosedTabFailsFast(t *testing.T) {
	b, _, _ := newTestBrowser(t, map[string]page{origin + "/": {body: "<p>hi</p>"}})
	load(t, b, origin+"/")
	b.Stop()

	err := b.Tab().RunTask(context.Background(), func(*html.Node, *layout.Box) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Load(context.Background(), mustURL(t, origin+"/")), ErrClosed)
	assert.ErrorIs(t, b.Tab().GoBack(context.Background()), ErrClosed)
}
