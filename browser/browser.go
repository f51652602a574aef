// Package browser schedules rendering for a tab: a content thread that runs
// style, layout and paint, and a presentation loop that rasters committed
// display lists and hands viewport frames to a Presenter.
package browser

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
	"unicode"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"rendercore/display"
	"rendercore/font"
	"rendercore/trace"
	"rendercore/url"
)

const (
	DefaultWidth         = 800
	DefaultHeight        = 600
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultScrollStep    = 100.
)

// Options configures a Browser and its tab. Zero fields take defaults.
type Options struct {
	ViewportWidth  int
	ViewportHeight int
	FrameInterval  time.Duration
	ScrollStep     float64
	DarkMode       bool

	Fonts     *font.Cache
	Fetcher   url.Fetcher
	Measure   *trace.MeasureTime
	Allocator display.Allocator
}

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultHeight
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.ScrollStep <= 0 {
		o.ScrollStep = DefaultScrollStep
	}
	if o.Fonts == nil {
		o.Fonts = font.NewCache(nil)
	}
	if o.Fetcher == nil {
		o.Fetcher = url.NewDefaultFetcher(nil)
	}
	if o.Allocator == nil {
		o.Allocator = display.DefaultAllocator
	}
	return o
}

// Presenter receives every drawn viewport frame. It is called on the
// presentation goroutine and must not keep frame after returning.
type Presenter interface {
	Present(frame *image.NRGBA, commit *CommitData) error
}

type PresenterFunc func(frame *image.NRGBA, commit *CommitData) error

func (f PresenterFunc) Present(frame *image.NRGBA, commit *CommitData) error {
	return f(frame, commit)
}

// Browser is the presentation side. It owns the tab surface, the scroll
// position and the frame ticker; it reads only what the tab publishes.
type Browser struct {
	opts      Options
	log       *zap.Logger
	tab       *Tab
	presenter Presenter

	surface *display.Surface

	mu        sync.Mutex
	scroll    float64
	needsDraw bool
	commit    *CommitData
	stopOnce  sync.Once
}

func NewBrowser(opts Options, presenter Presenter, log *zap.Logger) *Browser {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	b := &Browser{
		opts:      opts,
		log:       log.Named("browser"),
		presenter: presenter,
		surface:   display.NewSurface(opts.ViewportWidth, opts.ViewportHeight, opts.Allocator),
	}
	b.tab = NewTab(opts, log)
	return b
}

func (b *Browser) Tab() *Tab {
	return b.tab
}

// Load navigates the tab and waits until the page is fetched and parsed.
func (b *Browser) Load(ctx context.Context, u *url.URL) error {
	return b.tab.Load(ctx, u, "")
}

// Run drives frames until ctx is done. Each tick schedules a render when
// the tab asked for one and draws when there is something new to show.
func (b *Browser) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.Tick(); err != nil {
				return err
			}
		}
	}
}

// Tick runs one presentation frame.
func (b *Browser) Tick() error {
	if b.tab.NeedsRender() {
		b.tab.ScheduleRender()
	}

	rastered := false
	if b.tab.needsDraw.Swap(false) {
		commit := b.tab.Commit()
		if err := b.raster(commit); err != nil {
			return err
		}
		rastered = true
	}

	b.mu.Lock()
	draw := rastered || b.needsDraw
	b.needsDraw = false
	b.mu.Unlock()
	if !draw {
		return nil
	}
	return b.draw()
}

// raster draws the whole document onto the tab surface.
func (b *Browser) raster(commit *CommitData) error {
	b.mu.Lock()
	b.commit = commit
	if commit.Scroll != nil {
		b.scroll = *commit.Scroll
	}
	b.scroll = b.clampScroll(b.scroll)
	b.mu.Unlock()

	b.opts.Measure.Time("raster")
	defer b.opts.Measure.Stop("raster")

	height := max(int(commit.Height), b.opts.ViewportHeight)
	if w, h := b.surface.Size(); w != b.opts.ViewportWidth || h != height {
		b.surface.Resize(b.opts.ViewportWidth, height)
	}
	err := b.surface.Redraw(b.background(), 0, func(c *display.Canvas) {
		display.Execute(c, commit.DisplayList)
	})
	if err != nil {
		return err
	}
	b.log.Debug("Rastered tab", zap.Float64("height", commit.Height), zap.Int("commands", len(commit.DisplayList)))
	return nil
}

// draw crops the viewport out of the tab surface and presents it.
func (b *Browser) draw() error {
	img := b.surface.Image()
	if img == nil {
		return nil
	}
	b.opts.Measure.Time("draw")
	defer b.opts.Measure.Stop("draw")

	b.mu.Lock()
	scroll := int(b.scroll)
	commit := b.commit
	b.mu.Unlock()

	frame := imaging.Crop(img, image.Rect(0, scroll, b.opts.ViewportWidth, scroll+b.opts.ViewportHeight))
	if frame.Bounds().Dy() < b.opts.ViewportHeight {
		frame = imaging.PasteCenter(imaging.New(b.opts.ViewportWidth, b.opts.ViewportHeight, b.background()), frame)
	}
	if b.presenter == nil {
		return nil
	}
	return b.presenter.Present(frame, commit)
}

func (b *Browser) background() color.Color {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opts.DarkMode {
		return color.Black
	}
	return color.White
}

// Scroll moves the viewport by dy pixels, clamped to the document.
func (b *Browser) Scroll(dy float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	scroll := b.clampScroll(b.scroll + dy)
	if scroll != b.scroll {
		b.scroll = scroll
		b.needsDraw = true
	}
}

func (b *Browser) ScrollDown() {
	b.Scroll(b.opts.ScrollStep)
}

func (b *Browser) ScrollUp() {
	b.Scroll(-b.opts.ScrollStep)
}

func (b *Browser) ScrollPosition() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scroll
}

// clampScroll keeps the viewport inside the document. Callers hold mu.
func (b *Browser) clampScroll(scroll float64) float64 {
	if b.commit == nil {
		return 0
	}
	maxScroll := b.commit.Height - float64(b.opts.ViewportHeight)
	return max(0, min(scroll, maxScroll))
}

// Click forwards a click at viewport coordinates to the tab.
func (b *Browser) Click(x, y float64) {
	b.tab.Click(x, y+b.ScrollPosition())
}

// Key forwards a typed character. Control characters other than backspace
// are ignored.
func (b *Browser) Key(r rune) {
	if r != '\b' && !unicode.IsPrint(r) {
		return
	}
	b.tab.Key(r)
}

// SetDarkMode switches the color scheme of the page and the background.
func (b *Browser) SetDarkMode(dark bool) {
	b.mu.Lock()
	b.opts.DarkMode = dark
	b.mu.Unlock()
	b.tab.SetDarkMode(dark)
}

// Stop shuts down the tab's content thread. Run must have returned or be
// about to; Stop is idempotent.
func (b *Browser) Stop() {
	b.stopOnce.Do(b.tab.Close)
}
