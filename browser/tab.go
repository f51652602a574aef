package browser

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rendercore/css"
	"rendercore/html"
	"rendercore/layout"
	"rendercore/task"
	"rendercore/trace"
	"rendercore/url"
)

//go:embed browser.css
var defaultStyleSheet []byte

var (
	// ErrNotLoaded is returned by operations that need a document before
	// one has been loaded.
	ErrNotLoaded = errors.New("no document loaded")
	// ErrClosed is returned by operations on a closed tab.
	ErrClosed = errors.New("tab closed")
)

const maxConcurrentStylesheets = 8

// Tab owns one document and the content thread that mutates it. Everything
// below the atomics is only touched from tasks running on runner.
type Tab struct {
	id      uuid.UUID
	log     *zap.Logger
	runner  *task.Runner
	measure *trace.MeasureTime
	fetcher url.Fetcher

	ctx    context.Context
	cancel context.CancelFunc

	needsRender   atomic.Bool
	renderPending atomic.Bool
	needsDraw     atomic.Bool
	commit        atomic.Pointer[CommitData]

	parser       *css.Parser
	resolver     *css.Resolver
	engine       *layout.Engine
	defaultRules []css.Rule

	url            *url.URL
	history        []*url.URL
	nodes          *html.Node
	rules          []css.Rule
	document       *layout.Box
	focus          *html.Node
	allowedOrigins []string
	script         *ScriptContext
	scrollReset    bool
}

func NewTab(opts Options, log *zap.Logger) *Tab {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	t := &Tab{
		id:      id,
		log:     log.Named("tab").With(zap.Stringer("tab", id)),
		measure: opts.Measure,
		fetcher: opts.Fetcher,
		history: make([]*url.URL, 0),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.runner = task.NewRunner(t.log)
	t.parser = css.NewParser(t.log)
	t.resolver = css.NewResolver(t.parser, t.log,
		css.WithDarkMode(opts.DarkMode),
		css.WithTransitions(opts.FrameInterval, func(node *html.Node, property string) {
			t.SetNeedsRender()
		}))
	t.engine = layout.NewEngine(opts.Fonts, float64(opts.ViewportWidth), t.log)
	t.defaultRules = t.parser.ParseStylesheet(defaultStyleSheet, "browser.css")
	t.runner.StartThread()
	return t
}

func (t *Tab) ID() uuid.UUID {
	return t.id
}

// SetNeedsRender asks the presentation thread to schedule a render on the
// next frame. Safe from any goroutine.
func (t *Tab) SetNeedsRender() {
	t.needsRender.Store(true)
}

func (t *Tab) NeedsRender() bool {
	return t.needsRender.Load()
}

// Commit returns the most recently published frame, or nil.
func (t *Tab) Commit() *CommitData {
	return t.commit.Load()
}

// Close cancels outstanding loads and stops the content thread.
func (t *Tab) Close() {
	t.cancel()
	t.runner.SetNeedsQuit()
	t.runner.Wait()
}

// do runs fn on the content thread and waits for it. If the task is
// dropped by a navigation or by Close, the error wraps task.ErrDropped.
func (t *Tab) do(ctx context.Context, name string, fn func() error) error {
	if t.ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ErrClosed)
	}
	done := make(chan error, 1)
	tsk := task.NewTask(name, func() { done <- fn() }).
		OnCancel(func() { done <- fmt.Errorf("%s: %w", name, task.ErrDropped) })
	t.runner.ScheduleTask(tsk)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return fmt.Errorf("%s: %w", name, ErrClosed)
	}
}

func (t *Tab) schedule(name string, fn func()) {
	t.runner.ScheduleTask(task.NewTask(name, fn))
}

// clearPendingTasks drops queued work of the current page, including a
// queued render.
func (t *Tab) clearPendingTasks() {
	t.runner.ClearPendingTasks()
	t.renderPending.Store(false)
}

// Load navigates to u. A non-empty payload is sent as a form POST. Pending
// tasks of the previous page are dropped.
func (t *Tab) Load(ctx context.Context, u *url.URL, payload string) error {
	t.clearPendingTasks()
	return t.do(ctx, "load", func() error {
		return t.load(ctx, u, payload)
	})
}

func (t *Tab) load(ctx context.Context, u *url.URL, payload string) error {
	t.measure.Time("load")
	defer t.measure.Stop("load")
	start := time.Now()

	resp, err := t.fetcher.Fetch(ctx, u, t.url, payload)
	if err != nil {
		return fmt.Errorf("load %s: %w", u, err)
	}
	nodes, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("load %s: %w", u, err)
	}

	if t.script != nil {
		t.script.Discard()
	}
	t.url = u
	t.history = append(t.history, u)
	t.nodes = nodes
	t.document = nil
	t.focus = nil
	t.scrollReset = true
	t.allowedOrigins = parseCSP(resp.Header["content-security-policy"], t.log)

	t.rules = slices.Clone(t.defaultRules)
	t.rules = append(t.rules, t.loadStylesheets(ctx, t.links())...)
	t.script = newScriptContext(t)

	t.log.Info("Loaded page", zap.Stringer("url", u), zap.Int("rules", len(t.rules)), zap.Duration("took", time.Since(start)))
	t.SetNeedsRender()
	return nil
}

// parseCSP reads the default-src directive of a Content-Security-Policy
// header. A nil result allows every origin.
func parseCSP(header string, log *zap.Logger) []string {
	fields := strings.Fields(header)
	if len(fields) == 0 || fields[0] != "default-src" {
		return nil
	}
	origins := make([]string, 0, len(fields)-1)
	for _, origin := range fields[1:] {
		u, err := url.NewURL(origin)
		if err != nil {
			log.Warn("Invalid origin in Content-Security-Policy", zap.String("origin", origin), zap.Error(err))
			continue
		}
		origins = append(origins, u.Origin())
	}
	return origins
}

func (t *Tab) allowedRequest(u *url.URL) bool {
	return t.allowedOrigins == nil || slices.Contains(t.allowedOrigins, u.Origin())
}

func (t *Tab) links() []string {
	var links []string
	for _, node := range html.TreeToList(t.nodes) {
		if node.Tag() != "link" {
			continue
		}
		rel, _ := node.Attribute("rel")
		href, ok := node.Attribute("href")
		if ok && strings.EqualFold(rel, "stylesheet") {
			links = append(links, href)
		}
	}
	return links
}

// loadStylesheets fetches the linked sheets concurrently and returns their
// rules in document order. Sheets that fail are skipped.
func (t *Tab) loadStylesheets(ctx context.Context, links []string) []css.Rule {
	sheets := make([][]css.Rule, len(links))
	var (
		mu   sync.Mutex
		errs error
	)
	fail := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStylesheets)
	for i, link := range links {
		styleURL, err := t.url.Resolve(link)
		if err != nil {
			fail(err)
			continue
		}
		if !t.allowedRequest(styleURL) {
			fail(fmt.Errorf("stylesheet %s blocked by Content-Security-Policy", styleURL))
			continue
		}
		g.Go(func() error {
			resp, err := t.fetcher.Fetch(gctx, styleURL, t.url, "")
			if err != nil {
				fail(err)
				return nil
			}
			sheets[i] = t.parser.ParseStylesheet(resp.Body, styleURL.String())
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		t.log.Warn("Some stylesheets were not loaded", zap.Error(errs))
	}
	return slices.Concat(sheets...)
}

// ScheduleRender queues a render task unless one is already queued.
func (t *Tab) ScheduleRender() {
	if !t.renderPending.CompareAndSwap(false, true) {
		return
	}
	t.schedule("render", func() {
		t.renderPending.Store(false)
		t.Render()
	})
}

// Render runs one frame: animation-frame callbacks and running
// transitions, then style, layout and paint. A new CommitData is published
// unless style or layout failed. It must run on the content thread.
func (t *Tab) Render() {
	t.needsRender.Store(false)
	if t.nodes == nil {
		return
	}
	t.measure.Time("render")
	defer t.measure.Stop("render")

	if t.script != nil {
		t.script.dispatchAnimationFrame()
	}
	t.runAnimations()

	start := time.Now()
	t.measure.Time("style")
	err := t.resolver.Resolve(t.nodes, t.rules)
	t.measure.Stop("style")
	if err != nil {
		t.log.Error("Style failed", zap.Error(err))
		return
	}
	t.log.Debug("Style done", zap.Duration("took", time.Since(start)))

	start = time.Now()
	t.measure.Time("layout")
	document, err := t.engine.Layout(t.nodes)
	t.measure.Stop("layout")
	if err != nil {
		t.log.Error("Layout failed", zap.Error(err))
		return
	}
	t.document = document
	t.log.Debug("Layout done", zap.Duration("took", time.Since(start)))

	start = time.Now()
	t.measure.Time("paint")
	displayList := layout.Paint(document)
	t.measure.Stop("paint")
	t.log.Debug("Paint done", zap.Duration("took", time.Since(start)), zap.Int("commands", len(displayList)))

	var scroll *float64
	if t.scrollReset {
		scroll = new(float64)
		t.scrollReset = false
	}
	height := math.Ceil(document.Height + 2*layout.VSTEP)
	t.commit.Store(NewCommitData(t.url, scroll, height, displayList))
	t.needsDraw.Store(true)
}

// runAnimations advances every running transition by one frame. A finished
// transition leaves its target value in the style.
func (t *Tab) runAnimations() {
	for _, node := range html.TreeToList(t.nodes) {
		for property, animation := range node.Animations {
			if value, ok := animation.Animate(); ok {
				node.Style[property] = value
				t.SetNeedsRender()
				continue
			}
			node.Style[property] = strconv.FormatFloat(animation.Target(), 'f', -1, 64)
			delete(node.Animations, property)
		}
	}
}

// Click handles a click at page coordinates (scroll already applied).
func (t *Tab) Click(x, y float64) {
	t.schedule("click", func() { t.click(x, y) })
}

func (t *Tab) click(x, y float64) {
	if t.document == nil {
		return
	}
	t.focusElement(nil)

	for node := layout.HitTest(t.document, x, y); node != nil; node = node.Parent {
		switch node.Tag() {
		case "input":
			e, _ := node.Element()
			e.Attributes["value"] = ""
			t.focusElement(node)
			return
		case "button":
			t.focusElement(node)
			return
		case "a":
			href, ok := node.Attribute("href")
			if !ok {
				continue
			}
			target, err := t.url.Resolve(href)
			if err != nil {
				t.log.Warn("Bad link", zap.String("href", href), zap.Error(err))
				return
			}
			t.clearPendingTasks()
			if err := t.load(t.ctx, target, ""); err != nil {
				t.log.Warn("Navigation failed", zap.Error(err))
			}
			return
		}
	}
}

func (t *Tab) focusElement(node *html.Node) {
	if t.focus == node {
		return
	}
	if e, ok := t.focusedElement(); ok {
		e.IsFocused = false
	}
	t.focus = node
	if e, ok := t.focusedElement(); ok {
		e.IsFocused = true
	}
	t.SetNeedsRender()
}

func (t *Tab) focusedElement() (*html.ElementToken, bool) {
	if t.focus == nil {
		return nil, false
	}
	return t.focus.Element()
}

// Key types r into the focused input. '\b' deletes the last character.
func (t *Tab) Key(r rune) {
	t.schedule("key", func() { t.keypress(r) })
}

func (t *Tab) keypress(r rune) {
	if t.focus == nil || t.focus.Tag() != "input" {
		return
	}
	e, _ := t.focus.Element()
	value := e.Attributes["value"]
	if r == '\b' {
		if value == "" {
			return
		}
		_, size := utf8.DecodeLastRuneInString(value)
		e.Attributes["value"] = value[:len(value)-size]
	} else {
		e.Attributes["value"] = value + string(r)
	}
	t.SetNeedsRender()
}

// GoBack loads the previous history entry, if there is one.
func (t *Tab) GoBack(ctx context.Context) error {
	return t.do(ctx, "go-back", func() error {
		if len(t.history) < 2 {
			return nil
		}
		back := t.history[len(t.history)-2]
		t.history = t.history[:len(t.history)-2]
		return t.load(ctx, back, "")
	})
}

func (t *Tab) SetDarkMode(dark bool) {
	t.schedule("dark-mode", func() {
		t.resolver.SetDarkMode(dark)
		t.SetNeedsRender()
	})
}

// RunScript runs fn against the current page's script context on the
// content thread and waits for it to return.
func (t *Tab) RunScript(ctx context.Context, name string, fn func(s *ScriptContext) error) error {
	return t.do(ctx, "script:"+name, func() error {
		if t.script == nil {
			return ErrNotLoaded
		}
		return fn(t.script)
	})
}

// RunTask runs fn on the content thread and waits for it. Use it to
// inspect the document from tests or tooling.
func (t *Tab) RunTask(ctx context.Context, fn func(doc *html.Node, box *layout.Box)) error {
	return t.do(ctx, "inspect", func() error {
		fn(t.nodes, t.document)
		return nil
	})
}
