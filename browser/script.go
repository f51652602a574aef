package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rendercore/css"
	"rendercore/html"
	"rendercore/url"
)

var (
	// ErrSecurity is returned for a request the page's origin or its
	// Content-Security-Policy does not allow.
	ErrSecurity = errors.New("request blocked by security policy")
	// ErrUnknownHandle is returned when a handle names no node.
	ErrUnknownHandle = errors.New("unknown node handle")
)

// ScriptContext is the document API a page script sees. One exists per
// loaded page; navigating away discards it, after which pending timers,
// animation-frame callbacks and fetch completions are dropped.
//
// Methods other than SetTimeout, RequestAnimationFrame, Discard and
// Discarded must be called on the content thread, e.g. through
// Tab.RunScript.
type ScriptContext struct {
	tab     *Tab
	log     *zap.Logger
	handles *html.Handles

	discarded atomic.Bool

	mu           sync.Mutex
	rafCallbacks []func()
}

func newScriptContext(tab *Tab) *ScriptContext {
	return &ScriptContext{
		tab:     tab,
		log:     tab.log.Named("script"),
		handles: html.NewHandles(),
	}
}

// Discard detaches the context from its page.
func (s *ScriptContext) Discard() {
	s.discarded.Store(true)
}

func (s *ScriptContext) Discarded() bool {
	return s.discarded.Load()
}

// Document returns the handle of the root element.
func (s *ScriptContext) Document() int {
	return s.handles.Get(s.tab.nodes)
}

func (s *ScriptContext) Handle(node *html.Node) int {
	return s.handles.Get(node)
}

func (s *ScriptContext) NodeByHandle(handle int) (*html.Node, error) {
	node, ok := s.handles.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	return node, nil
}

// QuerySelectorAll returns handles of the nodes matching a selector, in
// document order.
func (s *ScriptContext) QuerySelectorAll(selector string) ([]int, error) {
	sel, err := css.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	var handles []int
	for _, node := range html.TreeToList(s.tab.nodes) {
		if sel.Matches(node) {
			handles = append(handles, s.handles.Get(node))
		}
	}
	return handles, nil
}

func (s *ScriptContext) GetAttribute(handle int, name string) (string, bool, error) {
	node, err := s.NodeByHandle(handle)
	if err != nil {
		return "", false, err
	}
	value, ok := node.Attribute(name)
	return value, ok, nil
}

// SetAttribute changes an element attribute and schedules a render.
func (s *ScriptContext) SetAttribute(handle int, name, value string) error {
	node, err := s.NodeByHandle(handle)
	if err != nil {
		return err
	}
	e, ok := node.Element()
	if !ok {
		return fmt.Errorf("set attribute on text node %v", node)
	}
	e.Attributes[name] = value
	s.tab.SetNeedsRender()
	return nil
}

// SetInnerHTML replaces the children of the node with the parsed markup.
func (s *ScriptContext) SetInnerHTML(handle int, markup string) error {
	node, err := s.NodeByHandle(handle)
	if err != nil {
		return err
	}
	children, err := html.ParseFragment(node, markup)
	if err != nil {
		return err
	}
	node.ReplaceChildren(children)
	s.tab.SetNeedsRender()
	return nil
}

// SetTimeout runs fn on the content thread once delay has passed, unless
// the context was discarded by then.
func (s *ScriptContext) SetTimeout(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() {
		s.tab.schedule("timeout", func() {
			if s.Discarded() {
				return
			}
			fn()
		})
	})
}

// RequestAnimationFrame runs fn at the start of the next render.
func (s *ScriptContext) RequestAnimationFrame(fn func()) {
	s.mu.Lock()
	s.rafCallbacks = append(s.rafCallbacks, fn)
	s.mu.Unlock()
	s.tab.SetNeedsRender()
}

func (s *ScriptContext) dispatchAnimationFrame() {
	s.mu.Lock()
	callbacks := s.rafCallbacks
	s.rafCallbacks = nil
	s.mu.Unlock()

	s.tab.measure.Time("raf_handlers")
	defer s.tab.measure.Stop("raf_handlers")
	for _, fn := range callbacks {
		if s.Discarded() {
			return
		}
		fn()
	}
}

// Fetch loads a same-origin resource relative to the page and returns its
// body. It blocks the content thread like a synchronous request.
func (s *ScriptContext) Fetch(ctx context.Context, link string) (string, error) {
	target, err := s.checkRequest(link)
	if err != nil {
		return "", err
	}
	resp, err := s.tab.fetcher.Fetch(ctx, target, s.tab.url, "")
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// FetchAsync fetches in the background and delivers the result to onload
// on the content thread. The check against the page's origin happens
// before returning.
func (s *ScriptContext) FetchAsync(link string, onload func(body string, err error)) error {
	target, err := s.checkRequest(link)
	if err != nil {
		return err
	}
	referrer := s.tab.url
	go func() {
		resp, err := s.tab.fetcher.Fetch(s.tab.ctx, target, referrer, "")
		s.tab.schedule("fetch-onload", func() {
			if s.Discarded() {
				return
			}
			if err != nil {
				onload("", err)
				return
			}
			onload(string(resp.Body), nil)
		})
	}()
	return nil
}

func (s *ScriptContext) checkRequest(link string) (*url.URL, error) {
	if s.tab.url == nil {
		return nil, ErrNotLoaded
	}
	target, err := s.tab.url.Resolve(link)
	if err != nil {
		return nil, err
	}
	if !s.tab.allowedRequest(target) {
		s.log.Warn("Request blocked by Content-Security-Policy", zap.Stringer("url", target))
		return nil, fmt.Errorf("%w: %s not in Content-Security-Policy", ErrSecurity, target)
	}
	if !s.tab.url.SameOrigin(target) {
		s.log.Warn("Cross-origin request blocked", zap.Stringer("url", target))
		return nil, fmt.Errorf("%w: %s is cross-origin", ErrSecurity, target)
	}
	return target, nil
}
