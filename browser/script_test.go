package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rendercore/html"
	"rendercore/layout"
)

func scriptPages() map[string]page {
	return map[string]page{
		origin + "/": {
			body:   `<div class="box" data-x="1"><p>old</p></div><p>tail</p>`,
			header: map[string]string{"content-security-policy": "default-src " + origin + " http://allowed.example"},
		},
		origin + "/data.txt":           {body: "payload"},
		origin + "/other":              {body: "<p>other page</p>"},
		"http://allowed.example/x.txt": {body: "cross"},
	}
}

func runScript(t *testing.T, b *Browser, fn func(s *ScriptContext) error) {
	t.Helper()
	require.NoError(t, b.Tab().RunScript(context.Background(), t.Name(), fn))
}

func TestScriptNeedsDocument(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	err := b.Tab().RunScript(context.Background(), "early", func(*ScriptContext) error { return nil })
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestScriptHandlesAndAttributes(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")

	runScript(t, b, func(s *ScriptContext) error {
		boxes, err := s.QuerySelectorAll(".box")
		if !assert.NoError(t, err) {
			return nil
		}
		if !assert.Len(t, boxes, 1) {
			return nil
		}

		node, err := s.NodeByHandle(boxes[0])
		if !assert.NoError(t, err) {
			return nil
		}
		assert.Equal(t, "div", node.Tag())
		assert.Equal(t, boxes[0], s.Handle(node), "handles are stable")

		value, ok, err := s.GetAttribute(boxes[0], "data-x")
		if !assert.NoError(t, err) {
			return nil
		}
		assert.True(t, ok)
		assert.Equal(t, "1", value)

		_, ok, err = s.GetAttribute(boxes[0], "missing")
		if !assert.NoError(t, err) {
			return nil
		}
		assert.False(t, ok)

		_, err = s.NodeByHandle(9999)
		assert.ErrorIs(t, err, ErrUnknownHandle)

		paragraphs, err := s.QuerySelectorAll("div p")
		if !assert.NoError(t, err) {
			return nil
		}
		assert.Len(t, paragraphs, 1)

		_, err = s.QuerySelectorAll("div > p")
		assert.Error(t, err)
		return nil
	})
}

func TestSetInnerHTMLReplacesSubtree(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")
	render(t, b.Tab())
	require.False(t, b.Tab().NeedsRender())

	runScript(t, b, func(s *ScriptContext) error {
		boxes, err := s.QuerySelectorAll(".box")
		if !assert.NoError(t, err) {
			return nil
		}
		return s.SetInnerHTML(boxes[0], "<span>new</span> <i>text</i>")
	})
	assert.True(t, b.Tab().NeedsRender())

	render(t, b.Tab())
	inspect(t, b.Tab(), func(doc *html.Node, box *layout.Box) {
		div := findNode(doc, "div")
		if !assert.Len(t, div.Children, 3) {
			return
		}
		assert.Equal(t, "span", div.Children[0].Tag())
		assert.Same(t, div, div.Children[0].Parent)
		assert.Equal(t, "italic", findNode(doc, "i").Style["font-style"])
		assert.NotNil(t, boxFor(box, func(b *layout.Box) bool { return b.Word == "new" }))
		assert.Nil(t, boxFor(box, func(b *layout.Box) bool { return b.Word == "old" }))
	})
}

func TestAnimationFrameCallbacksRunBeforeStyle(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")
	render(t, b.Tab())

	calls := 0
	runScript(t, b, func(s *ScriptContext) error {
		s.RequestAnimationFrame(func() {
			calls++
			boxes, _ := s.QuerySelectorAll(".box")
			assert.NoError(t, s.SetAttribute(boxes[0], "style", "color: red"))
		})
		return nil
	})
	assert.True(t, b.Tab().NeedsRender())

	render(t, b.Tab())
	assert.Equal(t, 1, calls)
	inspect(t, b.Tab(), func(doc *html.Node, _ *layout.Box) {
		assert.Equal(t, "red", findNode(doc, "div").Style["color"])
	})

	render(t, b.Tab())
	assert.Equal(t, 1, calls, "callbacks run once")
}

func TestFetchChecksOrigin(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")

	runScript(t, b, func(s *ScriptContext) error {
		body, err := s.Fetch(context.Background(), "/data.txt")
		if !assert.NoError(t, err) {
			return nil
		}
		assert.Equal(t, "payload", body)

		_, err = s.Fetch(context.Background(), "http://allowed.example/x.txt")
		assert.ErrorIs(t, err, ErrSecurity, "allowed by CSP but cross-origin")

		_, err = s.Fetch(context.Background(), "http://evil.example/x.txt")
		assert.ErrorIs(t, err, ErrSecurity)

		err = s.FetchAsync("http://evil.example/x.txt", func(string, error) {})
		assert.ErrorIs(t, err, ErrSecurity)
		return nil
	})
}

func TestFetchAsyncDeliversOnContentThread(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")

	got := make(chan string, 1)
	runScript(t, b, func(s *ScriptContext) error {
		return s.FetchAsync("data.txt", func(body string, err error) {
			assert.NoError(t, err)
			got <- body
		})
	})
	select {
	case body := <-got:
		assert.Equal(t, "payload", body)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never completed")
	}
}

func TestTimersOfDiscardedPageDoNotRun(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")

	fired := make(chan string, 2)
	var first *ScriptContext
	runScript(t, b, func(s *ScriptContext) error {
		first = s
		s.SetTimeout(20*time.Millisecond, func() { fired <- "old page" })
		return nil
	})
	load(t, b, origin+"/other")
	assert.True(t, first.Discarded())

	runScript(t, b, func(s *ScriptContext) error {
		assert.NotSame(t, first, s)
		s.SetTimeout(40*time.Millisecond, func() { fired <- "new page" })
		return nil
	})

	select {
	case who := <-fired:
		assert.Equal(t, "new page", who)
	case <-time.After(5 * time.Second):
		t.Fatal("timer never fired")
	}
	// the old timer fired before the new one, so it was dropped
	assert.Empty(t, fired)
}

func TestDiscardedContextSkipsAnimationFrames(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")

	ran := false
	runScript(t, b, func(s *ScriptContext) error {
		s.RequestAnimationFrame(func() { ran = true })
		s.Discard()
		return nil
	})
	render(t, b.Tab())
	assert.False(t, ran)
}

func TestSetAttributeOnTextNode(t *testing.T) {
	b, _, _ := newTestBrowser(t, scriptPages())
	load(t, b, origin+"/")
	runScript(t, b, func(s *ScriptContext) error {
		boxes, _ := s.QuerySelectorAll("div p")
		p, _ := s.NodeByHandle(boxes[0])
		err := s.SetAttribute(s.Handle(p.Children[0]), "x", "y")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnknownHandle))
		return nil
	})
}
