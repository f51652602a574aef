// Package font loads and caches font faces by size, weight and style and
// answers the metric questions layout asks of them.
package font

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/adrg/sysfont"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
	fnt "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

type Key struct {
	Size   float64
	Weight string
	Style  string
}

// Cache hands out one Face per Key. Faces are created lazily and never
// evicted. When two goroutines miss on the same key at once, both load a
// face and the last writer wins.
type Cache struct {
	log    *zap.Logger
	family string

	mu    sync.RWMutex
	faces map[Key]*Face

	parsedMu sync.Mutex
	parsed   map[string]*sfnt.Font
	finder   *sysfont.Finder
}

type CacheOption func(*Cache)

// WithFamily makes the cache look up installed system fonts of the given
// family first. The embedded Go fonts remain the fallback.
func WithFamily(family string) CacheOption {
	return func(c *Cache) { c.family = strings.TrimSpace(family) }
}

func NewCache(log *zap.Logger, opts ...CacheOption) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{
		log:    log.Named("font"),
		faces:  map[Key]*Face{},
		parsed: map[string]*sfnt.Font{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the face for the given CSS pixel size, weight and style.
func (c *Cache) Get(size float64, weight, style string) (*Face, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("invalid font size %v", size)
	}
	key := Key{Size: size, Weight: weight, Style: style}

	c.mu.RLock()
	face, ok := c.faces[key]
	c.mu.RUnlock()
	if ok {
		return face, nil
	}

	face, err := c.load(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.faces[key] = face
	c.mu.Unlock()
	return face, nil
}

func (c *Cache) load(key Key) (*Face, error) {
	bold := IsBold(key.Weight)
	italic := IsItalic(key.Style)

	if c.family != "" {
		if face, ok := c.loadSystem(key, bold, italic); ok {
			return face, nil
		}
	}

	name, data := embedded(bold, italic)
	f, err := c.parse(name, data)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    key.Size,
		DPI:     72,
		Hinting: fnt.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s face at %vpx: %w", name, key.Size, err)
	}
	c.log.Debug("Loading font", zap.String("font", name), zap.Float64("size", key.Size))
	return newFace(face, name), nil
}

func (c *Cache) loadSystem(key Key, bold, italic bool) (*Face, bool) {
	c.parsedMu.Lock()
	if c.finder == nil {
		c.finder = sysfont.NewFinder(nil)
	}
	finder := c.finder
	c.parsedMu.Unlock()

	query := c.family
	if bold {
		query += " bold"
	}
	if italic {
		query += " italic"
	}
	match := finder.Match(query)
	if match == nil || match.Filename == "" {
		c.log.Debug("No system font for family", zap.String("query", query))
		return nil, false
	}
	face, err := gg.LoadFontFace(match.Filename, key.Size)
	if err != nil {
		c.log.Warn("Error loading system font, using embedded font",
			zap.String("file", match.Filename), zap.Error(err))
		return nil, false
	}
	c.log.Debug("Loading font", zap.String("font", match.Name), zap.Float64("size", key.Size))
	return newFace(face, match.Name), true
}

func (c *Cache) parse(name string, data []byte) (*sfnt.Font, error) {
	c.parsedMu.Lock()
	defer c.parsedMu.Unlock()
	if f, ok := c.parsed[name]; ok {
		return f, nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	c.parsed[name] = f
	return f, nil
}

func embedded(bold, italic bool) (string, []byte) {
	switch {
	case bold && italic:
		return "Go Bold Italic", gobolditalic.TTF
	case bold:
		return "Go Bold", gobold.TTF
	case italic:
		return "Go Italic", goitalic.TTF
	default:
		return "Go Regular", goregular.TTF
	}
}

// IsBold accepts keyword and numeric CSS weights.
func IsBold(weight string) bool {
	switch weight = strings.ToLower(strings.TrimSpace(weight)); weight {
	case "bold", "bolder":
		return true
	case "", "normal", "lighter":
		return false
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

func IsItalic(style string) bool {
	style = strings.ToLower(strings.TrimSpace(style))
	return style == "italic" || style == "oblique"
}

// Face is a font face safe for use from the content and presentation
// threads at the same time. Its metrics are computed once.
type Face struct {
	Label string

	mu      sync.Mutex
	face    fnt.Face
	metrics fnt.Metrics
	space   float64
}

var _ fnt.Face = (*Face)(nil)

func newFace(face fnt.Face, label string) *Face {
	f := &Face{Label: label, face: face, metrics: face.Metrics()}
	f.space = math.Ceil(float64(fnt.MeasureString(face, " ")) / 64.0)
	return f
}

// Measure returns the advance width of text in whole pixels.
func (f *Face) Measure(text string) float64 {
	if text == " " {
		return f.space
	}
	return math.Ceil(float64(fnt.MeasureString(f, text)) / 64.0)
}

func (f *Face) SpaceWidth() float64 {
	return f.space
}

func (f *Face) Ascent() float64 {
	return float64(f.metrics.Ascent) / 64.0
}

func (f *Face) Descent() float64 {
	return float64(f.metrics.Descent) / 64.0
}

func (f *Face) Linespace() float64 {
	return math.Ceil(float64(f.metrics.Height) / 64.0)
}

func (f *Face) String() string {
	return f.Label
}

func (f *Face) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.face.Close()
}

// Glyph copies the mask out of the underlying face, which reuses its
// buffer between calls.
func (f *Face) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dr, mask, maskp, advance, ok := f.face.Glyph(dot, r)
	if !ok || mask == nil {
		return dr, mask, maskp, advance, ok
	}
	copied := image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	for y := 0; y < dr.Dy(); y++ {
		for x := 0; x < dr.Dx(); x++ {
			_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
			copied.Pix[y*copied.Stride+x] = uint8(a >> 8)
		}
	}
	return dr, copied, image.Point{}, advance, true
}

func (f *Face) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.face.GlyphBounds(r)
}

func (f *Face) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.face.GlyphAdvance(r)
}

func (f *Face) Kern(r0, r1 rune) fixed.Int26_6 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.face.Kern(r0, r1)
}

func (f *Face) Metrics() fnt.Metrics {
	return f.metrics
}
