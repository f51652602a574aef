package browser

import (
	"rendercore/display"
	"rendercore/url"
)

// CommitData is what the content thread hands to the presentation thread
// after a render. It is never modified once published.
type CommitData struct {
	URL *url.URL
	// Scroll is set when the content side moved the scroll position, for
	// instance after navigating; the presentation side adopts it.
	Scroll *float64
	// Height is the document height plus the page margins, rounded up.
	Height      float64
	DisplayList []display.Command
}

func NewCommitData(u *url.URL, scroll *float64, height float64, displayList []display.Command) *CommitData {
	return &CommitData{
		URL:         u,
		Scroll:      scroll,
		Height:      height,
		DisplayList: displayList,
	}
}
