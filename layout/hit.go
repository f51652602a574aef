package layout

import "rendercore/html"

// HitTest returns the node of the last box in tree order that contains the
// page point (x, y), or nil if no box does.
func HitTest(root *Box, x, y float64) *html.Node {
	if root == nil {
		return nil
	}
	var hit *html.Node
	for _, b := range TreeToList(root) {
		if b.SelfRect().ContainsPoint(x, y) {
			hit = b.Node
		}
	}
	return hit
}
