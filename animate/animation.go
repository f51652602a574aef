// Package animate steps property transitions once per animation frame.
package animate

import "strconv"

type Animation interface {
	// Animate advances one frame and returns the property value to use for
	// it. ok is false once the animation has finished; the caller then
	// applies Target.
	Animate() (value string, ok bool)
	// Target is the value the animation settles on.
	Target() float64
}

// NumericAnimation interpolates a number linearly over a fixed number of
// frames.
type NumericAnimation struct {
	oldValue       float64
	newValue       float64
	numFrames      int
	frameCount     int
	changePerFrame float64
}

func NewNumericAnimation(oldValue, newValue float64, numFrames int) *NumericAnimation {
	numFrames = max(numFrames, 1)
	return &NumericAnimation{
		oldValue:       oldValue,
		newValue:       newValue,
		numFrames:      numFrames,
		frameCount:     1,
		changePerFrame: (newValue - oldValue) / float64(numFrames),
	}
}

func (n *NumericAnimation) Animate() (string, bool) {
	n.frameCount++
	if n.frameCount >= n.numFrames {
		return "", false
	}
	current := n.oldValue + n.changePerFrame*float64(n.frameCount)
	return strconv.FormatFloat(current, 'f', -1, 64), true
}

func (n *NumericAnimation) Target() float64 {
	return n.newValue
}

// Start returns the value shown on the frame the transition begins.
func (n *NumericAnimation) Start() string {
	return strconv.FormatFloat(n.oldValue+n.changePerFrame, 'f', -1, 64)
}
