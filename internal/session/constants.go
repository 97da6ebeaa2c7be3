// Package session drives a scrolling capture: it alternates synthetic scrolls
// with region captures and decides when enough content has been gathered.
package session

import "time"

// Session defaults and thresholds
const (
	DefaultMaxSteps    = 50
	DefaultSettleDelay = 500 * time.Millisecond

	// Overlap >= height*NoMovementNum/NoMovementDen: content did not move
	NoMovementNum = 19
	NoMovementDen = 20

	// Overlap > height*EndOfContentNum/EndOfContentDen: bottom reached
	EndOfContentNum = 4
	EndOfContentDen = 5

	// Each scroll moves the view by ScrollNum/ScrollDen of the selection height
	ScrollNum = 2
	ScrollDen = 3
)
