// Package runner hosts scroll-capture sessions: it drives a session from a
// ticker, stitches the result and hands it to the editor and the history store.
package runner

// Runner configuration constants
const (
	// Event log sizes
	EventBuffer  = 100
	RecentEvents = 50

	// Output file naming: <prefix>-<timestamp>.png
	OutputPrefix     = "scrollshot"
	OutputTimeLayout = "20060102-150405.000"
)
