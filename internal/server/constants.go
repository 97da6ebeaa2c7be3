// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket rate limiting
	RateLimitMessages = 10          // Max inbound messages per window
	RateLimitWindow   = time.Second // Sliding window duration

	WSWriteTimeout = 5 * time.Second // Bound on a single broadcast write

	MaxRequestBody = 64 << 10 // Bytes accepted for a start request

	// Session listing and previews
	DefaultListLimit = 50
	MaxListLimit     = 500
	PreviewWidth     = 480  // Default preview width in pixels
	MaxPreviewWidth  = 4096 // Upper bound on a requested preview width
)
