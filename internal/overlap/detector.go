package overlap

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Tier names the detection stage that produced a result.
type Tier int

const (
	TierNone Tier = iota
	TierHash
	TierIntensity
)

func (t Tier) String() string {
	return [...]string{"none", "hash", "intensity"}[t]
}

// Result describes a detected overlap. Rows is 0 when no reliable match exists.
type Result struct {
	Rows    int
	Tier    Tier
	Score   float64 // hash tier: matches per thousand rows; intensity tier: mean channel difference
	Matches int
	Run     int
}

// Find returns the number of rows by which b continues a. Both buffers are
// top-down RGBA of identical width and height; a is the earlier capture.
// A return of 0 means the pair must not be deduplicated.
func Find(a, b []byte, width, height int) int {
	return Detect(a, b, width, height).Rows
}

// Detect is Find with diagnostics.
func Detect(a, b []byte, width, height int) Result {
	if width <= 0 || height <= 0 {
		return Result{}
	}
	n := width * height * 4
	if len(a) < n || len(b) < n {
		return Result{}
	}

	g := newGeometry(width, height)
	if r, ok := matchRows(a, b, g); ok {
		return r
	}
	if r, ok := matchIntensity(a, b, g); ok {
		return r
	}
	return Result{}
}

type geometry struct {
	width       int
	height      int
	stride      int
	colEnd      int // exclusive pixel column
	searchRange int // rows of b that may anchor a candidate
	offset      int // reference row distance from a's bottom edge
}

func newGeometry(width, height int) geometry {
	return geometry{
		width:       width,
		height:      height,
		stride:      width * 4,
		colEnd:      width - width/ScrollbarDivisor,
		searchRange: height * SearchNum / SearchDen,
		offset:      max(1, height/ReferenceDivisor),
	}
}

func (g geometry) refRow() int { return g.height - g.offset }

// matchRows anchors on one row of a and derives each candidate overlap K from
// the rows of b that hash identically: row height-K+r of a maps to row r of b.
func matchRows(a, b []byte, g geometry) (Result, bool) {
	ha := hashRows(a, g)
	hb := hashRows(b, g)
	ref := ha[g.refRow()]

	// K = j + offset must not exceed the frame height
	limit := min(g.searchRange, g.height-g.offset+1)

	var best Result
	found := false
	for j := 0; j < limit; j++ {
		if hb[j] != ref {
			continue
		}
		k := j + g.offset
		matches, run := scanBand(ha, hb, k)
		score := float64(matches * ScoreScale / k)
		if !found || score > best.Score || (score == best.Score && run > best.Run) {
			best = Result{Rows: k, Tier: TierHash, Score: score, Matches: matches, Run: run}
			found = true
		}
	}
	if !found {
		return Result{}, false
	}
	if best.Run >= MinRun || best.Matches >= max(MinMatches, best.Rows/MatchFraction) {
		return best, true
	}
	return Result{}, false
}

// scanBand compares the whole k-row band so a single differing row (cursor,
// selection highlight) only costs one match instead of vetoing the candidate.
func scanBand(ha, hb []uint64, k int) (matches, longest int) {
	h := len(ha)
	run := 0
	for r := 0; r < k; r++ {
		if ha[h-k+r] == hb[r] {
			matches++
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return matches, longest
}

func hashRows(buf []byte, g geometry) []uint64 {
	hashes := make([]uint64, g.height)
	span := g.colEnd * 4
	for y := range hashes {
		start := y * g.stride
		hashes[y] = xxhash.Sum64(buf[start : start+span])
	}
	return hashes
}

// matchIntensity slides a fixed-size strip of a over b and keeps the position
// with the lowest mean channel difference. Used when pixels are close but not
// byte-identical, e.g. subpixel text after a fractional scroll.
func matchIntensity(a, b []byte, g geometry) (Result, bool) {
	strip := min(StripRows, g.offset)
	start := g.refRow()

	bestDiff := math.MaxFloat64
	bestPos := -1
	for p := 0; p+strip <= g.searchRange && p+g.offset <= g.height; p++ {
		d := stripDiff(a, b, g, start, p, strip)
		if d < bestDiff {
			bestDiff = d
			bestPos = p
		}
	}
	if bestPos < 0 || bestDiff >= NoiseThreshold {
		return Result{}, false
	}
	return Result{Rows: bestPos + g.offset, Tier: TierIntensity, Score: bestDiff}, true
}

func stripDiff(a, b []byte, g geometry, rowA, rowB, rows int) float64 {
	var sum, count uint64
	for r := 0; r < rows; r++ {
		baseA := (rowA + r) * g.stride
		baseB := (rowB + r) * g.stride
		for x := 0; x < g.colEnd; x += StripColumnStep {
			pa := baseA + x*4
			pb := baseB + x*4
			for c := 0; c < 3; c++ {
				sum += absDiff(a[pa+c], b[pb+c])
			}
			count += 3
		}
	}
	if count == 0 {
		return math.MaxFloat64
	}
	return float64(sum) / float64(count)
}

func absDiff(x, y byte) uint64 {
	if x > y {
		return uint64(x - y)
	}
	return uint64(y - x)
}
