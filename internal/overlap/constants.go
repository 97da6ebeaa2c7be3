// Package overlap estimates how many rows two consecutive scroll captures share.
package overlap

// Detection tuning constants
const (
	// Rows of B below height*SearchNum/SearchDen are never matched (clipped bottom edge)
	SearchNum = 19
	SearchDen = 20

	// Right-most 1/ScrollbarDivisor of the columns is ignored (scrollbar)
	ScrollbarDivisor = 20

	// Reference row sits height/ReferenceDivisor rows above A's bottom edge
	ReferenceDivisor = 6

	// Tier 1 acceptance: contiguous run of matching rows, or matches >= max(MinMatches, K/MatchFraction)
	MinRun        = 8
	MinMatches    = 8
	MatchFraction = 4
	ScoreScale    = 1000

	// Tier 2 reference strip
	StripRows       = 10
	StripColumnStep = 4
	NoiseThreshold  = 15.0
)
