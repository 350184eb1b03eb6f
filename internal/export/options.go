package export

// Options carries the caller-requested encode parameters. It is treated as
// immutable once handed to a strategy; strategies that need to adjust a field
// (the alpha override) work on their own copy.
type Options struct {
	Quality  Quality
	Width    int
	Height   int
	FPS      int
	Duration float64
	Alpha    bool

	// Bitrate and Codec override the tier defaults when non-empty.
	Bitrate string
	Codec   string

	ColorSpace string
	HDR        bool
}
