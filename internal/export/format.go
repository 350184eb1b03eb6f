package export

import "strings"

// Format identifies a delivery format and selects the strategy that
// produces it.
type Format string

const (
	FormatMP4       Format = "mp4"
	FormatGIF       Format = "gif"
	FormatWebMAlpha Format = "webm_alpha"
)

var allFormats = []Format{FormatMP4, FormatGIF, FormatWebMAlpha}

var formatSet = func() map[Format]struct{} {
	set := make(map[Format]struct{}, len(allFormats))
	for _, format := range allFormats {
		set[format] = struct{}{}
	}
	return set
}()

// AllFormats returns the ordered list of known formats.
func AllFormats() []Format {
	cp := make([]Format, len(allFormats))
	copy(cp, allFormats)
	return cp
}

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, bool) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := formatSet[normalized]
	return normalized, ok
}

// MediaType returns the MIME type served for artifacts of this format.
func (f Format) MediaType() string {
	switch f {
	case FormatMP4:
		return "video/mp4"
	case FormatGIF:
		return "image/gif"
	case FormatWebMAlpha:
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension, including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatMP4:
		return ".mp4"
	case FormatGIF:
		return ".gif"
	case FormatWebMAlpha:
		return ".webm"
	default:
		return ""
	}
}

// Quality selects a per-format encode tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

var allQualities = []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra}

var qualitySet = func() map[Quality]struct{} {
	set := make(map[Quality]struct{}, len(allQualities))
	for _, quality := range allQualities {
		set[quality] = struct{}{}
	}
	return set
}()

// AllQualities returns the ordered list of known quality tiers.
func AllQualities() []Quality {
	cp := make([]Quality, len(allQualities))
	copy(cp, allQualities)
	return cp
}

// ParseQuality converts a string into a known Quality.
func ParseQuality(value string) (Quality, bool) {
	normalized := Quality(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := qualitySet[normalized]
	return normalized, ok
}

func qualityList(qualities []Quality) string {
	parts := make([]string, len(qualities))
	for i, quality := range qualities {
		parts[i] = string(quality)
	}
	return strings.Join(parts, ", ")
}

func formatList(formats []Format) string {
	parts := make([]string, len(formats))
	for i, format := range formats {
		parts[i] = string(format)
	}
	return strings.Join(parts, ", ")
}
