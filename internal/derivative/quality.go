package derivative

// QualityFunc picks the lossy encoder quality for a target width.
type QualityFunc func(width int) int

type qualityTier struct {
	maxWidth int
	quality  int
}

var qualityTiers = []qualityTier{
	{maxWidth: 800, quality: 55},
	{maxWidth: 1200, quality: 65},
}

const topTierQuality = 70

// QualityForWidth is a step function of width: small previews compress
// harder. Boundary widths belong to the lower tier.
func QualityForWidth(width int) int {
	for _, t := range qualityTiers {
		if width <= t.maxWidth {
			return t.quality
		}
	}
	return topTierQuality
}
