package cv

import "math/rand/v2"

// Pre-filter sample count bounds, half-open.
const (
	MinSamplePoints = 10
	MaxSamplePoints = 20
)

// SamplePoint is an offset inside the template.
type SamplePoint struct {
	DX, DY int
}

// Sample draws the pre-filter offsets for one matching call. The count is
// uniform in [MinSamplePoints, MaxSamplePoints) and every coordinate is
// uniform over the template bounds. Points may repeat.
func Sample(template *Image, rng *rand.Rand) []SamplePoint {
	if template.Empty() {
		return nil
	}
	count := MinSamplePoints + rng.IntN(MaxSamplePoints-MinSamplePoints)
	points := make([]SamplePoint, count)
	for i := range points {
		points[i] = SamplePoint{
			DX: rng.IntN(template.Width()),
			DY: rng.IntN(template.Height()),
		}
	}
	return points
}
