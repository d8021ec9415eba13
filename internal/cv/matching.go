package cv

import (
	"context"
	"math/rand/v2"
	"sync"
)

// MatchRequest is one template-in-screen search.
type MatchRequest struct {
	Template *Image
	Screen   *Image
	Rate     float64 // required fraction of equal pixels, 0..1
	Multiple bool    // collect every accepted placement
}

// MatchResult holds accepted centers in scan order. Empty means not found.
type MatchResult struct {
	Points []Point
}

// Found reports whether at least one placement was accepted.
func (r MatchResult) Found() bool { return len(r.Points) > 0 }

// First returns the first accepted center, or the zero Point.
func (r MatchResult) First() Point {
	if len(r.Points) == 0 {
		return Point{}
	}
	return r.Points[0]
}

// ScanStats counts work done by one Scan.
type ScanStats struct {
	Placements      int // candidate placements visited
	PreFilterPassed int
	Verified        int // placements accepted by the full comparison
}

// Locator finds a template in a screen. Matcher is the local implementation;
// internal/remote provides one backed by the matching server.
type Locator interface {
	Locate(ctx context.Context, req MatchRequest) (MatchResult, error)
}

// PreFilter compares only the sampled offsets at placement (x, y).
// It can reject a placement the full comparison would accept.
func PreFilter(screen, template *Image, x, y int, samples []SamplePoint, rate float64) bool {
	if len(samples) == 0 {
		return false
	}
	same := 0
	for _, p := range samples {
		if screen.at(x+p.DX, y+p.DY) == template.at(p.DX, p.DY) {
			same++
		}
	}
	return float64(same)/float64(len(samples)) >= rate
}

// Verify compares every template pixel at placement (x, y).
func Verify(screen, template *Image, x, y int, rate float64) bool {
	same, diff := 0, 0
	for i := 0; i < template.Width(); i++ {
		for j := 0; j < template.Height(); j++ {
			if screen.at(x+i, y+j) == template.at(i, j) {
				same++
			} else {
				diff++
			}
		}
	}
	if same+diff == 0 {
		return false
	}
	return float64(same)/float64(same+diff) >= rate
}

// Scan walks placements x-major, y-minor and runs the pre-filter then the
// full comparison on each. Placement ranges are [0, screen-template) on both
// axes, so the alignment flush with the right or bottom edge is never tested
// and a template as wide (or tall) as the screen yields no placements.
func Scan(req MatchRequest, samples []SamplePoint) (MatchResult, ScanStats) {
	var result MatchResult
	var stats ScanStats

	tpl, screen := req.Template, req.Screen
	if tpl == nil || screen == nil || tpl.Empty() {
		return result, stats
	}

	maxX := screen.Width() - tpl.Width()
	maxY := screen.Height() - tpl.Height()

	for x := 0; x < maxX; x++ {
		for y := 0; y < maxY; y++ {
			stats.Placements++
			if !PreFilter(screen, tpl, x, y, samples, req.Rate) {
				continue
			}
			stats.PreFilterPassed++
			if !Verify(screen, tpl, x, y, req.Rate) {
				continue
			}
			stats.Verified++
			result.Points = append(result.Points, Point{
				X: x + tpl.Width()/2,
				Y: y + tpl.Height()/2,
			})
			if !req.Multiple {
				return result, stats
			}
		}
	}
	return result, stats
}

// Matcher is the local RGB matcher. It owns the random source used to draw
// one sample set per call.
type Matcher struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMatcher creates a matcher drawing from src; nil seeds from the runtime.
func NewMatcher(src rand.Source) *Matcher {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Matcher{rng: rand.New(src)}
}

// NewSeededMatcher returns a matcher with a reproducible sample sequence.
func NewSeededMatcher(seed uint64) *Matcher {
	return NewMatcher(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Match draws a fresh sample set and scans.
func (m *Matcher) Match(req MatchRequest) MatchResult {
	if req.Template == nil || req.Template.Empty() {
		return MatchResult{}
	}
	m.mu.Lock()
	samples := Sample(req.Template, m.rng)
	m.mu.Unlock()

	result, _ := Scan(req, samples)
	return result
}

// Locate implements Locator. The local scan cannot fail.
func (m *Matcher) Locate(_ context.Context, req MatchRequest) (MatchResult, error) {
	return m.Match(req), nil
}
