package cv

import (
	"context"
	"math/rand/v2"
	"testing"
)

func TestSampleBounds(t *testing.T) {
	tpl := solid(t, 7, 3, black)
	for seed := uint64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed))
		samples := Sample(tpl, rng)
		if len(samples) < MinSamplePoints || len(samples) >= MaxSamplePoints {
			t.Fatalf("Seed %d: sample count %d outside [%d,%d)", seed, len(samples), MinSamplePoints, MaxSamplePoints)
		}
		for _, p := range samples {
			if p.DX < 0 || p.DX >= 7 || p.DY < 0 || p.DY >= 3 {
				t.Fatalf("Seed %d: sample %v outside 7x3 template", seed, p)
			}
		}
	}
}

func TestSampleEmptyTemplate(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	if samples := Sample(mustImage(t, 0, 0, nil), rng); samples != nil {
		t.Errorf("Expected no samples for empty template, got %d", len(samples))
	}
}

func TestScenarioSingleBlock(t *testing.T) {
	screen := paint(t, solid(t, 4, 4, black), block(t), 0, 0)

	result := NewSeededMatcher(7).Match(MatchRequest{Template: block(t), Screen: screen, Rate: 1.0})
	if !result.Found() {
		t.Fatal("Expected block to be found")
	}
	if len(result.Points) != 1 || result.First() != (Point{1, 1}) {
		t.Errorf("Expected single center (1,1), got %v", result.Points)
	}
}

func TestScenarioMultipleBlocks(t *testing.T) {
	screen := solid(t, 6, 4, black)
	screen = paint(t, screen, block(t), 3, 0)
	screen = paint(t, screen, block(t), 0, 1)

	result := NewSeededMatcher(3).Match(MatchRequest{
		Template: block(t),
		Screen:   screen,
		Rate:     1.0,
		Multiple: true,
	})
	want := []Point{{1, 2}, {4, 1}}
	if len(result.Points) != len(want) {
		t.Fatalf("Expected %d centers, got %v", len(want), result.Points)
	}
	for i := range want {
		if result.Points[i] != want[i] {
			t.Errorf("Center %d: expected %v, got %v", i, want[i], result.Points[i])
		}
	}
}

func TestIdenticalRegionFoundForAnySeed(t *testing.T) {
	noise := rand.New(rand.NewPCG(42, 42))
	pix := make([]RGB, 20*15)
	for i := range pix {
		pix[i] = RGB{R: uint8(noise.IntN(256)), G: uint8(noise.IntN(256)), B: uint8(noise.IntN(256))}
	}
	screen := mustImage(t, 20, 15, pix)
	tpl, err := screen.Crop(NewRegion(5, 7, 4, 3))
	if err != nil {
		t.Fatalf("Failed to crop template: %v", err)
	}

	for seed := uint64(0); seed < 25; seed++ {
		result := NewSeededMatcher(seed).Match(MatchRequest{Template: tpl, Screen: screen, Rate: 1.0})
		if result.First() != (Point{7, 8}) {
			t.Errorf("Seed %d: expected (7,8), got %v", seed, result.Points)
		}
	}
}

func TestAcceptedPlacementsGrowAsRateDrops(t *testing.T) {
	noise := rand.New(rand.NewPCG(9, 9))
	palette := []RGB{black, white}
	pix := make([]RGB, 12*12)
	for i := range pix {
		pix[i] = palette[noise.IntN(2)]
	}
	screen := mustImage(t, 12, 12, pix)
	tpl, _ := screen.Crop(NewRegion(2, 2, 3, 3))
	samples := Sample(tpl, rand.New(rand.NewPCG(5, 5)))

	prev := -1
	for _, rate := range []float64{1.0, 0.9, 0.75, 0.5, 0.25, 0} {
		_, stats := Scan(MatchRequest{Template: tpl, Screen: screen, Rate: rate, Multiple: true}, samples)
		if stats.Verified < prev {
			t.Errorf("Rate %.2f accepted %d placements, fewer than %d at a higher rate", rate, stats.Verified, prev)
		}
		prev = stats.Verified
	}
	if prev != 9*9 {
		t.Errorf("Expected every placement accepted at rate 0, got %d", prev)
	}
}

func TestTemplateAsWideAsScreenVisitsNothing(t *testing.T) {
	screen := solid(t, 4, 6, black)
	tpl := solid(t, 4, 2, black)
	samples := Sample(tpl, rand.New(rand.NewPCG(1, 1)))

	result, stats := Scan(MatchRequest{Template: tpl, Screen: screen, Rate: 0}, samples)
	if stats.Placements != 0 {
		t.Errorf("Expected zero placements, got %d", stats.Placements)
	}
	if result.Found() {
		t.Errorf("Expected no match, got %v", result.Points)
	}
}

func TestEdgeAlignedPlacementIsNotTested(t *testing.T) {
	screen := paint(t, solid(t, 4, 4, black), block(t), 2, 0)
	samples := Sample(block(t), rand.New(rand.NewPCG(1, 1)))

	result, stats := Scan(MatchRequest{Template: block(t), Screen: screen, Rate: 1.0}, samples)
	if result.Found() {
		t.Errorf("Expected block flush with the right edge to be missed, got %v", result.Points)
	}
	if stats.Placements != 4 {
		t.Errorf("Expected 4 placements on a 4x4 screen, got %d", stats.Placements)
	}
}

func TestEmptyTemplateNeverMatches(t *testing.T) {
	result := NewSeededMatcher(1).Match(MatchRequest{
		Template: mustImage(t, 0, 0, nil),
		Screen:   solid(t, 4, 4, black),
	})
	if result.Found() {
		t.Errorf("Expected empty template to never match, got %v", result.Points)
	}
}

func TestPreFilterAndVerify(t *testing.T) {
	screen := paint(t, solid(t, 4, 4, black), block(t), 1, 1)
	tpl := block(t)

	// red at (0,0) and white at (1,1) only
	samples := []SamplePoint{{0, 0}, {1, 1}}
	if !PreFilter(screen, tpl, 1, 1, samples, 1.0) {
		t.Error("Expected pre-filter to pass at the true placement")
	}
	if PreFilter(screen, tpl, 0, 0, samples, 0.5) {
		t.Error("Expected pre-filter to reject (0,0)")
	}
	if PreFilter(screen, tpl, 1, 1, nil, 0) {
		t.Error("Expected empty sample set to reject")
	}

	if !Verify(screen, tpl, 1, 1, 1.0) {
		t.Error("Expected full comparison to accept the true placement")
	}
	// (2,1) covers green and white in column 2: 0 of 4 equal
	if Verify(screen, tpl, 2, 1, 0.25) {
		t.Error("Expected (2,1) rejected at rate 0.25")
	}
	if !Verify(screen, tpl, 2, 1, 0) {
		t.Error("Expected any placement accepted at rate 0")
	}
}

func TestMatcherLocateNeverFails(t *testing.T) {
	result, err := NewSeededMatcher(1).Locate(context.Background(), MatchRequest{
		Template: block(t),
		Screen:   solid(t, 4, 4, black),
		Rate:     1.0,
	})
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if result.Found() {
		t.Errorf("Expected no match, got %v", result.Points)
	}
}
