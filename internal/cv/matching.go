package cv

import (
	"image"
	"math"
	"sort"
)

// MatchResult contains template matching results. Location is the logical
// center of the matched template; Confidence is in the scoring method's
// native scale ([-1,1] for NCC, [0,1] for SAD/SSD).
type MatchResult struct {
	Found      bool
	Location   Point
	Confidence float64
}

// MatchMethod defines the template scoring algorithm
type MatchMethod int

const (
	// MatchMethodSAD - Sum of Absolute Differences (fastest)
	MatchMethodSAD MatchMethod = iota
	// MatchMethodSSD - Sum of Squared Differences (balanced)
	MatchMethodSSD
	// MatchMethodNCC - zero-mean Normalized Cross-Correlation (most accurate)
	MatchMethodNCC
)

// MatchConfig configures template matching
type MatchConfig struct {
	Method      MatchMethod
	Threshold   float64 // minimum score to accept a match
	MinDistance int     // FindAll: exclusion radius between matches, logical pixels
	MaxMatches  int     // FindAll: 0 = unlimited
}

// DefaultMatchConfig returns recommended settings
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Method:      MatchMethodNCC,
		Threshold:   0.85,
		MinDistance: 10,
	}
}

// FindBest locates the single best placement of a template inside a frame.
// The result is Found only when the global maximum score meets the threshold;
// Location and Confidence always describe the best candidate seen. A template
// larger than the frame yields no match rather than an error. Pure function
// of its inputs: identical frame and template give identical results.
func FindBest(frame *Frame, tmpl *image.RGBA, config *MatchConfig) MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}
	if frame == nil || frame.RGBA == nil || tmpl == nil {
		return MatchResult{}
	}

	haystack := grayFromRGBA(frame.RGBA)
	needle := grayFromRGBA(tmpl)

	if needle.w > haystack.w || needle.h > haystack.h || needle.w == 0 || needle.h == 0 {
		return MatchResult{}
	}

	stats := needle.stats()
	bestScore := math.Inf(-1)
	bestX, bestY := 0, 0

	maxY := haystack.h - needle.h
	maxX := haystack.w - needle.w

	// Strictly-greater comparison keeps the first (row-major) placement on
	// score ties, so repeated calls are reproducible.
	for y := 0; y <= maxY; y++ {
		for x := 0; x <= maxX; x++ {
			score := scoreAt(haystack, needle, x, y, stats, config.Method)
			if score > bestScore {
				bestScore = score
				bestX, bestY = x, y
			}
		}
	}

	return MatchResult{
		Found:      bestScore >= config.Threshold,
		Location:   logicalCenter(frame, bestX, bestY, needle.w, needle.h),
		Confidence: bestScore,
	}
}

// FindAll locates every placement of a template scoring at or above the
// threshold, then suppresses duplicates: candidates are visited in descending
// score order (ties keep row-major scan order) and kept only when no
// already-kept match lies within MinDistance on both axes.
func FindAll(frame *Frame, tmpl *image.RGBA, config *MatchConfig) []MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}
	if frame == nil || frame.RGBA == nil || tmpl == nil {
		return nil
	}

	haystack := grayFromRGBA(frame.RGBA)
	needle := grayFromRGBA(tmpl)

	if needle.w > haystack.w || needle.h > haystack.h || needle.w == 0 || needle.h == 0 {
		return nil
	}

	stats := needle.stats()

	type candidate struct {
		cx, cy int // physical center
		score  float64
	}
	var candidates []candidate

	maxY := haystack.h - needle.h
	maxX := haystack.w - needle.w

	for y := 0; y <= maxY; y++ {
		for x := 0; x <= maxX; x++ {
			score := scoreAt(haystack, needle, x, y, stats, config.Method)
			if score >= config.Threshold {
				candidates = append(candidates, candidate{
					cx:    x + needle.w/2,
					cy:    y + needle.h/2,
					score: score,
				})
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	// Stable sort keeps scan order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	minDist := config.MinDistance * frame.Scale
	var kept []candidate
	for _, c := range candidates {
		duplicate := false
		for _, k := range kept {
			if abs(c.cx-k.cx) < minDist && abs(c.cy-k.cy) < minDist {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, c)
		if config.MaxMatches > 0 && len(kept) >= config.MaxMatches {
			break
		}
	}

	results := make([]MatchResult, 0, len(kept))
	for _, k := range kept {
		results = append(results, MatchResult{
			Found:      true,
			Location:   logicalFromPhysical(frame, k.cx, k.cy),
			Confidence: k.score,
		})
	}
	return results
}

// logicalCenter converts a physical top-left placement to the logical center
// point, adding the frame's region offset before dividing by scale.
func logicalCenter(frame *Frame, x, y, tw, th int) Point {
	return logicalFromPhysical(frame, x+tw/2, y+th/2)
}

func logicalFromPhysical(frame *Frame, px, py int) Point {
	if frame.Region != nil {
		px += frame.Region.X * frame.Scale
		py += frame.Region.Y * frame.Scale
	}
	scale := frame.Scale
	if scale < 1 {
		scale = 1
	}
	return Point{X: px / scale, Y: py / scale}
}

// grayPlane is a single-channel intensity image used for scoring.
type grayPlane struct {
	pix  []uint8
	w, h int
}

type grayStats struct {
	sum   float64
	sumSq float64
}

// grayFromRGBA flattens an RGBA image to intensity with the luminance formula.
func grayFromRGBA(img *image.RGBA) *grayPlane {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := &grayPlane{pix: make([]uint8, w*h), w: w, h: h}

	for y := 0; y < h; y++ {
		srcRow := y * img.Stride
		dstRow := y * w
		for x := 0; x < w; x++ {
			idx := srcRow + x*4
			r := img.Pix[idx]
			g := img.Pix[idx+1]
			b := img.Pix[idx+2]
			plane.pix[dstRow+x] = uint8((int(r)*299 + int(g)*587 + int(b)*114) / 1000)
		}
	}

	return plane
}

func (p *grayPlane) stats() grayStats {
	var s grayStats
	for _, v := range p.pix {
		fv := float64(v)
		s.sum += fv
		s.sumSq += fv * fv
	}
	return s
}

// scoreAt computes the similarity of the needle placed at (x, y).
func scoreAt(haystack, needle *grayPlane, x, y int, needleStats grayStats, method MatchMethod) float64 {
	switch method {
	case MatchMethodSAD:
		return matchSAD(haystack, needle, x, y)
	case MatchMethodSSD:
		return matchSSD(haystack, needle, x, y)
	case MatchMethodNCC:
		return matchNCC(haystack, needle, x, y, needleStats)
	default:
		return matchNCC(haystack, needle, x, y, needleStats)
	}
}

// matchSAD - Sum of Absolute Differences, normalized to [0,1]
func matchSAD(haystack, needle *grayPlane, x, y int) float64 {
	var sad uint64

	for ny := 0; ny < needle.h; ny++ {
		hRow := (y+ny)*haystack.w + x
		nRow := ny * needle.w
		for nx := 0; nx < needle.w; nx++ {
			sad += uint64(abs(int(haystack.pix[hRow+nx]) - int(needle.pix[nRow+nx])))
		}
	}

	maxSAD := float64(needle.w * needle.h * 255)
	return 1.0 - (float64(sad) / maxSAD)
}

// matchSSD - Sum of Squared Differences, normalized to [0,1]
func matchSSD(haystack, needle *grayPlane, x, y int) float64 {
	var ssd uint64

	for ny := 0; ny < needle.h; ny++ {
		hRow := (y+ny)*haystack.w + x
		nRow := ny * needle.w
		for nx := 0; nx < needle.w; nx++ {
			d := int(haystack.pix[hRow+nx]) - int(needle.pix[nRow+nx])
			ssd += uint64(d * d)
		}
	}

	maxSSD := float64(needle.w * needle.h * 255 * 255)
	return 1.0 - (float64(ssd) / maxSSD)
}

// matchNCC - zero-mean normalized cross-correlation in the native [-1,1]
// scale. A flat (zero-variance) patch on either side scores 0.
func matchNCC(haystack, needle *grayPlane, x, y int, needleStats grayStats) float64 {
	var sumH, sumHH, sumHN float64
	count := float64(needle.w * needle.h)

	for ny := 0; ny < needle.h; ny++ {
		hRow := (y+ny)*haystack.w + x
		nRow := ny * needle.w
		for nx := 0; nx < needle.w; nx++ {
			hv := float64(haystack.pix[hRow+nx])
			nv := float64(needle.pix[nRow+nx])
			sumH += hv
			sumHH += hv * hv
			sumHN += hv * nv
		}
	}

	numerator := sumHN - (sumH * needleStats.sum / count)
	denomH := sumHH - (sumH * sumH / count)
	denomN := needleStats.sumSq - (needleStats.sum * needleStats.sum / count)

	if denomH <= 0 || denomN <= 0 {
		return 0
	}

	score := numerator / math.Sqrt(denomH*denomN)
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
