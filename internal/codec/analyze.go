package codec

import "image"

// Sampled image statistics driving adaptive format selection
type ImageStats struct {
	SampledPixels int
	UniqueColors  int
	Variance      float64 // mean squared deviation of sampled luma
	HasAlpha      bool
}

const analyzeStride = 4 // sample every 4th pixel in both axes

// Collects sampled statistics over the frame
func Analyze(img image.Image) (stats ImageStats) {
	bounds := img.Bounds()

	colors := make(map[uint64]struct{})
	var lumaSum, lumaSqSum float64

	for y := bounds.Min.Y; y < bounds.Max.Y; y += analyzeStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += analyzeStride {
			r, g, b, a := img.At(x, y).RGBA()
			stats.SampledPixels++

			if a < 0xFFFF {
				stats.HasAlpha = true
			}

			// 5 bits per channel is plenty for distinctness counting
			key := uint64(r>>11)<<10 | uint64(g>>11)<<5 | uint64(b>>11)
			colors[key] = struct{}{}

			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			lumaSum += luma
			lumaSqSum += luma * luma
		}
	}

	stats.UniqueColors = len(colors)
	if stats.SampledPixels > 0 {
		mean := lumaSum / float64(stats.SampledPixels)
		stats.Variance = lumaSqSum/float64(stats.SampledPixels) - mean*mean
		if stats.Variance < 0 {
			stats.Variance = 0
		}
	}
	return
}

// Complexity score in [0,1]: color diversity blended with luma variance.
// Low values mean flat synthetic content that PNG compresses well.
func (stats ImageStats) Complexity() (score float64) {
	if stats.SampledPixels == 0 {
		return
	}

	colorScore := float64(stats.UniqueColors) / 1024.0
	if colorScore > 1 {
		colorScore = 1
	}

	// Luma variance of photographic content commonly sits in the thousands
	varianceScore := stats.Variance / 4000.0
	if varianceScore > 1 {
		varianceScore = 1
	}

	score = 0.6*colorScore + 0.4*varianceScore
	return
}

// Whether the adaptive strategy should prefer lossless PNG
func (stats ImageStats) PreferLossless() (lossless bool) {
	lossless = stats.HasAlpha || stats.Complexity() < 0.15
	return
}

// Partitions the frame into fixed blocks and reports rectangles whose
// sampled pixels differ from the reference beyond the channel threshold.
// The baseline pipeline diffs whole frames; region coding built on this
// is an optimization hook.
func DetectChangedRegions(previous, current image.Image, blockSize int, channelThreshold uint8) (changed []image.Rectangle) {
	if blockSize <= 0 {
		blockSize = 32
	}

	bounds := current.Bounds()
	if previous == nil || previous.Bounds() != bounds {
		changed = append(changed, bounds)
		return
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y += blockSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += blockSize {
			block := image.Rect(x, y, x+blockSize, y+blockSize).Intersect(bounds)
			if !blockEqual(previous, current, block, channelThreshold) {
				changed = append(changed, block)
			}
		}
	}
	return
}

// Compares a block by sampled pixels; a per-channel delta below the
// threshold counts as same
func blockEqual(previous, current image.Image, block image.Rectangle, channelThreshold uint8) (equal bool) {
	threshold := uint32(channelThreshold) << 8 // RGBA() values are 16 bit

	for y := block.Min.Y; y < block.Max.Y; y += analyzeStride {
		for x := block.Min.X; x < block.Max.X; x += analyzeStride {
			pr, pg, pb, _ := previous.At(x, y).RGBA()
			cr, cg, cb, _ := current.At(x, y).RGBA()

			if absDelta(pr, cr) >= threshold ||
				absDelta(pg, cg) >= threshold ||
				absDelta(pb, cb) >= threshold {
				return
			}
		}
	}
	equal = true
	return
}

func absDelta(a, b uint32) (delta uint32) {
	if a > b {
		delta = a - b
		return
	}
	delta = b - a
	return
}
