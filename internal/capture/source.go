// Screen frame acquisition behind a pluggable source interface
package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"rdcp/internal/global"
)

// Produces screen frames for the streaming loop. Next blocks until a
// frame is due or the context ends.
type Source interface {
	Next(ctx context.Context) (frame image.Image, err error)
	Size() (width, height int)
	Close() error
}

// Clamps a requested frame rate into the supported window
func ClampFrameRate(requested int) (fps int) {
	fps = requested
	if fps < global.MinFrameRate {
		fps = global.MinFrameRate
	}
	if fps > global.MaxFrameRate {
		fps = global.MaxFrameRate
	}
	return
}

// Deterministic frame generator used by loopback streaming and tests.
// Each frame advances a moving gradient so consecutive frames differ in
// a bounded region.
type SyntheticSource struct {
	width    int
	height   int
	interval time.Duration
	frameNum int
	ticker   *time.Ticker
}

func NewSyntheticSource(width, height, fps int) (source *SyntheticSource, err error) {
	if width < 1 || height < 1 {
		err = fmt.Errorf("invalid capture geometry %dx%d", width, height)
		return
	}

	fps = ClampFrameRate(fps)
	source = &SyntheticSource{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
	}
	return
}

func (source *SyntheticSource) Size() (width, height int) {
	width = source.width
	height = source.height
	return
}

// Blocks for the inter-frame interval then renders the next frame.
// The first call returns immediately.
func (source *SyntheticSource) Next(ctx context.Context) (frame image.Image, err error) {
	if source.ticker == nil {
		source.ticker = time.NewTicker(source.interval)
	} else {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-source.ticker.C:
		}
	}

	frame = source.render()
	source.frameNum++
	return
}

func (source *SyntheticSource) Close() error {
	if source.ticker != nil {
		source.ticker.Stop()
	}
	return nil
}

func (source *SyntheticSource) render() (frame *image.RGBA) {
	frame = image.NewRGBA(image.Rect(0, 0, source.width, source.height))

	// Static gradient background
	for y := 0; y < source.height; y++ {
		for x := 0; x < source.width; x++ {
			frame.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / source.width),
				G: uint8(y * 255 / source.height),
				B: 0x40,
				A: 0xFF,
			})
		}
	}

	// Moving block so successive frames have a localized diff
	blockSize := 16
	maxX := source.width - blockSize
	maxY := source.height - blockSize
	if maxX > 0 && maxY > 0 {
		bx := (source.frameNum * 7) % maxX
		by := (source.frameNum * 3) % maxY
		for y := by; y < by+blockSize; y++ {
			for x := bx; x < bx+blockSize; x++ {
				frame.SetRGBA(x, y, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
			}
		}
	}
	return
}
