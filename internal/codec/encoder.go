package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"rdcp/pkg/protocol"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format/quality selection strategies
type Strategy int

const (
	StrategyFast Strategy = iota
	StrategyBalanced
	StrategyHighCompression
	StrategyAdaptive
)

var ErrEncodeFailed = errors.New("image encode failed")

// Ratio a diff must beat for differential transmission to be worth it
const diffWorthwhileRatio = 0.80

// Largest encoded image that still fits the wire payload guard once the
// screen record framing is added; a frame past it would be accepted
// here only to kill the connection at the peer
var maxImageBytes = int(protocol.MaxPayloadSize) - len((&protocol.ScreenData{}).Encode())

// Per-session frame encoder. Owns the previous-full reference buffer;
// mutated only on the session's I/O thread, so no locking.
type Encoder struct {
	strategy Strategy
	quality  float64 // configured capture quality in [0,1]
	prevFull []byte
}

func NewEncoder(strategy Strategy, quality float64) (enc *Encoder) {
	if quality <= 0 || quality > 1 {
		quality = 0.8
	}
	enc = &Encoder{strategy: strategy, quality: quality}
	return
}

// Drops the reference buffer, forcing the next frame to go out full
func (enc *Encoder) Reset() {
	enc.prevFull = nil
}

// Turns a captured frame into the smallest correct ScreenData payload.
// The freshly encoded full frame always becomes the new reference,
// whichever payload form is transmitted.
func (enc *Encoder) EncodeFrame(img image.Image) (rec protocol.ScreenData, err error) {
	format, quality := enc.chooseFormat(img)

	currentFull, err := EncodeImage(img, format, quality)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		return
	}

	// An oversized lossless encode gets one retry as low-quality JPEG
	// before the frame is rejected
	if len(currentFull) > maxImageBytes && format != protocol.ImageJPEG {
		format = protocol.ImageJPEG
		currentFull, err = EncodeImage(img, format, 50)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrEncodeFailed, err)
			return
		}
	}
	if len(currentFull) > maxImageBytes {
		err = fmt.Errorf("%w: %d byte frame exceeds the wire payload limit", ErrEncodeFailed, len(currentFull))
		return
	}

	bounds := img.Bounds()
	rec = protocol.ScreenData{
		Width:           uint16(bounds.Dx()),
		Height:          uint16(bounds.Dy()),
		ImageType:       format,
		CompressionType: protocol.CompressionFull,
		ImageData:       currentFull,
	}

	if enc.prevFull != nil {
		diff := DiffEncode(currentFull, enc.prevFull)
		if float64(len(diff)) < diffWorthwhileRatio*float64(len(currentFull)) {
			rec.CompressionType = protocol.CompressionDiff
			rec.ImageData = diff
		}
	}

	enc.prevFull = currentFull
	return
}

// Picks the container format and quality for this frame
func (enc *Encoder) chooseFormat(img image.Image) (format uint8, quality int) {
	switch enc.strategy {
	case StrategyFast:
		// Quality floor scaled within 50-70 by the configured quality
		format = protocol.ImageJPEG
		quality = 50 + int(20*enc.quality)

	case StrategyHighCompression:
		stats := Analyze(img)
		if stats.PreferLossless() {
			format = protocol.ImagePNG
			return
		}
		format = protocol.ImageJPEG
		quality = 90

	case StrategyAdaptive:
		stats := Analyze(img)
		if stats.PreferLossless() {
			format = protocol.ImagePNG
			return
		}
		format = protocol.ImageJPEG
		quality = 50 + int(45*stats.Complexity())

	default: // StrategyBalanced
		format = protocol.ImageJPEG
		quality = 85
	}
	return
}

// Encodes an image into the requested container format.
// WEBP has no encoder; strategies never select it, but callers passing
// it explicitly get a clean failure.
func EncodeImage(img image.Image, format uint8, quality int) (data []byte, err error) {
	var buf bytes.Buffer

	switch format {
	case protocol.ImageJPEG:
		if quality < 1 || quality > 100 {
			quality = 85
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case protocol.ImagePNG:
		err = png.Encode(&buf, img)
	case protocol.ImageBMP:
		err = bmp.Encode(&buf, img)
	case protocol.ImageTIFF:
		err = tiff.Encode(&buf, img, nil)
	default:
		err = fmt.Errorf("no encoder for image type %d", format)
		return
	}
	if err != nil {
		return
	}

	data = buf.Bytes()
	return
}
