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
	"golang.org/x/image/webp"
)

var (
	ErrDecodeFailed = errors.New("no image format recognized")
	ErrNoReference  = errors.New("differential frame without reference")
)

// Per-session frame decoder. Holds the last successfully delivered full
// frame's encoded bytes as the reference for differential frames.
type Decoder struct {
	prevFull []byte

	// Failed image loads since session start, included in drop logs
	LoadFailures int
}

// Drops the reference buffer. The peer's next differential frame will be
// discarded until a full frame re-seeds it.
func (dec *Decoder) Reset() {
	dec.prevFull = nil
}

// Whether a reference full frame is currently held
func (dec *Decoder) HasReference() (ok bool) {
	ok = dec.prevFull != nil
	return
}

// Rebuilds the full frame image from a received ScreenData record.
// Differential payloads are applied to the reference first; a diff that
// arrives without a reference is treated as corruption and dropped.
func (dec *Decoder) Reconstruct(rec protocol.ScreenData) (img image.Image, err error) {
	var fullEncoded []byte

	switch rec.CompressionType {
	case protocol.CompressionFull:
		fullEncoded = rec.ImageData

	case protocol.CompressionDiff:
		if dec.prevFull == nil {
			err = ErrNoReference
			return
		}
		fullEncoded, err = DiffDecode(dec.prevFull, rec.ImageData)
		if err != nil {
			// Reference may be out of sync; drop it to force a full frame
			dec.prevFull = nil
			dec.LoadFailures++
			err = fmt.Errorf("diff apply failed: %w", err)
			return
		}

	default:
		err = fmt.Errorf("unknown compression type %d", rec.CompressionType)
		return
	}

	img, _, err = DecodeImage(fullEncoded)
	if err != nil {
		dec.prevFull = nil
		dec.LoadFailures++
		return
	}

	dec.prevFull = fullEncoded
	return
}

// Decodes an encoded image by trying each supported container in order;
// the first decoder that accepts the bytes wins
func DecodeImage(data []byte) (img image.Image, format uint8, err error) {
	type attempt struct {
		format uint8
		decode func(*bytes.Reader) (image.Image, error)
	}

	attempts := []attempt{
		{protocol.ImageJPEG, func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) }},
		{protocol.ImagePNG, func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) }},
		{protocol.ImageWEBP, func(r *bytes.Reader) (image.Image, error) { return webp.Decode(r) }},
		{protocol.ImageBMP, func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) }},
		{protocol.ImageTIFF, func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) }},
	}

	for _, candidate := range attempts {
		decoded, decodeErr := candidate.decode(bytes.NewReader(data))
		if decodeErr == nil {
			img = decoded
			format = candidate.format
			return
		}
	}

	err = ErrDecodeFailed
	return
}
