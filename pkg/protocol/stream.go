package protocol

import (
	"bytes"
	"encoding/binary"
)

// Incremental decoder over a growing receive buffer. Tolerates partial
// reads and resynchronizes on the magic literal after corruption.
type StreamDecoder struct {
	buf []byte

	// Diagnostic counters for the owning session
	Resyncs       int // times the scanner had to discard garbage to find magic
	DroppedFrames int // frames discarded for checksum mismatch
}

// Appends newly received bytes to the receive buffer
func (dec *StreamDecoder) Feed(data []byte) {
	dec.buf = append(dec.buf, data...)
}

// Bytes currently buffered and not yet consumed
func (dec *StreamDecoder) Buffered() (n int) {
	n = len(dec.buf)
	return
}

var magicLiteral = func() []byte {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, FrameMagic)
	return raw
}()

// Attempts to decode one complete frame from the buffer.
//
// Returns (nil, nil, nil) when more data is needed. Returns a sentinel
// error for frames that parsed but must be rejected; the caller decides
// whether the error is fatal for the connection:
//   - ErrUnsupportedVersion, ErrPayloadTooLarge: one byte is dropped so a
//     later call can resync; the session should drop the connection.
//   - ErrChecksumMismatch: the whole frame window is dropped and decoding
//     can continue with the next frame.
func (dec *StreamDecoder) TryDecode() (hdr *Header, payload []byte, err error) {
	if len(dec.buf) < HeaderSize {
		return
	}

	// Resync scan: locate the magic literal at the buffer head
	if binary.LittleEndian.Uint32(dec.buf[0:4]) != FrameMagic {
		// Offset 0 is known not to match, so the scan starts at 1.
		// This also guarantees forward progress on self-similar data.
		idx := bytes.Index(dec.buf[1:], magicLiteral)
		dec.Resyncs++
		if idx < 0 {
			// Keep the last 3 bytes, they may be a magic prefix
			if len(dec.buf) > 3 {
				dec.buf = dec.buf[len(dec.buf)-3:]
			}
			return
		}
		dec.buf = dec.buf[idx+1:]
		if len(dec.buf) < HeaderSize {
			return
		}
	}

	parsed := parseHeader(dec.buf)

	if parsed.Version != ProtocolVersion {
		dec.buf = dec.buf[1:]
		err = ErrUnsupportedVersion
		return
	}
	if parsed.PayloadLength > MaxPayloadSize {
		dec.buf = dec.buf[1:]
		err = ErrPayloadTooLarge
		return
	}

	frameLen := HeaderSize + int(parsed.PayloadLength)
	if len(dec.buf) < frameLen {
		// Wait for more data
		return
	}

	body := dec.buf[HeaderSize:frameLen]
	if PayloadChecksum(body) != parsed.Checksum {
		// Treat the whole frame window as garbage
		dec.buf = dec.buf[frameLen:]
		dec.DroppedFrames++
		err = ErrChecksumMismatch
		return
	}

	payload = make([]byte, len(body))
	copy(payload, body)
	dec.buf = dec.buf[frameLen:]
	hdr = &parsed
	return
}
