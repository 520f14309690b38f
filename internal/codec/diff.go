// Differential encoding of screen frames. A frame is diffed against the
// previous fully encoded frame as raw bytes, 64-byte blocks at a time:
// runs of identical blocks collapse into skip records, changed blocks are
// carried verbatim.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	diffBlockSize = 64
	skipMarker    = 0xFF // record tag; valid block lengths never exceed 64
)

var (
	ErrDiffTruncated = errors.New("diff stream truncated")
	ErrDiffOverrun   = errors.New("diff record overruns target buffer")
)

// Encodes current relative to previous.
//
// Layout: target_size:i32 little-endian, then records. A record is either
// (0xFF, count:i32) skipping count unchanged blocks, or (len:u8, bytes)
// replacing one block. When the diff would not be smaller than the input,
// the fallback form target_size = -1 followed by current verbatim is
// emitted instead; decoders accept both.
func DiffEncode(current, previous []byte) (diff []byte) {
	var buf bytes.Buffer

	var sizeField [4]byte
	binary.LittleEndian.PutUint32(sizeField[:], uint32(int32(len(current))))
	buf.Write(sizeField[:])

	skipRun := 0
	flushSkips := func() {
		if skipRun == 0 {
			return
		}
		var record [5]byte
		record[0] = skipMarker
		binary.LittleEndian.PutUint32(record[1:], uint32(int32(skipRun)))
		buf.Write(record[:])
		skipRun = 0
	}

	for pos := 0; pos < len(current); pos += diffBlockSize {
		end := pos + diffBlockSize
		if end > len(current) {
			end = len(current)
		}
		block := current[pos:end]

		if end <= len(previous) && bytes.Equal(block, previous[pos:end]) {
			skipRun++
			continue
		}

		flushSkips()
		buf.WriteByte(byte(len(block)))
		buf.Write(block)
	}
	flushSkips()

	diff = buf.Bytes()
	if len(diff) >= len(current) {
		// Not worth it: fall back to the verbatim form
		diff = make([]byte, 4+len(current))
		binary.LittleEndian.PutUint32(diff[0:], ^uint32(0)) // target_size -1
		copy(diff[4:], current)
	}
	return
}

// Applies a diff produced by DiffEncode to the previous buffer
func DiffDecode(previous, diff []byte) (current []byte, err error) {
	if len(diff) < 4 {
		err = ErrDiffTruncated
		return
	}

	targetSize := int32(binary.LittleEndian.Uint32(diff[0:4]))
	records := diff[4:]

	if targetSize == -1 {
		current = make([]byte, len(records))
		copy(current, records)
		return
	}
	if targetSize < 0 {
		err = ErrDiffTruncated
		return
	}

	current = make([]byte, targetSize)
	pos := 0

	for len(records) > 0 {
		tag := records[0]

		if tag == skipMarker {
			if len(records) < 5 {
				err = ErrDiffTruncated
				current = nil
				return
			}
			count := int32(binary.LittleEndian.Uint32(records[1:5]))
			records = records[5:]
			if count < 0 {
				err = ErrDiffTruncated
				current = nil
				return
			}

			// Copy count unchanged blocks from the reference at position
			for i := int32(0); i < count; i++ {
				end := pos + diffBlockSize
				if end > len(current) {
					end = len(current)
				}
				if end > len(previous) || pos >= end {
					err = ErrDiffOverrun
					current = nil
					return
				}
				copy(current[pos:end], previous[pos:end])
				pos = end
			}
			continue
		}

		blockLen := int(tag)
		if blockLen > diffBlockSize {
			err = ErrDiffTruncated
			current = nil
			return
		}
		if len(records) < 1+blockLen {
			err = ErrDiffTruncated
			current = nil
			return
		}
		if pos+blockLen > len(current) {
			err = ErrDiffOverrun
			current = nil
			return
		}
		copy(current[pos:], records[1:1+blockLen])
		pos += blockLen
		records = records[1+blockLen:]
	}

	if pos != len(current) {
		err = ErrDiffTruncated
		current = nil
		return
	}
	return
}
