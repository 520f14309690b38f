package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	var enc FrameEncoder
	payload := []byte("hello")
	frame := enc.Encode(MsgStatusUpdate, payload)

	if len(frame) != HeaderSize+5 {
		t.Fatalf("expected frame length %d, got %d", HeaderSize+5, len(frame))
	}

	var dec StreamDecoder
	dec.Feed(frame)

	hdr, got, err := dec.TryDecode()
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if hdr == nil {
		t.Fatal("expected a decoded frame")
	}
	if hdr.Type != MsgStatusUpdate {
		t.Errorf("expected type 0x%04x, got 0x%04x", MsgStatusUpdate, hdr.Type)
	}
	if hdr.Sequence != 1 {
		t.Errorf("expected first sequence 1, got %d", hdr.Sequence)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %q", got)
	}
	if dec.Buffered() != 0 {
		t.Errorf("expected empty buffer, %d bytes remain", dec.Buffered())
	}
}

func TestDecodeWithGarbagePrefix(t *testing.T) {
	var enc FrameEncoder
	frame := enc.Encode(MsgStatusUpdate, []byte("hello"))

	var dec StreamDecoder
	dec.Feed([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	dec.Feed(frame)

	hdr, payload, err := dec.TryDecode()
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if hdr == nil || hdr.Type != MsgStatusUpdate {
		t.Fatal("expected frame after garbage prefix")
	}
	if string(payload) != "hello" {
		t.Errorf("payload mismatch: %q", payload)
	}
	if dec.Buffered() != 0 {
		t.Errorf("expected all garbage consumed, %d bytes remain", dec.Buffered())
	}
	if dec.Resyncs != 1 {
		t.Errorf("expected 1 resync, got %d", dec.Resyncs)
	}
}

func TestDecodeTwoFramesInOrder(t *testing.T) {
	var enc FrameEncoder
	f1 := enc.Encode(MsgHeartbeat, nil)
	f2 := enc.Encode(MsgStatusUpdate, []byte("status"))

	var dec StreamDecoder
	dec.Feed(append(append([]byte{}, f1...), f2...))

	hdr1, _, err := dec.TryDecode()
	if err != nil || hdr1 == nil || hdr1.Type != MsgHeartbeat {
		t.Fatalf("first frame wrong: hdr=%v err=%v", hdr1, err)
	}
	hdr2, payload2, err := dec.TryDecode()
	if err != nil || hdr2 == nil || hdr2.Type != MsgStatusUpdate {
		t.Fatalf("second frame wrong: hdr=%v err=%v", hdr2, err)
	}
	if string(payload2) != "status" {
		t.Errorf("second payload mismatch: %q", payload2)
	}
	if hdr2.Sequence <= hdr1.Sequence {
		t.Errorf("sequence did not increase: %d then %d", hdr1.Sequence, hdr2.Sequence)
	}
}

func TestDecodePartialFrame(t *testing.T) {
	var enc FrameEncoder
	frame := enc.Encode(MsgScreenData, bytes.Repeat([]byte{0xAB}, 100))

	var dec StreamDecoder
	for i := 0; i < len(frame)-1; i += 7 {
		end := i + 7
		if end > len(frame)-1 {
			end = len(frame) - 1
		}
		dec.Feed(frame[i:end])
		hdr, _, err := dec.TryDecode()
		if err != nil {
			t.Fatalf("unexpected error mid-frame: %v", err)
		}
		if hdr != nil {
			t.Fatal("frame delivered before final byte arrived")
		}
	}

	dec.Feed(frame[len(frame)-1:])
	hdr, payload, err := dec.TryDecode()
	if err != nil || hdr == nil {
		t.Fatalf("expected completed frame, err=%v", err)
	}
	if len(payload) != 100 {
		t.Errorf("payload length mismatch: %d", len(payload))
	}
}

func TestChecksumCorruptionDropsWholeFrame(t *testing.T) {
	var enc FrameEncoder
	bad := enc.Encode(MsgScreenData, []byte("frame-one-payload"))
	good := enc.Encode(MsgHeartbeat, nil)

	// Flip one payload byte of the first frame
	bad[HeaderSize+3] ^= 0x01

	var dec StreamDecoder
	dec.Feed(bad)
	dec.Feed(good)

	hdr, _, err := dec.TryDecode()
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got hdr=%v err=%v", hdr, err)
	}

	// The subsequent valid frame must still decode
	hdr, _, err = dec.TryDecode()
	if err != nil || hdr == nil || hdr.Type != MsgHeartbeat {
		t.Fatalf("valid frame after corruption not delivered: hdr=%v err=%v", hdr, err)
	}
	if dec.DroppedFrames != 1 {
		t.Errorf("expected 1 dropped frame, got %d", dec.DroppedFrames)
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	var enc FrameEncoder
	frame := enc.Encode(MsgHeartbeat, nil)
	binary.LittleEndian.PutUint32(frame[4:], 99)

	var dec StreamDecoder
	dec.Feed(frame)

	_, _, err := dec.TryDecode()
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestOversizedPayloadRejected(t *testing.T) {
	var enc FrameEncoder
	frame := enc.Encode(MsgHeartbeat, nil)
	binary.LittleEndian.PutUint32(frame[12:], MaxPayloadSize+1)

	var dec StreamDecoder
	dec.Feed(frame)

	_, _, err := dec.TryDecode()
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected oversize error, got %v", err)
	}
}

func TestResyncKeepsPossibleMagicPrefix(t *testing.T) {
	var dec StreamDecoder

	// 40 bytes of garbage ending with the first 2 bytes of the magic
	garbage := bytes.Repeat([]byte{0x11}, 38)
	garbage = append(garbage, magicLiteral[0], magicLiteral[1])
	dec.Feed(garbage)

	hdr, _, err := dec.TryDecode()
	if hdr != nil || err != nil {
		t.Fatalf("expected no frame from garbage, hdr=%v err=%v", hdr, err)
	}
	if dec.Buffered() != 3 {
		t.Errorf("expected 3 retained bytes, got %d", dec.Buffered())
	}

	// Completing the magic and a full frame must now decode. The retained
	// tail contains a garbage byte before the partial magic, exercising
	// the mid-buffer resync path.
	var enc FrameEncoder
	frame := enc.Encode(MsgHeartbeat, nil)
	dec.Feed(frame[2:]) // rest of the header after the retained prefix
	hdr, _, err = dec.TryDecode()
	if err != nil || hdr == nil || hdr.Type != MsgHeartbeat {
		t.Fatalf("expected frame after prefix completion, hdr=%v err=%v", hdr, err)
	}
}

func TestSequenceTracker(t *testing.T) {
	var tracker SequenceTracker

	if err := tracker.Check(1); err != nil {
		t.Fatalf("first sequence rejected: %v", err)
	}
	if err := tracker.Check(2); err != nil {
		t.Fatalf("increasing sequence rejected: %v", err)
	}
	if err := tracker.Check(2); !errors.Is(err, ErrSequenceRegressed) {
		t.Fatalf("expected regression error on repeat, got %v", err)
	}
	if err := tracker.Check(1); !errors.Is(err, ErrSequenceRegressed) {
		t.Fatalf("expected regression error on decrease, got %v", err)
	}
}
