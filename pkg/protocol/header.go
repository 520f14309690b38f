package protocol

import (
	"crypto/md5"
	"encoding/binary"
	"time"
)

// Low 4 bytes of the payload MD5, read little-endian.
// Kept for wire compatibility: this is an integrity hint, not a MAC.
func PayloadChecksum(payload []byte) (checksum uint32) {
	digest := md5.Sum(payload)
	checksum = binary.LittleEndian.Uint32(digest[0:4])
	return
}

// Frame encoder owning the monotonic outbound sequence for one direction
// of one connection. Not safe for concurrent use; each sender owns one.
type FrameEncoder struct {
	seq uint32
}

// Builds a complete wire frame (header followed by payload) for the
// given message type, assigning the next outbound sequence number.
func (enc *FrameEncoder) Encode(msgType uint32, payload []byte) (frame []byte) {
	enc.seq++

	frame = make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:], FrameMagic)
	binary.LittleEndian.PutUint32(frame[4:], ProtocolVersion)
	binary.LittleEndian.PutUint32(frame[8:], msgType)
	binary.LittleEndian.PutUint32(frame[12:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[16:], enc.seq)
	binary.LittleEndian.PutUint32(frame[20:], PayloadChecksum(payload))
	binary.LittleEndian.PutUint32(frame[24:], uint32(time.Now().UnixMilli()))
	copy(frame[HeaderSize:], payload)
	return
}

// Last sequence number assigned by this encoder
func (enc *FrameEncoder) Sequence() (seq uint32) {
	seq = enc.seq
	return
}

// Parses a raw 28 byte header. Input must be at least HeaderSize long.
func parseHeader(raw []byte) (hdr Header) {
	hdr.Magic = binary.LittleEndian.Uint32(raw[0:])
	hdr.Version = binary.LittleEndian.Uint32(raw[4:])
	hdr.Type = binary.LittleEndian.Uint32(raw[8:])
	hdr.PayloadLength = binary.LittleEndian.Uint32(raw[12:])
	hdr.Sequence = binary.LittleEndian.Uint32(raw[16:])
	hdr.Checksum = binary.LittleEndian.Uint32(raw[20:])
	hdr.TimestampMs = binary.LittleEndian.Uint32(raw[24:])
	return
}

// Receiver-side assertion that sequence numbers strictly increase
// per direction across a connection
type SequenceTracker struct {
	last    uint32
	started bool
}

// Validates the next received sequence number
func (tracker *SequenceTracker) Check(seq uint32) (err error) {
	if tracker.started && seq <= tracker.last {
		err = ErrSequenceRegressed
		return
	}
	tracker.last = seq
	tracker.started = true
	return
}
