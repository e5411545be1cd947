package imagecache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Stored blobs are framed as
//
//	magic[4] | declared size uint64 | createdAt unix nanos int64 | payload
//
// so a truncated or foreign file is detected before it is served.
var frameMagic = []byte("TGC1")

const frameHeaderLen = 4 + 8 + 8

func encodeFrame(payload []byte, createdAt time.Time) []byte {
	buf := make([]byte, frameHeaderLen+len(payload))
	copy(buf, frameMagic)
	binary.BigEndian.PutUint64(buf[4:], uint64(len(payload)))
	binary.BigEndian.PutUint64(buf[12:], uint64(createdAt.UnixNano()))
	copy(buf[frameHeaderLen:], payload)
	return buf
}

func decodeFrame(raw []byte) ([]byte, time.Time, error) {
	if len(raw) < frameHeaderLen || !bytes.Equal(raw[:4], frameMagic) {
		return nil, time.Time{}, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	declared := binary.BigEndian.Uint64(raw[4:])
	created := time.Unix(0, int64(binary.BigEndian.Uint64(raw[12:])))
	payload := raw[frameHeaderLen:]
	if declared != uint64(len(payload)) {
		return nil, time.Time{}, fmt.Errorf("%w: declared %d bytes, found %d", ErrCorrupt, declared, len(payload))
	}
	return payload, created, nil
}
