package objectstore

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
)

// encodePayload implements the at-rest wire format from spec.md 4.A:
// zstd(payload || crc32(payload)).
func encodePayload(payload []byte) ([]byte, error) {
	sum := crc32.ChecksumIEEE(payload)
	framed := make([]byte, 0, len(payload)+4)
	framed = append(framed, payload...)
	framed = appendUint32(framed, sum)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: new zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(framed, nil), nil
}

// decodePayload reverses encodePayload, verifying the trailing checksum.
func decodePayload(wire []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: new zstd reader: %w", err)
	}
	defer dec.Close()

	framed, err := dec.DecodeAll(wire, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: zstd decode: %w", err)
	}
	if len(framed) < 4 {
		return nil, fmt.Errorf("objectstore: framed payload too short (%d bytes)", len(framed))
	}
	payload := framed[:len(framed)-4]
	wantSum := readUint32(framed[len(framed)-4:])
	gotSum := crc32.ChecksumIEEE(payload)
	if gotSum != wantSum {
		return nil, fmt.Errorf("%w: crc32 got %08x want %08x", errChecksumMismatch, gotSum, wantSum)
	}
	return payload, nil
}

var errChecksumMismatch = fmt.Errorf("checksum mismatch")

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// compressionRatio returns compressed/raw for observability hooks, 0 if raw
// is empty.
func compressionRatio(raw, compressed int) float64 {
	if raw == 0 {
		return 0
	}
	return float64(compressed) / float64(raw)
}

// drain reads r fully, used when plugging a streaming reader into the
// in-memory codec above.
func drain(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
