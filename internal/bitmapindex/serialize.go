package bitmapindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"dnaindex/internal/chainmodel"
)

// EncodeIndexGroup serializes a group's range bitmaps and secondary
// indices for the `group/{first}` object (spec.md 3.5). Each bitmap uses
// roaring's own native format (the same on-disk representation
// original_source/common/src/data_stream/segment_stream.rs's
// RoaringBitmap serialization produces, since the Roaring format is
// cross-language-stable) — the length-prefixed framing around those
// bitmaps is a small stdlib encoding/binary container, justified as
// stdlib-only because the original groups bitmaps the same way, by
// direct structured writes rather than through a generic serialization
// library. Map iteration is sorted for byte-stable output.
func EncodeIndexGroup(g *IndexGroup) ([]byte, error) {
	var buf bytes.Buffer
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], g.GroupFirst)
	buf.Write(u64[:])

	fragIDs := sortedFragmentIDs(g.Ranges)
	writeUint32(&buf, uint32(len(fragIDs)))
	for _, f := range fragIDs {
		buf.WriteByte(byte(f))
		if err := writeBitmap(&buf, g.Ranges[f]); err != nil {
			return nil, fmt.Errorf("bitmapindex: encode range for fragment %d: %w", f, err)
		}
	}

	addrFragIDs := sortedFragmentIDsFromNamed(g.AddressIndexes)
	writeUint32(&buf, uint32(len(addrFragIDs)))
	for _, f := range addrFragIDs {
		buf.WriteByte(byte(f))
		named := g.AddressIndexes[f]
		names := sortedNames(named)
		writeUint32(&buf, uint32(len(names)))
		for _, name := range names {
			writeString(&buf, name)
			if err := encodeStringIndex(&buf, named[name]); err != nil {
				return nil, fmt.Errorf("bitmapindex: encode index %q: %w", name, err)
			}
		}
	}

	joinNames := sortedNames(g.JoinIndexes)
	writeUint32(&buf, uint32(len(joinNames)))
	for _, name := range joinNames {
		writeString(&buf, name)
		if err := encodeUint32Index(&buf, g.JoinIndexes[name]); err != nil {
			return nil, fmt.Errorf("bitmapindex: encode join index %q: %w", name, err)
		}
	}

	return buf.Bytes(), nil
}

// DecodeIndexGroup is the inverse of EncodeIndexGroup.
func DecodeIndexGroup(data []byte) (*IndexGroup, error) {
	r := bytes.NewReader(data)
	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return nil, fmt.Errorf("bitmapindex: read group_first: %w", err)
	}
	g := NewIndexGroup(binary.BigEndian.Uint64(u64[:]))

	nRanges, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("bitmapindex: read range count: %w", err)
	}
	for i := uint32(0); i < nRanges; i++ {
		fb, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: read range fragment id: %w", err)
		}
		bm, err := readBitmap(r)
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: read range bitmap: %w", err)
		}
		g.Ranges[chainmodel.FragmentID(fb)] = bm
	}

	nAddrFrags, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("bitmapindex: read address fragment count: %w", err)
	}
	for i := uint32(0); i < nAddrFrags; i++ {
		fb, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: read address fragment id: %w", err)
		}
		f := chainmodel.FragmentID(fb)
		nNames, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: read index count for fragment %d: %w", f, err)
		}
		named := make(map[string]*Index[string], nNames)
		for j := uint32(0); j < nNames; j++ {
			name, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("bitmapindex: read index name: %w", err)
			}
			idx, err := decodeStringIndex(r, name)
			if err != nil {
				return nil, fmt.Errorf("bitmapindex: decode index %q: %w", name, err)
			}
			named[name] = idx
		}
		g.AddressIndexes[f] = named
	}

	nJoin, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("bitmapindex: read join index count: %w", err)
	}
	for i := uint32(0); i < nJoin; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: read join index name: %w", err)
		}
		idx, err := decodeUint32Index(r, name)
		if err != nil {
			return nil, fmt.Errorf("bitmapindex: decode join index %q: %w", name, err)
		}
		g.JoinIndexes[name] = idx
	}

	return g, nil
}

func sortedFragmentIDs(m map[chainmodel.FragmentID]*roaring.Bitmap) []chainmodel.FragmentID {
	out := make([]chainmodel.FragmentID, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedFragmentIDsFromNamed(m map[chainmodel.FragmentID]map[string]*Index[string]) []chainmodel.FragmentID {
	out := make([]chainmodel.FragmentID, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func encodeStringIndex(buf *bytes.Buffer, idx *Index[string]) error {
	keys := idx.Keys()
	sort.Strings(keys)
	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
		if err := writeBitmap(buf, idx.byKey[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeStringIndex(r *bytes.Reader, name string) (*Index[string], error) {
	idx := NewIndex[string](name)
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		bm, err := readBitmap(r)
		if err != nil {
			return nil, err
		}
		idx.byKey[key] = bm
	}
	return idx, nil
}

func encodeUint32Index(buf *bytes.Buffer, idx *Index[uint32]) error {
	keys := idx.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeUint32(buf, k)
		if err := writeBitmap(buf, idx.byKey[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeUint32Index(r *bytes.Reader, name string) (*Index[uint32], error) {
	idx := NewIndex[uint32](name)
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		bm, err := readBitmap(r)
		if err != nil {
			return nil, err
		}
		idx.byKey[key] = bm
	}
	return idx, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) { writeBytesField(buf, []byte(s)) }

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytesField(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytesField(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readBytesField(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeBitmap(buf *bytes.Buffer, bm *roaring.Bitmap) error {
	data, err := bm.ToBytes()
	if err != nil {
		return err
	}
	writeBytesField(buf, data)
	return nil
}

func readBitmap(r *bytes.Reader) (*roaring.Bitmap, error) {
	data, err := readBytesField(r)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if _, err := bm.FromBuffer(data); err != nil {
		return nil, err
	}
	return bm, nil
}
