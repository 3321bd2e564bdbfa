package live

import (
	"encoding/binary"
	"fmt"
	"math"

	"specks/core/store"
)

const (
	// WireMagic opens every binary frame message ("SPCK" on the wire).
	WireMagic uint32 = 0x4B435053
	// WireHeaderBytes is the fixed header length.
	WireHeaderBytes = 18
	// MaxWireRecords caps one message; records past it are dropped.
	MaxWireRecords = 1 << 18
)

// EncodeWire encodes f as one binary frame message. Labels are not carried.
//
// Layout (little-endian):
//   - u32: magic
//   - f64: time
//   - u32: record count
//   - u16: attribute count
//   - count * (3 + nattr) f32: x y z then attributes, per record
func EncodeWire(f *Frame) []byte {
	n := f.Len()
	stride := 3 + f.NAttr
	buf := make([]byte, WireHeaderBytes+4*n*stride)
	binary.LittleEndian.PutUint32(buf[0:4], WireMagic)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(f.Time))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(n))
	binary.LittleEndian.PutUint16(buf[16:18], uint16(f.NAttr))
	off := WireHeaderBytes
	put := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for i := 0; i < n; i++ {
		put(f.Pos[3*i])
		put(f.Pos[3*i+1])
		put(f.Pos[3*i+2])
		for b := 0; b < f.NAttr; b++ {
			put(f.Attr[i*f.NAttr+b])
		}
	}
	return buf
}

// DecodeWire decodes one binary frame message.
//
// A message announcing more than MaxWireRecords records yields the first
// MaxWireRecords together with an error wrapping store.ErrOverflow.
func DecodeWire(b []byte) (*Frame, error) {
	if len(b) < WireHeaderBytes {
		return nil, fmt.Errorf("%w: short wire header (%d bytes)", ErrMalformedRecord, len(b))
	}
	if m := binary.LittleEndian.Uint32(b[0:4]); m != WireMagic {
		return nil, fmt.Errorf("%w: bad wire magic %#x", ErrMalformedRecord, m)
	}
	t := math.Float64frombits(binary.LittleEndian.Uint64(b[4:12]))
	count := int(binary.LittleEndian.Uint32(b[12:16]))
	nattr := int(binary.LittleEndian.Uint16(b[16:18]))
	if nattr > store.MaxAttrs {
		return nil, fmt.Errorf("%w: %d attributes (max %d)", ErrMalformedRecord, nattr, store.MaxAttrs)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return nil, fmt.Errorf("%w: bad frame time", ErrMalformedRecord)
	}
	stride := 4 * (3 + nattr)
	body := b[WireHeaderBytes:]

	var overflow error
	keep := count
	if keep > MaxWireRecords {
		keep = MaxWireRecords
		overflow = fmt.Errorf("%w: %d records, kept %d", store.ErrOverflow, count, keep)
	}
	if len(body) < keep*stride {
		return nil, fmt.Errorf("%w: body holds %d of %d records", ErrMalformedRecord, len(body)/stride, keep)
	}

	f := NewFrame(t, nattr)
	f.Pos = make([]float32, 0, 3*keep)
	f.Attr = make([]float32, 0, nattr*keep)
	off := 0
	get := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
		return v
	}
	for i := 0; i < keep; i++ {
		f.Pos = append(f.Pos, get(), get(), get())
		for a := 0; a < nattr; a++ {
			f.Attr = append(f.Attr, get())
		}
	}
	return f, overflow
}
