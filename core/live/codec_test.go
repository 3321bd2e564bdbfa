package live

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/store"
)

const sampleStream = `# nattr 2
# comment line
# time 0
0 0 0 1 2
1 1 1 3 4
label 1 2 3 "Alpha Centauri"
# time 0.5
2 2 2 5
3 3 3 7 8
not a number
`

func TestTextDecoderFrames(t *testing.T) {
	var bad []error
	dec := NewTextDecoder(strings.NewReader(sampleStream))
	dec.OnMalformed = func(err error) { bad = append(bad, err) }

	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.Time)
	assert.Equal(t, 2, f.NAttr)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []float32{1, 2, 3, 4}, f.Attr)
	require.Len(t, f.Labels, 1)
	assert.Equal(t, "Alpha Centauri", f.Labels[0].Title)
	assert.Equal(t, float32(3), f.Labels[0].Z)

	f, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f.Time)
	assert.Equal(t, 1, f.Len(), "short and unparsable records are skipped")

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)

	require.Len(t, bad, 2)
	for _, e := range bad {
		assert.True(t, errors.Is(e, ErrMalformedRecord))
	}
}

func TestTextDecoderInfersAttributeCount(t *testing.T) {
	dec := NewTextDecoder(strings.NewReader("# time 1\n1 2 3 4 5 6\n7 8 9 1 2 3\n"))
	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, 3, f.NAttr)
	assert.Equal(t, 2, f.Len())
	assert.NoError(t, f.Validate())
}

func TestTextEncodeDecode(t *testing.T) {
	f := NewFrame(2.5, 1)
	f.Add(1, 2, 3, 1, 0.25)
	f.Add(-1, -2, -3, 1, 8)
	f.AddLabel(0, 0, 0, `say "hi"`)

	var buf bytes.Buffer
	require.NoError(t, EncodeText(&buf, f))
	got, err := NewTextDecoder(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, f.Time, got.Time)
	assert.Equal(t, f.Pos, got.Pos)
	assert.Equal(t, f.Attr, got.Attr)
	assert.Equal(t, f.Labels, got.Labels)
}

func TestWireEncodeDecode(t *testing.T) {
	f := NewFrame(12.75, 2)
	f.Add(1, 2, 3, 1, 4, 5)
	f.Add(6, 7, 8, 1, 9, 10)

	got, err := DecodeWire(EncodeWire(f))
	require.NoError(t, err)
	assert.Equal(t, f.Time, got.Time)
	assert.Equal(t, f.NAttr, got.NAttr)
	assert.Equal(t, f.Pos, got.Pos)
	assert.Equal(t, f.Attr, got.Attr)
}

func TestWireRejectsMalformed(t *testing.T) {
	_, err := DecodeWire([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	b := EncodeWire(frameOf(1, 2, 1))
	bad := append([]byte(nil), b...)
	bad[0] ^= 0xFF
	_, err = DecodeWire(bad)
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	_, err = DecodeWire(b[:len(b)-4])
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}

func TestWireOverflowKeepsCap(t *testing.T) {
	count := MaxWireRecords + 10
	b := make([]byte, WireHeaderBytes+count*12)
	binary.LittleEndian.PutUint32(b[0:4], WireMagic)
	binary.LittleEndian.PutUint32(b[12:16], uint32(count))

	f, err := DecodeWire(b)
	require.NotNil(t, f)
	assert.True(t, errors.Is(err, store.ErrOverflow))
	assert.Equal(t, "overflow", Kind(err))
	assert.Equal(t, MaxWireRecords, f.Len())
}
