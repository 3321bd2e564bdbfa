// Package store holds speck records: specklists, the per-(dataset, timestep)
// slot grid, the buffer arena and epoch-gated reclamation of retired chains.
package store

import (
	"sync/atomic"

	"specks/core/sel"
)

const (
	// MaxAttrs is the largest attribute count a list may declare.
	MaxAttrs = 29
	// HeaderBytes is the fixed part of one record: position, color and size.
	HeaderBytes = 3*4 + 4 + 4
)

// NoAttr marks an unset attribute binding.
const NoAttr = -1

// Specklist is a homogeneous group of speck records stored as parallel slices.
//
// A list is built privately by its producer and published by inserting it into
// a store slot; after that only its owner mutates it, and only in place
// (colors, sizes, selection bits). Lists in one chain are linked through Next.
type Specklist struct {
	// NAttr is the attribute count of every record in the list.
	NAttr int

	Pos  []float32 // 3 per record
	RGBA []uint32
	Size []float32
	Attr []float32 // NAttr per record
	Sel  []sel.Mask
	// Lum is the derived luminosity factor written by the size pipeline.
	Lum []float32
	// Titles is non-nil for label lists: one title per record.
	Titles []string

	ColorBy  int
	SizeBy   int
	ThreshBy int

	// Cached pipeline sequences; a mismatch with the pipeline's counter
	// forces a recompute.
	ColorSeq  uint64
	SizeSeq   uint64
	ThreshSeq uint64

	// Seq is the producer's monotonically increasing stamp.
	Seq  uint64
	Time float64

	used atomic.Uint64
	next atomic.Pointer[Specklist]
}

// NewList allocates an empty list with room for capacity records.
func NewList(nattr, capacity int) *Specklist {
	if nattr < 0 {
		nattr = 0
	}
	if nattr > MaxAttrs {
		nattr = MaxAttrs
	}
	if capacity < 0 {
		capacity = 0
	}
	l := &Specklist{NAttr: nattr}
	l.Grow(capacity)
	l.Reset()
	return l
}

// NewLabels allocates an empty label list.
func NewLabels(capacity int) *Specklist {
	l := NewList(0, capacity)
	l.Titles = make([]string, 0, capacity)
	return l
}

// Len returns the number of records.
func (l *Specklist) Len() int {
	if l == nil {
		return 0
	}
	return len(l.RGBA)
}

// Cap returns how many records fit without reallocation.
func (l *Specklist) Cap() int {
	if l == nil {
		return 0
	}
	return cap(l.RGBA)
}

// IsLabels reports whether the list carries titles instead of points.
func (l *Specklist) IsLabels() bool {
	return l != nil && l.Titles != nil
}

// BytesPerSpeck returns the record stride the list would use in a flat buffer.
func (l *Specklist) BytesPerSpeck() int {
	return HeaderBytes + 4*l.NAttr
}

// ValidAttr reports whether attribute b exists in this list.
func (l *Specklist) ValidAttr(b int) bool {
	return l != nil && b >= 0 && l.BytesPerSpeck() >= HeaderBytes+(b+1)*4
}

// Grow makes room for at least n more records, doubling capacity.
func (l *Specklist) Grow(n int) {
	need := len(l.RGBA) + n
	if need <= cap(l.RGBA) {
		return
	}
	c := cap(l.RGBA) * 2
	if c < need {
		c = need
	}
	if c < 16 {
		c = 16
	}
	l.Pos = growF32(l.Pos, 3*c)
	l.RGBA = growU32(l.RGBA, c)
	l.Size = growF32(l.Size, c)
	l.Attr = growF32(l.Attr, l.NAttr*c)
	l.Sel = growMask(l.Sel, c)
	if l.Lum != nil {
		l.Lum = growF32(l.Lum, c)
	}
	if l.Titles != nil {
		t := make([]string, len(l.Titles), c)
		copy(t, l.Titles)
		l.Titles = t
	}
}

// Add appends a record and returns its index. Missing attributes are zero;
// extra attributes are ignored.
func (l *Specklist) Add(x, y, z, size float32, attrs ...float32) int {
	l.Grow(1)
	i := len(l.RGBA)
	l.Pos = append(l.Pos, x, y, z)
	l.RGBA = append(l.RGBA, 0xFFFFFFFF)
	l.Size = append(l.Size, size)
	l.Sel = append(l.Sel, 0)
	for b := 0; b < l.NAttr; b++ {
		v := float32(0)
		if b < len(attrs) {
			v = attrs[b]
		}
		l.Attr = append(l.Attr, v)
	}
	if l.Lum != nil {
		l.Lum = append(l.Lum, size)
	}
	if l.Titles != nil {
		l.Titles = append(l.Titles, "")
	}
	return i
}

// AddLabel appends a label record.
func (l *Specklist) AddLabel(x, y, z float32, title string) int {
	if l.Titles == nil {
		l.Titles = make([]string, len(l.RGBA), cap(l.RGBA))
	}
	i := l.Add(x, y, z, 1)
	l.Titles[i] = title
	return i
}

// Position returns the position of record i.
func (l *Specklist) Position(i int) (x, y, z float32) {
	p := l.Pos[3*i : 3*i+3]
	return p[0], p[1], p[2]
}

// Attrs returns the attribute vector of record i. The slice aliases the list.
func (l *Specklist) Attrs(i int) []float32 {
	return l.Attr[i*l.NAttr : (i+1)*l.NAttr]
}

// AttrValue returns attribute b of record i.
func (l *Specklist) AttrValue(i, b int) float32 {
	return l.Attr[i*l.NAttr+b]
}

// EnsureLum allocates the derived luminosity slice.
func (l *Specklist) EnsureLum() []float32 {
	if len(l.Lum) != len(l.Size) {
		if cap(l.Lum) >= len(l.Size) {
			l.Lum = l.Lum[:len(l.Size)]
		} else {
			l.Lum = make([]float32, len(l.Size), cap(l.Size))
		}
		copy(l.Lum, l.Size)
	}
	return l.Lum
}

// Next returns the following list in the chain.
func (l *Specklist) Next() *Specklist {
	if l == nil {
		return nil
	}
	return l.next.Load()
}

// Link attaches n after l when l has no successor yet. Installed links are
// never replaced, so a concurrent walker sees either nil or n.
func (l *Specklist) Link(n *Specklist) bool {
	if l == nil || n == nil {
		return false
	}
	return l.next.CompareAndSwap(nil, n)
}

// Tail returns the last list of the chain starting at l.
func (l *Specklist) Tail() *Specklist {
	for l != nil {
		n := l.Next()
		if n == nil {
			return l
		}
		l = n
	}
	return nil
}

// Used returns the clock tick at which the list was last displayed.
func (l *Specklist) Used() uint64 {
	return l.used.Load()
}

// Touch records a display at tick.
func (l *Specklist) Touch(tick uint64) {
	l.used.Store(tick)
}

// Bytes returns the memory held by the list's record buffers. The derived
// luminosity slice is not counted.
func (l *Specklist) Bytes() int64 {
	if l == nil {
		return 0
	}
	n := int64(cap(l.RGBA)) * HeaderBytes
	n += int64(cap(l.Attr))*4 + int64(cap(l.Sel))*4
	for _, t := range l.Titles {
		n += int64(len(t))
	}
	return n
}

// Reset empties the list and clears its bookkeeping while keeping buffers.
// Only the owner of an unpublished or reclaimed list may call it.
func (l *Specklist) Reset() {
	l.Pos = l.Pos[:0]
	l.RGBA = l.RGBA[:0]
	l.Size = l.Size[:0]
	l.Attr = l.Attr[:0]
	l.Sel = l.Sel[:0]
	if l.Lum != nil {
		l.Lum = l.Lum[:0]
	}
	if l.Titles != nil {
		clear(l.Titles)
		l.Titles = l.Titles[:0]
	}
	l.ColorBy, l.SizeBy, l.ThreshBy = NoAttr, NoAttr, NoAttr
	l.ColorSeq, l.SizeSeq, l.ThreshSeq = 0, 0, 0
	l.Seq = 0
	l.Time = 0
	l.used.Store(0)
	l.next.Store(nil)
}

func growF32(s []float32, c int) []float32 {
	n := make([]float32, len(s), c)
	copy(n, s)
	return n
}

func growU32(s []uint32, c int) []uint32 {
	n := make([]uint32, len(s), c)
	copy(n, s)
	return n
}

func growMask(s []sel.Mask, c int) []sel.Mask {
	n := make([]sel.Mask, len(s), c)
	copy(n, s)
	return n
}
