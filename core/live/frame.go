package live

import (
	"fmt"

	"specks/core/store"
)

// Label is one titled label record of a frame.
type Label struct {
	X, Y, Z float32
	Title   string
}

// Frame is one parsed time step delivered by a producer.
//
// A frame is immutable once appended to a Gate; snapshot builders read it
// without holding any lock.
type Frame struct {
	Time  float64
	NAttr int
	Pos   []float32 // 3 per record
	Size  []float32 // one per record, or nil for unit size
	Attr  []float32 // NAttr per record

	Labels []Label
}

// NewFrame returns an empty frame at time t.
func NewFrame(t float64, nattr int) *Frame {
	return &Frame{Time: t, NAttr: nattr}
}

// Len returns the number of point records.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Pos) / 3
}

// Add appends a point record. Missing attributes are zero.
func (f *Frame) Add(x, y, z, size float32, attrs ...float32) {
	if f.Size == nil && size != 1 {
		f.Size = make([]float32, f.Len(), cap(f.Pos)/3+1)
		for i := range f.Size {
			f.Size[i] = 1
		}
	}
	f.Pos = append(f.Pos, x, y, z)
	if f.Size != nil {
		f.Size = append(f.Size, size)
	}
	for b := 0; b < f.NAttr; b++ {
		v := float32(0)
		if b < len(attrs) {
			v = attrs[b]
		}
		f.Attr = append(f.Attr, v)
	}
}

// AddLabel appends a label record.
func (f *Frame) AddLabel(x, y, z float32, title string) {
	f.Labels = append(f.Labels, Label{X: x, Y: y, Z: z, Title: title})
}

// Validate checks that the frame's slices agree with each other.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrMalformedRecord)
	}
	if f.NAttr < 0 || f.NAttr > store.MaxAttrs {
		return fmt.Errorf("%w: %d attributes (max %d)", ErrMalformedRecord, f.NAttr, store.MaxAttrs)
	}
	if len(f.Pos)%3 != 0 {
		return fmt.Errorf("%w: %d position floats", ErrMalformedRecord, len(f.Pos))
	}
	n := f.Len()
	if f.Size != nil && len(f.Size) != n {
		return fmt.Errorf("%w: %d sizes for %d records", ErrMalformedRecord, len(f.Size), n)
	}
	if len(f.Attr) != n*f.NAttr {
		return fmt.Errorf("%w: %d attribute floats for %d records", ErrMalformedRecord, len(f.Attr), n)
	}
	return nil
}

// fill writes the frame's records into the chain at head, reusing its lists.
// It returns the chain head; a label list is linked after the points when the
// frame carries labels.
func (f *Frame) fill(a *store.Arena, head *store.Specklist, seq uint64) *store.Specklist {
	var labels *store.Specklist
	if head != nil {
		labels = head.Next()
	}
	n := f.Len()
	if head == nil || head.NAttr != f.NAttr {
		if head != nil {
			a.PutChain(head)
		}
		head = a.Get(f.NAttr, n)
		labels = nil
	} else {
		head.Reset()
	}
	head.Grow(n)
	for i := 0; i < n; i++ {
		size := float32(1)
		if f.Size != nil {
			size = f.Size[i]
		}
		head.Add(f.Pos[3*i], f.Pos[3*i+1], f.Pos[3*i+2], size, f.Attr[i*f.NAttr:(i+1)*f.NAttr]...)
	}
	head.Seq = seq
	head.Time = f.Time

	if len(f.Labels) == 0 {
		if labels != nil {
			a.Put(labels)
		}
		return head
	}
	if labels == nil {
		labels = a.GetLabels(len(f.Labels))
	} else {
		labels.Reset()
	}
	for _, lb := range f.Labels {
		labels.AddLabel(lb.X, lb.Y, lb.Z, lb.Title)
	}
	labels.Seq = seq
	labels.Time = f.Time
	head.Link(labels)
	return head
}

// Specklist builds a fresh chain for the frame from a. Static loaders use it to
// install decoded frames into a store slot.
func (f *Frame) Specklist(a *store.Arena, seq uint64) *store.Specklist {
	if a == nil {
		a = store.NewArena(0)
	}
	return f.fill(a, nil, seq)
}
