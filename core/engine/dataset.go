package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"specks/core/live"
	"specks/core/look"
	"specks/core/sel"
	"specks/core/store"
)

var (
	ErrUnknownDataset = errors.New("engine: unknown dataset")
	ErrUnknownAttr    = errors.New("engine: unknown attribute")
	ErrNoSource       = errors.New("engine: no source bound")
	ErrBadSetting     = errors.New("engine: invalid setting")
)

// maxPaints bounds the paint history replayed onto fresh live snapshots.
const maxPaints = 32

// Dataset is one named group of specks: either static timesteps held in the
// store, or frames served by a bound live source.
type Dataset struct {
	ID    int
	Name  string
	Attrs []string
	Look  *look.Pipeline

	// Hidden datasets are skipped by Render.
	Hidden bool

	src   live.Source
	state live.State
	// last good snapshot per view, kept while the source has nothing new.
	last map[live.ViewID]snapshot
	// paints are replayed in order onto every new live snapshot, whose
	// selection bits start cleared.
	paints []sel.Expr
}

// snapshot remembers which build of a view's buffer was last seen; the gate
// reuses buffers, so the pointer alone does not identify a build.
type snapshot struct {
	list *store.Specklist
	seq  uint64
}

func newDataset(id int, name string, attrs []string) *Dataset {
	return &Dataset{
		ID:    id,
		Name:  name,
		Attrs: append([]string(nil), attrs...),
		Look:  look.NewPipeline(),
		last:  make(map[live.ViewID]snapshot),
	}
}

// State returns the binding state of the dataset's live source.
func (d *Dataset) State() live.State { return d.state }

// Source returns the bound live source, or nil.
func (d *Dataset) Source() live.Source { return d.src }

// AttrIndex resolves an attribute by name or by decimal index. It returns -1
// when the attribute is unknown.
func (d *Dataset) AttrIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, a := range d.Attrs {
		if strings.EqualFold(a, name) {
			return i
		}
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < store.MaxAttrs {
		return i
	}
	return -1
}

func (d *Dataset) attr(name string) (int, error) {
	i := d.AttrIndex(name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q in %s", ErrUnknownAttr, name, d.Name)
	}
	return i, nil
}

func (d *Dataset) isLive() bool { return d.src != nil && d.state != live.Absent }

func (d *Dataset) remember(x sel.Expr) {
	if len(d.paints) == maxPaints {
		copy(d.paints, d.paints[1:])
		d.paints = d.paints[:maxPaints-1]
	}
	d.paints = append(d.paints, x)
}

func (d *Dataset) repaint(head *store.Specklist) {
	for _, x := range d.paints {
		paintChain(head, x)
	}
}

func paintChain(head *store.Specklist, x sel.Expr) int {
	n := 0
	for l := head; l != nil; l = l.Next() {
		n += sel.Apply(l.Sel[:l.Len()], x.Dest, x.Src)
	}
	return n
}

// parseColor reads "#RRGGBB" or "#RRGGBBAA".
func parseColor(s string) (uint32, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return 0, fmt.Errorf("%w: color %q", ErrBadSetting, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: color %q", ErrBadSetting, s)
	}
	if len(h) == 6 {
		v = v<<8 | 0xFF
	}
	return uint32(v), nil
}

func parseRange(args []string) (lo, hi float32, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%w: want <min> <max>, got %q", ErrBadSetting, strings.Join(args, " "))
	}
	a, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadSetting, err)
	}
	b, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadSetting, err)
	}
	return float32(a), float32(b), nil
}
