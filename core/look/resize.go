package look

import (
	"specks/core/sel"
	"specks/core/store"
)

// SizeMode selects where a record's luminosity factor comes from.
type SizeMode uint8

const (
	// SizeDeclared uses the size the producer declared.
	SizeDeclared SizeMode = iota
	// SizeAttr rescales an attribute.
	SizeAttr
	// SizeConst uses Scale for every record.
	SizeConst
)

func (m SizeMode) String() string {
	switch m {
	case SizeDeclared:
		return "declared"
	case SizeAttr:
		return "attr"
	case SizeConst:
		return "const"
	default:
		return "unknown"
	}
}

// SizeParams describes one resize pass.
type SizeParams struct {
	Mode SizeMode
	Attr int
	// Min and Max rescale the attribute onto [0, 1] when Max > Min;
	// otherwise the raw value is used.
	Min, Max float32
	Scale    float32
	// Records matching Emphasis are multiplied by EmphasisFactor.
	Emphasis       sel.Op
	EmphasisFactor float32
}

// Resize writes the luminosity factor of every record of l into l.Lum.
func Resize(l *store.Specklist, p SizeParams) {
	lum := l.EnsureLum()
	mode := p.Mode
	if mode == SizeAttr && !l.ValidAttr(p.Attr) {
		mode = SizeDeclared
	}
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	span := p.Max - p.Min
	for i := range lum {
		var v float32
		switch mode {
		case SizeConst:
			v = 1
		case SizeAttr:
			v = l.AttrValue(i, p.Attr)
			if span > 0 {
				v = (v - p.Min) / span
				if v < 0 {
					v = 0
				}
			}
		default:
			v = l.Size[i]
		}
		v *= scale
		if p.EmphasisFactor != 0 && sel.Matches(l.Sel[i], p.Emphasis) {
			v *= p.EmphasisFactor
		}
		if v < 0 || v != v {
			v = 0
		}
		lum[i] = v
	}
	l.SizeBy = store.NoAttr
	if mode == SizeAttr {
		l.SizeBy = p.Attr
	}
}
