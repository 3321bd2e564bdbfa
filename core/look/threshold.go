package look

import (
	"specks/core/sel"
	"specks/core/store"
)

// ThreshParams drives the threshold selection bit.
type ThreshParams struct {
	Enabled  bool
	Attr     int
	Min, Max float32
}

const threshBit = sel.Mask(1) << sel.ThresholdBit

// Threshold sets the threshold bit on records whose attribute lies in
// [Min, Max] and clears it elsewhere. When disabled, or when the list lacks
// the attribute, every record gets the bit.
func Threshold(l *store.Specklist, p ThreshParams) {
	masks := l.Sel[:l.Len()]
	if !p.Enabled || !l.ValidAttr(p.Attr) {
		for i := range masks {
			masks[i] |= threshBit
		}
		l.ThreshBy = store.NoAttr
		return
	}
	for i := range masks {
		v := l.AttrValue(i, p.Attr)
		if v >= p.Min && v <= p.Max {
			masks[i] |= threshBit
		} else {
			masks[i] &^= threshBit
		}
	}
	l.ThreshBy = p.Attr
}
