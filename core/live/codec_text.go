package live

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"specks/core/store"
)

// TextDecoder reads the text frame stream:
//
//	# time 0.5
//	# nattr 2
//	1.0 2.0 3.0 0.7 12
//	label 1.0 2.0 3.0 "Sol"
//
// A "# time" line starts a frame. Records hold x y z followed by exactly
// nattr attributes; when no "# nattr" line is given, the first record of a
// frame fixes the count. Other lines starting with '#' are comments.
// Malformed records are passed to OnMalformed and skipped.
type TextDecoder struct {
	// OnMalformed observes each skipped record. It may be nil.
	OnMalformed func(err error)

	sc      *bufio.Scanner
	line    int
	nattr   int // declared by "# nattr", or -1
	pending *Frame
	fixed   bool
	done    bool
}

// NewTextDecoder reads frames from r.
func NewTextDecoder(r io.Reader) *TextDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &TextDecoder{sc: sc, nattr: -1}
}

// Next returns the next complete frame, or io.EOF after the last one.
func (d *TextDecoder) Next() (*Frame, error) {
	if d.done {
		return nil, io.EOF
	}
	for d.sc.Scan() {
		d.line++
		line := strings.TrimSpace(d.sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if f, ok := d.directive(line); ok && f != nil {
				return f, nil
			}
			continue
		}
		if d.pending == nil {
			d.malformed(fmt.Errorf("%w: line %d: record before \"# time\"", ErrMalformedRecord, d.line))
			continue
		}
		if err := d.record(line); err != nil {
			d.malformed(err)
		}
	}
	d.done = true
	if err := d.sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if f := d.pending; f != nil {
		d.pending = nil
		return f, nil
	}
	return nil, io.EOF
}

// directive handles a '#' line. It returns the finished previous frame when
// the line starts a new one.
func (d *TextDecoder) directive(line string) (*Frame, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, "#"))
	if len(fields) != 2 {
		return nil, false
	}
	switch fields[0] {
	case "time":
		t, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			d.malformed(fmt.Errorf("%w: line %d: bad time %q", ErrMalformedRecord, d.line, fields[1]))
			return nil, false
		}
		prev := d.pending
		d.pending = NewFrame(t, max(d.nattr, 0))
		d.fixed = d.nattr >= 0
		return prev, true
	case "nattr":
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 || n > store.MaxAttrs || d.pending != nil && d.pending.Len() > 0 {
			d.malformed(fmt.Errorf("%w: line %d: bad nattr %q", ErrMalformedRecord, d.line, fields[1]))
			return nil, false
		}
		d.nattr = n
		if d.pending != nil {
			d.pending.NAttr = n
			d.fixed = true
		}
	}
	return nil, false
}

func (d *TextDecoder) record(line string) error {
	f := d.pending
	if rest, ok := strings.CutPrefix(line, "label "); ok {
		return d.label(rest)
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return fmt.Errorf("%w: line %d: %d fields", ErrMalformedRecord, d.line, len(fields))
	}
	if !d.fixed && f.Len() == 0 {
		if len(fields)-3 > store.MaxAttrs {
			return fmt.Errorf("%w: line %d: %d attributes (max %d)", ErrMalformedRecord, d.line, len(fields)-3, store.MaxAttrs)
		}
		f.NAttr = len(fields) - 3
		d.fixed = true
	}
	if len(fields) != 3+f.NAttr {
		return fmt.Errorf("%w: line %d: %d fields, want %d", ErrMalformedRecord, d.line, len(fields), 3+f.NAttr)
	}
	var vals [3 + store.MaxAttrs]float32
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("%w: line %d: field %d: %q", ErrMalformedRecord, d.line, i+1, s)
		}
		vals[i] = float32(v)
	}
	f.Add(vals[0], vals[1], vals[2], 1, vals[3:len(fields)]...)
	return nil
}

func (d *TextDecoder) label(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) < 4 {
		return fmt.Errorf("%w: line %d: short label", ErrMalformedRecord, d.line)
	}
	var p [3]float32
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return fmt.Errorf("%w: line %d: label field %d: %q", ErrMalformedRecord, d.line, i+1, fields[i])
		}
		p[i] = float32(v)
	}
	// The title is everything after the third coordinate.
	rest = strings.TrimSpace(rest)
	for i := 0; i < 3; i++ {
		j := strings.IndexAny(rest, " \t")
		if j < 0 {
			return fmt.Errorf("%w: line %d: short label", ErrMalformedRecord, d.line)
		}
		rest = strings.TrimLeft(rest[j:], " \t")
	}
	title, err := strconv.Unquote(rest)
	if err != nil {
		title = rest
	}
	d.pending.AddLabel(p[0], p[1], p[2], title)
	return nil
}

func (d *TextDecoder) malformed(err error) {
	if d.OnMalformed != nil {
		d.OnMalformed(err)
	}
}

// EncodeText writes f in the text frame format.
func EncodeText(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# time %s\n", strconv.FormatFloat(f.Time, 'g', -1, 64))
	fmt.Fprintf(bw, "# nattr %d\n", f.NAttr)
	for i := 0; i < f.Len(); i++ {
		for j := 0; j < 3; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(float64(f.Pos[3*i+j]), 'g', -1, 32))
		}
		for b := 0; b < f.NAttr; b++ {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(float64(f.Attr[i*f.NAttr+b]), 'g', -1, 32))
		}
		bw.WriteByte('\n')
	}
	for _, lb := range f.Labels {
		fmt.Fprintf(bw, "label %s %s %s %s\n",
			strconv.FormatFloat(float64(lb.X), 'g', -1, 32),
			strconv.FormatFloat(float64(lb.Y), 'g', -1, 32),
			strconv.FormatFloat(float64(lb.Z), 'g', -1, 32),
			strconv.Quote(lb.Title))
	}
	return bw.Flush()
}
