package sel

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSyntax = errors.New("sel: syntax error")

// Expr is a parsed selection expression.
type Expr struct {
	// Dest is the paint op on the left of '='. Valid when HasDest is set.
	Dest    Op
	HasDest bool
	// Src is the query on the right of '=', or the whole expression when
	// there is no '='.
	Src Op
}

// ParseTerms parses a whitespace separated list of terms into one op.
//
//	name   the bit must be on
//	-name  the bit must be off
//	^name  the bit toggles when painted; it does not constrain a query
//
// "all" contributes nothing and "off" disables the op. Unknown user names are
// allocated in ModeDest and rejected in ModeUse.
func ParseTerms(names *Names, s string, mode Mode) (Op, error) {
	op := Op{Mode: mode}
	for _, term := range strings.Fields(s) {
		prefix := byte(0)
		if term[0] == '-' || term[0] == '^' {
			prefix = term[0]
			term = term[1:]
		}
		bit, err := names.Bit(term, mode == ModeDest)
		if err != nil {
			return Op{}, err
		}
		if bit < 0 {
			if prefix != 0 {
				return Op{}, fmt.Errorf("%w: prefix on %q", ErrSyntax, term)
			}
			if strings.EqualFold(term, NameOff) {
				op.Mode = ModeNone
			}
			continue
		}
		b := Mask(1) << uint(bit)
		switch prefix {
		case '-':
			op.Wanted |= b
			op.Wanton &^= b
		case '^':
			op.Wanted &^= b
			op.Wanton |= b
		default:
			op.Wanted |= b
			op.Wanton |= b
		}
	}
	return op, nil
}

// ParseExpression parses "DEST [= SRC]".
//
// Without '=' the expression is a query only. An empty right-hand side means
// "all".
func ParseExpression(names *Names, s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Expr{}, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	lhs, rhs, hasEq := strings.Cut(s, "=")
	if !hasEq {
		src, err := ParseTerms(names, s, ModeUse)
		if err != nil {
			return Expr{}, err
		}
		return Expr{Src: src}, nil
	}
	if strings.Contains(rhs, "=") {
		return Expr{}, fmt.Errorf("%w: more than one '='", ErrSyntax)
	}
	if strings.TrimSpace(lhs) == "" {
		return Expr{}, fmt.Errorf("%w: missing destination", ErrSyntax)
	}
	dest, err := ParseTerms(names, lhs, ModeDest)
	if err != nil {
		return Expr{}, err
	}
	src := All
	if strings.TrimSpace(rhs) != "" {
		if src, err = ParseTerms(names, rhs, ModeUse); err != nil {
			return Expr{}, err
		}
	}
	return Expr{Dest: dest, HasDest: true, Src: src}, nil
}

// Format renders op back into term syntax.
func (t *Names) Format(op Op) string {
	if op.Mode == ModeNone {
		return NameOff
	}
	var parts []string
	for bit := 0; bit < 32; bit++ {
		b := Mask(1) << uint(bit)
		name := t.Name(bit)
		if name == "" {
			name = fmt.Sprintf("bit%d", bit)
		}
		switch {
		case op.Wanted&b != 0 && op.Wanton&b != 0:
			parts = append(parts, name)
		case op.Wanted&b != 0:
			parts = append(parts, "-"+name)
		case op.Wanton&b != 0:
			parts = append(parts, "^"+name)
		}
	}
	if len(parts) == 0 {
		return NameAll
	}
	return strings.Join(parts, " ")
}
